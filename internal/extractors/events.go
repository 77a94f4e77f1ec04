package extractors

import (
	"time"

	corev1 "k8s.io/api/core/v1"
)

// criticalReasons lists event reasons that are always worth classifying,
// regardless of event type or repeat count.
var criticalReasons = map[string]struct{}{
	"OOMKilled":              {},
	"FailedScheduling":       {},
	"FailedMount":            {},
	"BackOff":                {},
	"Unhealthy":              {},
	"Failed":                 {},
	"FailedCreatePodSandBox": {},
	"NodeNotReady":           {},
	"Evicted":                {},
}

// EventExtractor narrows the raw event list to the time window and criticality
// the classifier cares about.
type EventExtractor struct {
	window time.Duration
}

// NewEventExtractor constructs an extractor with the given lookback window.
// A non-positive window defaults to 30 minutes.
func NewEventExtractor(window time.Duration) *EventExtractor {
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &EventExtractor{window: window}
}

// Filter returns events inside the lookback window that qualify as critical:
// Warning type, or repeated more than 10 times, or carrying a reason from the
// critical set.
func (e *EventExtractor) Filter(events []corev1.Event, now time.Time) []corev1.Event {
	filtered := make([]corev1.Event, 0, len(events))
	cutoff := now.Add(-e.window)
	for _, ev := range events {
		ts := eventTime(ev)
		if !ts.IsZero() && ts.Before(cutoff) {
			continue
		}
		if !isCritical(ev) {
			continue
		}
		filtered = append(filtered, ev)
	}
	return filtered
}

func isCritical(ev corev1.Event) bool {
	if ev.Type == corev1.EventTypeWarning {
		return true
	}
	if ev.Count > 10 {
		return true
	}
	_, ok := criticalReasons[ev.Reason]
	return ok
}

// eventTime picks the most recent timestamp an event carries. Events without
// any timestamp are treated as current so they are never dropped by the window.
func eventTime(ev corev1.Event) time.Time {
	if !ev.LastTimestamp.IsZero() {
		return ev.LastTimestamp.Time
	}
	if !ev.EventTime.IsZero() {
		return ev.EventTime.Time
	}
	return ev.FirstTimestamp.Time
}
