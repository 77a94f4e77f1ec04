package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opsdeck/kube-triage/internal/models"
)

const (
	// OutcomeSuccess labels diagnoses that produced a result from cluster data.
	OutcomeSuccess = "success"
	// OutcomeError labels diagnoses that failed on access or data gathering.
	OutcomeError = "error"
)

var (
	diagnosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kube_triage",
			Name:      "diagnoses_total",
			Help:      "Total number of diagnosis runs handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	diagnosisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "kube_triage",
			Name:      "diagnosis_seconds",
			Help:      "Diagnosis latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	issuesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kube_triage",
			Name:      "issues_detected_total",
			Help:      "Total issues detected, partitioned by issue type.",
		},
		[]string{"type"},
	)
)

// Register attaches kube-triage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		diagnosesTotal,
		diagnosisDurationSeconds,
		issuesDetectedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveDiagnosis records a diagnosis duration and outcome label.
func ObserveDiagnosis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	diagnosesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	diagnosisDurationSeconds.Observe(duration.Seconds())
}

// CountIssues increments the per-type issue counters for one diagnosis run.
func CountIssues(issues []models.DiagnosedIssue) {
	for _, issue := range issues {
		issuesDetectedTotal.WithLabelValues(string(issue.Type)).Inc()
	}
}
