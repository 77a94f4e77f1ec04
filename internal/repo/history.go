package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdeck/kube-triage/internal/cache"
	"github.com/opsdeck/kube-triage/internal/models"
)

const (
	historyListKey  = "kube-triage:history"
	feedbackListKey = "kube-triage:feedback"
)

// HistoryStore keeps recent diagnosis runs in a bounded most-recent-first ring
// inside the cache provider, alongside submitted feedback. Entries past the
// configured size fall off the tail.
type HistoryStore struct {
	cache   cache.Provider
	logger  *slog.Logger
	maxSize int
}

// NewHistoryStore constructs a store with the given ring size.
func NewHistoryStore(cacheProvider cache.Provider, maxSize int, logger *slog.Logger) *HistoryStore {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{cache: cacheProvider, logger: logger, maxSize: maxSize}
}

// StoreDiagnostics appends a diagnosis result to the history ring.
func (s *HistoryStore) StoreDiagnostics(ctx context.Context, result models.DiagnosticsResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal diagnosis %s: %w", result.DiagnosisID, err)
	}
	if err := s.cache.PushCapped(ctx, historyListKey, data, s.maxSize); err != nil {
		return fmt.Errorf("store diagnosis %s: %w", result.DiagnosisID, err)
	}
	return nil
}

// ListDiagnostics returns recent runs, newest first, optionally filtered by
// namespace. Entries that fail to decode are skipped rather than failing the
// whole listing.
func (s *HistoryStore) ListDiagnostics(ctx context.Context, req models.ListDiagnosticsRequest) ([]models.DiagnosticsResult, error) {
	limit := req.Limit
	if limit <= 0 || limit > s.maxSize {
		limit = s.maxSize
	}

	// Over-fetch when filtering so a namespace-heavy ring still fills the page.
	fetch := limit
	if req.Namespace != "" {
		fetch = s.maxSize
	}

	entries, err := s.cache.List(ctx, historyListKey, fetch)
	if err != nil {
		return nil, fmt.Errorf("list diagnosis history: %w", err)
	}

	results := make([]models.DiagnosticsResult, 0, limit)
	for _, entry := range entries {
		var result models.DiagnosticsResult
		if err := json.Unmarshal(entry, &result); err != nil {
			s.logger.Warn("skipping undecodable history entry", "error", err)
			continue
		}
		if req.Namespace != "" && result.Namespace != req.Namespace {
			continue
		}
		results = append(results, result)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// StoreFeedback appends feedback to the feedback ring. The submission time is
// stamped here when the caller left it zero.
func (s *HistoryStore) StoreFeedback(ctx context.Context, feedback models.Feedback) error {
	if feedback.DiagnosisID == "" {
		return fmt.Errorf("feedback requires a diagnosis id")
	}
	if feedback.SubmittedAt.IsZero() {
		feedback.SubmittedAt = time.Now().UTC()
	}
	data, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback for %s: %w", feedback.DiagnosisID, err)
	}
	if err := s.cache.PushCapped(ctx, feedbackListKey, data, s.maxSize); err != nil {
		return fmt.Errorf("store feedback for %s: %w", feedback.DiagnosisID, err)
	}
	return nil
}

// ListFeedback returns recent feedback entries, newest first.
func (s *HistoryStore) ListFeedback(ctx context.Context, limit int) ([]models.Feedback, error) {
	if limit <= 0 || limit > s.maxSize {
		limit = s.maxSize
	}
	entries, err := s.cache.List(ctx, feedbackListKey, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	feedbacks := make([]models.Feedback, 0, len(entries))
	for _, entry := range entries {
		var fb models.Feedback
		if err := json.Unmarshal(entry, &fb); err != nil {
			s.logger.Warn("skipping undecodable feedback entry", "error", err)
			continue
		}
		feedbacks = append(feedbacks, fb)
	}
	return feedbacks, nil
}
