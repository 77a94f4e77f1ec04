package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/opsdeck/kube-triage/internal/engine"
	"github.com/opsdeck/kube-triage/internal/metrics"
	"github.com/opsdeck/kube-triage/internal/models"
	"github.com/opsdeck/kube-triage/internal/patterns"
	"github.com/opsdeck/kube-triage/internal/utils"
)

// HistoryRepo defines storage operations for diagnosis history and feedback.
type HistoryRepo interface {
	StoreDiagnostics(ctx context.Context, result models.DiagnosticsResult) error
	ListDiagnostics(ctx context.Context, req models.ListDiagnosticsRequest) ([]models.DiagnosticsResult, error)
	StoreFeedback(ctx context.Context, feedback models.Feedback) error
}

// DiagnosticsService fronts the diagnosis pipeline with history persistence,
// pattern mining, and latency bookkeeping.
type DiagnosticsService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	history   HistoryRepo
	miner     *patterns.Miner
	latencies *utils.LatencyTracker
}

// NewDiagnosticsService constructs the service facade. History and miner may
// be nil; diagnosis still works without persistence.
func NewDiagnosticsService(logger *slog.Logger, pipeline *engine.Pipeline, history HistoryRepo, miner *patterns.Miner) *DiagnosticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiagnosticsService{
		logger:    logger,
		pipeline:  pipeline,
		history:   history,
		miner:     miner,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Diagnose runs the pipeline, records metrics, and persists the result. A
// degraded run (access or gather failure) still returns its result; only a
// missing pipeline is a hard error.
func (s *DiagnosticsService) Diagnose(ctx context.Context, req models.DiagnoseRequest) (models.DiagnosticsResult, error) {
	if s.pipeline == nil {
		return models.DiagnosticsResult{}, utils.NewAppError("diagnose", "pipeline not configured", nil)
	}

	s.logger.Debug("Diagnose called", slog.String("namespace", req.Namespace))

	start := time.Now()
	result, runErr := s.pipeline.Diagnose(ctx, req)
	duration := time.Since(start)

	if runErr != nil {
		metrics.ObserveDiagnosis(duration, metrics.OutcomeError)
		s.logger.Error("diagnosis degraded", slog.Any("error", runErr))
	} else {
		s.latencies.Observe(duration)
		metrics.ObserveDiagnosis(duration, metrics.OutcomeSuccess)
		metrics.CountIssues(result.Issues)
		if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
			p95 := s.latencies.Percentile(95)
			s.logger.Info("diagnosis latency", slog.Duration("p95", p95), slog.Int("samples", count))
		}
	}

	if s.history != nil {
		if err := s.history.StoreDiagnostics(ctx, result); err != nil {
			s.logger.Warn("history store failed", slog.Any("error", err))
		}
	}

	return result, nil
}

// ListDiagnostics returns recent diagnosis runs, newest first.
func (s *DiagnosticsService) ListDiagnostics(ctx context.Context, req models.ListDiagnosticsRequest) ([]models.DiagnosticsResult, error) {
	if s.history == nil {
		return nil, utils.NewAppError("list-diagnostics", "history repository not configured", nil)
	}
	results, err := s.history.ListDiagnostics(ctx, req)
	if err != nil {
		s.logger.Error("list diagnostics failed", slog.Any("error", err))
		return nil, utils.NewAppError("list-diagnostics", "failed to list diagnosis history", err)
	}
	return results, nil
}

// GetPatterns mines recurring failure patterns from recent history.
func (s *DiagnosticsService) GetPatterns(ctx context.Context, namespace string) ([]models.FailurePattern, error) {
	if s.history == nil || s.miner == nil {
		return nil, utils.NewAppError("get-patterns", "pattern mining not configured", nil)
	}
	history, err := s.history.ListDiagnostics(ctx, models.ListDiagnosticsRequest{Namespace: namespace})
	if err != nil {
		s.logger.Error("pattern history fetch failed", slog.Any("error", err))
		return nil, utils.NewAppError("get-patterns", "failed to load diagnosis history", err)
	}
	mined, err := s.miner.Mine(ctx, history)
	if err != nil {
		return nil, utils.NewAppError("get-patterns", "pattern mining failed", err)
	}
	return mined, nil
}

// SubmitFeedback records user feedback for a past diagnosis.
func (s *DiagnosticsService) SubmitFeedback(ctx context.Context, feedback models.Feedback) error {
	if s.history == nil {
		return utils.NewAppError("submit-feedback", "feedback repository not configured", nil)
	}
	if err := s.history.StoreFeedback(ctx, feedback); err != nil {
		s.logger.Error("store feedback failed", slog.Any("error", err))
		return utils.NewAppError("submit-feedback", "failed to persist feedback", err)
	}
	return nil
}

// LatencyP95 returns the current p95 diagnosis latency.
func (s *DiagnosticsService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
