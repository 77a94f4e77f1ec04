package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/opsdeck/kube-triage/internal/extractors"
	"github.com/opsdeck/kube-triage/internal/models"
)

// DataSource defines the cluster access behaviour the pipeline consumes. The
// implementation is expected to return sanitized, well-typed collections;
// retries and auth belong to it, not here.
type DataSource interface {
	CheckAccess(ctx context.Context) error
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)
	ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error)
	ListServices(ctx context.Context, namespace string) ([]corev1.Service, error)
	ListEvents(ctx context.Context, namespace string) ([]corev1.Event, error)
	ClusterInfo(ctx context.Context) (models.ClusterInfo, error)
}

// Options tune synthesis behaviour.
type Options struct {
	// ConfidenceThreshold gates remediation proposal generation per issue.
	ConfidenceThreshold float64
	// MaxProposals caps how many ranked issues receive proposals.
	MaxProposals int
}

// Pipeline orchestrates the diagnosis flow: access check, concurrent snapshot
// gather, classification, and synthesis. Every failure mode still produces a
// structurally valid DiagnosticsResult; no error or panic escapes Diagnose.
type Pipeline struct {
	logger     *slog.Logger
	source     DataSource
	classifier *Classifier
	explainer  *Explainer
	proposer   *Proposer
	rules      *RuleEngine
	events     *extractors.EventExtractor
	health     *extractors.HealthExtractor
	opts       Options
}

// NewPipeline constructs a diagnosis pipeline.
func NewPipeline(logger *slog.Logger, source DataSource, rules *RuleEngine, events *extractors.EventExtractor, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = extractors.NewEventExtractor(0)
	}
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = 0.7
	}
	if opts.MaxProposals <= 0 {
		opts.MaxProposals = 5
	}
	return &Pipeline{
		logger:     logger,
		source:     source,
		classifier: NewClassifier(),
		explainer:  NewExplainer(),
		proposer:   NewProposer(),
		rules:      rules,
		events:     events,
		health:     extractors.NewHealthExtractor(),
		opts:       opts,
	}
}

// Diagnose runs the full pipeline for one request. Every failure mode still
// returns a structurally valid result; the error reports what degraded the
// run.
func (p *Pipeline) Diagnose(ctx context.Context, req models.DiagnoseRequest) (result models.DiagnosticsResult, runErr error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("diagnosis panicked", slog.Any("panic", r))
			runErr = fmt.Errorf("internal error: %v", r)
			result = p.failureResult(runErr)
		}
		result.Namespace = req.Namespace
	}()

	if p.source == nil {
		err := fmt.Errorf("no cluster data source configured")
		return p.noAccessResult(err), err
	}

	if err := p.source.CheckAccess(ctx); err != nil {
		p.logger.Warn("stage access-check failed", slog.Any("error", err))
		return p.noAccessResult(err), err
	}
	p.logger.Debug("stage access-check ok")

	snap, err := p.gather(ctx, req.Namespace)
	if err != nil {
		p.logger.Warn("stage gather failed", slog.Any("error", err))
		return p.failureResult(err), err
	}
	p.logger.Debug("stage gather ok",
		slog.Int("pods", len(snap.Pods)),
		slog.Int("deployments", len(snap.Deployments)),
		slog.Int("services", len(snap.Services)),
		slog.Int("events", len(snap.Events)))

	issues := p.classifier.Classify(snap)
	p.logger.Debug("stage classify ok", slog.Int("issues", len(issues)))

	result = p.synthesize(snap, issues)
	p.logger.Debug("stage synthesize ok",
		slog.Int("proposals", len(result.NextSteps)),
		slog.Bool("requires_approval", result.RequiresApproval))
	return result, nil
}

// gather fans out to the data source and joins all-or-nothing: partial
// snapshots are never classified.
func (p *Pipeline) gather(ctx context.Context, namespace string) (models.Snapshot, error) {
	var snap models.Snapshot
	now := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pods, err := p.source.ListPods(gctx, namespace)
		if err != nil {
			return fmt.Errorf("list pods: %w", err)
		}
		snap.Pods = pods
		return nil
	})
	g.Go(func() error {
		deps, err := p.source.ListDeployments(gctx, namespace)
		if err != nil {
			return fmt.Errorf("list deployments: %w", err)
		}
		snap.Deployments = deps
		return nil
	})
	g.Go(func() error {
		svcs, err := p.source.ListServices(gctx, namespace)
		if err != nil {
			return fmt.Errorf("list services: %w", err)
		}
		snap.Services = svcs
		return nil
	})
	g.Go(func() error {
		events, err := p.source.ListEvents(gctx, namespace)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		snap.Events = p.events.Filter(events, now)
		return nil
	})
	g.Go(func() error {
		info, err := p.source.ClusterInfo(gctx)
		if err != nil {
			return fmt.Errorf("cluster info: %w", err)
		}
		snap.ClusterInfo = info
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.Snapshot{}, err
	}
	snap.TakenAt = now
	return snap, nil
}

func (p *Pipeline) synthesize(snap models.Snapshot, issues []models.Issue) models.DiagnosticsResult {
	overview := p.health.Overview(snap)

	diagnosed := make([]models.DiagnosedIssue, 0, len(issues))
	for _, issue := range issues {
		diagnosed = append(diagnosed, models.DiagnosedIssue{
			Issue:       issue,
			Explanation: p.explainer.Explain(issue),
		})
	}

	proposals := make([]models.RemediationProposal, 0)
	requiresApproval := false
	for _, issue := range issues {
		if len(proposals) >= p.opts.MaxProposals {
			break
		}
		if issue.Confidence < p.opts.ConfidenceThreshold {
			continue
		}
		proposal := p.proposer.Propose(issue)
		proposals = append(proposals, proposal)
		requiresApproval = requiresApproval || proposal.RequiresApproval
	}

	return models.DiagnosticsResult{
		DiagnosisID:      fmt.Sprintf("diag-%d", time.Now().UnixNano()),
		Issues:           diagnosed,
		ClusterOverview:  overview,
		ClusterInfo:      snap.ClusterInfo,
		Recommendations:  p.recommendations(overview, issues),
		RequiresApproval: requiresApproval,
		Summary:          summarize(overview, issues),
		NextSteps:        proposals,
		CreatedAt:        time.Now().UTC(),
	}
}

// recommendations applies the fixed health-threshold rules, then rule-pack
// extras.
func (p *Pipeline) recommendations(overview models.ClusterOverview, issues []models.Issue) []string {
	recs := make([]string, 0)

	podHealth := healthPercent(overview.HealthyPods, overview.TotalPods)
	if podHealth < 80 {
		recs = append(recs, fmt.Sprintf("Pod health is at %.0f%%; investigate failing pods before it degrades further", podHealth))
	} else if podHealth < 95 {
		recs = append(recs, fmt.Sprintf("Pod health is at %.0f%%; keep monitoring the unhealthy pods", podHealth))
	}

	deployHealth := healthPercent(overview.HealthyDeployments, overview.TotalDeployments)
	if deployHealth < 90 {
		recs = append(recs, fmt.Sprintf("Deployment health is at %.0f%%; review degraded deployments", deployHealth))
	}

	if countIssues(issues, models.IssueCrashLoop) >= 3 {
		recs = append(recs, "Multiple crash loops detected; look for a system-wide cause such as a shared dependency or bad rollout")
	}
	if countIssues(issues, models.IssueImagePullError) >= 2 {
		recs = append(recs, "Several image pull failures; check registry availability and credentials")
	}
	if countIssues(issues, models.IssueNetworkPolicyBlock) > 0 {
		recs = append(recs, "Review NetworkPolicies in the affected namespaces")
	}

	recs = appendUnique(recs, p.rules.Recommend(issues)...)

	if len(recs) == 0 {
		if len(issues) == 0 {
			recs = append(recs, "No issues detected; cluster looks healthy")
		} else {
			recs = append(recs, "Review the detected issues and their proposed next steps")
		}
	}
	return recs
}

func (p *Pipeline) noAccessResult(err error) models.DiagnosticsResult {
	return models.DiagnosticsResult{
		DiagnosisID: fmt.Sprintf("diag-%d", time.Now().UnixNano()),
		Issues:      []models.DiagnosedIssue{},
		Recommendations: []string{
			"Verify cluster credentials and kubeconfig context",
			"Run a connectivity check against the API server",
			"Confirm the service account can list pods, deployments, services, and events",
		},
		RequiresApproval: false,
		Summary:          fmt.Sprintf("Unable to access the cluster: %v", err),
		NextSteps:        []models.RemediationProposal{},
		CreatedAt:        time.Now().UTC(),
	}
}

func (p *Pipeline) failureResult(err error) models.DiagnosticsResult {
	msg := fmt.Sprintf("Diagnosis failed: %v", err)
	return models.DiagnosticsResult{
		DiagnosisID:      fmt.Sprintf("diag-%d", time.Now().UnixNano()),
		Issues:           []models.DiagnosedIssue{},
		Recommendations:  []string{msg, "Retry once the underlying problem is resolved"},
		RequiresApproval: false,
		Summary:          msg,
		NextSteps:        []models.RemediationProposal{},
		CreatedAt:        time.Now().UTC(),
	}
}

func summarize(overview models.ClusterOverview, issues []models.Issue) string {
	if len(issues) == 0 {
		return fmt.Sprintf("No issues detected across %d pods, %d deployments, and %d services",
			overview.TotalPods, overview.TotalDeployments, overview.TotalServices)
	}
	critical := 0
	high := 0
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			critical++
		case models.SeverityHigh:
			high++
		}
	}
	return fmt.Sprintf("Detected %d issue(s): %d critical, %d high. Cluster health: %d/%d pods ready",
		len(issues), critical, high, overview.HealthyPods, overview.TotalPods)
}

func healthPercent(healthy, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(healthy) / float64(total) * 100
}

func countIssues(issues []models.Issue, issueType models.IssueType) int {
	count := 0
	for _, issue := range issues {
		if issue.Type == issueType {
			count++
		}
	}
	return count
}
