package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/opsdeck/kube-triage/internal/extractors"
	"github.com/opsdeck/kube-triage/internal/models"
)

type fakeDataSource struct {
	accessErr error
	podsErr   error
	eventsErr error

	pods        []corev1.Pod
	deployments []appsv1.Deployment
	services    []corev1.Service
	events      []corev1.Event
	info        models.ClusterInfo

	requestedNamespaces []string
}

func (f *fakeDataSource) CheckAccess(ctx context.Context) error { return f.accessErr }

func (f *fakeDataSource) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	f.requestedNamespaces = append(f.requestedNamespaces, namespace)
	return f.pods, f.podsErr
}

func (f *fakeDataSource) ListDeployments(ctx context.Context, namespace string) ([]appsv1.Deployment, error) {
	return f.deployments, nil
}

func (f *fakeDataSource) ListServices(ctx context.Context, namespace string) ([]corev1.Service, error) {
	return f.services, nil
}

func (f *fakeDataSource) ListEvents(ctx context.Context, namespace string) ([]corev1.Event, error) {
	return f.events, f.eventsErr
}

func (f *fakeDataSource) ClusterInfo(ctx context.Context) (models.ClusterInfo, error) {
	return f.info, nil
}

func TestPipelineDiagnoseHealthyCluster(t *testing.T) {
	source := &fakeDataSource{
		pods: []corev1.Pod{
			readyPod("web-0", "shop", nil),
			readyPod("web-1", "shop", nil),
		},
		deployments: []appsv1.Deployment{
			{
				ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "shop"},
				Spec:       appsv1.DeploymentSpec{Replicas: int32ptr(2)},
				Status:     appsv1.DeploymentStatus{ReadyReplicas: 2, AvailableReplicas: 2},
			},
		},
		info: models.ClusterInfo{Version: "v1.29.0", NodeCount: 3},
	}
	pipeline := NewPipeline(nil, source, nil, nil, Options{})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{Namespace: "shop"})
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	if result.Namespace != "shop" {
		t.Fatalf("expected namespace on result, got %q", result.Namespace)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues, got %d", len(result.Issues))
	}
	if result.ClusterOverview.TotalPods != 2 || result.ClusterOverview.HealthyPods != 2 {
		t.Fatalf("unexpected overview: %+v", result.ClusterOverview)
	}
	if result.ClusterInfo.Version != "v1.29.0" {
		t.Fatalf("cluster info not carried through: %+v", result.ClusterInfo)
	}
	if !strings.HasPrefix(result.Summary, "No issues detected") {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0] != "No issues detected; cluster looks healthy" {
		t.Fatalf("unexpected recommendations %v", result.Recommendations)
	}
	if result.RequiresApproval {
		t.Fatal("healthy run must not require approval")
	}
	if result.DiagnosisID == "" || result.CreatedAt.IsZero() {
		t.Fatal("result missing identity fields")
	}
	if len(source.requestedNamespaces) != 1 || source.requestedNamespaces[0] != "shop" {
		t.Fatalf("namespace not forwarded to data source: %v", source.requestedNamespaces)
	}
}

func TestPipelineDiagnoseUnhealthyCluster(t *testing.T) {
	source := &fakeDataSource{
		pods: []corev1.Pod{
			waitingPod("api-0", "payments", "CrashLoopBackOff", 12),
			readyPod("web-0", "payments", nil),
		},
		deployments: []appsv1.Deployment{
			{
				ObjectMeta: metav1.ObjectMeta{Name: "api", Namespace: "payments"},
				Spec:       appsv1.DeploymentSpec{Replicas: int32ptr(2)},
				Status:     appsv1.DeploymentStatus{ReadyReplicas: 0, AvailableReplicas: 0},
			},
		},
	}
	pipeline := NewPipeline(nil, source, nil, nil, Options{})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{Namespace: "payments"})
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	if len(result.Issues) == 0 {
		t.Fatal("expected issues")
	}
	for i, diagnosed := range result.Issues {
		if diagnosed.Explanation.HumanExplanation == "" || diagnosed.Explanation.SREExplanation == "" {
			t.Fatalf("issue %d missing explanation: %+v", i, diagnosed.Explanation)
		}
	}
	if len(result.NextSteps) == 0 {
		t.Fatal("high-confidence issues should yield proposals")
	}
	if !result.RequiresApproval {
		t.Fatal("crash loop proposal must mark the run as requiring approval")
	}
	if !strings.HasPrefix(result.Summary, "Detected") {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
}

func TestPipelineProposalsAreThresholdGatedAndCapped(t *testing.T) {
	source := &fakeDataSource{}
	// Seed enough crash-looping pods that more issues clear the threshold
	// than the proposal cap allows.
	for i := 0; i < 8; i++ {
		source.pods = append(source.pods, waitingPod(fmt.Sprintf("api-%d", i), "payments", "CrashLoopBackOff", 9))
	}
	pipeline := NewPipeline(nil, source, nil, nil, Options{MaxProposals: 3})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{})
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	if len(result.Issues) <= 3 {
		t.Fatalf("expected more issues than the proposal cap, got %d", len(result.Issues))
	}
	if len(result.NextSteps) != 3 {
		t.Fatalf("expected proposals capped at 3, got %d", len(result.NextSteps))
	}

	// A threshold above every confidence suppresses all proposals.
	strict := NewPipeline(nil, source, nil, nil, Options{ConfidenceThreshold: 0.99})
	result, err = strict.Diagnose(context.Background(), models.DiagnoseRequest{})
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	if len(result.NextSteps) != 0 {
		t.Fatalf("expected no proposals above threshold 0.99, got %d", len(result.NextSteps))
	}
	if result.RequiresApproval {
		t.Fatal("no proposals means nothing to approve")
	}
}

func TestPipelineNoAccess(t *testing.T) {
	source := &fakeDataSource{accessErr: fmt.Errorf("forbidden")}
	pipeline := NewPipeline(nil, source, nil, nil, Options{})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{Namespace: "shop"})
	if err == nil {
		t.Fatal("expected error when access check fails")
	}
	if !strings.Contains(result.Summary, "Unable to access the cluster") {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if len(result.Recommendations) != 3 {
		t.Fatalf("expected connectivity recommendations, got %v", result.Recommendations)
	}
	if result.Namespace != "shop" {
		t.Fatalf("degraded result must still carry the namespace, got %q", result.Namespace)
	}
	if result.Issues == nil || result.NextSteps == nil {
		t.Fatal("degraded result must keep empty slices, not nil")
	}
	if len(source.requestedNamespaces) != 0 {
		t.Fatal("gather must not run after a failed access check")
	}
}

func TestPipelineGatherFailure(t *testing.T) {
	source := &fakeDataSource{podsErr: fmt.Errorf("etcdserver: request timed out")}
	pipeline := NewPipeline(nil, source, nil, nil, Options{})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{})
	if err == nil {
		t.Fatal("expected error when a list call fails")
	}
	if !strings.Contains(err.Error(), "list pods") {
		t.Fatalf("error should name the failing stage, got %v", err)
	}
	if !strings.HasPrefix(result.Summary, "Diagnosis failed") {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if len(result.Issues) != 0 {
		t.Fatal("partial snapshots must never be classified")
	}
}

func TestPipelineNilSource(t *testing.T) {
	pipeline := NewPipeline(nil, nil, nil, nil, Options{})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{})
	if err == nil {
		t.Fatal("expected error without a data source")
	}
	if !strings.Contains(result.Summary, "Unable to access the cluster") {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
}

func TestPipelineFiltersStaleEvents(t *testing.T) {
	now := metav1.NewTime(time.Now())
	stale := metav1.NewTime(time.Now().Add(-2 * time.Hour))
	source := &fakeDataSource{
		pods: []corev1.Pod{waitingPod("api-0", "payments", "CrashLoopBackOff", 9)},
		events: []corev1.Event{
			{
				ObjectMeta:     metav1.ObjectMeta{Name: "fresh", Namespace: "payments"},
				InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "api-0", Namespace: "payments"},
				Type:           corev1.EventTypeWarning,
				Reason:         "BackOff",
				LastTimestamp:  now,
			},
			{
				ObjectMeta:     metav1.ObjectMeta{Name: "stale", Namespace: "payments"},
				InvolvedObject: corev1.ObjectReference{Kind: "Pod", Name: "api-0", Namespace: "payments"},
				Type:           corev1.EventTypeWarning,
				Reason:         "BackOff",
				LastTimestamp:  stale,
			},
		},
	}
	pipeline := NewPipeline(nil, source, nil, extractors.NewEventExtractor(30*time.Minute), Options{})

	result, err := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{})
	if err != nil {
		t.Fatalf("Diagnose returned error: %v", err)
	}
	crashes := findIssues(issuesOf(result), models.IssueCrashLoop)
	if len(crashes) != 1 {
		t.Fatalf("expected one crash loop issue, got %d", len(crashes))
	}
	if len(crashes[0].RelatedEvents) != 1 || crashes[0].RelatedEvents[0].Name != "fresh" {
		t.Fatalf("stale event should have been filtered out: %+v", crashes[0].RelatedEvents)
	}
}

func TestPipelineRulePackRecommendations(t *testing.T) {
	path := writeRulePack(t, `
rules:
  - id: crash-loop
    match:
      issue_type: CRASH_LOOP
    recommendations:
      - "Check the container exit code"
`)
	rules, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("NewRuleEngine returned error: %v", err)
	}
	source := &fakeDataSource{
		pods: []corev1.Pod{waitingPod("api-0", "payments", "CrashLoopBackOff", 9)},
	}
	pipeline := NewPipeline(nil, source, rules, nil, Options{})

	result, diagErr := pipeline.Diagnose(context.Background(), models.DiagnoseRequest{})
	if diagErr != nil {
		t.Fatalf("Diagnose returned error: %v", diagErr)
	}
	found := false
	for _, rec := range result.Recommendations {
		if rec == "Check the container exit code" {
			found = true
		}
	}
	if !found {
		t.Fatalf("rule pack recommendation missing from %v", result.Recommendations)
	}
}

func issuesOf(result models.DiagnosticsResult) []models.Issue {
	issues := make([]models.Issue, 0, len(result.Issues))
	for _, diagnosed := range result.Issues {
		issues = append(issues, diagnosed.Issue)
	}
	return issues
}
