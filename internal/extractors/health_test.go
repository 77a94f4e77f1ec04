package extractors

import (
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/opsdeck/kube-triage/internal/models"
)

func runningPod(name string, ready bool) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", Ready: ready},
			},
		},
	}
}

func deployment(name string, desired *int32, ready int32) appsv1.Deployment {
	return appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       appsv1.DeploymentSpec{Replicas: desired},
		Status:     appsv1.DeploymentStatus{ReadyReplicas: ready},
	}
}

func int32ptr(v int32) *int32 { return &v }

func TestOverviewCounts(t *testing.T) {
	extractor := NewHealthExtractor()
	snap := models.Snapshot{
		Pods: []corev1.Pod{
			runningPod("web-0", true),
			runningPod("web-1", false),
			{ObjectMeta: metav1.ObjectMeta{Name: "pending-0"}, Status: corev1.PodStatus{Phase: corev1.PodPending}},
		},
		Deployments: []appsv1.Deployment{
			deployment("web", int32ptr(2), 2),
			deployment("api", int32ptr(3), 1),
		},
		Services: []corev1.Service{
			{ObjectMeta: metav1.ObjectMeta{Name: "web"}},
		},
	}

	overview := extractor.Overview(snap)
	want := models.ClusterOverview{
		TotalPods:          3,
		HealthyPods:        1,
		TotalDeployments:   2,
		HealthyDeployments: 1,
		TotalServices:      1,
	}
	if overview != want {
		t.Fatalf("got %+v, want %+v", overview, want)
	}
}

func TestPodReady(t *testing.T) {
	if PodReady(corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodSucceeded}}) {
		t.Fatal("non-running pod must not count as ready")
	}
	noStatuses := corev1.Pod{Status: corev1.PodStatus{Phase: corev1.PodRunning}}
	if PodReady(noStatuses) {
		t.Fatal("pod without container statuses must not count as ready")
	}
	mixed := corev1.Pod{
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", Ready: true},
				{Name: "sidecar", Ready: false},
			},
		},
	}
	if PodReady(mixed) {
		t.Fatal("pod with an unready container must not count as ready")
	}
	if !PodReady(runningPod("web-0", true)) {
		t.Fatal("fully ready pod should count as ready")
	}
}

func TestDeploymentHealthy(t *testing.T) {
	if !deploymentHealthy(deployment("defaulted", nil, 1)) {
		t.Fatal("nil replicas should default to one desired")
	}
	if deploymentHealthy(deployment("defaulted", nil, 0)) {
		t.Fatal("nil replicas with zero ready should be unhealthy")
	}
	if !deploymentHealthy(deployment("paused", int32ptr(0), 0)) {
		t.Fatal("scaled-to-zero deployment is healthy")
	}
	if deploymentHealthy(deployment("degraded", int32ptr(3), 2)) {
		t.Fatal("fewer ready than desired should be unhealthy")
	}
}
