package extractors

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/opsdeck/kube-triage/internal/models"
)

// HealthExtractor derives coarse health counts from a snapshot.
type HealthExtractor struct{}

// NewHealthExtractor constructs a HealthExtractor.
func NewHealthExtractor() *HealthExtractor {
	return &HealthExtractor{}
}

// Overview computes the cluster overview counters used for recommendations.
func (e *HealthExtractor) Overview(snap models.Snapshot) models.ClusterOverview {
	overview := models.ClusterOverview{
		TotalPods:        len(snap.Pods),
		TotalDeployments: len(snap.Deployments),
		TotalServices:    len(snap.Services),
	}
	for _, pod := range snap.Pods {
		if PodReady(pod) {
			overview.HealthyPods++
		}
	}
	for _, dep := range snap.Deployments {
		if deploymentHealthy(dep) {
			overview.HealthyDeployments++
		}
	}
	return overview
}

// PodReady reports whether a pod is running with every container ready. Pods
// without container statuses (Pending, just scheduled) count as not ready.
func PodReady(pod corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	if len(pod.Status.ContainerStatuses) == 0 {
		return false
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			return false
		}
	}
	return true
}

func deploymentHealthy(dep appsv1.Deployment) bool {
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	if desired == 0 {
		return true
	}
	return dep.Status.ReadyReplicas >= desired
}
