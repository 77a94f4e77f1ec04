package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/opsdeck/kube-triage/internal/extractors"
	"github.com/opsdeck/kube-triage/internal/models"
)

// Classifier turns a cluster snapshot into an ordered list of typed issues.
// Classify is total and deterministic: no I/O, no randomness, and malformed
// input (missing statuses, nil selectors) yields fewer issues, never a panic.
type Classifier struct{}

// NewClassifier constructs a Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify evaluates every detection rule against the snapshot and returns the
// issues ranked by severity then confidence. The sort is stable, so equal
// pairs keep detection order: pods, deployments, services, cluster-wide.
func (c *Classifier) Classify(snap models.Snapshot) []models.Issue {
	issues := make([]models.Issue, 0)
	for _, pod := range snap.Pods {
		issues = append(issues, c.classifyPod(pod, snap.Events)...)
	}
	for _, dep := range snap.Deployments {
		issues = append(issues, c.classifyDeployment(dep, snap.Pods)...)
	}
	for _, svc := range snap.Services {
		issues = append(issues, c.classifyService(svc, snap.Pods)...)
	}
	issues = append(issues, c.classifyClusterWide(snap)...)

	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := issues[i].Severity.Rank(), issues[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return issues[i].Confidence > issues[j].Confidence
	})
	return issues
}

// classifyPod applies the four per-pod rules. The rules are independent; a
// single pod can produce several issues.
func (c *Classifier) classifyPod(pod corev1.Pod, events []corev1.Event) []models.Issue {
	issues := make([]models.Issue, 0)
	podEvents := eventsForPod(events, pod.Name)
	resource := models.ResourceReference{Kind: "Pod", Name: pod.Name, Namespace: pod.Namespace}

	for _, cs := range pod.Status.ContainerStatuses {
		waiting := cs.State.Waiting
		if waiting == nil {
			continue
		}
		switch waiting.Reason {
		case "CrashLoopBackOff":
			issues = append(issues, models.Issue{
				Type:        models.IssueCrashLoop,
				Severity:    models.SeverityCritical,
				Resource:    resource,
				Description: fmt.Sprintf("Pod %s/%s is crash looping: container %s keeps restarting", pod.Namespace, pod.Name, cs.Name),
				Symptoms: []string{
					fmt.Sprintf("Phase: %s", pod.Status.Phase),
					fmt.Sprintf("Container %s restarted %d times", cs.Name, cs.RestartCount),
					fmt.Sprintf("Waiting reason: %s", waiting.Reason),
					fmt.Sprintf("Ready: %t", cs.Ready),
				},
				RelatedEvents: podEvents,
				Confidence:    0.95,
			})
		case "ImagePullBackOff", "ErrImagePull":
			issues = append(issues, models.Issue{
				Type:        models.IssueImagePullError,
				Severity:    models.SeverityHigh,
				Resource:    resource,
				Description: fmt.Sprintf("Pod %s/%s cannot pull image %s", pod.Namespace, pod.Name, cs.Image),
				Symptoms: []string{
					fmt.Sprintf("Waiting reason: %s", waiting.Reason),
					fmt.Sprintf("Image: %s", cs.Image),
					waiting.Message,
				},
				RelatedEvents: filterEvents(podEvents, func(ev corev1.Event) bool {
					return strings.Contains(ev.Reason, "Pull")
				}),
				Confidence: 0.90,
			})
		case "CreateContainerConfigError":
			issues = append(issues, models.Issue{
				Type:        models.IssueConfigError,
				Severity:    models.SeverityHigh,
				Resource:    resource,
				Description: fmt.Sprintf("Pod %s/%s has a container configuration error", pod.Namespace, pod.Name),
				Symptoms: []string{
					fmt.Sprintf("Waiting reason: %s", waiting.Reason),
					waiting.Message,
				},
				RelatedEvents: podEvents,
				Confidence:    0.85,
			})
		}
	}

	oomEvents := filterEvents(podEvents, func(ev corev1.Event) bool {
		return ev.Reason == "OOMKilled" || strings.Contains(strings.ToLower(ev.Message), "out of memory")
	})
	if len(oomEvents) > 0 {
		symptoms := []string{fmt.Sprintf("OOM events: %d", len(oomEvents))}
		symptoms = append(symptoms, memoryLimits(pod)...)
		issues = append(issues, models.Issue{
			Type:          models.IssueResourceExhaustion,
			Severity:      models.SeverityHigh,
			Resource:      resource,
			Description:   fmt.Sprintf("Pod %s/%s is running out of memory", pod.Namespace, pod.Name),
			Symptoms:      symptoms,
			RelatedEvents: oomEvents,
			Confidence:    0.90,
		})
	}

	rbacEvents := filterEvents(podEvents, func(ev corev1.Event) bool {
		msg := strings.ToLower(ev.Message)
		return strings.Contains(ev.Reason, "Forbid") ||
			strings.Contains(msg, "forbidden") ||
			strings.Contains(msg, "unauthorized") ||
			strings.Contains(ev.Message, "RBAC")
	})
	if len(rbacEvents) > 0 {
		issues = append(issues, models.Issue{
			Type:        models.IssueRBACDenial,
			Severity:    models.SeverityMedium,
			Resource:    resource,
			Description: fmt.Sprintf("Pod %s/%s hit authorization failures", pod.Namespace, pod.Name),
			Symptoms: []string{
				fmt.Sprintf("Denied events: %d", len(rbacEvents)),
				firstEventMessage(rbacEvents),
			},
			RelatedEvents: rbacEvents,
			Confidence:    0.80,
		})
	}

	return issues
}

// classifyDeployment emits at most one DEPLOYMENT_DOWN issue. The complete
// outage and degraded branches are mutually exclusive.
func (c *Classifier) classifyDeployment(dep appsv1.Deployment, pods []corev1.Pod) []models.Issue {
	desired := int32(0)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	resource := models.ResourceReference{Kind: "Deployment", Name: dep.Name, Namespace: dep.Namespace}
	affected := deploymentPods(dep, pods)

	if dep.Status.AvailableReplicas == 0 && desired > 0 {
		return []models.Issue{{
			Type:        models.IssueDeploymentDown,
			Severity:    models.SeverityCritical,
			Resource:    resource,
			Description: fmt.Sprintf("Deployment %s/%s has no available replicas", dep.Namespace, dep.Name),
			Symptoms: []string{
				fmt.Sprintf("Desired replicas: %d", desired),
				"Available replicas: 0",
				fmt.Sprintf("Ready replicas: %d", dep.Status.ReadyReplicas),
			},
			AffectedPods: affected,
			Confidence:   0.95,
		}}
	}

	if desired > 0 && float64(dep.Status.ReadyReplicas) < float64(desired)*0.5 {
		availability := int(math.Round(float64(dep.Status.ReadyReplicas) / float64(desired) * 100))
		return []models.Issue{{
			Type:        models.IssueDeploymentDown,
			Severity:    models.SeverityHigh,
			Resource:    resource,
			Description: fmt.Sprintf("Deployment %s/%s is running degraded", dep.Namespace, dep.Name),
			Symptoms: []string{
				fmt.Sprintf("Desired replicas: %d", desired),
				fmt.Sprintf("Ready replicas: %d", dep.Status.ReadyReplicas),
				fmt.Sprintf("Availability: %d%%", availability),
			},
			AffectedPods: affected,
			Confidence:   0.90,
		}}
	}

	return nil
}

// classifyService applies the two independent service rules.
func (c *Classifier) classifyService(svc corev1.Service, pods []corev1.Pod) []models.Issue {
	issues := make([]models.Issue, 0)
	resource := models.ResourceReference{Kind: "Service", Name: svc.Name, Namespace: svc.Namespace}

	if svc.Spec.Type == corev1.ServiceTypeLoadBalancer && !hasIngress(svc) {
		issues = append(issues, models.Issue{
			Type:        models.IssueServiceUnreachable,
			Severity:    models.SeverityHigh,
			Resource:    resource,
			Description: fmt.Sprintf("LoadBalancer service %s/%s has no external endpoint", svc.Namespace, svc.Name),
			Symptoms: []string{
				"Service type: LoadBalancer",
				"No ingress IP or hostname assigned",
			},
			Confidence: 0.85,
		})
	}

	if len(svc.Spec.Selector) > 0 {
		backing := make([]models.ResourceReference, 0)
		ready := 0
		for _, pod := range pods {
			if pod.Namespace != svc.Namespace || !matchesSelector(pod.Labels, svc.Spec.Selector) {
				continue
			}
			backing = append(backing, models.ResourceReference{Kind: "Pod", Name: pod.Name, Namespace: pod.Namespace})
			if extractors.PodReady(pod) {
				ready++
			}
		}
		if ready == 0 {
			severity := models.SeverityHigh
			if len(backing) == 0 {
				severity = models.SeverityCritical
			}
			issues = append(issues, models.Issue{
				Type:        models.IssueServiceUnreachable,
				Severity:    severity,
				Resource:    resource,
				Description: fmt.Sprintf("Service %s/%s has no ready endpoints", svc.Namespace, svc.Name),
				Symptoms: []string{
					fmt.Sprintf("Backing pods: %d", len(backing)),
					fmt.Sprintf("Ready pods: %d", ready),
				},
				AffectedPods: backing,
				Confidence:   0.90,
			})
		}
	}

	return issues
}

// classifyClusterWide evaluates the snapshot-level aggregate rules once.
func (c *Classifier) classifyClusterWide(snap models.Snapshot) []models.Issue {
	issues := make([]models.Issue, 0)

	crashLooping := make([]models.ResourceReference, 0)
	namespaces := make(map[string]struct{})
	for _, pod := range snap.Pods {
		if podCrashLooping(pod) {
			crashLooping = append(crashLooping, models.ResourceReference{Kind: "Pod", Name: pod.Name, Namespace: pod.Namespace})
			namespaces[pod.Namespace] = struct{}{}
		}
	}
	if len(crashLooping) >= 3 {
		issues = append(issues, models.Issue{
			Type:        models.IssueCrashLoop,
			Severity:    models.SeverityCritical,
			Resource:    models.ResourceReference{Kind: "Cluster", Name: "multiple-pods", Namespace: "cluster-wide"},
			Description: "Multiple pods across the cluster are crash looping",
			Symptoms: []string{
				fmt.Sprintf("Crash looping pods: %d", len(crashLooping)),
				fmt.Sprintf("Namespaces affected: %s", strings.Join(sortedKeys(namespaces), ", ")),
			},
			AffectedPods: crashLooping,
			Confidence:   0.80,
		})
	}

	networkEvents := filterEvents(snap.Events, func(ev corev1.Event) bool {
		msg := strings.ToLower(ev.Message)
		return strings.Contains(msg, "network") ||
			strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "timeout")
	})
	if len(networkEvents) >= 5 {
		affectedNS := make(map[string]struct{})
		for _, ev := range networkEvents {
			ns := ev.InvolvedObject.Namespace
			if ns == "" {
				ns = ev.Namespace
			}
			if ns != "" {
				affectedNS[ns] = struct{}{}
			}
		}
		issues = append(issues, models.Issue{
			Type:        models.IssueNetworkPolicyBlock,
			Severity:    models.SeverityMedium,
			Resource:    models.ResourceReference{Kind: "Cluster", Name: "network", Namespace: "cluster-wide"},
			Description: "Widespread network failures observed in cluster events",
			Symptoms: []string{
				fmt.Sprintf("Network-related events: %d", len(networkEvents)),
				fmt.Sprintf("Namespaces affected: %s", strings.Join(sortedKeys(affectedNS), ", ")),
			},
			RelatedEvents: networkEvents,
			Confidence:    0.70,
		})
	}

	return issues
}

// matchesSelector reports whether the labels contain every selector pair.
// Callers guard against empty selectors before calling; an empty selector here
// would match everything.
func matchesSelector(labels, selector map[string]string) bool {
	for key, value := range selector {
		if labels[key] != value {
			return false
		}
	}
	return true
}

func deploymentPods(dep appsv1.Deployment, pods []corev1.Pod) []models.ResourceReference {
	if dep.Spec.Selector == nil || len(dep.Spec.Selector.MatchLabels) == 0 {
		return nil
	}
	refs := make([]models.ResourceReference, 0)
	for _, pod := range pods {
		if pod.Namespace != dep.Namespace {
			continue
		}
		if matchesSelector(pod.Labels, dep.Spec.Selector.MatchLabels) {
			refs = append(refs, models.ResourceReference{Kind: "Pod", Name: pod.Name, Namespace: pod.Namespace})
		}
	}
	return refs
}

func podCrashLooping(pod corev1.Pod) bool {
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Waiting != nil && cs.State.Waiting.Reason == "CrashLoopBackOff" {
			return true
		}
	}
	return false
}

func hasIngress(svc corev1.Service) bool {
	for _, ing := range svc.Status.LoadBalancer.Ingress {
		if ing.IP != "" || ing.Hostname != "" {
			return true
		}
	}
	return false
}

func eventsForPod(events []corev1.Event, podName string) []corev1.Event {
	return filterEvents(events, func(ev corev1.Event) bool {
		return ev.InvolvedObject.Kind == "Pod" && ev.InvolvedObject.Name == podName
	})
}

func filterEvents(events []corev1.Event, keep func(corev1.Event) bool) []corev1.Event {
	filtered := make([]corev1.Event, 0)
	for _, ev := range events {
		if keep(ev) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

func memoryLimits(pod corev1.Pod) []string {
	limits := make([]string, 0, len(pod.Spec.Containers))
	for _, container := range pod.Spec.Containers {
		limit := container.Resources.Limits.Memory()
		if limit == nil || limit.IsZero() {
			limits = append(limits, fmt.Sprintf("Container %s memory limit: none", container.Name))
			continue
		}
		limits = append(limits, fmt.Sprintf("Container %s memory limit: %s", container.Name, limit.String()))
	}
	return limits
}

func firstEventMessage(events []corev1.Event) string {
	if len(events) == 0 {
		return ""
	}
	return events[0].Message
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
