package engine

import (
	"fmt"

	"github.com/opsdeck/kube-triage/internal/models"
)

// Explainer maps an issue to its dual-audience explanation. Pure dispatch on
// the issue type; severity and confidence never change the narrative. Unknown
// types fall through to a generic template, so Explain is total over any
// IssueType value.
type Explainer struct {
	templates map[models.IssueType]models.Explanation
}

// NewExplainer constructs an Explainer with the built-in template set.
func NewExplainer() *Explainer {
	return &Explainer{templates: explanationTemplates()}
}

// Explain returns the explanation for the issue's type.
func (e *Explainer) Explain(issue models.Issue) models.Explanation {
	if tpl, ok := e.templates[issue.Type]; ok {
		return tpl
	}
	return genericExplanation(issue.Type)
}

func explanationTemplates() map[models.IssueType]models.Explanation {
	return map[models.IssueType]models.Explanation{
		models.IssueCrashLoop: {
			HumanExplanation: "An application keeps crashing right after it starts. Kubernetes restarts it automatically, but it fails again each time, so the application is effectively down.",
			SREExplanation:   "Container is in CrashLoopBackOff: the kubelet restarts it with exponential backoff after repeated non-zero exits. Check the container exit code and last termination state.",
			Impact:           "The workload serves no traffic while the restart loop continues.",
			Urgency:          "Immediate attention required.",
			NextSteps: []string{
				"Read the previous container logs (kubectl logs --previous)",
				"Check recent configuration or image changes",
				"Verify liveness probe settings and startup dependencies",
			},
			RootCause:  "The process inside the container exits shortly after start, usually from a fatal error, missing dependency, or failing probe.",
			SREContext: "Backoff delay doubles up to 5 minutes; restartCount on the container status shows loop duration.",
		},
		models.IssueDeploymentDown: {
			HumanExplanation: "A service's replicas are not running as intended. Fewer copies of the application are available than planned, or none at all.",
			SREExplanation:   "Deployment availableReplicas is below spec.replicas. Inspect the ReplicaSet and pod statuses to find why pods are not becoming ready.",
			Impact:           "Reduced or lost capacity; users may see errors or slowdowns.",
			Urgency:          "High: restore capacity before traffic spikes.",
			NextSteps: []string{
				"Describe the deployment and its ReplicaSets",
				"Inspect pending or failing pods behind the deployment",
				"Check node capacity and scheduling events",
			},
			RootCause:  "Pods backing the deployment fail to schedule or fail readiness, leaving the deployment under its desired replica count.",
			SREContext: "Compare status.replicas, readyReplicas and availableReplicas against spec.replicas; conditions carry the rollout state.",
		},
		models.IssueServiceUnreachable: {
			HumanExplanation: "A network entry point to an application is not working. Requests to it cannot reach any running copy of the application.",
			SREExplanation:   "Service has no ready endpoints or its LoadBalancer has no external address. Verify the selector matches pod labels and that backing pods pass readiness.",
			Impact:           "Clients of this service get connection failures.",
			Urgency:          "High for user-facing services.",
			NextSteps: []string{
				"Check service endpoints (kubectl get endpoints)",
				"Compare the service selector with pod labels",
				"For LoadBalancer services, check cloud provider events",
			},
			RootCause:  "Selector/label mismatch, no ready pods, or an unprovisioned external load balancer.",
			SREContext: "An empty Endpoints object means the selector matches nothing ready; LoadBalancer ingress is filled in asynchronously by the cloud controller.",
		},
		models.IssueResourceExhaustion: {
			HumanExplanation: "An application is using more memory than it is allowed and the system keeps shutting it down to protect the node.",
			SREExplanation:   "Container was OOMKilled: its memory usage crossed the configured limit and the kernel killed the process. Review limits versus actual usage.",
			Impact:           "Repeated kills cause restarts and intermittent unavailability.",
			Urgency:          "High: the kill loop will continue until limits or usage change.",
			NextSteps: []string{
				"Compare memory limits against observed usage",
				"Check for memory leaks or unbounded caches",
				"Consider raising limits or lowering workload concurrency",
			},
			RootCause:  "The workload's memory footprint exceeds its container memory limit.",
			SREContext: "lastState.terminated.reason=OOMKilled with exit code 137; node-level memory pressure can also evict pods without limits.",
		},
		models.IssueImagePullError: {
			HumanExplanation: "Kubernetes cannot download the application's software package, so it cannot start the application at all.",
			SREExplanation:   "Image pull failed (ImagePullBackOff/ErrImagePull). Verify the image reference, registry availability, and imagePullSecrets.",
			Impact:           "New pods never start; existing pods keep running on the old image.",
			Urgency:          "Medium to high depending on rollout pressure.",
			NextSteps: []string{
				"Verify the image name and tag exist in the registry",
				"Check imagePullSecrets and registry credentials",
				"Test registry reachability from the node network",
			},
			RootCause:  "Wrong image reference, missing registry credentials, or an unreachable registry.",
			SREContext: "Pull events carry the registry error verbatim; backoff grows between retries, so fixes take effect on the next attempt.",
		},
		models.IssueNetworkPolicyBlock: {
			HumanExplanation: "Applications are having trouble talking to each other over the network. Connections time out or are refused.",
			SREExplanation:   "Clustered network errors suggest a NetworkPolicy, CNI, or DNS problem. Correlate the failing sources and destinations against active policies.",
			Impact:           "Inter-service calls fail intermittently or entirely.",
			Urgency:          "Medium: diagnose before changing policies.",
			NextSteps: []string{
				"List NetworkPolicies in the affected namespaces",
				"Check CNI plugin pods and node network health",
				"Verify cluster DNS resolution",
			},
			RootCause:  "Traffic is being dropped by policy or by a faulty network layer.",
			SREContext: "NetworkPolicies are default-deny once any policy selects a pod; a missing allow rule silently drops traffic.",
		},
		models.IssueConfigError: {
			HumanExplanation: "An application is pointed at configuration that is missing or broken, so Kubernetes cannot start it.",
			SREExplanation:   "CreateContainerConfigError: a referenced ConfigMap/Secret key is missing or invalid. The kubelet cannot materialise the container environment.",
			Impact:           "Affected pods never start.",
			Urgency:          "Medium: blocked rollout, no data loss.",
			NextSteps: []string{
				"Describe the pod to see the exact missing reference",
				"Verify referenced ConfigMaps and Secrets exist in the namespace",
				"Check envFrom/valueFrom key names for typos",
			},
			RootCause:  "A ConfigMap or Secret referenced by the pod spec is absent or lacks the expected key.",
			SREContext: "The error is raised at container creation, before image start, so logs are empty; the pod event message names the missing object.",
		},
		models.IssueRBACDenial: {
			HumanExplanation: "An application was denied permission to do something it needs, like reading configuration or talking to the cluster API.",
			SREExplanation:   "Requests are rejected with forbidden/unauthorized errors. Review the ServiceAccount's Role/ClusterRole bindings for the failing verb and resource.",
			Impact:           "Features depending on the denied access malfunction.",
			Urgency:          "Medium: usually configuration, not an outage.",
			NextSteps: []string{
				"Identify the ServiceAccount used by the workload",
				"Use kubectl auth can-i to reproduce the denial",
				"Bind the minimal missing Role rather than broad permissions",
			},
			RootCause:  "The workload's ServiceAccount lacks an RBAC rule covering the attempted action.",
			SREContext: "The API server denial message names the user, verb and resource; grant narrowly scoped rules to keep least privilege.",
		},
	}
}

func genericExplanation(issueType models.IssueType) models.Explanation {
	return models.Explanation{
		HumanExplanation: "An unusual condition was detected in the cluster that does not match a known failure pattern.",
		SREExplanation:   fmt.Sprintf("Issue type %s has no dedicated playbook. Inspect the affected resource and its events manually.", issueType),
		Impact:           "Unknown until investigated.",
		Urgency:          "Review when possible.",
		NextSteps: []string{
			"Describe the affected resource",
			"Review recent events in its namespace",
		},
		RootCause:  "Not determined automatically.",
		SREContext: "Generic fallback: new issue types degrade to this template instead of failing.",
	}
}
