package models

import (
	corev1 "k8s.io/api/core/v1"
)

// IssueType enumerates the failure categories the classifier can emit.
type IssueType string

const (
	IssueCrashLoop             IssueType = "CRASH_LOOP"
	IssueDeploymentDown        IssueType = "DEPLOYMENT_DOWN"
	IssueServiceUnreachable    IssueType = "SERVICE_UNREACHABLE"
	IssueResourceExhaustion    IssueType = "RESOURCE_EXHAUSTION"
	IssueResourceQuotaExceeded IssueType = "RESOURCE_QUOTA_EXCEEDED"
	IssueImagePullError        IssueType = "IMAGE_PULL_ERROR"
	IssueNetworkPolicyBlock    IssueType = "NETWORK_POLICY_BLOCK"
	IssueConfigError           IssueType = "CONFIG_ERROR"
	IssueNodeNotReady          IssueType = "NODE_NOT_READY"
	IssueRBACDenial            IssueType = "RBAC_DENIAL"
	IssueNone                  IssueType = "NO_ISSUES"
)

// Severity captures impact levels.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank maps a severity onto its sort weight (CRITICAL=4 .. LOW=1).
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ResourceReference identifies the Kubernetes object an issue concerns.
type ResourceReference struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
}

// Issue is a single classified failure pattern. Issues are created once per
// detection pass and never mutated afterwards; the same resource may appear in
// several issues of different types.
type Issue struct {
	Type          IssueType           `json:"type"`
	Severity      Severity            `json:"severity"`
	Resource      ResourceReference   `json:"resource"`
	Description   string              `json:"description"`
	Symptoms      []string            `json:"symptoms"`
	AffectedPods  []ResourceReference `json:"affectedPods,omitempty"`
	RelatedEvents []corev1.Event      `json:"relatedEvents,omitempty"`
	Confidence    float64             `json:"confidence"`
}
