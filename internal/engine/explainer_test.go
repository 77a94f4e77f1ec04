package engine

import (
	"strings"
	"testing"

	"github.com/opsdeck/kube-triage/internal/models"
)

var allIssueTypes = []models.IssueType{
	models.IssueCrashLoop,
	models.IssueDeploymentDown,
	models.IssueServiceUnreachable,
	models.IssueResourceExhaustion,
	models.IssueResourceQuotaExceeded,
	models.IssueImagePullError,
	models.IssueNetworkPolicyBlock,
	models.IssueConfigError,
	models.IssueNodeNotReady,
	models.IssueRBACDenial,
	models.IssueNone,
}

func TestExplainCoversEveryIssueType(t *testing.T) {
	explainer := NewExplainer()
	for _, issueType := range allIssueTypes {
		exp := explainer.Explain(models.Issue{Type: issueType})
		if exp.HumanExplanation == "" {
			t.Fatalf("%s: empty human explanation", issueType)
		}
		if exp.SREExplanation == "" {
			t.Fatalf("%s: empty SRE explanation", issueType)
		}
		if exp.Impact == "" || exp.Urgency == "" {
			t.Fatalf("%s: missing impact or urgency", issueType)
		}
		if len(exp.NextSteps) == 0 {
			t.Fatalf("%s: no next steps", issueType)
		}
	}
}

func TestExplainUnknownTypeFallsBack(t *testing.T) {
	exp := NewExplainer().Explain(models.Issue{Type: models.IssueType("SOLAR_FLARE")})
	if !strings.Contains(exp.SREExplanation, "SOLAR_FLARE") {
		t.Fatalf("generic explanation should name the type, got %q", exp.SREExplanation)
	}
}

func TestExplainIgnoresSeverityAndConfidence(t *testing.T) {
	explainer := NewExplainer()
	low := explainer.Explain(models.Issue{Type: models.IssueCrashLoop, Severity: models.SeverityLow, Confidence: 0.1})
	high := explainer.Explain(models.Issue{Type: models.IssueCrashLoop, Severity: models.SeverityCritical, Confidence: 0.99})
	if low.HumanExplanation != high.HumanExplanation || low.SREExplanation != high.SREExplanation {
		t.Fatal("explanation must depend only on the issue type")
	}
}

func TestExplainDistinguishesAudiences(t *testing.T) {
	// SRE explanations are allowed jargon the human side must avoid.
	exp := NewExplainer().Explain(models.Issue{Type: models.IssueCrashLoop})
	if strings.Contains(exp.HumanExplanation, "CrashLoopBackOff") {
		t.Fatal("human explanation should not use raw Kubernetes states")
	}
	if !strings.Contains(exp.SREExplanation, "CrashLoopBackOff") {
		t.Fatal("SRE explanation should name the exact state")
	}
}
