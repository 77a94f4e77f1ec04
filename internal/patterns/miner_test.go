package patterns

import (
	"context"
	"testing"
	"time"

	"github.com/opsdeck/kube-triage/internal/models"
)

func issueOf(issueType models.IssueType, severity models.Severity, namespace string) models.DiagnosedIssue {
	return models.DiagnosedIssue{
		Issue: models.Issue{
			Type:     issueType,
			Severity: severity,
			Resource: models.ResourceReference{Kind: "Pod", Name: "api-0", Namespace: namespace},
		},
	}
}

func TestMinerAggregatesByIssueType(t *testing.T) {
	now := time.Now().UTC()
	history := []models.DiagnosticsResult{
		{
			CreatedAt: now.Add(-2 * time.Hour),
			Issues: []models.DiagnosedIssue{
				issueOf(models.IssueCrashLoop, models.SeverityCritical, "payments"),
				issueOf(models.IssueCrashLoop, models.SeverityHigh, "checkout"),
			},
		},
		{
			CreatedAt: now,
			Issues: []models.DiagnosedIssue{
				issueOf(models.IssueCrashLoop, models.SeverityHigh, "payments"),
				issueOf(models.IssueImagePullError, models.SeverityHigh, "payments"),
			},
		},
		{CreatedAt: now.Add(-1 * time.Hour)},
	}

	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), history)
	if err != nil {
		t.Fatalf("Mine returned error: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}

	crash := patterns[0]
	if crash.IssueType != models.IssueCrashLoop {
		t.Fatalf("expected crash loop pattern first, got %s", crash.IssueType)
	}
	if crash.Occurrences != 3 {
		t.Fatalf("expected 3 occurrences, got %d", crash.Occurrences)
	}
	if crash.Prevalence != 2.0/3.0 {
		t.Fatalf("unexpected prevalence %f", crash.Prevalence)
	}
	if crash.TopSeverity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL top severity, got %s", crash.TopSeverity)
	}
	if len(crash.Namespaces) != 2 || crash.Namespaces[0] != "checkout" || crash.Namespaces[1] != "payments" {
		t.Fatalf("unexpected namespaces: %v", crash.Namespaces)
	}
	if !crash.LastSeen.Equal(now) {
		t.Fatalf("expected last seen %v, got %v", now, crash.LastSeen)
	}
}

func TestMinerSkipsHealthyRuns(t *testing.T) {
	history := []models.DiagnosticsResult{
		{Issues: []models.DiagnosedIssue{issueOf(models.IssueNone, models.SeverityLow, "")}},
		{},
	}

	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), history)
	if err != nil {
		t.Fatalf("Mine returned error: %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("expected no patterns for healthy history, got %d", len(patterns))
	}
}

func TestMinerEmptyHistory(t *testing.T) {
	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("Mine returned error: %v", err)
	}
	if patterns != nil {
		t.Fatalf("expected nil patterns, got %v", patterns)
	}
}

func TestMinerStoresPatterns(t *testing.T) {
	var stored []models.FailurePattern
	store := StoreFunc(func(_ context.Context, patterns []models.FailurePattern) error {
		stored = patterns
		return nil
	})

	history := []models.DiagnosticsResult{
		{Issues: []models.DiagnosedIssue{issueOf(models.IssueDeploymentDown, models.SeverityCritical, "payments")}},
	}

	miner := NewMiner(nil, store)
	patterns, err := miner.Mine(context.Background(), history)
	if err != nil {
		t.Fatalf("Mine returned error: %v", err)
	}
	if len(stored) != len(patterns) {
		t.Fatalf("expected store to receive %d patterns, got %d", len(patterns), len(stored))
	}
	if stored[0].ID != "pattern-deployment-down" {
		t.Fatalf("unexpected pattern id %q", stored[0].ID)
	}
}
