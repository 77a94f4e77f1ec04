package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opsdeck/kube-triage/internal/models"
)

func writeRulePack(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing rule pack: %v", err)
	}
	return path
}

func TestRuleEngineMissingFile(t *testing.T) {
	engine, err := NewRuleEngine("/no/such/rules.yaml", nil)
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if engine != nil {
		t.Fatal("expected nil engine for missing file")
	}
	if recs := engine.Recommend([]models.Issue{{Type: models.IssueCrashLoop}}); recs != nil {
		t.Fatalf("nil engine must recommend nothing, got %v", recs)
	}
}

func TestRuleEngineEmptyPath(t *testing.T) {
	engine, err := NewRuleEngine("", nil)
	if err != nil || engine != nil {
		t.Fatalf("empty path should yield nil engine, got %v %v", engine, err)
	}
}

func TestRuleEngineMatching(t *testing.T) {
	path := writeRulePack(t, `
rules:
  - id: crash-oom
    match:
      issue_type: CRASH_LOOP
      symptom_contains: ["oomkilled"]
    recommendations:
      - "Raise the memory limit"
  - id: any-critical
    match:
      severity: CRITICAL
    recommendations:
      - "Page the on-call"
  - id: unrelated
    match:
      issue_type: RBAC_DENIAL
    recommendations:
      - "Review role bindings"
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("NewRuleEngine returned error: %v", err)
	}
	if engine == nil {
		t.Fatal("expected a loaded engine")
	}

	issues := []models.Issue{
		{
			Type:     models.IssueCrashLoop,
			Severity: models.SeverityCritical,
			Symptoms: []string{"Last state: OOMKilled"},
		},
	}
	recs := engine.Recommend(issues)
	if len(recs) != 2 {
		t.Fatalf("expected 2 recommendations, got %v", recs)
	}
	if recs[0] != "Raise the memory limit" || recs[1] != "Page the on-call" {
		t.Fatalf("unexpected recommendations: %v", recs)
	}
}

func TestRuleEngineDeduplicates(t *testing.T) {
	path := writeRulePack(t, `
rules:
  - id: a
    match:
      issue_type: CRASH_LOOP
    recommendations:
      - "Shared advice"
  - id: b
    match:
      severity: HIGH
    recommendations:
      - "Shared advice"
`)
	engine, err := NewRuleEngine(path, nil)
	if err != nil {
		t.Fatalf("NewRuleEngine returned error: %v", err)
	}

	recs := engine.Recommend([]models.Issue{
		{Type: models.IssueCrashLoop, Severity: models.SeverityHigh},
	})
	if len(recs) != 1 {
		t.Fatalf("expected deduplicated recommendations, got %v", recs)
	}
}

func TestRuleEngineInvalidYAML(t *testing.T) {
	path := writeRulePack(t, "rules: [broken")
	if _, err := NewRuleEngine(path, nil); err == nil {
		t.Fatal("expected parse error for invalid YAML")
	}
}
