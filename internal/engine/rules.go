package engine

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opsdeck/kube-triage/internal/models"
)

// RuleEngine adds operator-defined recommendations on top of the built-in
// synthesis rules.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single recommendation rule.
type Rule struct {
	ID              string    `yaml:"id"`
	Match           RuleMatch `yaml:"match"`
	Recommendations []string  `yaml:"recommendations"`
}

// RuleMatch defines optional attributes for rule matching. Empty attributes
// match anything.
type RuleMatch struct {
	IssueType       string   `yaml:"issue_type"`
	Severity        string   `yaml:"severity"`
	SymptomContains []string `yaml:"symptom_contains"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or the
// file does not exist, returns a nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend produces rule-based recommendations for the classified issues.
func (e *RuleEngine) Recommend(issues []models.Issue) []string {
	if e == nil {
		return nil
	}

	matched := make([]string, 0)
	for _, rule := range e.rules {
		for _, issue := range issues {
			if rule.Match.IssueType != "" && !strings.EqualFold(rule.Match.IssueType, string(issue.Type)) {
				continue
			}
			if rule.Match.Severity != "" && !strings.EqualFold(rule.Match.Severity, string(issue.Severity)) {
				continue
			}
			if len(rule.Match.SymptomContains) > 0 && !symptomsContain(rule.Match.SymptomContains, issue) {
				continue
			}
			matched = appendUnique(matched, rule.Recommendations...)
			break
		}
	}
	return matched
}

func symptomsContain(keywords []string, issue models.Issue) bool {
	for _, symptom := range issue.Symptoms {
		lower := strings.ToLower(symptom)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		}
	}
	return false
}

func appendUnique(existing []string, additions ...string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec] = struct{}{}
	}
	for _, item := range additions {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		existing = append(existing, item)
		seen[item] = struct{}{}
	}
	return existing
}
