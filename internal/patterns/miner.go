package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/opsdeck/kube-triage/internal/models"
)

// Store abstracts persistence for mined patterns.
type Store interface {
	StorePatterns(ctx context.Context, patterns []models.FailurePattern) error
}

// Miner mines frequency-based failure patterns from diagnosis history.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine aggregates issues by type across recent runs and returns recurring
// patterns, most prevalent first. Prevalence is the share of runs in which the
// issue type appeared at least once.
func (m *Miner) Mine(ctx context.Context, history []models.DiagnosticsResult) ([]models.FailurePattern, error) {
	if len(history) == 0 {
		return nil, nil
	}

	stats := make(map[models.IssueType]*typeAggregate)
	for _, run := range history {
		seen := make(map[models.IssueType]struct{})
		for _, issue := range run.Issues {
			if issue.Type == models.IssueNone {
				continue
			}
			agg := ensureAggregate(stats, issue.Type)
			agg.occurrences++
			if issue.Severity.Rank() > agg.topSeverity.Rank() {
				agg.topSeverity = issue.Severity
			}
			if ns := issue.Resource.Namespace; ns != "" {
				agg.namespaces[ns] = struct{}{}
			}
			if run.CreatedAt.After(agg.lastSeen) {
				agg.lastSeen = run.CreatedAt
			}
			seen[issue.Type] = struct{}{}
		}
		for issueType := range seen {
			stats[issueType].runs++
		}
	}

	patterns := make([]models.FailurePattern, 0, len(stats))
	for issueType, agg := range stats {
		patterns = append(patterns, models.FailurePattern{
			ID:          patternID(issueType),
			Name:        patternName(issueType),
			Description: fmt.Sprintf("%s seen in %d of the last %d diagnosis runs", issueType, agg.runs, len(history)),
			IssueType:   issueType,
			Namespaces:  sortedNamespaces(agg.namespaces),
			Occurrences: agg.occurrences,
			Prevalence:  float64(agg.runs) / float64(len(history)),
			TopSeverity: agg.topSeverity,
			LastSeen:    agg.lastSeen,
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Prevalence != patterns[j].Prevalence {
			return patterns[i].Prevalence > patterns[j].Prevalence
		}
		if patterns[i].Occurrences != patterns[j].Occurrences {
			return patterns[i].Occurrences > patterns[j].Occurrences
		}
		return patterns[i].ID < patterns[j].ID
	})

	if m.store != nil && len(patterns) > 0 {
		if err := m.store.StorePatterns(ctx, patterns); err != nil {
			m.logger.Warn("pattern store failed", slog.Any("error", err))
		}
	}

	return patterns, nil
}

type typeAggregate struct {
	occurrences int
	runs        int
	topSeverity models.Severity
	lastSeen    time.Time
	namespaces  map[string]struct{}
}

func ensureAggregate(m map[models.IssueType]*typeAggregate, issueType models.IssueType) *typeAggregate {
	agg, ok := m[issueType]
	if !ok {
		agg = &typeAggregate{namespaces: make(map[string]struct{})}
		m[issueType] = agg
	}
	return agg
}

func sortedNamespaces(set map[string]struct{}) []string {
	namespaces := make([]string, 0, len(set))
	for ns := range set {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces
}

func patternID(issueType models.IssueType) string {
	return "pattern-" + strings.ToLower(strings.ReplaceAll(string(issueType), "_", "-"))
}

func patternName(issueType models.IssueType) string {
	words := strings.Split(strings.ToLower(string(issueType)), "_")
	return strings.Join(words, " ") + " recurrence"
}
