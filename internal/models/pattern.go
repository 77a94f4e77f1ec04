package models

import "time"

// FailurePattern represents a recurring issue signature mined from diagnosis
// history.
type FailurePattern struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IssueType   IssueType `json:"issueType"`
	Namespaces  []string  `json:"namespaces"`
	Occurrences int       `json:"occurrences"`
	Prevalence  float64   `json:"prevalence"`
	TopSeverity Severity  `json:"topSeverity"`
	LastSeen    time.Time `json:"lastSeen"`
}
