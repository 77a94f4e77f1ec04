package models

import "time"

// DiagnoseRequest scopes a diagnosis run.
type DiagnoseRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

// DiagnosedIssue pairs a classified issue with its explanation.
type DiagnosedIssue struct {
	Issue
	Explanation Explanation `json:"explanation"`
}

// ClusterOverview summarises cluster health at diagnosis time.
type ClusterOverview struct {
	TotalPods          int `json:"totalPods"`
	HealthyPods        int `json:"healthyPods"`
	TotalDeployments   int `json:"totalDeployments"`
	HealthyDeployments int `json:"healthyDeployments"`
	TotalServices      int `json:"totalServices"`
}

// DiagnosticsResult is the aggregate output of one diagnosis run. Built fresh
// per invocation; every failure mode still yields a structurally valid result.
type DiagnosticsResult struct {
	DiagnosisID      string                `json:"diagnosisId"`
	Namespace        string                `json:"namespace,omitempty"`
	Issues           []DiagnosedIssue      `json:"issues"`
	ClusterOverview  ClusterOverview       `json:"clusterOverview"`
	ClusterInfo      ClusterInfo           `json:"clusterInfo"`
	Recommendations  []string              `json:"recommendations"`
	RequiresApproval bool                  `json:"requiresApproval"`
	Summary          string                `json:"summary"`
	NextSteps        []RemediationProposal `json:"nextSteps"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// ListDiagnosticsRequest captures filters for historical diagnosis runs.
type ListDiagnosticsRequest struct {
	Namespace string
	Limit     int
}

// Feedback captures user feedback for a diagnosis run.
type Feedback struct {
	DiagnosisID string    `json:"diagnosisId"`
	Helpful     bool      `json:"helpful"`
	Notes       string    `json:"notes,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}
