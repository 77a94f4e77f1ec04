package models

// ActionType enumerates remediation action categories.
type ActionType string

const (
	ActionInvestigate   ActionType = "INVESTIGATE"
	ActionRestart       ActionType = "RESTART"
	ActionScale         ActionType = "SCALE"
	ActionUpdateConfig  ActionType = "UPDATE_CONFIG"
	ActionDelete        ActionType = "DELETE"
	ActionApplyManifest ActionType = "APPLY_MANIFEST"
)

// Action describes a single remediation step. Commands are human-readable
// strings only; nothing in this service executes them.
type Action struct {
	Type        ActionType         `json:"type"`
	Description string             `json:"description"`
	Command     string             `json:"command,omitempty"`
	Resource    *ResourceReference `json:"resource,omitempty"`
	Safe        bool               `json:"safe"`
	Reversible  bool               `json:"reversible"`
}

// RemediationProposal is the proposer output for one issue. Invariant: if any
// action has Safe==false then RequiresApproval is true.
type RemediationProposal struct {
	RequiresApproval     bool     `json:"requiresApproval"`
	Actions              []Action `json:"actions"`
	Confidence           float64  `json:"confidence"`
	EstimatedDowntime    string   `json:"estimatedDowntime"`
	RollbackInstructions []string `json:"rollbackInstructions"`
	ApprovalReason       string   `json:"approvalReason,omitempty"`
}

// HasUnsafeAction reports whether any proposed action is marked unsafe.
func (p RemediationProposal) HasUnsafeAction() bool {
	for _, a := range p.Actions {
		if !a.Safe {
			return true
		}
	}
	return false
}
