package models

// Explanation is a dual-audience narrative for one issue type. Derived from the
// issue type alone; severity and confidence never influence the text.
type Explanation struct {
	HumanExplanation string   `json:"humanExplanation"`
	SREExplanation   string   `json:"sreExplanation"`
	Impact           string   `json:"impact"`
	Urgency          string   `json:"urgency"`
	NextSteps        []string `json:"nextSteps"`
	RootCause        string   `json:"rootCause"`
	SREContext       string   `json:"sreContext"`
}
