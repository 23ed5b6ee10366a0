package model

// CriterionResult is one row of the scorecard.
type CriterionResult struct {
	Key         string  `json:"key"`
	Label       string  `json:"label"`
	Pass        Outcome `json:"pass"`
	Explanation string  `json:"explanation"`
}

// Scorecard is the ordered set of criterion results plus the overall verdict.
type Scorecard struct {
	Criteria [NumCriteria]CriterionResult `json:"criteria"`
	Overall  Outcome                      `json:"overallPass"`
}

// ProofResponse is the success body returned for a proof request.
type ProofResponse struct {
	RunID             string                       `json:"runId,omitempty"`
	Mode              Mode                         `json:"mode"`
	Backend           string                       `json:"backend"`
	Proof             [NumCriteria]bool            `json:"proof"`
	Criteria          [NumCriteria]CriterionResult `json:"criteria"`
	OverallPass       Outcome                      `json:"overallPass"`
	RawExecutorOutput string                       `json:"rawExecutorOutput"`
}

// ErrorResponse is the failure body returned at the API boundary.
type ErrorResponse struct {
	Error             string `json:"error"`
	Kind              string `json:"kind,omitempty"`
	Reconnect         bool   `json:"reconnect,omitempty"`
	RawExecutorOutput string `json:"rawExecutorOutput,omitempty"`
}
