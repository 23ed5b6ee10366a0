package model

import "time"

// RunStatus is the terminal state of a proof run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ProofRun is the audit record of a single proof request. It deliberately
// stores no metric inputs, only the public outputs.
type ProofRun struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	Mode       Mode      `json:"mode"`
	Backend    string    `json:"backend"`
	Proof      string    `json:"proof,omitempty"`
	Overall    Outcome   `json:"overall"`
	Status     RunStatus `json:"status"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ProofBits renders a proof array as a string of 0/1 digits in circuit order.
func ProofBits(proof [NumCriteria]bool) string {
	b := make([]byte, NumCriteria)
	for i, v := range proof {
		if v {
			b[i] = '1'
		} else {
			b[i] = '0'
		}
	}
	return string(b)
}
