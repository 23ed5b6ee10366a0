package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Outcome is the tri-state result of a single criterion.
type Outcome int8

const (
	// OutcomeUnknown means the criterion could not be decided, e.g. a zero denominator.
	OutcomeUnknown Outcome = iota
	OutcomePass
	OutcomeFail
)

// OutcomeOf converts a boolean to Pass or Fail.
func OutcomeOf(pass bool) Outcome {
	if pass {
		return OutcomePass
	}
	return OutcomeFail
}

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of String. Anything unrecognized is unknown.
func ParseOutcome(s string) Outcome {
	switch s {
	case "pass":
		return OutcomePass
	case "fail":
		return OutcomeFail
	default:
		return OutcomeUnknown
	}
}

// Bool returns the outcome as a nullable boolean.
func (o Outcome) Bool() *bool {
	switch o {
	case OutcomePass:
		t := true
		return &t
	case OutcomeFail:
		f := false
		return &f
	default:
		return nil
	}
}

// MarshalJSON encodes pass/fail as true/false and unknown as null.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Bool())
}

// UnmarshalJSON accepts true, false, or null.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return eris.Wrap(err, "model: outcome must be true, false or null")
	}
	switch {
	case b == nil:
		*o = OutcomeUnknown
	case *b:
		*o = OutcomePass
	default:
		*o = OutcomeFail
	}
	return nil
}
