// Package intake turns request bodies into validated metric inputs.
package intake

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/sells-group/zkcredit/internal/config"
	"github.com/sells-group/zkcredit/internal/model"
	"github.com/sells-group/zkcredit/internal/scorer"
)

// MaxValue is the largest value a metric field may hold. The circuit input
// file is TOML, whose integers are signed 64-bit.
const MaxValue = math.MaxInt64

// Submission is a validated request ready for evaluation or proving.
type Submission struct {
	Mode   model.Mode
	Inputs model.MetricInputs
	Active model.CriterionSet
}

// Values holds raw request values keyed by field name. Values may be JSON
// numbers, numeric strings, or nil/"" for unset.
type Values map[string]any

// ParseManual validates a manual-mode request. The three reliability fields
// are required. Any other criterion becomes active when at least one of its
// fields is present; its actuals are then required and an absent threshold
// falls back to the lender policy.
func ParseManual(raw Values, policy config.LenderConfig) (*Submission, error) {
	verr := &ValidationError{}
	sub := &Submission{Mode: model.ModeManual}

	present, nums := decode(raw, verr)

	for _, c := range model.AllCriteria {
		fields := c.Fields()
		supplied := false
		for _, f := range fields {
			if present[f] {
				supplied = true
				break
			}
		}
		if c == model.CriterionReliability {
			for _, f := range fields {
				if !present[f] {
					verr.add(f, "is required")
				}
			}
		} else if !supplied {
			continue
		}

		for _, f := range fields[:len(fields)-1] {
			if c != model.CriterionReliability && !present[f] {
				verr.add(f, "is required when "+c.Key()+" is supplied")
			}
		}
		sub.Active = sub.Active.With(c)
		fillCriterion(&sub.Inputs, c, nums, present, policy)
	}

	checkRanges(sub.Inputs, sub.Active, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return sub, nil
}

// ParseReliability validates the legacy reliability-only request. Any
// fields beyond the three reliability inputs are ignored.
func ParseReliability(raw Values) (*Submission, error) {
	only := Values{}
	for _, f := range model.CriterionReliability.Fields() {
		if v, ok := raw[f]; ok {
			only[f] = v
		}
	}
	return ParseManual(only, config.LenderConfig{})
}

// ParseConnected validates a connected-mode request. Actuals come from the
// ledger, so the request may carry thresholds only; unset thresholds fall
// back to the lender policy. All six criteria are active.
func ParseConnected(raw Values, policy config.LenderConfig) (*Submission, error) {
	verr := &ValidationError{}
	sub := &Submission{Mode: model.ModeConnected, Active: model.SetAll}

	present, nums := decode(raw, verr)
	for _, c := range model.AllCriteria {
		fields := c.Fields()
		for _, f := range fields[:len(fields)-1] {
			if present[f] {
				verr.add(f, "is derived from the connected ledger and cannot be supplied")
			}
		}
		th := c.ThresholdField()
		v := scorer.PolicyThreshold(policy, c)
		if present[th] {
			v = nums[th]
		}
		sub.Inputs.Set(th, v)
	}

	checkRanges(sub.Inputs, sub.Active, verr)
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return sub, nil
}

// WithActuals copies the ledger-derived actuals into a connected submission,
// leaving its thresholds untouched, and re-checks ranges.
func (s *Submission) WithActuals(actuals model.MetricInputs) error {
	for _, c := range model.AllCriteria {
		fields := c.Fields()
		for _, f := range fields[:len(fields)-1] {
			v, _ := actuals.Get(f)
			s.Inputs.Set(f, v)
		}
	}
	verr := &ValidationError{}
	for i, v := range s.Inputs.Values() {
		if v > MaxValue {
			verr.add(model.FieldOrder[i], "is out of range")
		}
	}
	checkRanges(s.Inputs, s.Active, verr)
	return verr.orNil()
}

func fillCriterion(in *model.MetricInputs, c model.Criterion, nums map[string]uint64, present map[string]bool, policy config.LenderConfig) {
	fields := c.Fields()
	for _, f := range fields[:len(fields)-1] {
		in.Set(f, nums[f])
	}
	th := c.ThresholdField()
	if present[th] {
		in.Set(th, nums[th])
	} else {
		in.Set(th, scorer.PolicyThreshold(policy, c))
	}
}

// decode coerces every known field. Unknown keys are ignored.
func decode(raw Values, verr *ValidationError) (map[string]bool, map[string]uint64) {
	present := make(map[string]bool, len(model.FieldOrder))
	nums := make(map[string]uint64, len(model.FieldOrder))
	for _, f := range model.FieldOrder {
		v, ok := raw[f]
		if !ok || isBlank(v) {
			continue
		}
		n, msg := coerce(v)
		if msg != "" {
			verr.add(f, msg)
			continue
		}
		present[f] = true
		nums[f] = n
	}
	return present, nums
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

// coerce converts a JSON number or numeric string to a non-negative integer.
// It returns a problem message instead of an error so that all fields can be
// reported at once.
func coerce(v any) (uint64, string) {
	switch t := v.(type) {
	case bool:
		return 0, "must be a number"
	case json.Number:
		v = t.String()
	case string:
		v = strings.TrimSpace(t)
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, "must be a number"
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, "must be a finite number"
	}
	if f < 0 {
		return 0, "must be non-negative"
	}
	if f != math.Trunc(f) {
		return 0, "must be an integer (scale percentages to basis points first)"
	}
	if f > MaxValue {
		return 0, "is out of range"
	}
	n, err := cast.ToUint64E(v)
	if err != nil {
		n = uint64(f)
	}
	if n > MaxValue {
		return 0, "is out of range"
	}
	return n, ""
}

func checkRanges(in model.MetricInputs, active model.CriterionSet, verr *ValidationError) {
	if active.Has(model.CriterionReliability) {
		if in.PaidInvoices > in.TotalInvoices {
			verr.add(model.FieldPaidInvoices, "cannot exceed total_invoices")
		}
		if in.ThresholdPercent > scorer.MaxPercent {
			verr.add(model.FieldThresholdPercent, "must be between 0 and 100")
		}
	}
	if active.Has(model.CriterionDTI) && in.DTIThresholdBP > scorer.MaxBP {
		verr.add(model.FieldDTIThresholdBP, "must be between 0 and 10000")
	}
	if active.Has(model.CriterionARAging) {
		if in.AROver60 > in.ARTotal {
			verr.add(model.FieldAROver60, "cannot exceed ar_total")
		}
		if in.ARPctThresholdBP > scorer.MaxBP {
			verr.add(model.FieldARPctThresholdBP, "must be between 0 and 10000")
		}
	}
	if active.Has(model.CriterionConcentration) {
		if in.LargestCustSales > in.TotalSales {
			verr.add(model.FieldLargestCustSales, "cannot exceed total_sales")
		}
		if in.ConcentrationThresholdBP > scorer.MaxBP {
			verr.add(model.FieldConcentrationThresholdBP, "must be between 0 and 10000")
		}
	}
}
