package scorer

import (
	"math/bits"

	"github.com/sells-group/zkcredit/internal/model"
)

// Scale factors applied to ratios before they are compared to thresholds.
const (
	percentScale = 100
	bpScale      = 10_000
)

// Evaluate scores the six criteria for the given inputs. Criteria outside
// active are treated as masked and always pass. A ratio whose denominator is
// zero yields OutcomeUnknown. Evaluate is pure and never fails; inputs are
// expected to have been validated by the caller.
func Evaluate(in model.MetricInputs, active model.CriterionSet) [model.NumCriteria]model.Outcome {
	var out [model.NumCriteria]model.Outcome
	for _, c := range model.AllCriteria {
		if !active.Has(c) {
			out[c] = model.OutcomePass
			continue
		}
		out[c] = evaluateOne(in, c)
	}
	return out
}

func evaluateOne(in model.MetricInputs, c model.Criterion) model.Outcome {
	if Undecidable(in, c) {
		return model.OutcomeUnknown
	}
	switch c {
	case model.CriterionReliability:
		// paid/total*100 >= threshold
		return model.OutcomeOf(cmpProducts(in.PaidInvoices, percentScale, in.ThresholdPercent, in.TotalInvoices) >= 0)
	case model.CriterionDTI:
		// debt/income*10000 <= bp
		return model.OutcomeOf(cmpProducts(in.TotalDebt, bpScale, in.DTIThresholdBP, in.TotalIncome) <= 0)
	case model.CriterionDSO:
		return model.OutcomeOf(in.DSO <= in.DSOThreshold)
	case model.CriterionARAging:
		return model.OutcomeOf(cmpProducts(in.AROver60, bpScale, in.ARPctThresholdBP, in.ARTotal) <= 0)
	case model.CriterionRevenue:
		return model.OutcomeOf(in.Revenue12mo >= in.RevenueThreshold)
	case model.CriterionConcentration:
		return model.OutcomeOf(cmpProducts(in.LargestCustSales, bpScale, in.ConcentrationThresholdBP, in.TotalSales) <= 0)
	default:
		return model.OutcomeUnknown
	}
}

// Undecidable reports whether the criterion's ratio has a zero denominator.
// DSO and revenue compare raw values and are always decidable.
func Undecidable(in model.MetricInputs, c model.Criterion) bool {
	switch c {
	case model.CriterionReliability:
		return in.TotalInvoices == 0
	case model.CriterionDTI:
		return in.TotalIncome == 0
	case model.CriterionARAging:
		return in.ARTotal == 0
	case model.CriterionConcentration:
		return in.TotalSales == 0
	default:
		return false
	}
}

// cmpProducts compares a*b with c*d using 128-bit products, so ratio checks
// are exact and cannot overflow. It returns -1, 0 or +1.
func cmpProducts(a, b, c, d uint64) int {
	hi1, lo1 := bits.Mul64(a, b)
	hi2, lo2 := bits.Mul64(c, d)
	switch {
	case hi1 < hi2:
		return -1
	case hi1 > hi2:
		return 1
	case lo1 < lo2:
		return -1
	case lo1 > lo2:
		return 1
	default:
		return 0
	}
}
