package scorer

import "github.com/sells-group/zkcredit/internal/model"

// Mask values written for criteria that are not part of a submission. Each
// threshold sits at its most permissive end and each denominator is 1, so the
// circuit reports a pass without touching the zero-denominator path. These
// values are circuit input masking and carry no information about the
// business.
const (
	MaskDenominator      = 1
	MaskPercentThreshold = 0
	MaskBPThreshold      = bpScale
	MaskDSOThresholdDays = 365
	MaskRevenueThreshold = 0
)

// ApplyMask returns a copy of in where every criterion outside active has
// been replaced by its guaranteed-pass encoding.
func ApplyMask(in model.MetricInputs, active model.CriterionSet) model.MetricInputs {
	out := in
	for _, c := range model.AllCriteria {
		if active.Has(c) {
			continue
		}
		switch c {
		case model.CriterionReliability:
			out.TotalInvoices = MaskDenominator
			out.PaidInvoices = MaskDenominator
			out.ThresholdPercent = MaskPercentThreshold
		case model.CriterionDTI:
			out.TotalDebt = 0
			out.TotalIncome = MaskDenominator
			out.DTIThresholdBP = MaskBPThreshold
		case model.CriterionDSO:
			out.DSO = 0
			out.DSOThreshold = MaskDSOThresholdDays
		case model.CriterionARAging:
			out.AROver60 = 0
			out.ARTotal = MaskDenominator
			out.ARPctThresholdBP = MaskBPThreshold
		case model.CriterionRevenue:
			out.Revenue12mo = 0
			out.RevenueThreshold = MaskRevenueThreshold
		case model.CriterionConcentration:
			out.LargestCustSales = 0
			out.TotalSales = MaskDenominator
			out.ConcentrationThresholdBP = MaskBPThreshold
		}
	}
	return out
}
