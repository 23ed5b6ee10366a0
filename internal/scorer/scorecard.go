package scorer

import "github.com/sells-group/zkcredit/internal/model"

type phrasing struct {
	label   string
	pass    string
	fail    string
	unknown string
}

var phrasings = [model.NumCriteria]phrasing{
	model.CriterionReliability: {
		label:   "Invoice Payment Reliability",
		pass:    "The share of paid invoices meets the lender's minimum.",
		fail:    "The share of paid invoices is below the lender's minimum.",
		unknown: "No invoices were available to compute a payment rate.",
	},
	model.CriterionDTI: {
		label:   "Debt-to-Income",
		pass:    "Outstanding debt relative to income is within the lender's limit.",
		fail:    "Outstanding debt relative to income exceeds the lender's limit.",
		unknown: "No income was recorded, so debt-to-income cannot be computed.",
	},
	model.CriterionDSO: {
		label:   "Days Sales Outstanding",
		pass:    "Customers pay within the lender's allowed number of days.",
		fail:    "Customers take longer to pay than the lender allows.",
		unknown: "Days sales outstanding could not be determined.",
	},
	model.CriterionARAging: {
		label:   "Receivables Aging",
		pass:    "Receivables more than 60 days overdue are within the lender's limit.",
		fail:    "Too large a share of receivables is more than 60 days overdue.",
		unknown: "No open receivables were recorded, so aging cannot be computed.",
	},
	model.CriterionRevenue: {
		label:   "Trailing 12-Month Revenue",
		pass:    "Revenue over the last 12 months meets the lender's minimum.",
		fail:    "Revenue over the last 12 months is below the lender's minimum.",
		unknown: "Trailing revenue could not be determined.",
	},
	model.CriterionConcentration: {
		label:   "Customer Concentration",
		pass:    "No single customer accounts for more sales than the lender allows.",
		fail:    "A single customer accounts for more sales than the lender allows.",
		unknown: "No sales were recorded, so concentration cannot be computed.",
	},
}

const maskedExplanation = "Not part of this submission; reported as passing."

// Label returns the display label of a criterion.
func Label(c model.Criterion) string {
	if c < 0 || int(c) >= model.NumCriteria {
		return ""
	}
	return phrasings[c].label
}

// Build turns per-criterion outcomes into a Scorecard. Criteria outside
// active get the masked explanation regardless of outcome.
func Build(outcomes [model.NumCriteria]model.Outcome, active model.CriterionSet) model.Scorecard {
	var sc model.Scorecard
	for _, c := range model.AllCriteria {
		p := phrasings[c]
		o := outcomes[c]
		r := model.CriterionResult{Key: c.Key(), Label: p.label, Pass: o}
		switch {
		case !active.Has(c):
			r.Explanation = maskedExplanation
		case o == model.OutcomePass:
			r.Explanation = p.pass
		case o == model.OutcomeFail:
			r.Explanation = p.fail
		default:
			r.Explanation = p.unknown
		}
		sc.Criteria[c] = r
	}
	sc.Overall = Overall(outcomes)
	return sc
}

// Overall folds criterion outcomes into a verdict: any fail wins, then any
// unknown, otherwise pass.
func Overall(outcomes [model.NumCriteria]model.Outcome) model.Outcome {
	unknown := false
	for _, o := range outcomes {
		switch o {
		case model.OutcomeFail:
			return model.OutcomeFail
		case model.OutcomeUnknown:
			unknown = true
		}
	}
	if unknown {
		return model.OutcomeUnknown
	}
	return model.OutcomePass
}

// FromProof converts circuit booleans to outcomes. The circuit cannot express
// "unknown", so any active criterion with a zero denominator in the inputs is
// reported as unknown whatever bit the circuit produced for it.
func FromProof(proof [model.NumCriteria]bool, in model.MetricInputs, active model.CriterionSet) [model.NumCriteria]model.Outcome {
	var out [model.NumCriteria]model.Outcome
	for _, c := range model.AllCriteria {
		if active.Has(c) && Undecidable(in, c) {
			out[c] = model.OutcomeUnknown
			continue
		}
		out[c] = model.OutcomeOf(proof[c])
	}
	return out
}

// ProofBits converts outcomes to the circuit's boolean form; unknown maps to false.
func ProofBits(outcomes [model.NumCriteria]model.Outcome) [model.NumCriteria]bool {
	var out [model.NumCriteria]bool
	for i, o := range outcomes {
		out[i] = o == model.OutcomePass
	}
	return out
}
