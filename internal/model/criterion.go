package model

import "strings"

// Criterion identifies one of the six fixed lending criteria.
type Criterion int

// Criteria in circuit output order.
const (
	CriterionReliability Criterion = iota
	CriterionDTI
	CriterionDSO
	CriterionARAging
	CriterionRevenue
	CriterionConcentration
)

// NumCriteria is the fixed number of circuit outputs.
const NumCriteria = 6

// AllCriteria lists the criteria in circuit output order.
var AllCriteria = [NumCriteria]Criterion{
	CriterionReliability,
	CriterionDTI,
	CriterionDSO,
	CriterionARAging,
	CriterionRevenue,
	CriterionConcentration,
}

var criterionKeys = [NumCriteria]string{
	"reliability",
	"dti",
	"dso",
	"ar_aging",
	"revenue",
	"concentration",
}

// Key returns the stable wire key of the criterion.
func (c Criterion) Key() string {
	if c < 0 || int(c) >= NumCriteria {
		return "unknown"
	}
	return criterionKeys[c]
}

func (c Criterion) String() string { return c.Key() }

// ParseCriterion resolves a wire key back to a Criterion.
func ParseCriterion(key string) (Criterion, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for i, k := range criterionKeys {
		if k == key {
			return Criterion(i), true
		}
	}
	return 0, false
}

// Fields returns the input fields that feed the criterion, actuals first and
// the threshold last.
func (c Criterion) Fields() []string {
	switch c {
	case CriterionReliability:
		return []string{FieldTotalInvoices, FieldPaidInvoices, FieldThresholdPercent}
	case CriterionDTI:
		return []string{FieldTotalDebt, FieldTotalIncome, FieldDTIThresholdBP}
	case CriterionDSO:
		return []string{FieldDSO, FieldDSOThreshold}
	case CriterionARAging:
		return []string{FieldAROver60, FieldARTotal, FieldARPctThresholdBP}
	case CriterionRevenue:
		return []string{FieldRevenue12mo, FieldRevenueThreshold}
	case CriterionConcentration:
		return []string{FieldLargestCustSales, FieldTotalSales, FieldConcentrationThresholdBP}
	default:
		return nil
	}
}

// ThresholdField returns the name of the criterion's pass bound.
func (c Criterion) ThresholdField() string {
	f := c.Fields()
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// CriterionSet is a bitmask of active criteria.
type CriterionSet uint8

// Common sets.
const (
	SetNone CriterionSet = 0
	SetAll  CriterionSet = 1<<NumCriteria - 1
)

// NewCriterionSet builds a set from the given criteria.
func NewCriterionSet(cs ...Criterion) CriterionSet {
	var s CriterionSet
	for _, c := range cs {
		s = s.With(c)
	}
	return s
}

// With returns the set with c added.
func (s CriterionSet) With(c Criterion) CriterionSet { return s | 1<<uint(c) }

// Has reports whether c is in the set.
func (s CriterionSet) Has(c Criterion) bool { return s&(1<<uint(c)) != 0 }

// Keys returns the wire keys of the members in circuit order.
func (s CriterionSet) Keys() []string {
	var out []string
	for _, c := range AllCriteria {
		if s.Has(c) {
			out = append(out, c.Key())
		}
	}
	return out
}

// Mode is the submission mode of a request.
type Mode string

const (
	// ModeManual covers user-entered numbers for reliability and optionally DTI.
	ModeManual Mode = "manual"
	// ModeConnected covers aggregates derived from a connected accounting ledger.
	ModeConnected Mode = "connected"
)
