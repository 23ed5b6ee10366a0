package model

// Field names as they appear on the wire and in the prover input file.
const (
	FieldTotalInvoices            = "total_invoices"
	FieldPaidInvoices             = "paid_invoices"
	FieldThresholdPercent         = "threshold_percent"
	FieldTotalDebt                = "total_debt"
	FieldTotalIncome              = "total_income"
	FieldDTIThresholdBP           = "dti_threshold_bp"
	FieldDSO                      = "dso"
	FieldDSOThreshold             = "dso_threshold"
	FieldAROver60                 = "ar_over60"
	FieldARTotal                  = "ar_total"
	FieldARPctThresholdBP         = "ar_pct_threshold_bp"
	FieldRevenue12mo              = "revenue12mo"
	FieldRevenueThreshold         = "revenue_threshold"
	FieldLargestCustSales         = "largest_cust_sales"
	FieldTotalSales               = "total_sales"
	FieldConcentrationThresholdBP = "concentration_threshold_bp"
)

// FieldOrder is the canonical order of the sixteen circuit inputs.
var FieldOrder = []string{
	FieldTotalInvoices, FieldPaidInvoices, FieldThresholdPercent,
	FieldTotalDebt, FieldTotalIncome, FieldDTIThresholdBP,
	FieldDSO, FieldDSOThreshold,
	FieldAROver60, FieldARTotal, FieldARPctThresholdBP,
	FieldRevenue12mo, FieldRevenueThreshold,
	FieldLargestCustSales, FieldTotalSales, FieldConcentrationThresholdBP,
}

// MetricInputs holds the sixteen non-negative integer inputs of the
// threshold circuit. Percentages are whole percents and ratio thresholds
// are basis points so that nothing fractional reaches the circuit.
type MetricInputs struct {
	TotalInvoices    uint64 `json:"total_invoices" yaml:"total_invoices" toml:"total_invoices"`
	PaidInvoices     uint64 `json:"paid_invoices" yaml:"paid_invoices" toml:"paid_invoices"`
	ThresholdPercent uint64 `json:"threshold_percent" yaml:"threshold_percent" toml:"threshold_percent"`

	TotalDebt      uint64 `json:"total_debt" yaml:"total_debt" toml:"total_debt"`
	TotalIncome    uint64 `json:"total_income" yaml:"total_income" toml:"total_income"`
	DTIThresholdBP uint64 `json:"dti_threshold_bp" yaml:"dti_threshold_bp" toml:"dti_threshold_bp"`

	DSO          uint64 `json:"dso" yaml:"dso" toml:"dso"`
	DSOThreshold uint64 `json:"dso_threshold" yaml:"dso_threshold" toml:"dso_threshold"`

	AROver60         uint64 `json:"ar_over60" yaml:"ar_over60" toml:"ar_over60"`
	ARTotal          uint64 `json:"ar_total" yaml:"ar_total" toml:"ar_total"`
	ARPctThresholdBP uint64 `json:"ar_pct_threshold_bp" yaml:"ar_pct_threshold_bp" toml:"ar_pct_threshold_bp"`

	Revenue12mo      uint64 `json:"revenue12mo" yaml:"revenue12mo" toml:"revenue12mo"`
	RevenueThreshold uint64 `json:"revenue_threshold" yaml:"revenue_threshold" toml:"revenue_threshold"`

	LargestCustSales         uint64 `json:"largest_cust_sales" yaml:"largest_cust_sales" toml:"largest_cust_sales"`
	TotalSales               uint64 `json:"total_sales" yaml:"total_sales" toml:"total_sales"`
	ConcentrationThresholdBP uint64 `json:"concentration_threshold_bp" yaml:"concentration_threshold_bp" toml:"concentration_threshold_bp"`
}

// Get returns the value of the named field and whether the name is known.
func (m *MetricInputs) Get(name string) (uint64, bool) {
	p := m.ptr(name)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Set assigns the named field. It reports false for an unknown name.
func (m *MetricInputs) Set(name string, v uint64) bool {
	p := m.ptr(name)
	if p == nil {
		return false
	}
	*p = v
	return true
}

// Values returns the sixteen values in FieldOrder.
func (m MetricInputs) Values() []uint64 {
	out := make([]uint64, 0, len(FieldOrder))
	for _, name := range FieldOrder {
		v, _ := m.Get(name)
		out = append(out, v)
	}
	return out
}

func (m *MetricInputs) ptr(name string) *uint64 {
	switch name {
	case FieldTotalInvoices:
		return &m.TotalInvoices
	case FieldPaidInvoices:
		return &m.PaidInvoices
	case FieldThresholdPercent:
		return &m.ThresholdPercent
	case FieldTotalDebt:
		return &m.TotalDebt
	case FieldTotalIncome:
		return &m.TotalIncome
	case FieldDTIThresholdBP:
		return &m.DTIThresholdBP
	case FieldDSO:
		return &m.DSO
	case FieldDSOThreshold:
		return &m.DSOThreshold
	case FieldAROver60:
		return &m.AROver60
	case FieldARTotal:
		return &m.ARTotal
	case FieldARPctThresholdBP:
		return &m.ARPctThresholdBP
	case FieldRevenue12mo:
		return &m.Revenue12mo
	case FieldRevenueThreshold:
		return &m.RevenueThreshold
	case FieldLargestCustSales:
		return &m.LargestCustSales
	case FieldTotalSales:
		return &m.TotalSales
	case FieldConcentrationThresholdBP:
		return &m.ConcentrationThresholdBP
	default:
		return nil
	}
}
