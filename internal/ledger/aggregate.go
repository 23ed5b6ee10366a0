// Package ledger derives criterion actuals from an accounting ledger.
package ledger

import (
	"math"
	"time"

	"github.com/sells-group/zkcredit/internal/model"
)

const day = 24 * time.Hour

// agingCutoff is how far past due an invoice must be to count as aged.
const agingCutoff = 60 * day

const revenueWindow = 365 * day

// Aggregate computes the actual-value fields of all six criteria from a
// ledger snapshot taken at now. Threshold fields are left zero. Money is
// summed in the ledger's currency and rounded to whole units.
//
//   - paid invoices are those with a zero balance
//   - debt is the sum of positive balances, income the total of paid invoices
//   - DSO is the mean days from issue to payment over paid invoices, where
//     payment is the latest linked payment or else the last modification
//   - AR aging weighs outstanding balances more than 60 days past due
//   - revenue sums invoices issued in the trailing 365 days
//   - concentration compares the largest customer to all invoiced sales
func Aggregate(l model.Ledger, now time.Time) model.MetricInputs {
	paymentDates := make(map[string]time.Time, len(l.Payments))
	for _, p := range l.Payments {
		paymentDates[p.ID] = p.Date
	}

	var (
		in             model.MetricInputs
		debt, income   float64
		over60         float64
		revenue, sales float64
		dsoDays        float64
		dsoCount       int
		byCustomer     = make(map[string]float64)
		revenueFrom    = now.Add(-revenueWindow)
	)

	for _, inv := range l.Invoices {
		in.TotalInvoices++
		sales += inv.TotalAmount
		byCustomer[customerKey(inv)] += inv.TotalAmount

		if !inv.IssueDate.IsZero() && !inv.IssueDate.Before(revenueFrom) && !inv.IssueDate.After(now) {
			revenue += inv.TotalAmount
		}

		if inv.Paid() {
			in.PaidInvoices++
			income += inv.TotalAmount
			if d, ok := daysToPay(inv, paymentDates); ok {
				dsoDays += d
				dsoCount++
			}
			continue
		}

		if inv.Balance > 0 {
			debt += inv.Balance
			if !inv.DueDate.IsZero() && now.Sub(inv.DueDate) > agingCutoff {
				over60 += inv.Balance
			}
		}
	}

	var largest float64
	for _, v := range byCustomer {
		largest = math.Max(largest, v)
	}

	in.TotalDebt = units(debt)
	in.TotalIncome = units(income)
	if dsoCount > 0 {
		in.DSO = units(dsoDays / float64(dsoCount))
	}
	in.AROver60 = units(over60)
	// Outstanding receivables and debt are the same positive balances.
	in.ARTotal = in.TotalDebt
	in.Revenue12mo = units(revenue)
	in.LargestCustSales = units(largest)
	in.TotalSales = units(sales)
	return in
}

// daysToPay returns the days between issue and settlement of a paid invoice.
func daysToPay(inv model.Invoice, paymentDates map[string]time.Time) (float64, bool) {
	if inv.IssueDate.IsZero() {
		return 0, false
	}
	var paidAt time.Time
	for _, id := range inv.PaymentIDs {
		if d, ok := paymentDates[id]; ok && d.After(paidAt) {
			paidAt = d
		}
	}
	if paidAt.IsZero() {
		paidAt = inv.LastModified
	}
	if paidAt.IsZero() {
		return 0, false
	}
	return math.Max(paidAt.Sub(inv.IssueDate).Hours()/24, 0), true
}

func customerKey(inv model.Invoice) string {
	if inv.CustomerID != "" {
		return inv.CustomerID
	}
	return inv.CustomerName
}

// units rounds a non-negative amount to a whole number, capped at the
// largest value the circuit input file can carry.
func units(v float64) uint64 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return uint64(math.Round(v))
}
