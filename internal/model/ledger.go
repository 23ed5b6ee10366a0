package model

import "time"

// Invoice is an accounting-ledger invoice reduced to what aggregation needs.
// Amounts are in the ledger's home currency.
type Invoice struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name,omitempty"`
	IssueDate    time.Time `json:"issue_date"`
	DueDate      time.Time `json:"due_date"`
	TotalAmount  float64   `json:"total_amount"`
	Balance      float64   `json:"balance"`
	PaymentIDs   []string  `json:"payment_ids,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Paid reports whether the invoice has no outstanding balance.
func (i Invoice) Paid() bool { return i.Balance == 0 }

// Payment is a payment transaction that can be linked from invoices.
type Payment struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	TotalAmount float64   `json:"total_amount"`
}

// Ledger is a point-in-time snapshot fetched from an accounting provider.
type Ledger struct {
	Invoices  []Invoice `json:"invoices"`
	Payments  []Payment `json:"payments"`
	FetchedAt time.Time `json:"fetched_at"`
}
