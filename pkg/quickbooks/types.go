package quickbooks

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Ref is a reference to another entity.
type Ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

// LinkedTxn links a transaction to another one.
type LinkedTxn struct {
	TxnID   string `json:"TxnId"`
	TxnType string `json:"TxnType"`
}

// MetaData carries entity timestamps.
type MetaData struct {
	CreateTime      string `json:"CreateTime,omitempty"`
	LastUpdatedTime string `json:"LastUpdatedTime,omitempty"`
}

// Invoice is the subset of the QuickBooks Invoice entity used for scoring.
type Invoice struct {
	ID          string      `json:"Id"`
	DocNumber   string      `json:"DocNumber,omitempty"`
	TxnDate     string      `json:"TxnDate"`
	DueDate     string      `json:"DueDate,omitempty"`
	TotalAmt    float64     `json:"TotalAmt"`
	Balance     float64     `json:"Balance"`
	CustomerRef Ref         `json:"CustomerRef"`
	LinkedTxn   []LinkedTxn `json:"LinkedTxn,omitempty"`
	MetaData    MetaData    `json:"MetaData"`
}

// PaymentLine is one application of a payment.
type PaymentLine struct {
	Amount    float64     `json:"Amount"`
	LinkedTxn []LinkedTxn `json:"LinkedTxn,omitempty"`
}

// Payment is the subset of the QuickBooks Payment entity used for scoring.
type Payment struct {
	ID          string        `json:"Id"`
	TxnDate     string        `json:"TxnDate"`
	TotalAmt    float64       `json:"TotalAmt"`
	CustomerRef Ref           `json:"CustomerRef"`
	Line        []PaymentLine `json:"Line,omitempty"`
	MetaData    MetaData      `json:"MetaData"`
}

// CompanyInfo identifies the connected company.
type CompanyInfo struct {
	ID          string `json:"Id"`
	CompanyName string `json:"CompanyName"`
	Country     string `json:"Country,omitempty"`
}

// FaultError is one error entry of a fault response.
type FaultError struct {
	Message string `json:"Message"`
	Detail  string `json:"Detail"`
	Code    string `json:"code"`
}

// Fault is the error body QuickBooks returns on failed requests.
type Fault struct {
	Error []FaultError `json:"Error"`
	Type  string       `json:"type"`
}

// dateLayout is the format of TxnDate and DueDate.
const dateLayout = "2006-01-02"

// ParseDate parses a transaction date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "quickbooks: parse date %q", s)
	}
	return t, nil
}

// ParseTimestamp parses a MetaData timestamp such as
// 2024-03-01T09:15:00-08:00.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "quickbooks: parse timestamp %q", s)
	}
	return t, nil
}

// PaymentIDs returns the IDs of payments linked to the invoice.
func (i Invoice) PaymentIDs() []string {
	var ids []string
	for _, l := range i.LinkedTxn {
		if strings.EqualFold(l.TxnType, "Payment") {
			ids = append(ids, l.TxnID)
		}
	}
	return ids
}
