package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ledger is the payment position of one invoice. It is always derived from the
// invoice amount and its payment entries and never stored on its own.
type Ledger struct {
	InvoiceAmount decimal.Decimal `json:"invoice_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Status        PaymentStatus   `json:"payment_status"`
}

func NewLedger(invoiceAmount decimal.Decimal, payments []PaymentEntry) Ledger {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	balance := invoiceAmount.Sub(paid)

	status := PaymentStatusUnpaid
	switch {
	case paid.IsPositive() && !balance.IsPositive():
		status = PaymentStatusPaid
	case paid.IsPositive():
		status = PaymentStatusPartial
	}

	return Ledger{
		InvoiceAmount: invoiceAmount,
		TotalPaid:     paid,
		BalanceDue:    balance,
		Status:        status,
	}
}

type LedgerSummary struct {
	TotalInvoices      int             `json:"total_invoices"`
	TotalInvoiceAmount decimal.Decimal `json:"total_invoice_amount"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	PaidCount          int             `json:"paid_count"`
	PartialCount       int             `json:"partial_count"`
	UnpaidCount        int             `json:"unpaid_count"`
}

// Summarize folds the ledgers of every invoice into one summary.
func Summarize(invoices []Invoice) LedgerSummary {
	s := LedgerSummary{
		TotalInvoiceAmount: decimal.Zero,
		TotalPaid:          decimal.Zero,
		TotalOutstanding:   decimal.Zero,
	}
	for i := range invoices {
		l := invoices[i].Ledger()
		s.TotalInvoices++
		s.TotalInvoiceAmount = s.TotalInvoiceAmount.Add(l.InvoiceAmount)
		s.TotalPaid = s.TotalPaid.Add(l.TotalPaid)
		switch l.Status {
		case PaymentStatusPaid:
			s.PaidCount++
		case PaymentStatusPartial:
			s.PartialCount++
		default:
			s.UnpaidCount++
		}
	}
	s.TotalOutstanding = s.TotalInvoiceAmount.Sub(s.TotalPaid)
	return s
}

// SortByBalanceDue orders invoices by outstanding balance, highest first.
// Ties keep their original order.
func SortByBalanceDue(invoices []Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Ledger().BalanceDue.GreaterThan(invoices[j].Ledger().BalanceDue)
	})
}
