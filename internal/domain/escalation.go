package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierCritical Tier = "CRITICAL"
	TierHigh     Tier = "HIGH"
	TierStandard Tier = "STANDARD"
	TierNone     Tier = ""
)

// Reminder tier cut-offs, in whole days since the invoice date.
const (
	CriticalAfterDays = 9
	HighAfterDays     = 6
	StandardAfterDays = 3
)

// DocumentGraceDays is how long an invoice may wait for its shipment
// documents before it shows up in the overdue listing.
const DocumentGraceDays = 2

// DaysElapsed is floor((today - date) / 24h). It is negative for dates in the future.
func DaysElapsed(date, today time.Time) int {
	return int(math.Floor(today.Sub(date).Hours() / 24))
}

// TierFor maps elapsed days to a reminder tier, highest first.
func TierFor(days int) Tier {
	switch {
	case days >= CriticalAfterDays:
		return TierCritical
	case days >= HighAfterDays:
		return TierHigh
	case days >= StandardAfterDays:
		return TierStandard
	}
	return TierNone
}

type ReminderCandidate struct {
	InvoiceNo     string          `json:"invoice_no"`
	BuyerName     string          `json:"buyer_name"`
	InvoiceDate   string          `json:"invoice_date"`
	InvoiceAmount decimal.Decimal `json:"invoice_amount"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	DaysElapsed   int             `json:"days_elapsed"`
	Tier          Tier            `json:"tier"`
}

// ClassifyReminder decides whether an unpaid invoice warrants a payment
// reminder as of today.
func ClassifyReminder(inv *Invoice, today time.Time) (ReminderCandidate, bool) {
	ledger := inv.Ledger()
	if ledger.Status == PaymentStatusPaid {
		return ReminderCandidate{}, false
	}
	date, ok := inv.InvoiceDate()
	if !ok {
		return ReminderCandidate{}, false
	}

	days := DaysElapsed(date, today)
	tier := TierFor(days)
	if tier == TierNone {
		return ReminderCandidate{}, false
	}

	return ReminderCandidate{
		InvoiceNo:     inv.InvoiceNo,
		BuyerName:     inv.BuyerName(),
		InvoiceDate:   date.Format(DateLayout),
		InvoiceAmount: ledger.InvoiceAmount,
		TotalPaid:     ledger.TotalPaid,
		BalanceDue:    ledger.BalanceDue,
		DaysElapsed:   days,
		Tier:          tier,
	}, true
}

type OverdueEntry struct {
	InvoiceNo    string         `json:"invoice_no"`
	DaysElapsed  int            `json:"days_elapsed"`
	MissingKinds []DocumentKind `json:"missing_documents"`
	InvoiceDate  string         `json:"invoice_date"`
}

// ClassifyOverdue reports an invoice whose shipment documents are still
// missing after the grace period. The invoice document itself is not checked.
func ClassifyOverdue(inv *Invoice, today time.Time) (OverdueEntry, bool) {
	date, ok := inv.InvoiceDate()
	if !ok {
		return OverdueEntry{}, false
	}
	days := DaysElapsed(date, today)
	if days <= DocumentGraceDays {
		return OverdueEntry{}, false
	}
	missing := inv.Documents.MissingForOverdue()
	if len(missing) == 0 {
		return OverdueEntry{}, false
	}
	return OverdueEntry{
		InvoiceNo:    inv.InvoiceNo,
		DaysElapsed:  days,
		MissingKinds: missing,
		InvoiceDate:  date.Format(DateLayout),
	}, true
}

// Report is the result of one classification pass. Every entry was judged
// against the same GeneratedAt instant.
type Report struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Overdue     []OverdueEntry      `json:"overdue"`
	Reminders   []ReminderCandidate `json:"reminders"`
}

// BuildReport classifies every invoice against now.
func BuildReport(invoices []Invoice, now time.Time) Report {
	r := Report{
		GeneratedAt: now,
		Overdue:     []OverdueEntry{},
		Reminders:   []ReminderCandidate{},
	}
	for i := range invoices {
		if e, ok := ClassifyOverdue(&invoices[i], now); ok {
			r.Overdue = append(r.Overdue, e)
		}
		if c, ok := ClassifyReminder(&invoices[i], now); ok {
			r.Reminders = append(r.Reminders, c)
		}
	}
	return r
}

// ByTier groups reminder candidates, keeping scan order inside each tier.
func (r Report) ByTier() map[Tier][]ReminderCandidate {
	out := map[Tier][]ReminderCandidate{
		TierCritical: {},
		TierHigh:     {},
		TierStandard: {},
	}
	for _, c := range r.Reminders {
		out[c.Tier] = append(out[c.Tier], c)
	}
	return out
}
