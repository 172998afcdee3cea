package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMode string

const (
	PaymentCash         PaymentMode = "cash"
	PaymentBankTransfer PaymentMode = "bank_transfer"
	PaymentCheque       PaymentMode = "cheque"
	PaymentUPI          PaymentMode = "upi"
	PaymentOther        PaymentMode = "other"
)

// ParsePaymentMode accepts the canonical names plus the labels operators type
// in the payment form (NEFT/RTGS count as bank transfers).
func ParsePaymentMode(s string) (PaymentMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return PaymentCash, true
	case "bank_transfer", "bank-transfer", "bank transfer", "neft", "rtgs", "imps":
		return PaymentBankTransfer, true
	case "cheque", "check":
		return PaymentCheque, true
	case "upi":
		return PaymentUPI, true
	case "other":
		return PaymentOther, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "Unpaid"
	PaymentStatusPartial PaymentStatus = "Partial"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

type PaymentEntry struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Mode        PaymentMode     `json:"payment_mode"`
	ReferenceNo string          `json:"reference_no,omitempty"`
	Remarks     string          `json:"remarks,omitempty"`
	RecordedAt  time.Time       `json:"recorded_at"`
	RecordedBy  string          `json:"recorded_by"`
}
