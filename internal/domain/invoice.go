package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	StatusNew       InvoiceStatus = "NEW"
	StatusPartial   InvoiceStatus = "PARTIAL"
	StatusCompleted InvoiceStatus = "COMPLETED"
)

// Field keys with engine meaning. Every other key in Invoice.Fields is opaque
// extracted or edited data.
const (
	FieldInvoiceDate   = "invoice_date"
	FieldLRDate        = "lr_date"
	FieldBuyerName     = "buyer_name"
	FieldLRWeight      = "lr_weight"
	FieldSiteWeight    = "site_weight"
	FieldInvoiceAmount = "invoice_amount"
)

// derivedFields can never be written directly; they follow the weights.
var derivedFields = map[string]bool{
	"weight_difference":      true,
	"weight_loss_percentage": true,
	"deduction_amount":       true,
	"final_bill_amount":      true,
}

func IsDerivedField(key string) bool {
	return derivedFields[key]
}

type Invoice struct {
	InvoiceNo string
	Status    InvoiceStatus

	Fields     map[string]string
	Documents  DocumentSet
	Confidence map[string]float32

	InvoiceAmount decimal.Decimal
	LRWeight      decimal.Decimal
	SiteWeight    decimal.Decimal

	// Variance is nil when no calculation is possible.
	Variance *VarianceResult

	Payments []PaymentEntry

	// Version counts stored writes. A save carrying an older version than the
	// stored row is rejected with ErrBusy. Unsaved shells have version 0.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInvoice returns an unsaved NEW invoice shell.
func NewInvoice(invoiceNo string) (*Invoice, error) {
	no, err := NormalizeInvoiceNo(invoiceNo)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		InvoiceNo:     no,
		Status:        StatusNew,
		Fields:        map[string]string{},
		Documents:     DocumentSet{},
		Confidence:    map[string]float32{},
		InvoiceAmount: decimal.Zero,
		LRWeight:      decimal.Zero,
		SiteWeight:    decimal.Zero,
	}, nil
}

func NormalizeInvoiceNo(invoiceNo string) (string, error) {
	no := strings.TrimSpace(invoiceNo)
	if no == "" {
		return "", FieldError("NewInvoice", ErrInvalidIdentifier, "invoice_no")
	}
	return no, nil
}

func (inv *Invoice) IsCompleted() bool {
	return inv.Status == StatusCompleted
}

// ensureEditable rejects writes on completed invoices.
func (inv *Invoice) ensureEditable(op string) error {
	if inv.IsCompleted() {
		return NewError(op, ErrImmutable, inv.InvoiceNo)
	}
	return nil
}

// MarkDraft moves a NEW or PARTIAL invoice to PARTIAL.
func (inv *Invoice) MarkDraft() error {
	if err := inv.ensureEditable("SaveDraft"); err != nil {
		return err
	}
	inv.Status = StatusPartial
	return nil
}

// MarkCompleted finalizes the invoice. Missing documents do not block it.
func (inv *Invoice) MarkCompleted() error {
	if err := inv.ensureEditable("Complete"); err != nil {
		return err
	}
	inv.Status = StatusCompleted
	return nil
}

// SetField stores one flat field. Weight and amount keys are parsed and go
// through SetWeights or SetInvoiceAmount so the variance follows them; derived
// keys are dropped.
func (inv *Invoice) SetField(key, value string) error {
	const op = "SetField"
	if err := inv.ensureEditable(op); err != nil {
		return err
	}
	switch {
	case IsDerivedField(key):
		return nil
	case key == FieldLRWeight || key == FieldSiteWeight:
		d, err := ParseQuantity(op, key, value)
		if err != nil {
			return err
		}
		if key == FieldLRWeight {
			return inv.SetWeights(d, inv.SiteWeight)
		}
		return inv.SetWeights(inv.LRWeight, d)
	case key == FieldInvoiceAmount:
		d, err := ParseQuantity(op, key, value)
		if err != nil {
			return err
		}
		return inv.SetInvoiceAmount(d)
	case key == FieldInvoiceDate || key == FieldLRDate:
		if norm, ok := NormalizeDate(value); ok {
			value = norm
		}
	}
	if inv.Fields == nil {
		inv.Fields = map[string]string{}
	}
	inv.Fields[key] = value
	return nil
}

// ApplyFields normalizes each key and writes it through SetField, in key order.
func (inv *Invoice) ApplyFields(fields map[string]string) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := inv.SetField(NormalizeFieldKey(k), strings.TrimSpace(fields[k])); err != nil {
			return err
		}
	}
	return nil
}

// ParseQuantity reads a non-negative decimal, ignoring thousands separators.
// Blank clears the value.
func ParseQuantity(op, field, value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		return decimal.Zero, FieldError(op, ErrInvalidAmount, field)
	}
	return d, nil
}

// SetWeights replaces both weight inputs and recomputes every derived field.
func (inv *Invoice) SetWeights(lrWeight, siteWeight decimal.Decimal) error {
	if err := inv.ensureEditable("SetWeights"); err != nil {
		return err
	}
	inv.LRWeight = lrWeight
	inv.SiteWeight = siteWeight
	inv.recomputeVariance()
	return nil
}

func (inv *Invoice) SetInvoiceAmount(amount decimal.Decimal) error {
	if err := inv.ensureEditable("SetInvoiceAmount"); err != nil {
		return err
	}
	if amount.IsNegative() {
		return FieldError("SetInvoiceAmount", ErrInvalidAmount, FieldInvoiceAmount)
	}
	inv.InvoiceAmount = amount
	inv.recomputeVariance()
	return nil
}

func (inv *Invoice) Attach(kind DocumentKind, a Attachment) error {
	if err := inv.ensureEditable("Attach"); err != nil {
		return err
	}
	if inv.Documents == nil {
		inv.Documents = DocumentSet{}
	}
	inv.Documents.Attach(kind, a)
	return nil
}

// AddPayment validates and appends a payment entry. The invoice amount is
// never touched.
func (inv *Invoice) AddPayment(p PaymentEntry) error {
	const op = "RecordPayment"
	if err := inv.ensureEditable(op); err != nil {
		return err
	}
	if !p.Amount.IsPositive() {
		return FieldError(op, ErrInvalidAmount, "amount")
	}
	if p.PaymentDate.IsZero() {
		return FieldError(op, ErrMissingField, "payment_date")
	}
	if p.Mode == "" {
		return FieldError(op, ErrMissingField, "payment_mode")
	}
	inv.Payments = append(inv.Payments, p)
	return nil
}

func (inv *Invoice) Ledger() Ledger {
	return NewLedger(inv.InvoiceAmount, inv.Payments)
}

func (inv *Invoice) BuyerName() string {
	return inv.Fields[FieldBuyerName]
}

// InvoiceDate parses the invoice_date field.
func (inv *Invoice) InvoiceDate() (time.Time, bool) {
	return ParseDate(inv.Fields[FieldInvoiceDate])
}

func (inv *Invoice) recomputeVariance() {
	res, ok := ComputeVariance(inv.LRWeight, inv.SiteWeight, inv.InvoiceAmount)
	if !ok {
		inv.Variance = nil
		return
	}
	inv.Variance = &res
}

// StoredVariance is the persisted copy of the derived fields.
type StoredVariance struct {
	Difference     decimal.NullDecimal
	LossPct        decimal.NullDecimal
	Deduction      decimal.NullDecimal
	FinalAmount    decimal.NullDecimal
	Classification string
}

// StoredVariance returns the derived fields in their persisted form.
func (inv *Invoice) StoredVariance() StoredVariance {
	v := inv.Variance
	if v == nil {
		return StoredVariance{}
	}
	return StoredVariance{
		Difference:     decimal.NewNullDecimal(v.Difference),
		LossPct:        decimal.NewNullDecimal(v.LossPct),
		Deduction:      decimal.NewNullDecimal(v.Deduction),
		FinalAmount:    decimal.NewNullDecimal(v.FinalAmount),
		Classification: string(v.Classification),
	}
}

// RestoreVariance recomputes the derived fields from the weight inputs and
// checks them against what was stored. A partially populated or stale stored
// set yields ErrInconsistentState; the invoice holds the recomputed values
// either way.
func (inv *Invoice) RestoreVariance(stored StoredVariance) error {
	inv.recomputeVariance()

	cols := []decimal.NullDecimal{stored.Difference, stored.LossPct, stored.Deduction, stored.FinalAmount}
	valid := 0
	for _, c := range cols {
		if c.Valid {
			valid++
		}
	}

	switch {
	case valid == 0 && inv.Variance == nil:
		return nil
	case valid == len(cols) && inv.Variance != nil:
		v := inv.Variance
		if stored.Difference.Decimal.Equal(v.Difference) &&
			stored.LossPct.Decimal.Equal(v.LossPct) &&
			stored.Deduction.Decimal.Equal(v.Deduction) &&
			stored.FinalAmount.Decimal.Equal(v.FinalAmount) &&
			VarianceClass(stored.Classification) == v.Classification {
			return nil
		}
		return NewError("RestoreVariance", ErrInconsistentState, "stored values differ from weights")
	case valid > 0 && valid < len(cols):
		return NewError("RestoreVariance", ErrInconsistentState, "derived fields partially populated")
	}
	return NewError("RestoreVariance", ErrInconsistentState, "derived fields do not match weight inputs")
}

// MergeExtracted applies extraction output without overwriting anything the
// operator already entered: text fields fill empty keys only, and weights or
// the invoice amount are taken only while still zero. It returns the keys that
// changed.
func (inv *Invoice) MergeExtracted(fields map[string]string, confidence map[string]float32) ([]string, error) {
	if err := inv.ensureEditable("Extract"); err != nil {
		return nil, err
	}
	if inv.Fields == nil {
		inv.Fields = map[string]string{}
	}
	if inv.Confidence == nil {
		inv.Confidence = map[string]float32{}
	}

	text := make(map[string]string, len(fields))
	numeric := map[string]decimal.Decimal{}
	for k, v := range fields {
		switch k {
		case FieldLRWeight, FieldSiteWeight, FieldInvoiceAmount:
			if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil && d.IsPositive() {
				numeric[k] = d
			}
		case FieldInvoiceDate, FieldLRDate:
			if norm, ok := NormalizeDate(v); ok {
				v = norm
			}
			text[k] = v
		default:
			text[k] = v
		}
	}

	changed := MergeFields(inv.Fields, text)

	if d, ok := numeric[FieldLRWeight]; ok && inv.LRWeight.IsZero() {
		inv.LRWeight = d
		changed = append(changed, FieldLRWeight)
	}
	if d, ok := numeric[FieldSiteWeight]; ok && inv.SiteWeight.IsZero() {
		inv.SiteWeight = d
		changed = append(changed, FieldSiteWeight)
	}
	if d, ok := numeric[FieldInvoiceAmount]; ok && inv.InvoiceAmount.IsZero() {
		inv.InvoiceAmount = d
		changed = append(changed, FieldInvoiceAmount)
	}
	inv.recomputeVariance()

	for _, k := range changed {
		if c, ok := confidence[k]; ok {
			inv.Confidence[k] = c
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Clone returns a deep copy, so callers can mutate without touching shared state.
func (inv *Invoice) Clone() *Invoice {
	out := *inv
	out.Fields = make(map[string]string, len(inv.Fields))
	for k, v := range inv.Fields {
		out.Fields[k] = v
	}
	out.Documents = make(DocumentSet, len(inv.Documents))
	for k, v := range inv.Documents {
		out.Documents[k] = v
	}
	out.Confidence = make(map[string]float32, len(inv.Confidence))
	for k, v := range inv.Confidence {
		out.Confidence[k] = v
	}
	if inv.Variance != nil {
		v := *inv.Variance
		out.Variance = &v
	}
	out.Payments = append([]PaymentEntry(nil), inv.Payments...)
	return &out
}
