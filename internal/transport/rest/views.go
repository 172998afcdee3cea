package rest

import (
	"github.com/shopspring/decimal"

	"invoicetrack/internal/domain"
)

type documentView struct {
	Kind       domain.DocumentKind `json:"kind"`
	Attached   bool                `json:"attached"`
	Filename   string              `json:"filename,omitempty"`
	UploadedAt string              `json:"uploaded_at,omitempty"`
	Required   bool                `json:"required"`
}

type invoiceView struct {
	InvoiceNo       string                 `json:"invoice_no"`
	Status          domain.InvoiceStatus   `json:"status"`
	Fields          map[string]string      `json:"fields"`
	Confidence      map[string]float32     `json:"confidence,omitempty"`
	InvoiceAmount   decimal.Decimal        `json:"invoice_amount"`
	LRWeight        decimal.Decimal        `json:"lr_weight"`
	SiteWeight      decimal.Decimal        `json:"site_weight"`
	Variance        *domain.VarianceResult `json:"variance"`
	Documents       []documentView         `json:"documents"`
	Complete        bool                   `json:"documents_complete"`
	MissingRequired []domain.DocumentKind  `json:"missing_documents"`
	Ledger          domain.Ledger          `json:"ledger"`
	Payments        []domain.PaymentEntry  `json:"payments"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at"`
}

// invoiceSummaryView is one row of the management listing.
type invoiceSummaryView struct {
	InvoiceNo      string               `json:"invoice_no"`
	Status         domain.InvoiceStatus `json:"status"`
	BuyerName      string               `json:"buyer_name"`
	InvoiceDate    string               `json:"invoice_date"`
	Attached       int                  `json:"documents_attached"`
	Total          int                  `json:"documents_total"`
	Complete       bool                 `json:"documents_complete"`
	Classification domain.VarianceClass `json:"classification,omitempty"`
	BalanceDue     decimal.Decimal      `json:"balance_due"`
	PaymentStatus  domain.PaymentStatus `json:"payment_status"`
	UpdatedAt      string               `json:"updated_at"`
}

func isRequired(kind domain.DocumentKind) bool {
	for _, k := range domain.RequiredDocuments {
		if k == kind {
			return true
		}
	}
	return false
}

func newInvoiceView(inv *domain.Invoice) invoiceView {
	docs := make([]documentView, 0, len(domain.DocumentKinds))
	for _, kind := range domain.DocumentKinds {
		dv := documentView{Kind: kind, Required: isRequired(kind)}
		if a, ok := inv.Documents[kind]; ok {
			dv.Attached = true
			dv.Filename = a.Filename
			dv.UploadedAt = formatTime(a.UploadedAt)
		}
		docs = append(docs, dv)
	}

	fields := inv.Fields
	if fields == nil {
		fields = map[string]string{}
	}
	payments := inv.Payments
	if payments == nil {
		payments = []domain.PaymentEntry{}
	}

	return invoiceView{
		InvoiceNo:       inv.InvoiceNo,
		Status:          inv.Status,
		Fields:          fields,
		Confidence:      inv.Confidence,
		InvoiceAmount:   inv.InvoiceAmount,
		LRWeight:        inv.LRWeight,
		SiteWeight:      inv.SiteWeight,
		Variance:        inv.Variance,
		Documents:       docs,
		Complete:        inv.Documents.IsComplete(),
		MissingRequired: inv.Documents.MissingRequired(),
		Ledger:          inv.Ledger(),
		Payments:        payments,
		CreatedAt:       formatTime(inv.CreatedAt),
		UpdatedAt:       formatTime(inv.UpdatedAt),
	}
}

func newInvoiceSummaryView(inv *domain.Invoice) invoiceSummaryView {
	ledger := inv.Ledger()
	v := invoiceSummaryView{
		InvoiceNo:     inv.InvoiceNo,
		Status:        inv.Status,
		BuyerName:     inv.BuyerName(),
		InvoiceDate:   inv.Fields[domain.FieldInvoiceDate],
		Attached:      len(inv.Documents.Attached()),
		Total:         len(domain.DocumentKinds),
		Complete:      inv.Documents.IsComplete(),
		BalanceDue:    ledger.BalanceDue,
		PaymentStatus: ledger.Status,
		UpdatedAt:     formatTime(inv.UpdatedAt),
	}
	if inv.Variance != nil {
		v.Classification = inv.Variance.Classification
	}
	return v
}

type ledgerView struct {
	InvoiceNo   string               `json:"invoice_no"`
	BuyerName   string               `json:"buyer_name"`
	InvoiceDate string               `json:"invoice_date"`
	Status      domain.InvoiceStatus `json:"status"`
	domain.Ledger
	Payments []domain.PaymentEntry `json:"payments"`
}

func newLedgerView(inv *domain.Invoice) ledgerView {
	payments := inv.Payments
	if payments == nil {
		payments = []domain.PaymentEntry{}
	}
	return ledgerView{
		InvoiceNo:   inv.InvoiceNo,
		BuyerName:   inv.BuyerName(),
		InvoiceDate: inv.Fields[domain.FieldInvoiceDate],
		Status:      inv.Status,
		Ledger:      inv.Ledger(),
		Payments:    payments,
	}
}
