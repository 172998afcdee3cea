package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/service"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// decodeJSON reads an optional JSON body into dst. An empty body is allowed.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// invoiceRequest is the editable part of the invoice form.
type invoiceRequest struct {
	InvoiceNo     string            `json:"invoice_no"`
	Fields        map[string]string `json:"fields"`
	LRWeight      *decimal.Decimal  `json:"lr_weight"`
	SiteWeight    *decimal.Decimal  `json:"site_weight"`
	InvoiceAmount *decimal.Decimal  `json:"invoice_amount"`
	Complete      bool              `json:"complete"`
}

// apply writes the request onto inv. Weights go through the setter so the
// variance is recomputed once.
func (req *invoiceRequest) apply(inv *domain.Invoice) error {
	if err := inv.ApplyFields(req.Fields); err != nil {
		return err
	}
	if req.InvoiceAmount != nil {
		if err := inv.SetInvoiceAmount(*req.InvoiceAmount); err != nil {
			return err
		}
	}
	if req.LRWeight != nil || req.SiteWeight != nil {
		lr, site := inv.LRWeight, inv.SiteWeight
		if req.LRWeight != nil {
			lr = *req.LRWeight
		}
		if req.SiteWeight != nil {
			site = *req.SiteWeight
		}
		if lr.IsNegative() {
			return &ValidationError{Field: "lr_weight", Message: "lr_weight must not be negative"}
		}
		if site.IsNegative() {
			return &ValidationError{Field: "site_weight", Message: "site_weight must not be negative"}
		}
		return inv.SetWeights(lr, site)
	}
	return nil
}

type weightsRequest struct {
	LRWeight      *decimal.Decimal `json:"lr_weight"`
	SiteWeight    *decimal.Decimal `json:"site_weight"`
	InvoiceAmount *decimal.Decimal `json:"invoice_amount"`
}

func (req weightsRequest) toInput() service.WeightsInput {
	return service.WeightsInput{
		LRWeight:      req.LRWeight,
		SiteWeight:    req.SiteWeight,
		InvoiceAmount: req.InvoiceAmount,
	}
}

type paymentRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	PaymentDate string           `json:"payment_date"`
	PaymentMode string           `json:"payment_mode"`
	ReferenceNo string           `json:"reference_no"`
	Remarks     string           `json:"remarks"`
}

func ValidatePaymentRequest(r *http.Request, operator string) (service.PaymentInput, error) {
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		return service.PaymentInput{}, err
	}

	in := service.PaymentInput{
		Mode:        req.PaymentMode,
		ReferenceNo: req.ReferenceNo,
		Remarks:     req.Remarks,
		RecordedBy:  operator,
	}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}
	if strings.TrimSpace(req.PaymentDate) != "" {
		d, ok := domain.ParseDate(req.PaymentDate)
		if !ok {
			return service.PaymentInput{}, &ValidationError{Field: "payment_date", Message: "payment_date must be a date such as 2024-06-20"}
		}
		in.PaymentDate = d
	}
	return in, nil
}

type reminderRequest struct {
	Channels []string `json:"channels"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Message  *string  `json:"message"`
}

// ValidateReminderRequest parses the reminder form. A missing message falls
// back to the standard template for the candidate.
func ValidateReminderRequest(r *http.Request, operator string) (service.DispatchInput, bool, error) {
	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		return service.DispatchInput{}, false, err
	}

	in := service.DispatchInput{
		Contact: domain.ContactInfo{
			Email: strings.TrimSpace(req.Email),
			Phone: strings.TrimSpace(req.Phone),
		},
		RequestedBy: operator,
	}
	for _, raw := range req.Channels {
		ch, ok := domain.ParseChannel(raw)
		if !ok {
			return service.DispatchInput{}, false, &ValidationError{Field: "channels", Message: "unknown channel " + raw}
		}
		in.Channels = append(in.Channels, ch)
	}
	if req.Message != nil {
		in.Message = *req.Message
	}
	return in, req.Message == nil, nil
}

// parseDecimalParam reads an optional query parameter; blank means zero.
func parseDecimalParam(r *http.Request, name string) (decimal.Decimal, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(r.URL.Query().Get(name)), ",", "")
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: name, Message: name + " must be a number"}
	}
	return d, nil
}

func parseStatusParam(raw string) (*domain.InvoiceStatus, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	switch domain.InvoiceStatus(raw) {
	case "":
		return nil, nil
	case domain.StatusPartial, domain.StatusCompleted:
		s := domain.InvoiceStatus(raw)
		return &s, nil
	}
	return nil, &ValidationError{Field: "status", Message: "status must be PARTIAL or COMPLETED"}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
