package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/clock"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/metrics"
	"invoicetrack/internal/repository"
)

type PaymentInput struct {
	Amount      decimal.Decimal
	PaymentDate time.Time
	Mode        string
	ReferenceNo string
	Remarks     string
	RecordedBy  string
}

type PaymentService struct {
	writer
	ws *clients.WebSocketClient
}

func NewPaymentService(repo InvoiceRepository, locker Locker, clk clock.Clock, ws *clients.WebSocketClient, m *metrics.Metrics) *PaymentService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &PaymentService{
		writer: writer{
			repo:    repo,
			locker:  locker,
			clock:   clk,
			metrics: m,
			log:     logger.WithComponent("payment-service"),
		},
		ws: ws,
	}
}

// RecordPayment appends one payment entry. The invoice amount is never
// changed; overpayment shows up as a negative balance.
func (s *PaymentService) RecordPayment(ctx context.Context, invoiceNo string, in PaymentInput) (*domain.Invoice, domain.PaymentEntry, error) {
	const op = "RecordPayment"
	if !in.Amount.IsPositive() {
		return nil, domain.PaymentEntry{}, domain.FieldError(op, domain.ErrInvalidAmount, "amount")
	}
	if in.PaymentDate.IsZero() {
		return nil, domain.PaymentEntry{}, domain.FieldError(op, domain.ErrMissingField, "payment_date")
	}
	if strings.TrimSpace(in.Mode) == "" {
		return nil, domain.PaymentEntry{}, domain.FieldError(op, domain.ErrMissingField, "payment_mode")
	}
	mode, ok := domain.ParsePaymentMode(in.Mode)
	if !ok {
		return nil, domain.PaymentEntry{}, &domain.Error{Op: op, Kind: domain.ErrMissingField, Field: "payment_mode", Details: "unknown mode " + in.Mode}
	}

	entry := domain.PaymentEntry{
		ID:          uuid.NewString(),
		Amount:      in.Amount,
		PaymentDate: calendarDate(in.PaymentDate),
		Mode:        mode,
		ReferenceNo: strings.TrimSpace(in.ReferenceNo),
		Remarks:     strings.TrimSpace(in.Remarks),
		RecordedAt:  s.clock.Now(),
		RecordedBy:  in.RecordedBy,
	}

	inv, err := s.mutate(ctx, invoiceNo, op, func(inv *domain.Invoice) error {
		return inv.AddPayment(entry)
	})
	if err != nil {
		return nil, domain.PaymentEntry{}, err
	}

	s.metrics.IncPayments()
	ledger := inv.Ledger()
	s.log.Info().
		Str("invoice_no", inv.InvoiceNo).
		Str("amount", entry.Amount.String()).
		Str("mode", string(entry.Mode)).
		Str("balance_due", ledger.BalanceDue.String()).
		Str("payment_status", string(ledger.Status)).
		Msg("payment recorded")
	_ = s.ws.NotifyInvoiceEvent(ctx, "payment_recorded", inv)
	return inv, entry, nil
}

// ListLedgers returns every invoice with its ledger, highest balance due first.
func (s *PaymentService) ListLedgers(ctx context.Context) ([]domain.Invoice, error) {
	out, err := s.repo.ListLedgers(ctx)
	if err != nil {
		return nil, err
	}
	domain.SortByBalanceDue(out)
	return out, nil
}

func (s *PaymentService) Summary(ctx context.Context) (domain.LedgerSummary, error) {
	invoices, err := s.repo.List(ctx, repository.InvoiceFilter{})
	if err != nil {
		return domain.LedgerSummary{}, err
	}
	return domain.Summarize(invoices), nil
}

// calendarDate keeps the caller's calendar day as a UTC midnight.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
