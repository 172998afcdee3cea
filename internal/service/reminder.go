package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicetrack/internal/clock"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/metrics"
)

// ReminderTransport delivers reminder requests to the messaging gateway.
type ReminderTransport interface {
	Send(ctx context.Context, req domain.ReminderRequest) error
}

var errNoTransport = errors.New("no reminder transport configured")

const (
	ReminderSent   = "sent"
	ReminderQueued = "queued"
)

type DispatchResult struct {
	ID       string           `json:"id"`
	Outcome  string           `json:"outcome"`
	Tier     domain.Tier      `json:"tier"`
	Channels []domain.Channel `json:"channels"`
	Warning  string           `json:"warning,omitempty"`
}

// DispatchInput is what the operator chose in the reminder form.
type DispatchInput struct {
	Channels    []domain.Channel
	Contact     domain.ContactInfo
	Message     string
	RequestedBy string
}

type ReminderService struct {
	repo      InvoiceRepository
	transport ReminderTransport
	clock     clock.Clock
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewReminderService(repo InvoiceRepository, transport ReminderTransport, clk clock.Clock, m *metrics.Metrics) *ReminderService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &ReminderService{
		repo:      repo,
		transport: transport,
		clock:     clk,
		metrics:   m,
		log:       logger.WithComponent("reminders"),
	}
}

// Dispatch validates the request and hands it to the transport. Transport
// failures are logged and reported as queued; invoice and ledger state are
// never touched.
func (s *ReminderService) Dispatch(ctx context.Context, candidate domain.ReminderCandidate, in DispatchInput) (DispatchResult, error) {
	req := domain.ReminderRequest{
		ID:          uuid.NewString(),
		Candidate:   candidate,
		Channels:    in.Channels,
		Contact:     in.Contact,
		Message:     in.Message,
		RequestedAt: s.clock.Now(),
		RequestedBy: in.RequestedBy,
	}
	if err := req.Validate(); err != nil {
		return DispatchResult{}, err
	}

	res := DispatchResult{
		ID:       req.ID,
		Outcome:  ReminderSent,
		Tier:     candidate.Tier,
		Channels: req.Channels,
	}

	var err error
	if s.transport == nil {
		err = errNoTransport
	} else {
		err = s.transport.Send(ctx, req)
	}
	if err != nil {
		res.Outcome = ReminderQueued
		res.Warning = "delivery deferred"
		s.log.Warn().
			Err(err).
			Str("invoice_no", candidate.InvoiceNo).
			Str("tier", string(candidate.Tier)).
			Msg("reminder transport failed, reporting as queued")
	} else {
		s.log.Info().
			Str("invoice_no", candidate.InvoiceNo).
			Str("tier", string(candidate.Tier)).
			Int("channels", len(req.Channels)).
			Msg("reminder dispatched")
	}
	s.metrics.IncReminder(candidate.Tier, res.Outcome)
	return res, nil
}

// Candidate classifies one invoice against the current time.
func (s *ReminderService) Candidate(ctx context.Context, invoiceNo string) (domain.ReminderCandidate, error) {
	no, err := domain.NormalizeInvoiceNo(invoiceNo)
	if err != nil {
		return domain.ReminderCandidate{}, err
	}
	inv, err := s.repo.Get(ctx, no)
	if err != nil {
		return domain.ReminderCandidate{}, err
	}
	c, ok := domain.ClassifyReminder(inv, s.clock.Now())
	if !ok {
		return domain.ReminderCandidate{}, domain.NewError("SendReminder", domain.ErrNotWarranted, no)
	}
	return c, nil
}

// SendReminder classifies the invoice and dispatches when a tier applies.
func (s *ReminderService) SendReminder(ctx context.Context, invoiceNo string, in DispatchInput) (DispatchResult, error) {
	c, err := s.Candidate(ctx, invoiceNo)
	if err != nil {
		return DispatchResult{}, err
	}
	return s.Dispatch(ctx, c, in)
}
