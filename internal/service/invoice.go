package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/clock"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/metrics"
	"invoicetrack/internal/repository"
)

type InvoiceRepository interface {
	Get(ctx context.Context, invoiceNo string) (*domain.Invoice, error)
	List(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error)
	Save(ctx context.Context, inv *domain.Invoice) error
	Delete(ctx context.Context, invoiceNo string) error
	ListLedgers(ctx context.Context) ([]domain.Invoice, error)
}

// DocumentStore keeps the uploaded document bytes. Local disk and S3 both
// implement it.
type DocumentStore interface {
	PutDocument(ctx context.Context, invoiceNo, kind, fileName string, data []byte) (string, error)
	OpenDocument(ctx context.Context, ref string) (io.ReadCloser, error)
	DeleteDocument(ctx context.Context, ref string) error
}

type Extractor interface {
	Extract(ctx context.Context, docs []clients.ExtractInput) (map[string]string, map[string]float32, error)
}

// writer runs read-modify-write cycles on one invoice under its lock.
type writer struct {
	repo    InvoiceRepository
	locker  Locker
	clock   clock.Clock
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func (w *writer) lock(ctx context.Context, invoiceNo string) (func(), error) {
	if w.locker == nil {
		return func() {}, nil
	}
	return w.locker.Lock(ctx, invoiceNo)
}

// mutate loads the invoice, applies fn to a copy and saves the copy. Nothing
// is written when fn fails.
func (w *writer) mutate(ctx context.Context, invoiceNo, op string, fn func(inv *domain.Invoice) error) (*domain.Invoice, error) {
	no, err := domain.NormalizeInvoiceNo(invoiceNo)
	if err != nil {
		return nil, err
	}
	unlock, err := w.lock(ctx, no)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := w.repo.Get(ctx, no)
	if err != nil {
		return nil, err
	}
	if current.IsCompleted() {
		return nil, domain.NewError(op, domain.ErrImmutable, no)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = w.clock.Now()
	if err := w.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, no, err)
	}
	if next.Status != current.Status {
		w.metrics.ObserveTransition(current.Status, next.Status)
	}
	return next, nil
}

type InvoiceService struct {
	writer
	docs      DocumentStore
	extractor Extractor
	ws        *clients.WebSocketClient
}

func NewInvoiceService(
	repo InvoiceRepository,
	docs DocumentStore,
	extractor Extractor,
	locker Locker,
	clk clock.Clock,
	ws *clients.WebSocketClient,
	m *metrics.Metrics,
) *InvoiceService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &InvoiceService{
		writer: writer{
			repo:    repo,
			locker:  locker,
			clock:   clk,
			metrics: m,
			log:     logger.WithComponent("invoice-service"),
		},
		docs:      docs,
		extractor: extractor,
		ws:        ws,
	}
}

// Create returns a NEW shell. Nothing is stored until SaveDraft or Complete.
func (s *InvoiceService) Create(invoiceNo string) (*domain.Invoice, error) {
	inv, err := domain.NewInvoice(invoiceNo)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	inv.CreatedAt, inv.UpdatedAt = now, now
	return inv, nil
}

// SaveDraft persists inv as PARTIAL. Document completeness is not checked.
func (s *InvoiceService) SaveDraft(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	return s.persist(ctx, inv, "SaveDraft", (*domain.Invoice).MarkDraft, "invoice_saved")
}

// Complete persists inv as COMPLETED. Missing documents stay visible through
// the overdue scan instead of blocking completion.
func (s *InvoiceService) Complete(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error) {
	return s.persist(ctx, inv, "Complete", (*domain.Invoice).MarkCompleted, "invoice_completed")
}

// EditDraft applies edit to the stored invoice under its lock and saves it as
// PARTIAL in the same write.
func (s *InvoiceService) EditDraft(ctx context.Context, invoiceNo string, edit func(*domain.Invoice) error) (*domain.Invoice, error) {
	return s.edit(ctx, invoiceNo, "SaveDraft", edit, (*domain.Invoice).MarkDraft, "invoice_saved")
}

// EditAndComplete is EditDraft for completion.
func (s *InvoiceService) EditAndComplete(ctx context.Context, invoiceNo string, edit func(*domain.Invoice) error) (*domain.Invoice, error) {
	return s.edit(ctx, invoiceNo, "Complete", edit, (*domain.Invoice).MarkCompleted, "invoice_completed")
}

func (s *InvoiceService) edit(ctx context.Context, invoiceNo, op string, edit, transition func(*domain.Invoice) error, event string) (*domain.Invoice, error) {
	inv, err := s.mutate(ctx, invoiceNo, op, func(inv *domain.Invoice) error {
		if edit != nil {
			if err := edit(inv); err != nil {
				return err
			}
		}
		return transition(inv)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("invoice_no", inv.InvoiceNo).Str("status", string(inv.Status)).Msg(event)
	_ = s.ws.NotifyInvoiceEvent(ctx, event, inv)
	return inv, nil
}

func (s *InvoiceService) persist(ctx context.Context, inv *domain.Invoice, op string, transition func(*domain.Invoice) error, event string) (*domain.Invoice, error) {
	if inv == nil {
		return nil, domain.FieldError(op, domain.ErrInvalidIdentifier, "invoice_no")
	}
	no, err := domain.NormalizeInvoiceNo(inv.InvoiceNo)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, no)
	if err != nil {
		return nil, err
	}
	defer unlock()

	stored, err := s.repo.Get(ctx, no)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		stored = nil
	case err != nil:
		return nil, err
	}

	next := inv.Clone()
	next.InvoiceNo = no
	from := next.Status
	switch {
	case stored == nil && next.Status != domain.StatusNew:
		return nil, domain.NewError(op, domain.ErrNotFound, no)
	case stored != nil && next.Status == domain.StatusNew:
		return nil, domain.NewError(op, domain.ErrDuplicate, no)
	case stored != nil && stored.IsCompleted():
		return nil, domain.NewError(op, domain.ErrImmutable, no)
	case stored != nil && stored.Version != next.Version:
		return nil, domain.NewError(op, domain.ErrBusy, "changed since it was loaded")
	}

	if err := transition(next); err != nil {
		return nil, err
	}
	if err := next.RestoreVariance(next.StoredVariance()); err != nil {
		s.log.Warn().Err(err).Str("invoice_no", no).Msg("derived fields recomputed before save")
	}

	now := s.clock.Now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now

	if err := s.repo.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, no, err)
	}
	if from != next.Status {
		s.metrics.ObserveTransition(from, next.Status)
	}

	saved, err := s.repo.Get(ctx, no)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("invoice_no", no).Str("status", string(saved.Status)).Msg(event)
	_ = s.ws.NotifyInvoiceEvent(ctx, event, saved)
	return saved, nil
}

// LoadForEdit returns a persisted invoice that may still be changed.
func (s *InvoiceService) LoadForEdit(ctx context.Context, invoiceNo string) (*domain.Invoice, error) {
	inv, err := s.Get(ctx, invoiceNo)
	if err != nil {
		return nil, err
	}
	if inv.IsCompleted() {
		return nil, domain.NewError("LoadForEdit", domain.ErrImmutable, inv.InvoiceNo)
	}
	return inv, nil
}

// Get is the read-only view and works for every status.
func (s *InvoiceService) Get(ctx context.Context, invoiceNo string) (*domain.Invoice, error) {
	no, err := domain.NormalizeInvoiceNo(invoiceNo)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, no)
}

func (s *InvoiceService) List(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	return s.repo.List(ctx, f)
}

// Delete removes the invoice in any status. Stored document files are
// removed afterwards on a best-effort basis.
func (s *InvoiceService) Delete(ctx context.Context, invoiceNo string) error {
	no, err := domain.NormalizeInvoiceNo(invoiceNo)
	if err != nil {
		return err
	}
	unlock, err := s.lock(ctx, no)
	if err != nil {
		return err
	}
	defer unlock()

	inv, err := s.repo.Get(ctx, no)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, no); err != nil {
		return err
	}

	if s.docs != nil {
		for kind, a := range inv.Documents {
			if err := s.docs.DeleteDocument(ctx, a.Ref); err != nil {
				s.log.Warn().Err(err).Str("invoice_no", no).Str("kind", string(kind)).Msg("remove stored document")
			}
		}
	}

	s.log.Info().Str("invoice_no", no).Str("status", string(inv.Status)).Msg("invoice deleted")
	_ = s.ws.NotifyInvoiceDeleted(ctx, no)
	return nil
}

// UpdateFields merges operator edits. Weight and amount keys go through the
// setters so the variance is recomputed; derived keys are ignored.
func (s *InvoiceService) UpdateFields(ctx context.Context, invoiceNo string, fields map[string]string) (*domain.Invoice, error) {
	inv, err := s.mutate(ctx, invoiceNo, "UpdateFields", func(inv *domain.Invoice) error {
		return inv.ApplyFields(fields)
	})
	if err != nil {
		return nil, err
	}
	_ = s.ws.NotifyInvoiceEvent(ctx, "invoice_updated", inv)
	return inv, nil
}

// WeightsInput carries the calculator inputs; nil leaves a value unchanged.
type WeightsInput struct {
	LRWeight      *decimal.Decimal
	SiteWeight    *decimal.Decimal
	InvoiceAmount *decimal.Decimal
}

// SetWeights replaces the weight pair and/or invoice amount and recomputes
// every derived field in the same write.
func (s *InvoiceService) SetWeights(ctx context.Context, invoiceNo string, in WeightsInput) (*domain.Invoice, error) {
	const op = "SetWeights"
	return s.mutate(ctx, invoiceNo, op, func(inv *domain.Invoice) error {
		if in.InvoiceAmount != nil {
			if err := inv.SetInvoiceAmount(*in.InvoiceAmount); err != nil {
				return err
			}
		}
		lr, site := inv.LRWeight, inv.SiteWeight
		if in.LRWeight != nil {
			lr = *in.LRWeight
		}
		if in.SiteWeight != nil {
			site = *in.SiteWeight
		}
		if lr.IsNegative() {
			return domain.FieldError(op, domain.ErrInvalidAmount, domain.FieldLRWeight)
		}
		if site.IsNegative() {
			return domain.FieldError(op, domain.ErrInvalidAmount, domain.FieldSiteWeight)
		}
		return inv.SetWeights(lr, site)
	})
}

// AttachDocument stores the file and records it under kind, replacing any
// earlier upload of the same kind.
func (s *InvoiceService) AttachDocument(ctx context.Context, invoiceNo, kind, fileName string, data []byte) (*domain.Invoice, error) {
	const op = "AttachDocument"
	k, err := domain.ParseDocumentKind(kind)
	if err != nil {
		return nil, err
	}
	if s.docs == nil {
		return nil, domain.Upstream(op, errors.New("document storage not configured"))
	}
	if len(data) == 0 {
		return nil, domain.FieldError(op, domain.ErrMissingField, "file")
	}

	var newRef, oldRef string
	inv, err := s.mutate(ctx, invoiceNo, op, func(inv *domain.Invoice) error {
		if prev, ok := inv.Documents[k]; ok {
			oldRef = prev.Ref
		}
		ref, err := s.docs.PutDocument(ctx, inv.InvoiceNo, string(k), fileName, data)
		if err != nil {
			return domain.Upstream(op, err)
		}
		newRef = ref
		return inv.Attach(k, domain.Attachment{
			Filename:   fileName,
			Ref:        ref,
			UploadedAt: s.clock.Now(),
		})
	})
	if err != nil {
		if newRef != "" {
			if derr := s.docs.DeleteDocument(ctx, newRef); derr != nil {
				s.log.Warn().Err(derr).Str("ref", newRef).Msg("remove orphaned upload")
			}
		}
		return nil, err
	}

	if oldRef != "" && oldRef != newRef {
		if err := s.docs.DeleteDocument(ctx, oldRef); err != nil {
			s.log.Warn().Err(err).Str("ref", oldRef).Msg("remove replaced document")
		}
	}
	s.log.Info().Str("invoice_no", inv.InvoiceNo).Str("kind", string(k)).Str("file", fileName).Msg("document attached")
	_ = s.ws.NotifyInvoiceEvent(ctx, "document_attached", inv)
	return inv, nil
}

// OpenDocument streams a stored document. The caller closes the reader.
func (s *InvoiceService) OpenDocument(ctx context.Context, invoiceNo, kind string) (io.ReadCloser, domain.Attachment, error) {
	const op = "OpenDocument"
	k, err := domain.ParseDocumentKind(kind)
	if err != nil {
		return nil, domain.Attachment{}, err
	}
	inv, err := s.Get(ctx, invoiceNo)
	if err != nil {
		return nil, domain.Attachment{}, err
	}
	a, ok := inv.Documents[k]
	if !ok {
		return nil, domain.Attachment{}, &domain.Error{Op: op, Kind: domain.ErrNotFound, Field: string(k), Details: inv.InvoiceNo}
	}
	if s.docs == nil {
		return nil, domain.Attachment{}, domain.Upstream(op, errors.New("document storage not configured"))
	}
	rc, err := s.docs.OpenDocument(ctx, a.Ref)
	if errors.Is(err, clients.ErrObjectNotFound) {
		return nil, domain.Attachment{}, &domain.Error{Op: op, Kind: domain.ErrNotFound, Field: string(k), Details: "stored file missing"}
	}
	if err != nil {
		return nil, domain.Attachment{}, domain.Upstream(op, err)
	}
	return rc, a, nil
}

// Extract runs the extraction service over the attached documents and fills
// fields the operator has not entered yet. On failure the invoice is left as
// it was.
func (s *InvoiceService) Extract(ctx context.Context, invoiceNo string) (*domain.Invoice, []string, error) {
	const op = "Extract"
	if s.extractor == nil {
		return nil, nil, domain.Upstream(op, clients.ErrExtractionDisabled)
	}

	var changed []string
	inv, err := s.mutate(ctx, invoiceNo, op, func(inv *domain.Invoice) error {
		inputs, err := s.readDocuments(ctx, inv)
		if err != nil {
			return err
		}
		if len(inputs) == 0 {
			return domain.FieldError(op, domain.ErrMissingField, "documents")
		}

		fields, confidence, err := s.extractor.Extract(ctx, inputs)
		if err != nil {
			s.metrics.IncExtraction("failed")
			return domain.Upstream(op, err)
		}
		changed, err = inv.MergeExtracted(fields, confidence)
		return err
	})
	if err != nil {
		s.log.Warn().Err(err).Str("invoice_no", invoiceNo).Msg("extraction failed")
		return nil, nil, err
	}

	s.metrics.IncExtraction("ok")
	s.log.Info().Str("invoice_no", inv.InvoiceNo).Strs("fields", changed).Msg("extraction merged")
	_ = s.ws.NotifyInvoiceEvent(ctx, "invoice_extracted", inv)
	return inv, changed, nil
}

func (s *InvoiceService) readDocuments(ctx context.Context, inv *domain.Invoice) ([]clients.ExtractInput, error) {
	if s.docs == nil {
		return nil, domain.Upstream("Extract", errors.New("document storage not configured"))
	}
	var out []clients.ExtractInput
	for _, kind := range inv.Documents.Attached() {
		a := inv.Documents[kind]
		rc, err := s.docs.OpenDocument(ctx, a.Ref)
		if err != nil {
			return nil, domain.Upstream("Extract", fmt.Errorf("open %s: %w", kind, err))
		}
		data, err := io.ReadAll(io.LimitReader(rc, clients.MaxDocumentSizeBytes+1))
		rc.Close()
		if err != nil {
			return nil, domain.Upstream("Extract", fmt.Errorf("read %s: %w", kind, err))
		}
		out = append(out, clients.ExtractInput{Kind: kind, Filename: a.Filename, Data: data})
	}
	return out, nil
}
