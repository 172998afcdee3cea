package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/clock"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/repository"
)

var (
	ErrUnknownExport  = errors.New("unknown export kind")
	ErrExportNotFound = errors.New("export not found")
)

const (
	ExportLedger    = "ledger"
	ExportOverdue   = "overdue"
	ExportReminders = "reminders"
)

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute
	exportChunk  = 500
)

type ExportStatus struct {
	Key         string    `json:"key"`
	Type        string    `json:"type"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Progress    float64   `json:"progress"`
	Stage       string    `json:"stage"`
	FileURL     *string   `json:"file_url"`
	FileName    string    `json:"file_name,omitempty"`
	Error       string    `json:"error,omitempty"`
	Created     time.Time `json:"created_at"`
}

// ExportStore publishes a finished workbook and returns its download URL.
type ExportStore interface {
	SaveExport(ctx context.Context, fileName string, data []byte) (string, error)
}

type ExportService struct {
	repo  InvoiceRepository
	redis *clients.RedisClient
	store ExportStore
	ws    *clients.WebSocketClient
	clock clock.Clock
	log   zerolog.Logger

	mu     sync.Mutex
	memory map[string]ExportStatus
	wg     sync.WaitGroup
}

func NewExportService(repo InvoiceRepository, redis *clients.RedisClient, store ExportStore, ws *clients.WebSocketClient, clk clock.Clock) *ExportService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &ExportService{
		repo:   repo,
		redis:  redis,
		store:  store,
		ws:     ws,
		clock:  clk,
		log:    logger.WithComponent("exports"),
		memory: map[string]ExportStatus{},
	}
}

type column[T any] struct {
	Header string
	Value  func(T) any
}

func money(d decimal.Decimal) any {
	return d.InexactFloat64()
}

var ledgerColumns = []column[domain.Invoice]{
	{"Invoice No", func(inv domain.Invoice) any { return inv.InvoiceNo }},
	{"Buyer", func(inv domain.Invoice) any { return inv.BuyerName() }},
	{"Invoice Date", func(inv domain.Invoice) any { return inv.Fields["invoice_date"] }},
	{"Status", func(inv domain.Invoice) any { return string(inv.Status) }},
	{"Invoice Amount", func(inv domain.Invoice) any { return money(inv.Ledger().InvoiceAmount) }},
	{"Total Paid", func(inv domain.Invoice) any { return money(inv.Ledger().TotalPaid) }},
	{"Balance Due", func(inv domain.Invoice) any { return money(inv.Ledger().BalanceDue) }},
	{"Payment Status", func(inv domain.Invoice) any { return string(inv.Ledger().Status) }},
	{"Payments", func(inv domain.Invoice) any { return len(inv.Payments) }},
}

var overdueColumns = []column[domain.OverdueEntry]{
	{"Invoice No", func(e domain.OverdueEntry) any { return e.InvoiceNo }},
	{"Invoice Date", func(e domain.OverdueEntry) any { return e.InvoiceDate }},
	{"Days Elapsed", func(e domain.OverdueEntry) any { return e.DaysElapsed }},
	{"Missing Documents", func(e domain.OverdueEntry) any {
		names := make([]string, 0, len(e.MissingKinds))
		for _, k := range e.MissingKinds {
			names = append(names, string(k))
		}
		return strings.Join(names, ", ")
	}},
}

var reminderColumns = []column[domain.ReminderCandidate]{
	{"Tier", func(c domain.ReminderCandidate) any { return string(c.Tier) }},
	{"Invoice No", func(c domain.ReminderCandidate) any { return c.InvoiceNo }},
	{"Buyer", func(c domain.ReminderCandidate) any { return c.BuyerName }},
	{"Invoice Date", func(c domain.ReminderCandidate) any { return c.InvoiceDate }},
	{"Invoice Amount", func(c domain.ReminderCandidate) any { return money(c.InvoiceAmount) }},
	{"Total Paid", func(c domain.ReminderCandidate) any { return money(c.TotalPaid) }},
	{"Balance Due", func(c domain.ReminderCandidate) any { return money(c.BalanceDue) }},
	{"Days Elapsed", func(c domain.ReminderCandidate) any { return c.DaysElapsed }},
}

// StartExport records a pending export and builds the workbook in the
// background. Progress is published to the exports topic.
func (s *ExportService) StartExport(ctx context.Context, kind, requestedBy string) (ExportStatus, error) {
	switch kind {
	case ExportLedger, ExportOverdue, ExportReminders:
	default:
		return ExportStatus{}, fmt.Errorf("%w: %q", ErrUnknownExport, kind)
	}

	st := ExportStatus{
		Key:         "exports:" + uuid.NewString(),
		Type:        kind,
		RequestedBy: requestedBy,
		Stage:       "pending",
		Created:     s.clock.Now(),
	}
	if err := s.saveStatus(ctx, st); err != nil {
		return ExportStatus{}, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(context.Background(), st)
	}()
	return st, nil
}

// Wait blocks until every running export has finished.
func (s *ExportService) Wait() {
	s.wg.Wait()
}

func (s *ExportService) run(ctx context.Context, st ExportStatus) {
	log := s.log.With().Str("export_id", st.Key).Str("type", st.Type).Logger()

	f := excelize.NewFile()
	defer f.Close()

	progress := func(p float64, stage string) {
		st.Progress = p
		st.Stage = stage
		_ = s.saveStatus(ctx, st)
		_ = s.ws.NotifyExportProgress(ctx, st.Key, p, stage)
	}

	var err error
	switch st.Type {
	case ExportLedger:
		var invoices []domain.Invoice
		if invoices, err = s.repo.ListLedgers(ctx); err == nil {
			domain.SortByBalanceDue(invoices)
			err = writeSheet(f, "Ledger", ledgerColumns, invoices, progress)
		}
	case ExportOverdue, ExportReminders:
		var invoices []domain.Invoice
		if invoices, err = s.repo.List(ctx, repository.InvoiceFilter{}); err == nil {
			report := domain.BuildReport(invoices, s.clock.Now())
			if st.Type == ExportOverdue {
				err = writeSheet(f, "Overdue", overdueColumns, report.Overdue, progress)
			} else {
				err = writeReminderSheets(f, report, progress)
			}
		}
	}
	if err != nil {
		s.fail(ctx, st, err)
		return
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.fail(ctx, st, err)
		return
	}

	fileName := fmt.Sprintf("%s_%s.xlsx", st.Type, s.clock.Now().Format("20060102_150405"))
	progress(95, "uploading")
	if s.store == nil {
		s.fail(ctx, st, errors.New("no export store configured"))
		return
	}
	url, err := s.store.SaveExport(ctx, fileName, buf.Bytes())
	if err != nil {
		s.fail(ctx, st, err)
		return
	}

	st.FileURL = &url
	st.FileName = fileName
	progress(100, "ready")
	_ = s.ws.NotifyExportComplete(ctx, st.Key, url, fileName)
	log.Info().Str("file", fileName).Msg("export ready")
}

func (s *ExportService) fail(ctx context.Context, st ExportStatus, err error) {
	s.log.Error().Err(err).Str("export_id", st.Key).Str("type", st.Type).Msg("export failed")
	st.Stage = "failed"
	st.Error = err.Error()
	_ = s.saveStatus(ctx, st)
	_ = s.ws.NotifyExportFailed(ctx, st.Key, err.Error())
}

func writeSheet[T any](f *excelize.File, sheet string, cols []column[T], rows []T, progress func(float64, string)) error {
	if f.GetSheetName(0) == "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col.Header); err != nil {
			return err
		}
	}

	total := len(rows)
	for i, row := range rows {
		for c, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(c+1, i+2)
			if err := f.SetCellValue(sheet, cell, col.Value(row)); err != nil {
				return err
			}
		}
		if progress != nil && ((i+1)%exportChunk == 0 || i == total-1) {
			// 100 is reserved for when the file URL is ready.
			p := math.Min(math.Round(float64(i+1)/float64(total)*100), 90)
			progress(p, "generating")
		}
	}
	return nil
}

// writeReminderSheets puts each tier on its own sheet, most urgent first.
func writeReminderSheets(f *excelize.File, r domain.Report, progress func(float64, string)) error {
	byTier := r.ByTier()
	tiers := []domain.Tier{domain.TierCritical, domain.TierHigh, domain.TierStandard}
	for i, tier := range tiers {
		if err := writeSheet(f, string(tier), reminderColumns, byTier[tier], nil); err != nil {
			return err
		}
		progress(math.Round(float64(i+1)/float64(len(tiers))*90), "generating")
	}
	return nil
}

func (s *ExportService) saveStatus(ctx context.Context, st ExportStatus) error {
	if s.redis == nil {
		s.mu.Lock()
		s.memory[st.Key] = st
		s.mu.Unlock()
		return nil
	}

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.redis.SAdd(ctx, exportSetKey, st.Key)
}

// GetExport returns the status of one export.
func (s *ExportService) GetExport(ctx context.Context, id string) (ExportStatus, error) {
	if !strings.HasPrefix(id, "exports:") {
		id = "exports:" + id
	}
	if s.redis == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		st, ok := s.memory[id]
		if !ok {
			return ExportStatus{}, ErrExportNotFound
		}
		return st, nil
	}

	data, err := s.redis.Get(ctx, id)
	if clients.IsMissing(err) {
		return ExportStatus{}, ErrExportNotFound
	}
	if err != nil {
		return ExportStatus{}, err
	}
	var st ExportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return ExportStatus{}, fmt.Errorf("failed to parse export status: %w", err)
	}
	return st, nil
}

// ListExports returns known exports, newest first. Expired entries are pruned
// from the index.
func (s *ExportService) ListExports(ctx context.Context) ([]ExportStatus, error) {
	var out []ExportStatus
	if s.redis == nil {
		s.mu.Lock()
		for _, st := range s.memory {
			out = append(out, st)
		}
		s.mu.Unlock()
	} else {
		keys, err := s.redis.SMembers(ctx, exportSetKey)
		if err != nil {
			return nil, fmt.Errorf("failed to get export keys: %w", err)
		}
		for _, key := range keys {
			st, err := s.GetExport(ctx, key)
			if errors.Is(err, ErrExportNotFound) {
				_ = s.redis.SRem(ctx, exportSetKey, key)
				continue
			}
			if err != nil {
				continue
			}
			out = append(out, st)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.After(out[j].Created)
	})
	return out, nil
}

// PruneMemory drops in-memory statuses older than the export TTL.
func (s *ExportService) PruneMemory() int {
	cutoff := s.clock.Now().Add(-exportTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, st := range s.memory {
		if st.Created.Before(cutoff) {
			delete(s.memory, k)
			n++
		}
	}
	return n
}
