package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"invoicetrack/internal/clients"
	"invoicetrack/internal/clock"
	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
	"invoicetrack/internal/metrics"
	"invoicetrack/internal/repository"
)

const latestReportKey = "reports:latest"

// ScanService classifies every persisted invoice for document-overdue and
// payment-reminder follow-up.
type ScanService struct {
	repo     InvoiceRepository
	clock    clock.Clock
	redis    *clients.RedisClient
	ws       *clients.WebSocketClient
	metrics  *metrics.Metrics
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewScanService(repo InvoiceRepository, clk clock.Clock, redis *clients.RedisClient, ws *clients.WebSocketClient, m *metrics.Metrics, cacheTTL time.Duration) *ScanService {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ScanService{
		repo:     repo,
		clock:    clk,
		redis:    redis,
		ws:       ws,
		metrics:  m,
		cacheTTL: cacheTTL,
		log:      logger.WithComponent("scan"),
	}
}

// Scan reads a snapshot of all invoices and judges each one against a single
// instant captured at the start of the pass.
func (s *ScanService) Scan(ctx context.Context) (domain.Report, error) {
	started := time.Now()
	now := s.clock.Now()

	invoices, err := s.repo.List(ctx, repository.InvoiceFilter{})
	if err != nil {
		return domain.Report{}, fmt.Errorf("scan: list invoices: %w", err)
	}
	report := domain.BuildReport(invoices, now)

	s.metrics.ObserveScan(time.Since(started), report)
	s.cache(ctx, report)
	_ = s.ws.NotifyScanReport(ctx, report)

	s.log.Info().
		Int("invoices", len(invoices)).
		Int("overdue", len(report.Overdue)).
		Int("reminders", len(report.Reminders)).
		Dur("took", time.Since(started)).
		Msg("scan completed")
	return report, nil
}

func (s *ScanService) cache(ctx context.Context, r domain.Report) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		s.log.Warn().Err(err).Msg("encode scan report")
		return
	}
	if err := s.redis.Set(ctx, latestReportKey, string(data), s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("cache scan report")
	}
}

// Latest returns the last cached report, if any.
func (s *ScanService) Latest(ctx context.Context) (domain.Report, bool, error) {
	if s.redis == nil {
		return domain.Report{}, false, nil
	}
	raw, err := s.redis.Get(ctx, latestReportKey)
	if clients.IsMissing(err) {
		return domain.Report{}, false, nil
	}
	if err != nil {
		return domain.Report{}, false, err
	}
	var r domain.Report
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return domain.Report{}, false, err
	}
	return r, true, nil
}

// Run scans every interval until ctx is cancelled.
func (s *ScanService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Scan(ctx); err != nil {
				s.log.Error().Err(err).Msg("periodic scan failed")
			}
		}
	}
}
