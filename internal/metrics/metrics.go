package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"invoicetrack/internal/domain"
)

const namespace = "invoicetrack"

// Metrics holds the engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	transitions  *prometheus.CounterVec
	payments     prometheus.Counter
	reminders    *prometheus.CounterVec
	extractions  *prometheus.CounterVec
	scanDuration prometheus.Histogram
	overdue      prometheus.Gauge
	candidates   *prometheus.GaugeVec
	lockWait     prometheus.Histogram
}

var (
	defaultOnce sync.Once
	defaultSet  *Metrics
)

// Default returns the process-wide metrics registered on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultSet = New(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_transitions_total",
			Help:      "Invoice status transitions.",
		}, []string{"from", "to"}),
		payments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Payment entries recorded against invoices.",
		}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Reminder dispatch attempts by tier and outcome.",
		}, []string{"tier", "outcome"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Document extraction calls by outcome.",
		}, []string{"outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Duration of one overdue/reminder classification pass.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		overdue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_overdue_invoices",
			Help:      "Document-overdue invoices found by the last scan.",
		}),
		candidates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_reminder_candidates",
			Help:      "Reminder candidates found by the last scan, by tier.",
		}, []string{"tier"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invoice_lock_wait_seconds",
			Help:      "Time spent waiting for the per-invoice write lock.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
	}

	registerer.MustRegister(
		m.transitions,
		m.payments,
		m.reminders,
		m.extractions,
		m.scanDuration,
		m.overdue,
		m.candidates,
		m.lockWait,
	)
	return m
}

func (m *Metrics) ObserveTransition(from, to domain.InvoiceStatus) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) IncPayments() {
	if m == nil {
		return
	}
	m.payments.Inc()
}

func (m *Metrics) IncReminder(tier domain.Tier, outcome string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(string(tier), outcome).Inc()
}

func (m *Metrics) IncExtraction(outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// ObserveScan records the duration and result sizes of one scan.
func (m *Metrics) ObserveScan(d time.Duration, r domain.Report) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(d.Seconds())
	m.overdue.Set(float64(len(r.Overdue)))
	for tier, list := range r.ByTier() {
		m.candidates.WithLabelValues(string(tier)).Set(float64(len(list)))
	}
}
