package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicetrack/internal/domain"
)

func TestObserveScanSetsGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := domain.Report{
		Overdue: []domain.OverdueEntry{{InvoiceNo: "A"}, {InvoiceNo: "B"}},
		Reminders: []domain.ReminderCandidate{
			{InvoiceNo: "A", Tier: domain.TierCritical},
			{InvoiceNo: "C", Tier: domain.TierCritical},
			{InvoiceNo: "D", Tier: domain.TierStandard},
		},
	}
	m.ObserveScan(120*time.Millisecond, r)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.overdue))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.candidates.WithLabelValues("CRITICAL")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.candidates.WithLabelValues("HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.candidates.WithLabelValues("STANDARD")))
}

func TestCountersAndNilReceiver(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveTransition(domain.StatusPartial, domain.StatusCompleted)
	m.IncPayments()
	m.IncPayments()
	m.IncReminder(domain.TierHigh, "queued")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("PARTIAL", "COMPLETED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.payments))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("HIGH", "queued")))

	var none *Metrics
	require.NotPanics(t, func() {
		none.IncPayments()
		none.ObserveScan(time.Second, domain.Report{})
	})
}
