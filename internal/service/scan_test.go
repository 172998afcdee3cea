package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicetrack/internal/domain"
)

func TestScanReportsOverdueUntilDocumentsArrive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scan := NewScanService(f.repo, f.clock, nil, nil, nil, 0)
	f.draft(t, "INV-1", daysAgo(5), "1000")

	report, err := scan.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, report.Overdue, 1)
	assert.Equal(t, "INV-1", report.Overdue[0].InvoiceNo)
	assert.Equal(t, 5, report.Overdue[0].DaysElapsed)
	assert.ElementsMatch(t, []domain.DocumentKind{domain.DocLR, domain.DocPartyWeighment, domain.DocSiteWeighment}, report.Overdue[0].MissingKinds)

	for _, kind := range []string{"lr", "party_weighment", "site_weighment"} {
		_, err := f.invoices.AttachDocument(ctx, "INV-1", kind, kind+".pdf", []byte(kind))
		require.NoError(t, err)
	}

	report, err = scan.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Overdue)
}

func TestScanUsesOneInstantPerPass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scan := NewScanService(f.repo, f.clock, nil, nil, nil, 0)
	f.draft(t, "INV-9", daysAgo(9), "1000")
	f.draft(t, "INV-8", daysAgo(8), "1000")
	f.draft(t, "INV-2", daysAgo(2), "1000")

	report, err := scan.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, testNow, report.GeneratedAt)

	tiers := report.ByTier()
	require.Len(t, tiers[domain.TierCritical], 1)
	assert.Equal(t, "INV-9", tiers[domain.TierCritical][0].InvoiceNo)
	require.Len(t, tiers[domain.TierHigh], 1)
	assert.Equal(t, "INV-8", tiers[domain.TierHigh][0].InvoiceNo)
	assert.Empty(t, tiers[domain.TierStandard])

	f.clock.Advance(24 * time.Hour)
	report, err = scan.Scan(ctx)
	require.NoError(t, err)
	tiers = report.ByTier()
	assert.Len(t, tiers[domain.TierCritical], 2)
	assert.Len(t, tiers[domain.TierStandard], 1)
}

func TestScanSkipsPaidInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	scan := NewScanService(f.repo, f.clock, nil, nil, nil, 0)
	f.draft(t, "INV-1", daysAgo(12), "1000")
	_, _, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("1000"), PaymentDate: testNow, Mode: "cash"})
	require.NoError(t, err)

	report, err := scan.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Reminders)
}

func TestLatestWithoutRedis(t *testing.T) {
	scan := NewScanService(newMemRepo(), nil, nil, nil, nil, 0)
	_, ok, err := scan.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunStopsOnCancel(t *testing.T) {
	scan := NewScanService(newMemRepo(), nil, nil, nil, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scan.Run(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
