package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scanNow = time.Date(2024, 6, 20, 15, 30, 0, 0, time.UTC)

func invoiceDaysAgo(t *testing.T, no string, days int) *Invoice {
	t.Helper()
	inv, err := NewInvoice(no)
	require.NoError(t, err)
	date := scanNow.AddDate(0, 0, -days).Format(DateLayout)
	require.NoError(t, inv.SetField(FieldInvoiceDate, date))
	require.NoError(t, inv.SetInvoiceAmount(dec("1000")))
	return inv
}

func TestDaysElapsedFloors(t *testing.T) {
	date := time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, DaysElapsed(date, scanNow))
	assert.Equal(t, 0, DaysElapsed(date, date.Add(23*time.Hour)))
	assert.Equal(t, -1, DaysElapsed(date, date.Add(-time.Hour)))
}

func TestTierFor(t *testing.T) {
	cases := map[int]Tier{
		2:  TierNone,
		3:  TierStandard,
		5:  TierStandard,
		6:  TierHigh,
		8:  TierHigh,
		9:  TierCritical,
		40: TierCritical,
	}
	for days, want := range cases {
		assert.Equal(t, want, TierFor(days), "days=%d", days)
	}
}

func TestClassifyReminder(t *testing.T) {
	t.Run("critical at nine days", func(t *testing.T) {
		c, ok := ClassifyReminder(invoiceDaysAgo(t, "A", 9), scanNow)
		require.True(t, ok)
		assert.Equal(t, TierCritical, c.Tier)
		assert.Equal(t, 9, c.DaysElapsed)
	})

	t.Run("high at eight days", func(t *testing.T) {
		c, ok := ClassifyReminder(invoiceDaysAgo(t, "B", 8), scanNow)
		require.True(t, ok)
		assert.Equal(t, TierHigh, c.Tier)
	})

	t.Run("none at two days", func(t *testing.T) {
		_, ok := ClassifyReminder(invoiceDaysAgo(t, "C", 2), scanNow)
		assert.False(t, ok)
	})

	t.Run("paid invoices are skipped", func(t *testing.T) {
		inv := invoiceDaysAgo(t, "D", 12)
		require.NoError(t, inv.AddPayment(PaymentEntry{Amount: dec("1000"), PaymentDate: scanNow, Mode: PaymentCash}))
		_, ok := ClassifyReminder(inv, scanNow)
		assert.False(t, ok)
	})

	t.Run("partially paid carries ledger", func(t *testing.T) {
		inv := invoiceDaysAgo(t, "E", 6)
		inv.Fields[FieldBuyerName] = "Acme Steel"
		require.NoError(t, inv.AddPayment(PaymentEntry{Amount: dec("400"), PaymentDate: scanNow, Mode: PaymentCash}))
		c, ok := ClassifyReminder(inv, scanNow)
		require.True(t, ok)
		assert.Equal(t, "Acme Steel", c.BuyerName)
		assert.True(t, c.BalanceDue.Equal(dec("600")))
		assert.True(t, c.TotalPaid.Equal(dec("400")))
	})

	t.Run("missing date is skipped", func(t *testing.T) {
		inv, err := NewInvoice("F")
		require.NoError(t, err)
		_, ok := ClassifyReminder(inv, scanNow)
		assert.False(t, ok)
	})
}

func TestClassifyOverdue(t *testing.T) {
	inv := invoiceDaysAgo(t, "INV-1", 5)

	entry, ok := ClassifyOverdue(inv, scanNow)
	require.True(t, ok)
	assert.Equal(t, 5, entry.DaysElapsed)
	assert.Equal(t, []DocumentKind{DocLR, DocPartyWeighment, DocSiteWeighment}, entry.MissingKinds)

	for _, k := range []DocumentKind{DocLR, DocPartyWeighment, DocSiteWeighment} {
		require.NoError(t, inv.Attach(k, Attachment{Filename: string(k) + ".pdf"}))
	}
	_, ok = ClassifyOverdue(inv, scanNow)
	assert.False(t, ok)
	assert.False(t, inv.Documents.IsComplete(), "invoice document itself is still missing")
}

func TestClassifyOverdueGracePeriod(t *testing.T) {
	_, ok := ClassifyOverdue(invoiceDaysAgo(t, "INV-2", 2), scanNow)
	assert.False(t, ok)

	_, ok = ClassifyOverdue(invoiceDaysAgo(t, "INV-3", 3), scanNow)
	assert.True(t, ok)
}

func TestBuildReportGroupsByTier(t *testing.T) {
	invoices := []Invoice{
		*invoiceDaysAgo(t, "A", 10),
		*invoiceDaysAgo(t, "B", 7),
		*invoiceDaysAgo(t, "C", 4),
		*invoiceDaysAgo(t, "D", 1),
	}
	r := BuildReport(invoices, scanNow)
	assert.Equal(t, scanNow, r.GeneratedAt)
	assert.Len(t, r.Overdue, 3)
	assert.Len(t, r.Reminders, 3)

	byTier := r.ByTier()
	assert.Len(t, byTier[TierCritical], 1)
	assert.Len(t, byTier[TierHigh], 1)
	assert.Len(t, byTier[TierStandard], 1)
}
