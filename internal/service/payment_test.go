package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicetrack/internal/domain"
)

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-1", daysAgo(1), "1000")

	for _, amount := range []string{"0", "-5", "-0.01"} {
		_, _, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec(amount), PaymentDate: testNow, Mode: "cash"})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}

	// amount is checked before the invoice is even looked up
	_, _, err := f.payments.RecordPayment(ctx, "MISSING", PaymentInput{Amount: dec("0"), PaymentDate: testNow, Mode: "cash"})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestRecordPaymentRequiresDateAndMode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-1", daysAgo(1), "1000")

	_, _, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("10"), Mode: "cash"})
	assert.ErrorIs(t, err, domain.ErrMissingField)

	_, _, err = f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("10"), PaymentDate: testNow})
	assert.ErrorIs(t, err, domain.ErrMissingField)

	_, _, err = f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("10"), PaymentDate: testNow, Mode: "barter"})
	assert.ErrorIs(t, err, domain.ErrMissingField)
}

func TestRecordPaymentPartialThenOverpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-1", daysAgo(1), "1000")

	_, _, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("300"), PaymentDate: testNow, Mode: "upi"})
	require.NoError(t, err)
	inv, entry, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{
		Amount:      dec("200"),
		PaymentDate: testNow.Add(5 * time.Hour),
		Mode:        "NEFT",
		ReferenceNo: " UTR123 ",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentBankTransfer, entry.Mode)
	assert.Equal(t, "UTR123", entry.ReferenceNo)
	assert.Equal(t, time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), entry.PaymentDate)

	ledger := inv.Ledger()
	assert.True(t, ledger.BalanceDue.Equal(dec("500")))
	assert.Equal(t, domain.PaymentStatusPartial, ledger.Status)
	assert.True(t, inv.InvoiceAmount.Equal(dec("1000")))

	inv, _, err = f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("600"), PaymentDate: testNow, Mode: "cash"})
	require.NoError(t, err)
	ledger = inv.Ledger()
	assert.True(t, ledger.BalanceDue.Equal(dec("-100")))
	assert.Equal(t, domain.PaymentStatusPaid, ledger.Status)
}

func TestConcurrentPaymentsAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-1", daysAgo(1), "1000")
	f.repo.getDelay = time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{Amount: dec("10"), PaymentDate: testNow, Mode: "cash"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	inv, err := f.invoices.Get(ctx, "INV-1")
	require.NoError(t, err)
	assert.Len(t, inv.Payments, 25)
	assert.True(t, inv.Ledger().BalanceDue.Equal(dec("750")))
}

func TestListLedgersAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-A", daysAgo(1), "1000")
	f.draft(t, "INV-B", daysAgo(1), "5000")
	f.draft(t, "INV-C", daysAgo(1), "200")

	_, _, err := f.payments.RecordPayment(ctx, "INV-B", PaymentInput{Amount: dec("1000"), PaymentDate: testNow, Mode: "cash"})
	require.NoError(t, err)
	_, _, err = f.payments.RecordPayment(ctx, "INV-C", PaymentInput{Amount: dec("200"), PaymentDate: testNow, Mode: "cash"})
	require.NoError(t, err)

	ledgers, err := f.payments.ListLedgers(ctx)
	require.NoError(t, err)
	require.Len(t, ledgers, 3)
	assert.Equal(t, "INV-B", ledgers[0].InvoiceNo)
	assert.Equal(t, "INV-A", ledgers[1].InvoiceNo)
	assert.Equal(t, "INV-C", ledgers[2].InvoiceNo)

	sum, err := f.payments.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalInvoices)
	assert.True(t, sum.TotalInvoiceAmount.Equal(dec("6200")))
	assert.True(t, sum.TotalPaid.Equal(dec("1200")))
	assert.True(t, sum.TotalOutstanding.Equal(dec("5000")))
	assert.Equal(t, 1, sum.PaidCount)
	assert.Equal(t, 1, sum.PartialCount)
	assert.Equal(t, 1, sum.UnpaidCount)
}

func TestRecordPaymentKeepsCallerCalendarDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-1", daysAgo(1), "1000")

	ist := time.FixedZone("IST", 5*3600+1800)
	_, entry, err := f.payments.RecordPayment(ctx, "INV-1", PaymentInput{
		Amount:      dec("100"),
		PaymentDate: time.Date(2024, 6, 18, 0, 0, 0, 0, ist),
		Mode:        "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 18, 0, 0, 0, 0, time.UTC), entry.PaymentDate)

	_, entry, err = f.payments.RecordPayment(ctx, "INV-1", PaymentInput{
		Amount:      dec("100"),
		PaymentDate: time.Date(2024, 6, 18, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600)),
		Mode:        "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 18, 0, 0, 0, 0, time.UTC), entry.PaymentDate)
}
