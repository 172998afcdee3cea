package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestStartExportRejectsUnknownKind(t *testing.T) {
	svc := NewExportService(newMemRepo(), nil, &memExportStore{}, nil, nil)
	_, err := svc.StartExport(context.Background(), "debts", "ops")
	assert.ErrorIs(t, err, ErrUnknownExport)
}

func TestLedgerExportWritesWorkbook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-A", daysAgo(1), "1000")
	f.draft(t, "INV-B", daysAgo(1), "5000")
	_, _, err := f.payments.RecordPayment(ctx, "INV-A", PaymentInput{Amount: dec("250"), PaymentDate: testNow, Mode: "cash"})
	require.NoError(t, err)

	store := &memExportStore{}
	svc := NewExportService(f.repo, nil, store, nil, f.clock)
	st, err := svc.StartExport(ctx, ExportLedger, "ops")
	require.NoError(t, err)
	assert.Equal(t, "pending", st.Stage)
	svc.Wait()

	got, err := svc.GetExport(ctx, st.Key)
	require.NoError(t, err)
	assert.Equal(t, "ready", got.Stage)
	assert.Equal(t, float64(100), got.Progress)
	require.NotNil(t, got.FileURL)
	assert.Equal(t, "http://files.test/"+got.FileName, *got.FileURL)

	wb, err := excelize.OpenReader(bytes.NewReader(store.files[got.FileName]))
	require.NoError(t, err)
	defer wb.Close()

	header, err := wb.GetCellValue("Ledger", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice No", header)
	first, err := wb.GetCellValue("Ledger", "A2")
	require.NoError(t, err)
	assert.Equal(t, "INV-B", first)
	balance, err := wb.GetCellValue("Ledger", "G3")
	require.NoError(t, err)
	assert.Equal(t, "750", balance)
}

func TestReminderExportHasSheetPerTier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.draft(t, "INV-9", daysAgo(9), "1000")
	f.draft(t, "INV-4", daysAgo(4), "1000")

	store := &memExportStore{}
	svc := NewExportService(f.repo, nil, store, nil, f.clock)
	st, err := svc.StartExport(ctx, ExportReminders, "")
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.GetExport(ctx, st.Key)
	require.NoError(t, err)
	require.Equal(t, "ready", got.Stage, got.Error)

	wb, err := excelize.OpenReader(bytes.NewReader(store.files[got.FileName]))
	require.NoError(t, err)
	defer wb.Close()
	assert.Equal(t, []string{"CRITICAL", "HIGH", "STANDARD"}, wb.GetSheetList())

	no, err := wb.GetCellValue("STANDARD", "B2")
	require.NoError(t, err)
	assert.Equal(t, "INV-4", no)
}

func TestExportWithoutStoreFails(t *testing.T) {
	ctx := context.Background()
	svc := NewExportService(newMemRepo(), nil, nil, nil, nil)
	st, err := svc.StartExport(ctx, ExportOverdue, "")
	require.NoError(t, err)
	svc.Wait()

	got, err := svc.GetExport(ctx, st.Key)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Stage)
	assert.NotEmpty(t, got.Error)
	assert.Nil(t, got.FileURL)
}

func TestListExportsNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	svc := NewExportService(f.repo, nil, &memExportStore{}, nil, f.clock)

	first, err := svc.StartExport(ctx, ExportOverdue, "")
	require.NoError(t, err)
	f.clock.Advance(1000)
	second, err := svc.StartExport(ctx, ExportLedger, "")
	require.NoError(t, err)
	svc.Wait()

	list, err := svc.ListExports(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Key, list[0].Key)
	assert.Equal(t, first.Key, list[1].Key)

	_, err = svc.GetExport(ctx, "missing")
	assert.ErrorIs(t, err, ErrExportNotFound)

	f.clock.Advance(exportTTL * 2)
	assert.Equal(t, 2, svc.PruneMemory())
}
