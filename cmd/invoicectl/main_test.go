package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicetrack/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		_ = rootCmd.PersistentFlags().Set("json", "false")
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVarianceCommand(t *testing.T) {
	out, err := execute(t, "variance", "--lr", "1000", "--site", "990", "--amount", "50000")
	require.NoError(t, err)
	assert.Contains(t, out, "Deduction:          500.00")
	assert.Contains(t, out, "Final bill amount:  49500.00")
	assert.Contains(t, out, "EXCEEDS_THRESHOLD")
}

func TestVarianceCommandJSON(t *testing.T) {
	out, err := execute(t, "variance", "--lr", "1000", "--site", "1010", "--amount", "100", "--json")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "WEIGHT_GAIN", res["classification"])
	assert.Equal(t, "0", res["deduction_amount"])
}

func TestVarianceCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "variance", "--lr", "0", "--site", "990")
	assert.ErrorContains(t, err, "both weights must be positive")

	_, err = execute(t, "variance", "--lr", "heavy", "--site", "990")
	assert.ErrorContains(t, err, "--lr must be a number")
}

func TestPrintReport(t *testing.T) {
	r := domain.Report{
		GeneratedAt: time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC),
		Overdue: []domain.OverdueEntry{{
			InvoiceNo:    "INV-7",
			DaysElapsed:  12,
			MissingKinds: []domain.DocumentKind{domain.DocLR, domain.DocTollGate},
			InvoiceDate:  "2024-06-08",
		}},
		Reminders: []domain.ReminderCandidate{{
			InvoiceNo:   "INV-9",
			BuyerName:   "Acme Traders",
			InvoiceDate: "2024-04-01",
			BalanceDue:  decimal.NewFromInt(1200),
			DaysElapsed: 80,
			Tier:        domain.TierCritical,
		}},
	}

	var out bytes.Buffer
	require.NoError(t, printReport(&out, r))
	s := out.String()
	assert.Contains(t, s, "OVERDUE DOCUMENTS (1)")
	assert.Contains(t, s, "INV-7")
	assert.Contains(t, s, "CRITICAL REMINDERS (1)")
	assert.Contains(t, s, "1200.00")
	assert.Contains(t, s, "STANDARD REMINDERS (0)")
}
