package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print payment totals across every invoice",
	RunE:  runSummary,
}

var ledgersCmd = &cobra.Command{
	Use:   "ledgers",
	Short: "List invoice ledgers, largest balance due first",
	RunE:  runLedgers,
}

func init() {
	rootCmd.AddCommand(summaryCmd, ledgersCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.Payments.Summary(cmd.Context())
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), sum)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Invoices:     %d (paid %d, partial %d, unpaid %d)\n", sum.TotalInvoices, sum.PaidCount, sum.PartialCount, sum.UnpaidCount)
	fmt.Fprintf(out, "Billed:       %s\n", sum.TotalInvoiceAmount.StringFixed(2))
	fmt.Fprintf(out, "Collected:    %s\n", sum.TotalPaid.StringFixed(2))
	fmt.Fprintf(out, "Outstanding:  %s\n", sum.TotalOutstanding.StringFixed(2))
	return nil
}

func runLedgers(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	invoices, err := a.Payments.ListLedgers(cmd.Context())
	if err != nil {
		return err
	}

	if wantJSON(cmd) {
		rows := make([]map[string]any, 0, len(invoices))
		for i := range invoices {
			l := invoices[i].Ledger()
			rows = append(rows, map[string]any{
				"invoice_no":     invoices[i].InvoiceNo,
				"buyer_name":     invoices[i].BuyerName(),
				"invoice_amount": l.InvoiceAmount,
				"total_paid":     l.TotalPaid,
				"balance_due":    l.BalanceDue,
				"payment_status": l.Status,
			})
		}
		return printJSON(cmd.OutOrStdout(), rows)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INVOICE\tBUYER\tAMOUNT\tPAID\tBALANCE\tSTATUS")
	for i := range invoices {
		l := invoices[i].Ledger()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			invoices[i].InvoiceNo,
			invoices[i].BuyerName(),
			l.InvoiceAmount.StringFixed(2),
			l.TotalPaid.StringFixed(2),
			l.BalanceDue.StringFixed(2),
			l.Status,
		)
	}
	return w.Flush()
}
