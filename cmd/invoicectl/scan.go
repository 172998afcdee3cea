package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify overdue documents and payment reminders",
	Long: `Run one compliance pass over every stored invoice and print the
invoices with missing shipment documents and the reminder candidates by tier.

With --cached the last report cached in Redis is printed instead.`,
	Example: `  # Fresh scan
  invoicectl scan

  # Last cached report as JSON
  invoicectl scan --cached --json`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("cached", false, "Print the last cached report without scanning")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")
	cached, _ := cmd.Flags().GetBool("cached")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var report domain.Report
	if cached {
		r, ok, err := a.Scans.Latest(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no cached report, run a scan first")
		}
		report = r
	} else {
		if report, err = a.Scans.Scan(cmd.Context()); err != nil {
			return err
		}
	}

	log.Info().
		Int("overdue", len(report.Overdue)).
		Int("reminders", len(report.Reminders)).
		Bool("cached", cached).
		Msg("scan report ready")

	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), report)
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(out io.Writer, r domain.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Generated at %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintf(w, "OVERDUE DOCUMENTS (%d)\n", len(r.Overdue))
	fmt.Fprintln(w, "INVOICE\tDATE\tDAYS\tMISSING")
	for _, e := range r.Overdue {
		missing := make([]string, len(e.MissingKinds))
		for i, k := range e.MissingKinds {
			missing[i] = string(k)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.InvoiceNo, e.InvoiceDate, e.DaysElapsed, strings.Join(missing, ", "))
	}

	byTier := r.ByTier()
	for _, tier := range []domain.Tier{domain.TierCritical, domain.TierHigh, domain.TierStandard} {
		fmt.Fprintf(w, "\n%s REMINDERS (%d)\n", tier, len(byTier[tier]))
		fmt.Fprintln(w, "INVOICE\tBUYER\tDATE\tDAYS\tBALANCE DUE")
		for _, c := range byTier[tier] {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", c.InvoiceNo, c.BuyerName, c.InvoiceDate, c.DaysElapsed, c.BalanceDue.StringFixed(2))
		}
	}
	return w.Flush()
}
