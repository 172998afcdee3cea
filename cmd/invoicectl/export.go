package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"invoicetrack/internal/logger"
	"invoicetrack/internal/service"
)

var exportCmd = &cobra.Command{
	Use:   "export <ledger|overdue|reminders>",
	Short: "Build a spreadsheet export and print its download link",
	Example: `  invoicectl export ledger
  invoicectl export reminders --json`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{service.ExportLedger, service.ExportOverdue, service.ExportReminders},
	RunE:      runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("requested-by", "invoicectl", "Operator recorded on the export")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")
	requestedBy, _ := cmd.Flags().GetString("requested-by")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Exports.StartExport(cmd.Context(), args[0], requestedBy)
	if err != nil {
		return err
	}
	a.Exports.Wait()

	st, err = a.Exports.GetExport(cmd.Context(), st.Key)
	if err != nil {
		return err
	}
	if st.Error != "" {
		return fmt.Errorf("export %s failed: %s", st.Key, st.Error)
	}

	log.Info().Str("export_id", st.Key).Str("file", st.FileName).Msg("export ready")
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), st)
	}
	if st.FileURL != nil {
		fmt.Fprintln(cmd.OutOrStdout(), *st.FileURL)
	}
	return nil
}
