package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"invoicetrack/internal/logger"
	"invoicetrack/pkg/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the invoice tables if they are missing",
	RunE:  runMigrate,
}

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <operator>",
	Short: "Issue an API token for an operator",
	Long: `Issue a bearer token for the REST API. The plain token is printed once;
only its hash is stored.`,
	Example: `  invoicectl issue-token alice --ttl 720h`,
	Args:    cobra.ExactArgs(1),
	RunE:    runIssueToken,
}

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "List reminders waiting for the messaging gateway",
	RunE:  runOutbox,
}

func init() {
	rootCmd.AddCommand(migrateCmd, issueTokenCmd, outboxCmd)

	issueTokenCmd.Flags().Duration("ttl", 0, "Token lifetime, 0 for no expiry")
	outboxCmd.Flags().Int64("limit", 50, "Maximum number of reminders to list")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("migrate")
	pg := appConfig.Postgres

	db, err := postgres.NewPostgresConnection(cmd.Context(), postgres.ConnectionInfo{
		Host:     pg.Host,
		Port:     pg.Port,
		Username: pg.User,
		DBName:   pg.DBName,
		SSLMode:  pg.SSLMode,
		Password: pg.Password,
	})
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	defer postgres.Close(db)

	if err := postgres.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	log.Info().Str("db", pg.DBName).Msg("schema up to date")
	return nil
}

func runIssueToken(cmd *cobra.Command, args []string) error {
	ttl, _ := cmd.Flags().GetDuration("ttl")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	token, err := a.Tokens.Issue(cmd.Context(), args[0], ttl)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		out := map[string]any{"operator": args[0], "token": token}
		if ttl > 0 {
			out["expires_at"] = time.Now().Add(ttl).UTC()
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runOutbox(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt64("limit")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	pending, err := a.Outbox.Pending(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), pending)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINVOICE\tTIER\tCHANNELS\tREQUESTED")
	for _, r := range pending {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n",
			r.ID, r.Candidate.InvoiceNo, r.Candidate.Tier, r.Channels, r.RequestedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
