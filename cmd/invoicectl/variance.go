package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"invoicetrack/internal/domain"
)

var varianceCmd = &cobra.Command{
	Use:     "variance",
	Short:   "Compute the weight variance and deduction for a shipment",
	Example: `  invoicectl variance --lr 1000 --site 990 --amount 50000`,
	RunE:    runVariance,
}

func init() {
	rootCmd.AddCommand(varianceCmd)

	varianceCmd.Flags().String("lr", "", "Weight on the lorry receipt")
	varianceCmd.Flags().String("site", "", "Weight measured at site")
	varianceCmd.Flags().String("amount", "0", "Invoice amount")
	_ = varianceCmd.MarkFlagRequired("lr")
	_ = varianceCmd.MarkFlagRequired("site")
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s must be a number: %w", name, err)
	}
	return d, nil
}

func runVariance(cmd *cobra.Command, args []string) error {
	lr, err := decimalFlag(cmd, "lr")
	if err != nil {
		return err
	}
	site, err := decimalFlag(cmd, "site")
	if err != nil {
		return err
	}
	amount, err := decimalFlag(cmd, "amount")
	if err != nil {
		return err
	}

	res, ok := domain.ComputeVariance(lr, site, amount)
	if !ok {
		return fmt.Errorf("both weights must be positive")
	}
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), res)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Weight difference:  %s\n", res.Difference.String())
	fmt.Fprintf(out, "Weight loss:        %s%%\n", res.LossPct.StringFixed(2))
	fmt.Fprintf(out, "Deduction:          %s\n", res.Deduction.StringFixed(2))
	fmt.Fprintf(out, "Final bill amount:  %s\n", res.FinalAmount.StringFixed(2))
	fmt.Fprintf(out, "Classification:     %s\n", res.Classification)
	return nil
}
