package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/export"
)

var (
	flagStart string
	flagEnd   string
)

var errWarehouseDisabled = errors.New("warehouse is not configured (set BUDGENUDGE_GCP_PROJECT)")

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export transactions and SMS sends to BigQuery",
	RunE:  runExport,
}

var spendReportCmd = &cobra.Command{
	Use:   "spend-report",
	Short: "Monthly spend per category from the warehouse",
	RunE:  runSpendReport,
}

func init() {
	for _, cmd := range []*cobra.Command{exportCmd, spendReportCmd} {
		cmd.Flags().StringVar(&flagStart, "start", "", "Start date YYYY-MM-DD (default 30 days ago)")
		cmd.Flags().StringVar(&flagEnd, "end", "", "End date YYYY-MM-DD (default today)")
		rootCmd.AddCommand(cmd)
	}
}

func runExport(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	start, end, err := export.Window(flagStart, flagEnd, time.Now())
	if err != nil {
		return err
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	if a.Exporter == nil {
		return errWarehouseDisabled
	}

	res, err := a.Exporter.Export(ctx, flagUser, start, end)
	if err != nil {
		return err
	}
	return printResult(res, func() {
		fmt.Printf("Exported %d transactions and %d SMS sends (%s to %s), skipped %d\n",
			res.Transactions, res.SMSSends, start.Format(time.DateOnly), end.Format(time.DateOnly), res.Skipped)
	})
}

func runSpendReport(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	start, end, err := export.Window(flagStart, flagEnd, time.Now())
	if err != nil {
		return err
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	if a.Warehouse == nil {
		return errWarehouseDisabled
	}

	rows, err := a.Warehouse.MonthlyCategorySpend(ctx, flagUser, start, end)
	if err != nil {
		return err
	}
	return printResult(rows, func() {
		for _, r := range rows {
			fmt.Printf("%s  %-30s %12s  %4d\n", r.Month.String()[:7], r.Category, r.Total.FloatString(2), r.Transactions)
		}
	})
}
