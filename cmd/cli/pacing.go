package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/pacing"
)

var (
	flagKind   string
	flagDryRun bool
)

var autoSelectCmd = &cobra.Command{
	Use:   "auto-select",
	Short: "Pick the highest-spend merchants or categories to pace",
	RunE:  runAutoSelect,
}

func init() {
	autoSelectCmd.Flags().StringVar(&flagKind, "kind", string(domain.PacingMerchant), "merchant or category")
	autoSelectCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Show candidates without saving")
	rootCmd.AddCommand(autoSelectCmd)
}

func runAutoSelect(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	kind := domain.PacingKind(flagKind)
	if kind != domain.PacingMerchant && kind != domain.PacingCategory {
		return fmt.Errorf("--kind must be merchant or category, got %q", flagKind)
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	now := time.Now()
	opts := pacing.DefaultAutoSelectOptions(kind, now)
	txs, err := a.Repo.ListTransactionsSince(ctx, flagUser, now.AddDate(0, -opts.LookbackMonths, -1))
	if err != nil {
		return err
	}
	existing, err := a.Repo.ListPacingTracksByKind(ctx, flagUser, kind)
	if err != nil {
		return err
	}

	candidates := pacing.AutoSelect(txs, existing, opts)
	if !flagDryRun {
		for _, c := range candidates {
			track := c.ToTrack(flagUser, kind)
			if err := a.Repo.AddPacingTrack(ctx, &track); err != nil {
				return err
			}
		}
	}

	return printResult(candidates, func() {
		if len(candidates) == 0 {
			fmt.Println("Nothing to select.")
			return
		}
		for _, c := range candidates {
			fmt.Printf("%-30s %10s/mo avg  %3d transactions\n", c.Name, c.AverageMonthly.StringFixed(2), c.Transactions)
		}
		if flagDryRun {
			fmt.Println("(dry run, nothing saved)")
		}
	})
}
