package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/recurring"
)

var (
	flagDays   int
	flagDetect bool
)

var predictBillsCmd = &cobra.Command{
	Use:   "predict-bills",
	Short: "List upcoming bills, or detect recurring merchants from history",
	RunE:  runPredictBills,
}

func init() {
	predictBillsCmd.Flags().IntVar(&flagDays, "days", 30, "Horizon in days")
	predictBillsCmd.Flags().BoolVar(&flagDetect, "detect", false, "Show recurring-merchant candidates instead of tagged bills")
	rootCmd.AddCommand(predictBillsCmd)
}

func runPredictBills(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	now := time.Now()

	if flagDetect {
		txs, err := a.Repo.ListTransactionsSince(ctx, flagUser, now.AddDate(0, 0, -400))
		if err != nil {
			return err
		}
		candidates := recurring.Detect(txs, now, recurring.DefaultDetectOptions())
		return printResult(candidates, func() {
			for _, c := range candidates {
				fmt.Printf("%-30s %-10s %10s  next %s  confidence %d%%\n",
					c.MerchantName, c.Frequency, c.ExpectedAmount.StringFixed(2), c.NextDate.Format(time.DateOnly), c.Confidence)
			}
		})
	}

	merchants, err := a.Repo.ListTaggedMerchants(ctx, flagUser)
	if err != nil {
		return err
	}
	for i := range merchants {
		if _, err := recurring.Refresh(&merchants[i], nil, now); err != nil {
			a.Log.Warn().Err(err).Str("merchant", merchants[i].MerchantName).Msg("Could not roll prediction forward")
		}
	}
	upcoming := recurring.Upcoming(merchants, now, flagDays)
	return printResult(upcoming, func() {
		if len(upcoming) == 0 {
			fmt.Printf("No bills due in the next %d days.\n", flagDays)
			return
		}
		for _, m := range upcoming {
			fmt.Printf("%s  %-30s %10s  (%s)\n",
				m.NextPredictedDate.Format(time.DateOnly), m.MerchantName, m.ExpectedAmount.StringFixed(2), m.PredictionFrequency)
		}
	})
}
