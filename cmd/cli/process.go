package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/processing"
)

var flagAllUsers bool

var processCmd = &cobra.Command{
	Use:   "process-user",
	Short: "Run the processing pipeline (rules, AI tags, bills, pacing)",
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&flagAllUsers, "all", false, "Process every user with transactions")
	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, _ []string) error {
	if !flagAllUsers {
		if err := requireUser(); err != nil {
			return err
		}
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	users := []string{flagUser}
	if flagAllUsers {
		if users, err = a.Repo.ListUserIDs(ctx); err != nil {
			return err
		}
	}

	var results []*processing.Result
	failed := 0
	for _, uid := range users {
		res, err := a.Processor.Process(ctx, uid, time.Now())
		if err != nil {
			a.Log.Error().Err(err).Str("user_id", uid).Msg("Processing failed")
			failed++
			continue
		}
		results = append(results, res)
	}

	err = printResult(results, func() {
		for _, r := range results {
			fmt.Printf("%s: %d transactions, %d rules applied, %d tagged, %d bills refreshed, %d detected, %d tracks selected\n",
				r.UserID, r.Transactions, r.RulesApplied, r.Tagged, r.MerchantsRefreshed, r.MerchantsDetected, r.TracksSelected)
		}
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d users failed", failed, len(users))
	}
	return nil
}
