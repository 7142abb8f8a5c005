package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var flagLimit int

var tagMerchantsCmd = &cobra.Command{
	Use:   "tag-merchants",
	Short: "Tag untagged transactions with the AI merchant tagger",
	RunE:  runTagMerchants,
}

func init() {
	tagMerchantsCmd.Flags().IntVar(&flagLimit, "limit", 500, "Maximum transactions to tag")
	rootCmd.AddCommand(tagMerchantsCmd)
}

func runTagMerchants(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	if a.Tagging == nil {
		return errors.New("AI tagging is disabled (set BUDGENUDGE_AI_TAGGING_ENABLED=true)")
	}

	run, err := a.Tagging.TagUntagged(ctx, flagUser, flagLimit)
	if err != nil {
		return err
	}
	status, err := a.Repo.GetTaggingStatus(ctx, flagUser)
	if err != nil {
		return err
	}
	return printResult(run, func() {
		fmt.Printf("Tagged %d transactions; %d%% of %d now tagged\n", run.TaggedCount, status.PercentTagged, status.TotalTransactions)
	})
}
