package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/notionsync"
)

var syncNotionCmd = &cobra.Command{
	Use:   "sync-notion",
	Short: "Mirror the user's active bills into the Notion bills database",
	RunE:  runSyncNotion,
}

func init() {
	syncNotionCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Preview changes without writing to Notion")
	rootCmd.AddCommand(syncNotionCmd)
}

func runSyncNotion(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()
	if a.Notion == nil {
		return errors.New("notion is not configured (set BUDGENUDGE_NOTION_TOKEN and BUDGENUDGE_NOTION_BILLS_DB_ID)")
	}

	res, err := notionsync.SyncBills(ctx, a.Repo, a.Notion, a.Config.NotionBillsDBID, flagUser, flagDryRun)
	if err != nil {
		return err
	}
	return printResult(res, func() {
		fmt.Printf("Created %d, updated %d, archived %d, failed %d\n", res.Created, res.Updated, res.Archived, res.Failed)
	})
}
