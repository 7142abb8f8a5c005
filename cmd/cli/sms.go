package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/domain"
)

var (
	flagMessage  string
	flagTemplate string
	flagForce    bool
)

var sendSMSCmd = &cobra.Command{
	Use:   "send-sms",
	Short: "Send today's SMS messages to a user, or one manual message",
	Long: "Without --message the daily templates are built and sent, skipping any already sent today.\n" +
		"With --message one manual message is sent; --force bypasses the once-per-day check.",
	RunE: runSendSMS,
}

func init() {
	sendSMSCmd.Flags().StringVar(&flagMessage, "message", "", "Manual message body")
	sendSMSCmd.Flags().StringVar(&flagTemplate, "template", string(domain.TemplateManual), "Template recorded for a manual message")
	sendSMSCmd.Flags().BoolVar(&flagForce, "force", false, "Send even if already sent today")
	rootCmd.AddCommand(sendSMSCmd)
}

func runSendSMS(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx, a, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	if flagMessage != "" {
		entry, err := a.Dispatcher.SendManual(ctx, flagUser, domain.TemplateType(flagTemplate), flagMessage, flagForce)
		if err != nil {
			return err
		}
		return printResult(entry, func() {
			fmt.Printf("Sent %s message to %s (status %s)\n", entry.TemplateType, entry.PhoneNumber, entry.Status)
		})
	}

	res, err := a.Dispatcher.SendDaily(ctx, flagUser, time.Now())
	if err != nil {
		return err
	}
	return printResult(res, func() {
		fmt.Printf("Sent %d, skipped %d duplicate, %d empty, failed %d\n",
			res.Sent, res.SkippedDuplicate, res.SkippedEmpty, res.Failed)
		for _, m := range res.Messages {
			fmt.Printf("\n[%s]\n%s\n", m.TemplateType, m.Body)
		}
	})
}
