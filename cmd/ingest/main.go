package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/budgenudge/internal/api/handlers"
	"github.com/dvloznov/budgenudge/internal/app"
	"github.com/dvloznov/budgenudge/internal/config"
	"github.com/dvloznov/budgenudge/internal/logger"
)

// ingest replays an archived Plaid webhook: it downloads the raw payload
// from Cloud Storage and runs the processing pipeline for the item's owner.
func main() {
	log := logger.New()

	gcsURI := flag.String("gcs-uri", "", "GCS URI of an archived Plaid webhook (e.g. gs://bucket/webhooks/plaid/...json)")
	flag.Parse()

	if *gcsURI == "" {
		log.Fatal().Msg("Error: --gcs-uri is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.ArchiveBucket == "" {
		log.Fatal().Msg("Error: archive_bucket must be configured to replay webhooks")
	}
	log = logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.Close()

	log.Info().Str("gcs_uri", *gcsURI).Msg("Replaying webhook")

	payload, err := a.Archiver.Fetch(ctx, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch payload")
	}
	hook, err := handlers.ParsePlaidWebhook(payload)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid payload")
	}
	if !hook.TriggersProcessing() {
		log.Warn().Str("type", hook.WebhookType).Str("code", hook.WebhookCode).Msg("Webhook does not trigger processing, nothing to replay")
		return
	}

	item, err := a.Repo.GetItemByPlaidID(ctx, hook.ItemID)
	if err != nil {
		log.Fatal().Err(err).Str("item_id", hook.ItemID).Msg("Failed to look up item")
	}

	res, err := a.Processor.Process(ctx, item.UserID, time.Now())
	if err != nil {
		log.Fatal().Err(err).Str("user_id", item.UserID).Msg("Processing failed")
	}

	fmt.Printf("Replay completed: %d transactions, %d tagged, %d merchants detected.\n",
		res.Transactions, res.Tagged, res.MerchantsDetected)
}
