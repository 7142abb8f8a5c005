package main

import (
	"context"
	"flag"
	"time"

	"github.com/dvloznov/budgenudge/internal/config"
	warehouse "github.com/dvloznov/budgenudge/internal/infra/bigquery"
	"github.com/dvloznov/budgenudge/internal/infra/postgres"
	"github.com/dvloznov/budgenudge/internal/logger"
)

var (
	withPostgres = flag.Bool("postgres", true, "Apply the Postgres schema")
	withBigQuery = flag.Bool("bigquery", false, "Apply BigQuery warehouse migrations")
	appliedBy    = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
)

func main() {
	flag.Parse()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	if *withPostgres {
		if err := cfg.RequireDatabase(); err != nil {
			log.Fatal().Err(err).Msg("Postgres migration needs a database")
		}
		pool, err := postgres.Open(ctx, cfg.DatabaseURL, 1)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		if err := postgres.ApplySchema(ctx, pool); err != nil {
			pool.Close()
			log.Fatal().Err(err).Msg("Failed to apply Postgres schema")
		}
		pool.Close()
		log.Info().Msg("Postgres schema is up to date")
	}

	if *withBigQuery {
		if !cfg.WarehouseEnabled() {
			log.Fatal().Msg("BigQuery migration needs BUDGENUDGE_GCP_PROJECT")
		}
		wh, err := warehouse.NewWarehouse(ctx, cfg.GCPProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer wh.Close()

		log.Info().Str("project", cfg.GCPProject).Str("dataset", cfg.BigQueryDataset).Msg("Connected to BigQuery")
		applied, err := wh.Migrate(ctx, warehouse.MigrationFiles(), *appliedBy)
		if err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		if applied == 0 {
			log.Info().Msg("No new migrations to apply. Warehouse is up to date.")
		} else {
			log.Info().Int("applied", applied).Msg("Applied warehouse migrations")
		}
	}
}
