// Package app builds the shared object graph used by the api, worker and
// cli binaries from a loaded config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/archive"
	"github.com/dvloznov/budgenudge/internal/config"
	"github.com/dvloznov/budgenudge/internal/export"
	warehouse "github.com/dvloznov/budgenudge/internal/infra/bigquery"
	"github.com/dvloznov/budgenudge/internal/infra/postgres"
	"github.com/dvloznov/budgenudge/internal/infra/redis"
	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/jobs/inmemory"
	"github.com/dvloznov/budgenudge/internal/metrics"
	"github.com/dvloznov/budgenudge/internal/notionsync"
	"github.com/dvloznov/budgenudge/internal/processing"
	"github.com/dvloznov/budgenudge/internal/scheduler"
	"github.com/dvloznov/budgenudge/internal/sms"
	"github.com/dvloznov/budgenudge/internal/tagging"
	"github.com/dvloznov/budgenudge/internal/worker"
)

// App holds every long-lived dependency. Optional integrations are nil
// when their config is missing.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Metrics *metrics.Metrics

	Pool       *pgxpool.Pool
	Repo       *postgres.Repository
	Deduper    sms.Deduper
	Dispatcher *sms.Dispatcher
	Inbound    *sms.InboundHandler
	Tagging    *tagging.Service
	Processor  *processing.Processor

	Warehouse *warehouse.Warehouse
	Exporter  *export.Exporter
	Archiver  archive.Archiver
	Notion    notionsync.NotionService

	closers []func() error
}

// New connects to Postgres and builds the services. The caller must Close
// the App.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a := &App{Config: cfg, Log: log, Metrics: metrics.New(), Archiver: archive.Nop{}}

	pool, err := postgres.Open(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	a.Repo = postgres.NewRepository(pool)

	if err := a.initDeduper(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	a.Dispatcher = sms.NewDispatcher(a.Repo, a.Deduper, sms.NewLogSender(log), log,
		sms.WithMetrics(a.Metrics),
		sms.WithDryRun(cfg.SMSDryRun),
		sms.WithDefaultTimezone(cfg.DefaultTimezone),
	)
	a.Inbound = sms.NewInboundHandler(a.Repo, log)

	var tagger processing.MerchantTagger
	if cfg.AITaggingEnabled {
		gemini, err := tagging.NewGeminiTagger(ctx, cfg.GeminiModel)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Tagging = tagging.NewService(a.Repo, gemini, log, a.Metrics, tagging.DefaultBatchSize)
		tagger = a.Tagging
	} else {
		log.Info().Msg("AI tagging disabled")
	}
	a.Processor = processing.NewProcessor(a.Repo, tagger, log, a.Metrics)

	if cfg.WarehouseEnabled() {
		wh, err := warehouse.NewWarehouse(ctx, cfg.GCPProject, cfg.BigQueryDataset)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Warehouse = wh
		a.closers = append(a.closers, wh.Close)
		a.Exporter = export.New(a.Repo, wh, log)
	} else {
		log.Info().Msg("No GCP project configured, warehouse export disabled")
	}

	if cfg.ArchiveBucket != "" {
		gcs, err := archive.NewGCSArchiver(ctx, cfg.ArchiveBucket)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Archiver = gcs
		a.closers = append(a.closers, gcs.Close)
	}

	if cfg.NotionEnabled() {
		a.Notion = notionsync.NewNotionClient(cfg.NotionToken)
	}
	return a, nil
}

func (a *App) initDeduper(ctx context.Context) error {
	switch a.Config.DedupeBackend {
	case config.DedupeRedis:
		client, err := redis.NewClient(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.Deduper = redis.NewDeduper(client, redis.DefaultTTL)
	case config.DedupeMemory:
		a.Log.Warn().Msg("In-memory SMS dedupe does not survive restarts")
		a.Deduper = sms.NewMemoryDeduper()
	default:
		a.Deduper = postgres.NewDeduper(a.Pool)
	}
	a.Log.Info().Str("backend", a.Config.DedupeBackend).Msg("SMS dedupe configured")
	return nil
}

// JobHandler returns the worker handler. Warehouse export jobs fail with
// worker.ErrExportDisabled when no warehouse is configured.
func (a *App) JobHandler() *worker.Handler {
	var exporter worker.Exporter
	if a.Exporter != nil {
		exporter = a.Exporter
	}
	return worker.NewHandler(a.Processor, a.Dispatcher, exporter, a.Log)
}

// NewQueue creates the in-memory job queue and its store.
func (a *App) NewQueue() (*inmemory.Queue, *inmemory.Store) {
	store := inmemory.NewStore()
	queue := inmemory.NewQueue(a.Config.QueueSize, store,
		inmemory.WithWorkers(a.Config.WorkerCount),
		inmemory.WithRetention(a.Config.JobRetention),
		inmemory.WithMetrics(a.Metrics),
		inmemory.WithLogger(a.Log),
	)
	return queue, store
}

// NewScheduler creates the hourly SMS scheduler publishing to p.
func (a *App) NewScheduler(p jobs.Publisher) *scheduler.Scheduler {
	return scheduler.New(a.Repo, p, a.Log, scheduler.WithDefaultTimezone(a.Config.DefaultTimezone))
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	return a.Pool.Ping(ctx)
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Error().Err(err).Msg("Error during close")
		}
	}
	a.closers = nil
}

// ShutdownContext returns a context bounded by the configured shutdown timeout.
func (a *App) ShutdownContext() (context.Context, context.CancelFunc) {
	timeout := a.Config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
