package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budgenudge/internal/api"
	"github.com/dvloznov/budgenudge/internal/app"
	"github.com/dvloznov/budgenudge/internal/config"
	"github.com/dvloznov/budgenudge/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	// Initialize logger
	log := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	// Initialize job infrastructure
	jobQueue, jobStore := a.NewQueue()
	sched := a.NewScheduler(jobQueue)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Start job consumer and scheduler in background
	if err := jobQueue.Start(workerCtx, a.JobHandler().Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	go sched.Run(workerCtx)

	handler := api.NewRouter(api.Deps{
		Store:         a.Repo,
		Jobs:          jobStore,
		Publisher:     jobQueue,
		Sender:        a.Dispatcher,
		Inbound:       a.Inbound,
		Archiver:      a.Archiver,
		Metrics:       a.Metrics,
		Log:           log,
		JWTSecret:     cfg.JWTSecret,
		WebhookSecret: cfg.WebhookSecret,
		CORSOrigins:   cfg.CORSOrigins,
		Ping:          a.Ping,

		AITaggingEnabled: a.Tagging != nil,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Bool("sms_dry_run", a.Dispatcher.DryRun()).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := a.ShutdownContext()
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop scheduling, then drain in-flight jobs
	cancelWorker()
	if err := sched.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler did not stop in time")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
