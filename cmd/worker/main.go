package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/app"
	"github.com/dvloznov/budgenudge/internal/config"
	"github.com/dvloznov/budgenudge/internal/logger"
)

// The worker runs the SMS scheduler and the job queue without the public
// API. Only /health and /metrics are served.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewWithFormat(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer a.Close()

	jobQueue, _ := a.NewQueue()
	sched := a.NewScheduler(jobQueue)

	log.Info().Int("workers", cfg.WorkerCount).Msg("Starting worker service")

	if err := jobQueue.Start(ctx, a.JobHandler().Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}
	go sched.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	server := &http.Server{Addr: cfg.Addr, Handler: mux, ReadTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := a.ShutdownContext()
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Metrics server forced to shutdown")
	}
	if err := sched.Wait(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Scheduler did not stop in time")
	}

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
