package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/budgenudge/internal/app"
	"github.com/dvloznov/budgenudge/internal/config"
	"github.com/dvloznov/budgenudge/internal/logger"
)

var (
	flagUser    string
	flagJSON    bool
	flagTimeout time.Duration
	flagVerbose bool
)

var errUserRequired = errors.New("--user is required")

var rootCmd = &cobra.Command{
	Use:           "budgenudge",
	Short:         "BudgeNudge operator CLI",
	Long:          "Run processing, SMS, export and sync tasks for one user outside the scheduler.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "User ID (Supabase auth uid)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Minute, "Overall command timeout")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
}

// setup loads config, builds the App and returns a context carrying the
// logger. The caller must call the returned cleanup.
func setup() (context.Context, *app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	level := cfg.LogLevel
	if flagVerbose {
		level = zerolog.LevelDebugValue
	}
	log := logger.NewWithLevel(level)

	ctx, cancel := context.WithTimeout(context.Background(), flagTimeout)
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, a, func() {
		a.Close()
		cancel()
	}, nil
}

func requireUser() error {
	if flagUser == "" {
		return errUserRequired
	}
	return nil
}

// printResult writes v as indented JSON when --json is set, otherwise runs text.
func printResult(v interface{}, text func()) error {
	if !flagJSON {
		text()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
