package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/metrics"
)

// Processor runs the standard pipeline for one user at a time.
type Processor struct {
	pipeline *Pipeline
	log      zerolog.Logger
	metrics  *metrics.Metrics
}

// NewUserPipeline creates the standard five-step pipeline. tagger may be nil.
func NewUserPipeline(store Store, tagger MerchantTagger, log zerolog.Logger) *Pipeline {
	return NewPipeline(
		&LoadTransactionsStep{Store: store},
		&ApplyRulesStep{Store: store},
		&TagMerchantsStep{Tagger: tagger, Log: log},
		&UpdateRecurringStep{Store: store},
		&AutoSelectPacingStep{Store: store},
	)
}

// NewProcessor wires the standard pipeline.
func NewProcessor(store Store, tagger MerchantTagger, log zerolog.Logger, m *metrics.Metrics) *Processor {
	return &Processor{pipeline: NewUserPipeline(store, tagger, log), log: log, metrics: m}
}

// Process runs the pipeline for userID as of now.
func (p *Processor) Process(ctx context.Context, userID string, now time.Time) (*Result, error) {
	start := time.Now()
	state := &State{UserID: userID, Now: now, Result: Result{UserID: userID}}

	err := p.pipeline.Execute(ctx, state)
	p.metrics.ObservePipeline(time.Since(start))
	if err != nil {
		return &state.Result, fmt.Errorf("Process: user %s: %w", userID, err)
	}

	p.log.Info().
		Str("user_id", userID).
		Int("transactions", state.Result.Transactions).
		Int("rules_applied", state.Result.RulesApplied).
		Int("tagged", state.Result.Tagged).
		Int("merchants_refreshed", state.Result.MerchantsRefreshed).
		Int("merchants_detected", state.Result.MerchantsDetected).
		Int("tracks_selected", state.Result.TracksSelected).
		Dur("elapsed", time.Since(start)).
		Msg("Processed user")
	return &state.Result, nil
}
