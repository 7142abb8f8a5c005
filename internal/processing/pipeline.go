// Package processing runs the per-user transaction pipeline: merchant
// rules, AI tagging, recurring-bill maintenance and pacing auto-selection.
package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// Step is one stage of the pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is shared by all steps of one run.
type State struct {
	UserID       string
	Now          time.Time
	Transactions []*domain.Transaction
	Merchants    []domain.TaggedMerchant
	Tracks       []domain.PacingTrack
	Result       Result
}

// Result summarizes what a run changed.
type Result struct {
	UserID             string `json:"user_id"`
	Transactions       int    `json:"transactions"`
	RulesApplied       int    `json:"rules_applied"`
	Tagged             int    `json:"tagged"`
	MerchantsRefreshed int    `json:"merchants_refreshed"`
	MerchantsDetected  int    `json:"merchants_detected"`
	TracksSelected     int    `json:"tracks_selected"`
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
