package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// CreateTaggingRun starts a run for the user.
func (r *Repository) CreateTaggingRun(ctx context.Context, userID string) (*domain.TaggingRun, error) {
	run := &domain.TaggingRun{UserID: userID}
	err := r.db.QueryRow(ctx, `INSERT INTO tagging_runs (user_id) VALUES ($1)
		RETURNING id::text, started_at`, userID).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("CreateTaggingRun: %w", err)
	}
	return run, nil
}

// FinishTaggingRun stores the outcome of run.
func (r *Repository) FinishTaggingRun(ctx context.Context, run *domain.TaggingRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	_, err := r.db.Exec(ctx, `UPDATE tagging_runs
		SET finished_at = $2, tagged_count = $3, error = NULLIF($4, '')
		WHERE id = $1::uuid`, run.ID, run.FinishedAt, run.TaggedCount, run.Error)
	if err != nil {
		return fmt.Errorf("FinishTaggingRun: %w", err)
	}
	return nil
}

// LatestTaggingRun returns the most recent run, or domain.ErrNotFound.
func (r *Repository) LatestTaggingRun(ctx context.Context, userID string) (*domain.TaggingRun, error) {
	var run domain.TaggingRun
	err := r.db.QueryRow(ctx, `SELECT id::text, user_id::text, started_at, finished_at, tagged_count, COALESCE(error, '')
		FROM tagging_runs WHERE user_id = $1 ORDER BY started_at DESC LIMIT 1`, userID,
	).Scan(&run.ID, &run.UserID, &run.StartedAt, &run.FinishedAt, &run.TaggedCount, &run.Error)
	if err != nil {
		return nil, fmt.Errorf("LatestTaggingRun: %w", WrapError(err))
	}
	return &run, nil
}

// GetTaggingStatus combines transaction counts with the latest run.
func (r *Repository) GetTaggingStatus(ctx context.Context, userID string) (*domain.TaggingStatus, error) {
	total, tagged, err := r.CountTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetTaggingStatus: %w", err)
	}
	st := &domain.TaggingStatus{
		TotalTransactions:    total,
		TaggedTransactions:   tagged,
		UntaggedTransactions: total - tagged,
	}
	if total > 0 {
		st.PercentTagged = tagged * 100 / total
	}

	run, err := r.LatestTaggingRun(ctx, userID)
	switch {
	case err == nil:
		st.LastRun = run
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("GetTaggingStatus: %w", err)
	}
	return st, nil
}
