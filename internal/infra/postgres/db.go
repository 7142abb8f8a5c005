// Package postgres is the system-of-record repository backed by the
// Supabase Postgres database, accessed through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dvloznov/budgenudge/internal/domain"
)

const (
	// DuplicateKeyErrorCode is the SQLSTATE of a unique violation.
	DuplicateKeyErrorCode = "23505"

	// BatchSize is the number of rows written per round trip.
	BatchSize = 100

	defaultBatchPause = 50 * time.Millisecond
)

// DB is the subset of *pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Open connects a pool and verifies it with a ping.
func Open(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("Open: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("Open: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}
	return pool, nil
}

// Repository implements the storage ports of the API, the SMS dispatcher,
// the tagging service and the processing pipeline.
type Repository struct {
	db         DB
	batchPause time.Duration
}

// NewRepository wraps db.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, batchPause: defaultBatchPause}
}

// WrapError maps pgx errors onto domain sentinels.
func WrapError(err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyErrorCode:
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.ConstraintName)
	}
	return err
}

// IsUniqueViolation reports whether err is a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == DuplicateKeyErrorCode
}

// chunks splits n items into [start, end) ranges of at most size.
func chunks(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func (r *Repository) pause(ctx context.Context) error {
	if r.batchPause <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.batchPause):
		return nil
	}
}
