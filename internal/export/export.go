// Package export copies a user's transactions and SMS send log from
// Postgres into the BigQuery analytics warehouse.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/domain"
	warehouse "github.com/dvloznov/budgenudge/internal/infra/bigquery"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// DefaultWindowDays is the export window used when no range is given.
const DefaultWindowDays = 30

// Store reads the rows to export.
type Store interface {
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	ListSMSLog(ctx context.Context, userID string, start, end time.Time) ([]domain.SMSLogEntry, error)
}

// Warehouse receives exported rows.
type Warehouse interface {
	ReplaceTransactions(ctx context.Context, userID string, start, end time.Time, rows []*warehouse.TransactionRow) error
	InsertSMSSends(ctx context.Context, rows []*warehouse.SMSSendRow) error
}

// Result counts exported rows.
type Result struct {
	UserID       string    `json:"user_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Transactions int       `json:"transactions"`
	SMSSends     int       `json:"sms_sends"`
	Skipped      int       `json:"skipped"`
}

// Exporter runs exports.
type Exporter struct {
	store     Store
	warehouse Warehouse
	log       zerolog.Logger
	now       func() time.Time
}

// New creates an Exporter.
func New(store Store, wh Warehouse, log zerolog.Logger) *Exporter {
	return &Exporter{store: store, warehouse: wh, log: log, now: time.Now}
}

// Window resolves an export range. Empty values default to the last
// DefaultWindowDays days ending today.
func Window(start, end string, now time.Time) (time.Time, time.Time, error) {
	to := recurring.DayOf(now)
	if end != "" {
		t, err := time.Parse(time.DateOnly, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("Window: end: %w", err)
		}
		to = t
	}
	from := to.AddDate(0, 0, -DefaultWindowDays)
	if start != "" {
		t, err := time.Parse(time.DateOnly, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("Window: start: %w", err)
		}
		from = t
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("Window: start %s is after end %s", from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	return from, to, nil
}

// Export replaces the user's warehouse transactions for [start, end] and
// appends the send log for the same days.
func (e *Exporter) Export(ctx context.Context, userID string, start, end time.Time) (*Result, error) {
	res := &Result{UserID: userID, Start: start, End: end}
	exported := e.now().UTC()

	txs, err := e.store.ListTransactionsSince(ctx, userID, start)
	if err != nil {
		return nil, fmt.Errorf("Export: load transactions: %w", err)
	}
	rows := make([]*warehouse.TransactionRow, 0, len(txs))
	for _, tx := range txs {
		if recurring.DayOf(tx.Date).After(end) {
			continue
		}
		rows = append(rows, warehouse.NewTransactionRow(tx, exported))
	}
	if err := e.warehouse.ReplaceTransactions(ctx, userID, start, end, rows); err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	res.Transactions = len(rows)

	entries, err := e.store.ListSMSLog(ctx, userID, start, end)
	if err != nil {
		return res, fmt.Errorf("Export: load sms log: %w", err)
	}
	sends := make([]*warehouse.SMSSendRow, 0, len(entries))
	for _, entry := range entries {
		row, err := warehouse.NewSMSSendRow(entry, exported)
		if err != nil {
			e.log.Warn().Err(err).Str("log_id", entry.ID).Msg("Skipping sms log row with bad send date")
			res.Skipped++
			continue
		}
		sends = append(sends, row)
	}
	if err := e.warehouse.InsertSMSSends(ctx, sends); err != nil {
		return res, fmt.Errorf("Export: %w", err)
	}
	res.SMSSends = len(sends)

	e.log.Info().
		Str("user_id", userID).
		Int("transactions", res.Transactions).
		Int("sms_sends", res.SMSSends).
		Int("skipped", res.Skipped).
		Msg("Warehouse export finished")
	return res, nil
}
