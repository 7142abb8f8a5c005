package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/budgenudge/internal/domain"
)

const taggedMerchantColumns = `id, user_id::text, merchant_name, expected_amount, prediction_frequency,
	next_predicted_date, last_transaction_date, confidence_score, is_active, auto_detected, created_at, updated_at`

func scanTaggedMerchant(row pgx.Row) (domain.TaggedMerchant, error) {
	var m domain.TaggedMerchant
	err := row.Scan(&m.ID, &m.UserID, &m.MerchantName, &m.ExpectedAmount, &m.PredictionFrequency,
		&m.NextPredictedDate, &m.LastTransactionDate, &m.ConfidenceScore, &m.IsActive, &m.AutoDetected,
		&m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// ListTaggedMerchants returns all of the user's tagged merchants, active or not.
func (r *Repository) ListTaggedMerchants(ctx context.Context, userID string) ([]domain.TaggedMerchant, error) {
	rows, err := r.db.Query(ctx, `SELECT `+taggedMerchantColumns+` FROM tagged_merchants
		WHERE user_id = $1 ORDER BY next_predicted_date, merchant_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListTaggedMerchants: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TaggedMerchant
	for rows.Next() {
		m, err := scanTaggedMerchant(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTaggedMerchants: scan: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetTaggedMerchant returns one merchant owned by userID.
func (r *Repository) GetTaggedMerchant(ctx context.Context, userID string, id int64) (*domain.TaggedMerchant, error) {
	m, err := scanTaggedMerchant(r.db.QueryRow(ctx, `SELECT `+taggedMerchantColumns+` FROM tagged_merchants
		WHERE user_id = $1 AND id = $2`, userID, id))
	if err != nil {
		return nil, fmt.Errorf("GetTaggedMerchant: %w", WrapError(err))
	}
	return &m, nil
}

// CreateTaggedMerchant inserts m and fills its id and timestamps.
func (r *Repository) CreateTaggedMerchant(ctx context.Context, m *domain.TaggedMerchant) error {
	err := r.db.QueryRow(ctx, `INSERT INTO tagged_merchants
			(user_id, merchant_name, expected_amount, prediction_frequency, next_predicted_date,
			 last_transaction_date, confidence_score, is_active, auto_detected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`,
		m.UserID, m.MerchantName, m.ExpectedAmount, m.PredictionFrequency, m.NextPredictedDate,
		m.LastTransactionDate, m.ConfidenceScore, m.IsActive, m.AutoDetected,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateTaggedMerchant: %w", WrapError(err))
	}
	return nil
}

// UpdateTaggedMerchant saves the prediction fields of m.
func (r *Repository) UpdateTaggedMerchant(ctx context.Context, m *domain.TaggedMerchant) error {
	tag, err := r.db.Exec(ctx, `UPDATE tagged_merchants SET
			expected_amount = $3, prediction_frequency = $4, next_predicted_date = $5,
			last_transaction_date = $6, confidence_score = $7, is_active = $8, updated_at = now()
		WHERE user_id = $1 AND id = $2`,
		m.UserID, m.ID, m.ExpectedAmount, m.PredictionFrequency, m.NextPredictedDate,
		m.LastTransactionDate, m.ConfidenceScore, m.IsActive)
	if err != nil {
		return fmt.Errorf("UpdateTaggedMerchant: %w", WrapError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateTaggedMerchant: %w", domain.ErrNotFound)
	}
	return nil
}

// DeleteTaggedMerchant removes a merchant owned by userID.
func (r *Repository) DeleteTaggedMerchant(ctx context.Context, userID string, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tagged_merchants WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("DeleteTaggedMerchant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("DeleteTaggedMerchant: %w", domain.ErrNotFound)
	}
	return nil
}

// InsertDetectedMerchants inserts auto-detected candidates, skipping names
// the user already has. It returns the number inserted.
func (r *Repository) InsertDetectedMerchants(ctx context.Context, merchants []domain.TaggedMerchant) (int, error) {
	inserted := 0
	for i, c := range chunks(len(merchants), BatchSize) {
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				return inserted, fmt.Errorf("InsertDetectedMerchants: %w", err)
			}
		}
		batch := &pgx.Batch{}
		for _, m := range merchants[c[0]:c[1]] {
			batch.Queue(`INSERT INTO tagged_merchants
					(user_id, merchant_name, expected_amount, prediction_frequency, next_predicted_date,
					 last_transaction_date, confidence_score, is_active, auto_detected)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT DO NOTHING`,
				m.UserID, m.MerchantName, m.ExpectedAmount, m.PredictionFrequency, m.NextPredictedDate,
				m.LastTransactionDate, m.ConfidenceScore, m.IsActive, m.AutoDetected)
		}
		br := r.db.SendBatch(ctx, batch)
		for range merchants[c[0]:c[1]] {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return inserted, fmt.Errorf("InsertDetectedMerchants: chunk %d: %w", i, err)
			}
			inserted += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return inserted, fmt.Errorf("InsertDetectedMerchants: close batch: %w", err)
		}
	}
	return inserted, nil
}
