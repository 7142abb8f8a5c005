package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dvloznov/budgenudge/internal/domain"
)

const transactionColumns = `id::text, plaid_transaction_id, user_id::text, item_id, account_id, date, name,
	COALESCE(merchant_name, ''), amount, COALESCE(category, ''), COALESCE(subcategory, ''), pending,
	COALESCE(ai_merchant_name, ''), COALESCE(ai_category_tag, ''), created_at`

// TransactionFilter narrows ListTransactions. Zero values mean no bound.
type TransactionFilter struct {
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

func scanTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.PlaidTransactionID, &t.UserID, &t.ItemID, &t.AccountID, &t.Date, &t.Name,
			&t.MerchantName, &t.Amount, &t.Category, &t.Subcategory, &t.Pending,
			&t.AIMerchantName, &t.AICategoryTag, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListTransactions returns the user's transactions newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]domain.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1
		  AND ($2::date IS NULL OR date >= $2::date)
		  AND ($3::date IS NULL OR date <= $3::date)
		ORDER BY date DESC, id`
	args := []any{userID, f.Start, f.End}
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: scan: %w", err)
	}
	return txs, nil
}

// ListTransactionsSince returns the user's transactions dated on or after since.
func (r *Repository) ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error) {
	return r.ListTransactions(ctx, userID, TransactionFilter{Start: &since})
}

// ListUntaggedTransactions returns up to limit transactions the AI tagger has not processed.
func (r *Repository) ListUntaggedTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND (ai_merchant_name IS NULL OR ai_category_tag IS NULL)
		ORDER BY date DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ListUntaggedTransactions: query: %w", err)
	}
	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, fmt.Errorf("ListUntaggedTransactions: scan: %w", err)
	}
	return txs, nil
}

// UpdateTransactionTags writes ai_merchant_name and ai_category_tag in
// chunks of BatchSize. It returns the number of rows updated.
func (r *Repository) UpdateTransactionTags(ctx context.Context, txs []domain.Transaction) (int, error) {
	updated := 0
	for i, c := range chunks(len(txs), BatchSize) {
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				return updated, fmt.Errorf("UpdateTransactionTags: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for _, t := range txs[c[0]:c[1]] {
			batch.Queue(`UPDATE transactions
				SET ai_merchant_name = NULLIF($2, ''), ai_category_tag = NULLIF($3, '')
				WHERE id = $1::uuid`, t.ID, t.AIMerchantName, t.AICategoryTag)
		}

		br := r.db.SendBatch(ctx, batch)
		for range txs[c[0]:c[1]] {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return updated, fmt.Errorf("UpdateTransactionTags: chunk %d: %w", i, err)
			}
			updated += int(tag.RowsAffected())
		}
		if err := br.Close(); err != nil {
			return updated, fmt.Errorf("UpdateTransactionTags: close batch: %w", err)
		}
	}
	return updated, nil
}

// CountTransactions returns total and AI-tagged transaction counts for the user.
func (r *Repository) CountTransactions(ctx context.Context, userID string) (total, tagged int, err error) {
	err = r.db.QueryRow(ctx, `SELECT count(*),
			count(*) FILTER (WHERE ai_merchant_name IS NOT NULL AND ai_category_tag IS NOT NULL)
		FROM transactions WHERE user_id = $1`, userID).Scan(&total, &tagged)
	if err != nil {
		return 0, 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return total, tagged, nil
}

// ListUserIDs returns every user that has at least one linked item.
func (r *Repository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT user_id::text FROM items ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("ListUserIDs: query: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ListUserIDs: scan: %w", err)
	}
	return ids, nil
}
