package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// GetItemByPlaidID looks up a Plaid item.
func (r *Repository) GetItemByPlaidID(ctx context.Context, plaidItemID string) (*domain.Item, error) {
	var it domain.Item
	err := r.db.QueryRow(ctx, `SELECT id, plaid_item_id, user_id::text, COALESCE(institution_name, ''),
			status, COALESCE(error_code, ''), last_webhook_at
		FROM items WHERE plaid_item_id = $1`, plaidItemID,
	).Scan(&it.ID, &it.PlaidItemID, &it.UserID, &it.InstitutionName, &it.Status, &it.ErrorCode, &it.LastWebhookAt)
	if err != nil {
		return nil, fmt.Errorf("GetItemByPlaidID: %w", WrapError(err))
	}
	return &it, nil
}

// UpdateItemStatus records the item status reported by a webhook.
func (r *Repository) UpdateItemStatus(ctx context.Context, plaidItemID, status, errorCode string) error {
	tag, err := r.db.Exec(ctx, `UPDATE items
		SET status = $2, error_code = NULLIF($3, ''), last_webhook_at = now()
		WHERE plaid_item_id = $1`, plaidItemID, status, errorCode)
	if err != nil {
		return fmt.Errorf("UpdateItemStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateItemStatus: %w", domain.ErrNotFound)
	}
	return nil
}
