package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// ListRules returns the user's active merchant rules.
func (r *Repository) ListRules(ctx context.Context, userID string) ([]domain.Rule, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_id::text, name, match_type, pattern, priority,
			COALESCE(set_merchant_name, ''), COALESCE(set_category, ''), is_active
		FROM merchant_rules WHERE user_id = $1 AND is_active
		ORDER BY priority DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListRules: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Rule
	for rows.Next() {
		var rule domain.Rule
		if err := rows.Scan(&rule.ID, &rule.UserID, &rule.Name, &rule.MatchType, &rule.Pattern, &rule.Priority,
			&rule.SetMerchantName, &rule.SetCategory, &rule.IsActive); err != nil {
			return nil, fmt.Errorf("ListRules: scan: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}
