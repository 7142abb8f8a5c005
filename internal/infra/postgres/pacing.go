package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// pacingTable returns the table and name column for kind.
func pacingTable(kind domain.PacingKind) (table, column string, err error) {
	switch kind {
	case domain.PacingMerchant:
		return "merchant_pacing_tracking", "merchant_name", nil
	case domain.PacingCategory:
		return "category_pacing_tracking", "category", nil
	}
	return "", "", fmt.Errorf("unknown pacing kind %q", kind)
}

// ListPacingTracks returns merchant and category tracks of the user.
func (r *Repository) ListPacingTracks(ctx context.Context, userID string) ([]domain.PacingTrack, error) {
	var out []domain.PacingTrack
	for _, kind := range []domain.PacingKind{domain.PacingMerchant, domain.PacingCategory} {
		tracks, err := r.ListPacingTracksByKind(ctx, userID, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, tracks...)
	}
	return out, nil
}

// ListPacingTracksByKind returns the user's tracks of one kind.
func (r *Repository) ListPacingTracksByKind(ctx context.Context, userID string, kind domain.PacingKind) ([]domain.PacingTrack, error) {
	table, column, err := pacingTable(kind)
	if err != nil {
		return nil, fmt.Errorf("ListPacingTracksByKind: %w", err)
	}
	rows, err := r.db.Query(ctx, fmt.Sprintf(`SELECT id, user_id::text, %s, is_active, auto_selected, created_at
		FROM %s WHERE user_id = $1 ORDER BY created_at, id`, column, table), userID)
	if err != nil {
		return nil, fmt.Errorf("ListPacingTracksByKind: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PacingTrack
	for rows.Next() {
		t := domain.PacingTrack{Kind: kind}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.IsActive, &t.AutoSelected, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListPacingTracksByKind: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// AddPacingTrack inserts t, or reactivates an existing track with the same name.
func (r *Repository) AddPacingTrack(ctx context.Context, t *domain.PacingTrack) error {
	table, column, err := pacingTable(t.Kind)
	if err != nil {
		return fmt.Errorf("AddPacingTrack: %w", err)
	}
	err = r.db.QueryRow(ctx, fmt.Sprintf(`INSERT INTO %[1]s (user_id, %[2]s, is_active, auto_selected)
		VALUES ($1, $2, true, $3)
		ON CONFLICT (user_id, %[2]s) DO UPDATE SET is_active = true
		RETURNING id, created_at`, table, column),
		t.UserID, t.Name, t.AutoSelected).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("AddPacingTrack: %w", WrapError(err))
	}
	t.IsActive = true
	return nil
}

// RemovePacingTrack deactivates a track. The row is kept so auto-selection
// does not pick the name again.
func (r *Repository) RemovePacingTrack(ctx context.Context, userID string, kind domain.PacingKind, name string) error {
	table, column, err := pacingTable(kind)
	if err != nil {
		return fmt.Errorf("RemovePacingTrack: %w", err)
	}
	tag, err := r.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET is_active = false
		WHERE user_id = $1 AND lower(%s) = lower($2)`, table, column), userID, name)
	if err != nil {
		return fmt.Errorf("RemovePacingTrack: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("RemovePacingTrack: %w", domain.ErrNotFound)
	}
	return nil
}
