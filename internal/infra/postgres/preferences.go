package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/budgenudge/internal/domain"
)

const preferenceColumns = `user_id::text, phone_number, enabled, send_hour, COALESCE(timezone, ''),
	templates, opted_out, updated_at`

func scanPreferences(row interface{ Scan(...any) error }) (domain.SMSPreferences, error) {
	var p domain.SMSPreferences
	var templates []string
	err := row.Scan(&p.UserID, &p.PhoneNumber, &p.Enabled, &p.SendHour, &p.Timezone, &templates, &p.OptedOut, &p.UpdatedAt)
	for _, t := range templates {
		p.Templates = append(p.Templates, domain.TemplateType(t))
	}
	return p, err
}

// GetSMSPreferences returns the user's SMS settings.
func (r *Repository) GetSMSPreferences(ctx context.Context, userID string) (*domain.SMSPreferences, error) {
	p, err := scanPreferences(r.db.QueryRow(ctx, `SELECT `+preferenceColumns+`
		FROM user_sms_preferences WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("GetSMSPreferences: %w", WrapError(err))
	}
	return &p, nil
}

// UpsertSMSPreferences creates or replaces the user's SMS settings. The
// opt-out flag is only changed by inbound keywords.
func (r *Repository) UpsertSMSPreferences(ctx context.Context, p *domain.SMSPreferences) error {
	templates := make([]string, 0, len(p.Templates))
	for _, t := range p.Templates {
		templates = append(templates, string(t))
	}
	err := r.db.QueryRow(ctx, `INSERT INTO user_sms_preferences
			(user_id, phone_number, enabled, send_hour, timezone, templates)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			enabled = EXCLUDED.enabled,
			send_hour = EXCLUDED.send_hour,
			timezone = EXCLUDED.timezone,
			templates = EXCLUDED.templates,
			updated_at = now()
		RETURNING opted_out, updated_at`,
		p.UserID, p.PhoneNumber, p.Enabled, p.SendHour, p.Timezone, templates,
	).Scan(&p.OptedOut, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("UpsertSMSPreferences: %w", WrapError(err))
	}
	return nil
}

// SetSMSOptOut flips opted_out for every row with phone.
func (r *Repository) SetSMSOptOut(ctx context.Context, phone string, optedOut bool) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE user_sms_preferences SET opted_out = $2, updated_at = now()
		WHERE phone_number = $1`, phone, optedOut)
	if err != nil {
		return 0, fmt.Errorf("SetSMSOptOut: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListSMSRecipients returns enabled, not opted-out preferences.
func (r *Repository) ListSMSRecipients(ctx context.Context) ([]domain.SMSPreferences, error) {
	rows, err := r.db.Query(ctx, `SELECT `+preferenceColumns+` FROM user_sms_preferences
		WHERE enabled AND NOT opted_out ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("ListSMSRecipients: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SMSPreferences
	for rows.Next() {
		p, err := scanPreferences(rows)
		if err != nil {
			return nil, fmt.Errorf("ListSMSRecipients: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
