package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/budgenudge/internal/domain"
)

const dateLayout = "2006-01-02"

// Deduper is the authoritative SMS deduplication backend. It calls the
// can_send_sms and log_sms_send functions, which rely on the unique index
// on sms_send_log (phone_number, template_type, send_date).
type Deduper struct {
	db DB
}

// NewDeduper wraps db.
func NewDeduper(db DB) *Deduper {
	return &Deduper{db: db}
}

// CanSend reports whether no message was logged for the key yet.
func (d *Deduper) CanSend(ctx context.Context, phone string, template domain.TemplateType, day string) (bool, error) {
	var ok bool
	if err := d.db.QueryRow(ctx, `SELECT can_send_sms($1, $2, $3::date)`, phone, string(template), day).Scan(&ok); err != nil {
		return false, fmt.Errorf("CanSend: %w", err)
	}
	return ok, nil
}

// Record logs entry. It returns false when the key already has a row.
func (d *Deduper) Record(ctx context.Context, e domain.SMSLogEntry) (bool, error) {
	var ok bool
	err := d.db.QueryRow(ctx, `SELECT log_sms_send($1::uuid, $2, $3, $4::date, $5, $6, $7)`,
		e.UserID, e.PhoneNumber, string(e.TemplateType), e.SendDate, e.MessageID, e.Status, e.Body,
	).Scan(&ok)
	if IsUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Record: %w", err)
	}
	return ok, nil
}

// ListSMSLog returns the user's send log for send dates in [start, end].
func (r *Repository) ListSMSLog(ctx context.Context, userID string, start, end time.Time) ([]domain.SMSLogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, user_id::text, phone_number, template_type, to_char(send_date, 'YYYY-MM-DD'),
			COALESCE(message_id, ''), status, body, created_at
		FROM sms_send_log
		WHERE user_id = $1 AND send_date >= $2::date AND send_date <= $3::date
		ORDER BY send_date, created_at`,
		userID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("ListSMSLog: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SMSLogEntry
	for rows.Next() {
		var e domain.SMSLogEntry
		var template string
		if err := rows.Scan(&e.ID, &e.UserID, &e.PhoneNumber, &template, &e.SendDate,
			&e.MessageID, &e.Status, &e.Body, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListSMSLog: scan: %w", err)
		}
		e.TemplateType = domain.TemplateType(template)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListSMSLog: %w", err)
	}
	return out, nil
}
