package sms

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Sender delivers a message to a phone number and returns the provider id.
type Sender interface {
	Send(ctx context.Context, phone, body string) (string, error)
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	log zerolog.Logger
}

// NewLogSender creates a dry-run sender.
func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send implements Sender.
func (s *LogSender) Send(_ context.Context, phone, body string) (string, error) {
	id := "dryrun-" + uuid.NewString()
	s.log.Info().
		Str("phone", MaskPhone(phone)).
		Str("message_id", id).
		Int("length", len([]rune(body))).
		Str("body", body).
		Msg("DRY RUN: would send SMS")
	return id, nil
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "***" + phone[len(phone)-4:]
}
