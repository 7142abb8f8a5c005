// Package logger builds the zerolog loggers used by every binary and carries
// them through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by NewWithFormat.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type contextKey struct{}

// New creates a console logger at info level.
func New() zerolog.Logger {
	return NewWithFormat("info", FormatConsole)
}

// NewWithLevel creates a console logger filtered at the given level.
// Unknown or empty levels fall back to info.
func NewWithLevel(level string) zerolog.Logger {
	return NewWithFormat(level, FormatConsole)
}

// NewWithFormat creates a stdout logger. FormatJSON emits one object per
// line for log collectors; anything else uses the human-readable console
// writer.
func NewWithFormat(level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if !strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(out).Level(ParseLevel(level))
}

// NewWithWriter creates a logger writing JSON to w.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

// ParseLevel maps a config string (debug, info, warn, error) to a zerolog level.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a default console logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(zerolog.Logger); ok {
		return logger
	}
	return New()
}

// WithUser tags the context logger with user_id so that every package
// logging through FromContext reports which user the work belongs to.
func WithUser(ctx context.Context, userID string) context.Context {
	l := FromContext(ctx).With().Str("user_id", userID).Logger()
	return WithContext(ctx, l)
}
