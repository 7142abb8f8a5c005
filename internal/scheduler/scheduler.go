// Package scheduler publishes the daily SMS jobs. Every hour it looks for
// recipients whose configured send hour has arrived in their own timezone.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/jobs"
)

// DefaultInterval is the tick period.
const DefaultInterval = time.Hour

// RecipientStore lists users with SMS enabled and not opted out.
type RecipientStore interface {
	ListSMSRecipients(ctx context.Context) ([]domain.SMSPreferences, error)
}

// Scheduler enqueues send_daily_sms jobs on an hourly tick.
type Scheduler struct {
	store     RecipientStore
	publisher jobs.Publisher
	log       zerolog.Logger
	interval  time.Duration
	defaultTZ string
	now       func() time.Time

	done chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval overrides the tick period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithDefaultTimezone sets the zone used for users with no valid timezone.
func WithDefaultTimezone(tz string) Option {
	return func(s *Scheduler) {
		if tz != "" {
			s.defaultTZ = tz
		}
	}
}

// New creates a Scheduler.
func New(store RecipientStore, publisher jobs.Publisher, log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:     store,
		publisher: publisher,
		log:       log,
		interval:  DefaultInterval,
		defaultTZ: domain.DefaultTimezone,
		now:       time.Now,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Due returns the recipients whose send hour equals the current hour in
// their timezone.
func Due(recipients []domain.SMSPreferences, now time.Time, defaultTZ string) []domain.SMSPreferences {
	var due []domain.SMSPreferences
	for _, p := range recipients {
		if !p.Enabled || p.OptedOut {
			continue
		}
		loc := domain.LoadLocation(p.Timezone, defaultTZ)
		if now.In(loc).Hour() == p.SendHour {
			due = append(due, p)
		}
	}
	return due
}

// Tick publishes one job per due recipient and returns how many were
// published. A failed publish is logged and the rest continue.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	recipients, err := s.store.ListSMSRecipients(ctx)
	if err != nil {
		return 0, fmt.Errorf("Tick: list recipients: %w", err)
	}

	published := 0
	for _, p := range Due(recipients, now, s.defaultTZ) {
		job := &jobs.Job{Type: jobs.JobTypeSendDailySMS, UserID: p.UserID}
		if err := s.publisher.Publish(ctx, job); err != nil {
			s.log.Error().Err(err).Str("user_id", p.UserID).Msg("Failed to publish daily SMS job")
			continue
		}
		published++
	}

	s.log.Info().
		Int("recipients", len(recipients)).
		Int("published", published).
		Time("tick", now).
		Msg("Scheduler tick")
	return published, nil
}

// Run ticks at the top of every interval until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	wait := time.Until(s.now().Truncate(s.interval).Add(s.interval))
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := s.Tick(ctx, s.now()); err != nil {
				s.log.Error().Err(err).Msg("Scheduler tick failed")
			}
			timer.Reset(time.Until(s.now().Truncate(s.interval).Add(s.interval)))
		}
	}
}

// Wait blocks until Run has returned or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown timed out: %w", ctx.Err())
	}
}
