package sms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/adf"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/metrics"
	"github.com/dvloznov/budgenudge/internal/pacing"
)

var (
	// ErrOptedOut is returned when the recipient replied STOP.
	ErrOptedOut = errors.New("recipient opted out")

	// ErrDuplicate is returned by SendManual when the template was already sent today.
	ErrDuplicate = errors.New("message already sent today")
)

// Store is the data the dispatcher reads.
type Store interface {
	GetSMSPreferences(ctx context.Context, userID string) (*domain.SMSPreferences, error)
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	ListTaggedMerchants(ctx context.Context, userID string) ([]domain.TaggedMerchant, error)
	ListPacingTracks(ctx context.Context, userID string) ([]domain.PacingTrack, error)
	GetIncomeProfile(ctx context.Context, userID string) (*domain.IncomeProfile, error)
}

// DispatchResult counts template outcomes of one SendDaily call.
type DispatchResult struct {
	UserID           string               `json:"user_id"`
	Sent             int                  `json:"sent"`
	SkippedDuplicate int                  `json:"skipped_duplicate"`
	SkippedEmpty     int                  `json:"skipped_empty"`
	Failed           int                  `json:"failed"`
	Messages         []domain.SMSLogEntry `json:"messages,omitempty"`
}

// Dispatcher builds, deduplicates and sends the daily messages.
type Dispatcher struct {
	store     Store
	dedupe    Deduper
	sender    Sender
	log       zerolog.Logger
	metrics   *metrics.Metrics
	dryRun    bool
	defaultTZ string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMetrics reports outcomes to m.
func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithDryRun marks recorded messages as dry runs.
func WithDryRun(dryRun bool) DispatcherOption {
	return func(d *Dispatcher) { d.dryRun = dryRun }
}

// WithDefaultTimezone sets the fallback for users without a valid timezone.
func WithDefaultTimezone(tz string) DispatcherOption {
	return func(d *Dispatcher) {
		if tz != "" {
			d.defaultTZ = tz
		}
	}
}

// NewDispatcher creates a Dispatcher. A *LogSender never delivers, so it
// always records dry runs whatever WithDryRun says.
func NewDispatcher(store Store, dedupe Deduper, sender Sender, log zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		dedupe:    dedupe,
		sender:    sender,
		log:       log,
		defaultTZ: domain.DefaultTimezone,
	}
	for _, opt := range opts {
		opt(d)
	}
	if _, ok := sender.(*LogSender); ok {
		d.dryRun = true
	}
	return d
}

// DryRun reports whether sends are recorded as dry runs.
func (d *Dispatcher) DryRun() bool {
	return d.dryRun
}

type snapshot struct {
	txs     []domain.Transaction
	bills   []domain.TaggedMerchant
	tracks  []domain.PacingTrack
	profile *domain.IncomeProfile
}

func (d *Dispatcher) loadSnapshot(ctx context.Context, userID string, local time.Time) (*snapshot, error) {
	since := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -pacing.HistoryMonths, 0)
	txs, err := d.store.ListTransactionsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("loadSnapshot: transactions: %w", err)
	}
	bills, err := d.store.ListTaggedMerchants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loadSnapshot: tagged merchants: %w", err)
	}
	tracks, err := d.store.ListPacingTracks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loadSnapshot: pacing tracks: %w", err)
	}
	profile, err := d.store.GetIncomeProfile(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("loadSnapshot: income profile: %w", err)
	}
	return &snapshot{txs: txs, bills: bills, tracks: tracks, profile: profile}, nil
}

// build renders template for the snapshot as of local time.
func (s *snapshot) build(template domain.TemplateType, local time.Time) (string, error) {
	switch template {
	case domain.TemplateBills:
		return FormatBills(s.bills, local)
	case domain.TemplatePacing:
		return FormatPacing(pacing.ComputeAll(s.txs, s.tracks, local))
	case domain.TemplateDailySummary:
		return FormatDailySummary(s.txs, local)
	case domain.TemplateWeeklySummary:
		if local.Weekday() != time.Monday {
			return "", ErrNothingToSend
		}
		return FormatWeeklySummary(s.txs, local)
	case domain.TemplateADF:
		c := adf.NewClassifier(adf.WithRecurring(s.bills))
		return FormatADF(adf.Calculate(c, s.profile, s.txs, s.bills, local))
	}
	return "", fmt.Errorf("unsupported template %q", template)
}

func (d *Dispatcher) localNow(prefs *domain.SMSPreferences, now time.Time) time.Time {
	return now.In(domain.LoadLocation(prefs.Timezone, d.defaultTZ))
}

// SendDaily sends every subscribed template that has content and has not
// been sent to the user's phone on the user's local date. A failing
// template is counted and logged; the others still go out.
func (d *Dispatcher) SendDaily(ctx context.Context, userID string, now time.Time) (*DispatchResult, error) {
	log := d.log.With().Str("user_id", userID).Logger()
	res := &DispatchResult{UserID: userID}

	prefs, err := d.store.GetSMSPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SendDaily: preferences: %w", err)
	}
	if !prefs.Enabled || prefs.OptedOut {
		log.Debug().Bool("enabled", prefs.Enabled).Bool("opted_out", prefs.OptedOut).Msg("SMS disabled for user, skipping")
		return res, nil
	}
	phone, err := NormalizePhone(prefs.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("SendDaily: %w", err)
	}

	local := d.localNow(prefs, now)
	day := local.Format(DayLayout)
	snap, err := d.loadSnapshot(ctx, userID, local)
	if err != nil {
		return nil, fmt.Errorf("SendDaily: %w", err)
	}

	for _, template := range domain.AllTemplates {
		if !prefs.Wants(template) {
			continue
		}
		tlog := log.With().Str("template", string(template)).Logger()

		body, err := snap.build(template, local)
		if errors.Is(err, ErrNothingToSend) {
			res.SkippedEmpty++
			d.metrics.SMS(string(template), "empty")
			tlog.Debug().Msg("Nothing to send")
			continue
		}
		if err != nil {
			res.Failed++
			d.metrics.SMS(string(template), "failed")
			tlog.Error().Err(err).Msg("Failed to build message")
			continue
		}

		entry, err := d.deliver(ctx, userID, phone, template, day, body, false)
		switch {
		case errors.Is(err, ErrDuplicate):
			res.SkippedDuplicate++
			d.metrics.SMS(string(template), "duplicate")
			tlog.Info().Str("day", day).Msg("Already sent today, skipping")
		case err != nil:
			res.Failed++
			d.metrics.SMS(string(template), "failed")
			tlog.Error().Err(err).Msg("Failed to send message")
		default:
			res.Sent++
			res.Messages = append(res.Messages, *entry)
			d.metrics.SMS(string(template), "sent")
		}
	}

	log.Info().
		Int("sent", res.Sent).
		Int("duplicate", res.SkippedDuplicate).
		Int("empty", res.SkippedEmpty).
		Int("failed", res.Failed).
		Msg("Daily SMS dispatch finished")
	return res, nil
}

// SendManual sends body as template to the user. force skips the dedup
// check; the send is still recorded.
func (d *Dispatcher) SendManual(ctx context.Context, userID string, template domain.TemplateType, body string, force bool) (*domain.SMSLogEntry, error) {
	if template == "" {
		template = domain.TemplateManual
	}
	if !template.Valid() {
		return nil, fmt.Errorf("SendManual: unknown template %q", template)
	}
	if body == "" {
		return nil, ErrNothingToSend
	}

	prefs, err := d.store.GetSMSPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("SendManual: preferences: %w", err)
	}
	if prefs.OptedOut {
		return nil, ErrOptedOut
	}
	phone, err := NormalizePhone(prefs.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("SendManual: %w", err)
	}

	day := d.localNow(prefs, time.Now()).Format(DayLayout)
	entry, err := d.deliver(ctx, userID, phone, template, day, Truncate(body), force)
	if err != nil {
		d.metrics.SMS(string(template), outcome(err))
		return nil, err
	}
	d.metrics.SMS(string(template), "sent")
	return entry, nil
}

func outcome(err error) string {
	if errors.Is(err, ErrDuplicate) {
		return "duplicate"
	}
	return "failed"
}

func (d *Dispatcher) deliver(ctx context.Context, userID, phone string, template domain.TemplateType, day, body string, force bool) (*domain.SMSLogEntry, error) {
	if !force {
		ok, err := d.dedupe.CanSend(ctx, phone, template, day)
		if err != nil {
			return nil, fmt.Errorf("deliver: dedup check: %w", err)
		}
		if !ok {
			return nil, ErrDuplicate
		}
	}

	id, err := d.sender.Send(ctx, phone, body)
	if err != nil {
		return nil, fmt.Errorf("deliver: send: %w", err)
	}

	status := domain.SMSStatusSent
	if d.dryRun {
		status = domain.SMSStatusDryRun
	}
	entry := &domain.SMSLogEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		PhoneNumber:  phone,
		TemplateType: template,
		SendDate:     day,
		MessageID:    id,
		Status:       status,
		Body:         body,
		CreatedAt:    time.Now().UTC(),
	}

	recorded, err := d.dedupe.Record(ctx, *entry)
	if err != nil {
		d.log.Error().Err(err).Str("user_id", userID).Str("template", string(template)).
			Msg("Message sent but send log write failed")
		return entry, nil
	}
	if !recorded {
		d.log.Warn().Str("user_id", userID).Str("template", string(template)).Str("day", day).
			Bool("force", force).Msg("Send log already had an entry for this day")
	}
	return entry, nil
}
