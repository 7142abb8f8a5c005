// Package worker executes background jobs taken off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/export"
	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/logger"
	"github.com/dvloznov/budgenudge/internal/processing"
	"github.com/dvloznov/budgenudge/internal/sms"
)

// ErrExportDisabled is returned for export jobs when no warehouse is configured.
var ErrExportDisabled = errors.New("warehouse export is not configured")

// Processor runs the per-user transaction pipeline.
type Processor interface {
	Process(ctx context.Context, userID string, now time.Time) (*processing.Result, error)
}

// Dispatcher sends the daily SMS set.
type Dispatcher interface {
	SendDaily(ctx context.Context, userID string, now time.Time) (*sms.DispatchResult, error)
}

// Exporter copies rows to the warehouse.
type Exporter interface {
	Export(ctx context.Context, userID string, start, end time.Time) (*export.Result, error)
}

// Handler routes jobs by type.
type Handler struct {
	processor  Processor
	dispatcher Dispatcher
	exporter   Exporter
	log        zerolog.Logger
	now        func() time.Time
}

// NewHandler creates a Handler. exporter may be nil.
func NewHandler(p Processor, d Dispatcher, e Exporter, log zerolog.Logger) *Handler {
	return &Handler{processor: p, dispatcher: d, exporter: e, log: log, now: time.Now}
}

// Handle implements jobs.JobHandler.
func (h *Handler) Handle(ctx context.Context, job *jobs.Job) error {
	log := h.log.With().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Str("user_id", job.UserID).
		Logger()
	ctx = logger.WithContext(ctx, log)
	now := h.now()

	switch job.Type {
	case jobs.JobTypeProcessUser:
		res, err := h.processor.Process(ctx, job.UserID, now)
		if err != nil {
			return err
		}
		log.Debug().Interface("result", res).Msg("Process job done")

	case jobs.JobTypeSendDailySMS:
		// Fresh tags and predictions make for better messages, but a failed
		// pipeline must not block the send.
		if _, err := h.processor.Process(ctx, job.UserID, now); err != nil {
			log.Warn().Err(err).Msg("Pipeline failed before daily SMS")
		}
		res, err := h.dispatcher.SendDaily(ctx, job.UserID, now)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("send daily sms: %d of %d messages failed", res.Failed, res.Failed+res.Sent)
		}
		log.Debug().Int("sent", res.Sent).Int("duplicates", res.SkippedDuplicate).Msg("Daily SMS job done")

	case jobs.JobTypeExportWarehouse:
		if h.exporter == nil {
			return ErrExportDisabled
		}
		start, end, err := export.Window(job.Param("start"), job.Param("end"), now)
		if err != nil {
			return err
		}
		if _, err := h.exporter.Export(ctx, job.UserID, start, end); err != nil {
			return err
		}

	default:
		return fmt.Errorf("Handle: unknown job type %q", job.Type)
	}
	return nil
}
