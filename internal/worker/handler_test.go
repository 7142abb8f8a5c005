package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/export"
	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/processing"
	"github.com/dvloznov/budgenudge/internal/sms"
)

type fakeProcessor struct {
	calls []string
	err   error
}

func (f *fakeProcessor) Process(_ context.Context, userID string, _ time.Time) (*processing.Result, error) {
	f.calls = append(f.calls, userID)
	return &processing.Result{UserID: userID}, f.err
}

type fakeDispatcher struct {
	res *sms.DispatchResult
	err error
}

func (f *fakeDispatcher) SendDaily(_ context.Context, userID string, _ time.Time) (*sms.DispatchResult, error) {
	return f.res, f.err
}

type fakeExporter struct {
	start, end time.Time
}

func (f *fakeExporter) Export(_ context.Context, userID string, start, end time.Time) (*export.Result, error) {
	f.start, f.end = start, end
	return &export.Result{UserID: userID}, nil
}

func newHandler(p Processor, d Dispatcher, e Exporter) *Handler {
	h := NewHandler(p, d, e, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2026, 10, 16, 13, 0, 0, 0, time.UTC) }
	return h
}

func TestHandle_ProcessUser(t *testing.T) {
	p := &fakeProcessor{}
	h := newHandler(p, &fakeDispatcher{}, nil)
	require.NoError(t, h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeProcessUser, UserID: "u1"}))
	assert.Equal(t, []string{"u1"}, p.calls)

	p.err = errors.New("pipeline step 2 failed: boom")
	assert.Error(t, h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeProcessUser, UserID: "u1"}))
}

func TestHandle_SendDailySMS(t *testing.T) {
	p := &fakeProcessor{err: errors.New("gemini quota")}
	d := &fakeDispatcher{res: &sms.DispatchResult{Sent: 2}}
	h := newHandler(p, d, nil)

	// A pipeline failure does not block the send.
	require.NoError(t, h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeSendDailySMS, UserID: "u1"}))

	d.res = &sms.DispatchResult{Sent: 1, Failed: 1}
	err := h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeSendDailySMS, UserID: "u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 messages failed")
}

func TestHandle_Export(t *testing.T) {
	h := newHandler(&fakeProcessor{}, &fakeDispatcher{}, nil)
	err := h.Handle(context.Background(), &jobs.Job{Type: jobs.JobTypeExportWarehouse, UserID: "u1"})
	assert.ErrorIs(t, err, ErrExportDisabled)

	e := &fakeExporter{}
	h = newHandler(&fakeProcessor{}, &fakeDispatcher{}, e)
	job := &jobs.Job{
		Type:   jobs.JobTypeExportWarehouse,
		UserID: "u1",
		Params: map[string]string{"start": "2026-10-01", "end": "2026-10-15"},
	}
	require.NoError(t, h.Handle(context.Background(), job))
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), e.start)
	assert.Equal(t, time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), e.end)
}

func TestHandle_UnknownType(t *testing.T) {
	h := newHandler(&fakeProcessor{}, &fakeDispatcher{}, nil)
	assert.Error(t, h.Handle(context.Background(), &jobs.Job{Type: "parse_document"}))
}
