package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/jobs"
)

// TaggingStore reports tagging progress.
type TaggingStore interface {
	GetTaggingStatus(ctx context.Context, userID string) (*domain.TaggingStatus, error)
}

// TaggingHandler reports and triggers AI merchant tagging.
type TaggingHandler struct {
	repo      TaggingStore
	publisher jobs.Publisher
	enabled   bool
	log       zerolog.Logger
}

// NewTaggingHandler creates a new tagging handler. enabled reports whether
// an AI tagger is configured.
func NewTaggingHandler(repo TaggingStore, publisher jobs.Publisher, enabled bool, log zerolog.Logger) *TaggingHandler {
	return &TaggingHandler{repo: repo, publisher: publisher, enabled: enabled, log: log}
}

// Status handles GET /api/ai-tagging-status.
func (h *TaggingHandler) Status(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	status, err := h.repo.GetTaggingStatus(r.Context(), uid)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to get tagging status")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, status)
}

// Trigger handles POST /api/ai-tagging. Tagging runs as part of the
// process_user pipeline, which records a tagging run, so a job for that
// pipeline is enqueued. 409 when no tagger is configured.
func (h *TaggingHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	if !h.enabled {
		middleware.WriteError(w, http.StatusConflict, "AI tagging is not enabled")
		return
	}
	job := &jobs.Job{Type: jobs.JobTypeProcessUser, UserID: uid}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("Failed to enqueue tagging job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue tagging job")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}
