package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/jobs"
)

const jobsPath = "/api/jobs/"

// JobsHandler handles job-related endpoints. Users only see their own jobs.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, jobsPath)
	if jobID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing job ID")
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && job.UserID != uid) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs?type&status&limit&offset.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	filter := jobs.JobFilter{UserID: uid}
	if t := query.Get("type"); t != "" {
		jt := jobs.JobType(t)
		if !jt.Valid() {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid job type")
			return
		}
		filter.Type = jt
	}
	if s := query.Get("status"); s != "" {
		filter.Status = jobs.JobStatus(s)
	}
	limit, err := intParam(r, "limit", 50, 1, 500)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
		return
	}
	filter.Limit, filter.Offset = limit, offset

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}
