package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/pacing"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// Pacing actions accepted by POST.
const (
	ActionAdd        = "add"
	ActionRemove     = "remove"
	ActionAutoSelect = "auto_select"
)

// PacingStore reads and edits pacing tracks.
type PacingStore interface {
	ListPacingTracksByKind(ctx context.Context, userID string, kind domain.PacingKind) ([]domain.PacingTrack, error)
	AddPacingTrack(ctx context.Context, t *domain.PacingTrack) error
	RemovePacingTrack(ctx context.Context, userID string, kind domain.PacingKind, name string) error
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
}

// PacingHandler serves either merchant or category pacing tracking.
type PacingHandler struct {
	repo PacingStore
	kind domain.PacingKind
	log  zerolog.Logger
	now  func() time.Time
}

// NewPacingHandler creates a pacing handler for kind.
func NewPacingHandler(repo PacingStore, kind domain.PacingKind, log zerolog.Logger) *PacingHandler {
	return &PacingHandler{repo: repo, kind: kind, log: log, now: time.Now}
}

type pacingRequest struct {
	Action       string `json:"action"`
	MerchantName string `json:"merchant_name"`
	Category     string `json:"category"`
}

func (req pacingRequest) name(kind domain.PacingKind) string {
	if kind == domain.PacingCategory {
		return strings.TrimSpace(req.Category)
	}
	return strings.TrimSpace(req.MerchantName)
}

// historyStart is the earliest date pacing needs: the first of the month
// HistoryMonths before the current one.
func historyStart(now time.Time) time.Time {
	today := recurring.DayOf(now)
	return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -pacing.HistoryMonths, 0)
}

// ServeHTTP dispatches GET and POST.
func (h *PacingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Update(w, r)
	default:
		methodNotAllowed(w)
	}
}

// List returns the tracks of this kind with their pacing reports.
func (h *PacingHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	now := h.now()

	tracks, err := h.repo.ListPacingTracksByKind(r.Context(), uid, h.kind)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list pacing tracks")
		return
	}
	txs, err := h.repo.ListTransactionsSince(r.Context(), uid, historyStart(now))
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return
	}

	if tracks == nil {
		tracks = []domain.PacingTrack{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": tracks,
		"pacing": pacing.ComputeAll(txs, tracks, now),
		"count":  len(tracks),
	})
}

// Update applies an add, remove or auto_select action.
func (h *PacingHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req pacingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	switch req.Action {
	case ActionAdd:
		name := req.name(h.kind)
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Missing "+string(h.kind)+" name")
			return
		}
		track := &domain.PacingTrack{UserID: uid, Kind: h.kind, Name: name, IsActive: true}
		if err := h.repo.AddPacingTrack(r.Context(), track); err != nil {
			writeStoreError(w, h.log, err, "Failed to add pacing track")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"track": track})

	case ActionRemove:
		name := req.name(h.kind)
		if name == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Missing "+string(h.kind)+" name")
			return
		}
		if err := h.repo.RemovePacingTrack(r.Context(), uid, h.kind, name); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				middleware.WriteError(w, http.StatusNotFound, "Track not found")
				return
			}
			writeStoreError(w, h.log, err, "Failed to remove pacing track")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"removed": name})

	case ActionAutoSelect:
		selected, err := h.autoSelect(r.Context(), uid)
		if err != nil {
			writeStoreError(w, h.log, err, "Failed to auto-select tracks")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"selected": selected,
			"count":    len(selected),
		})

	default:
		middleware.WriteError(w, http.StatusBadRequest, "Unknown action")
	}
}

func (h *PacingHandler) autoSelect(ctx context.Context, uid string) ([]domain.PacingTrack, error) {
	now := h.now()
	existing, err := h.repo.ListPacingTracksByKind(ctx, uid, h.kind)
	if err != nil {
		return nil, err
	}
	txs, err := h.repo.ListTransactionsSince(ctx, uid, historyStart(now))
	if err != nil {
		return nil, err
	}

	selected := []domain.PacingTrack{}
	for _, c := range pacing.AutoSelect(txs, existing, pacing.DefaultAutoSelectOptions(h.kind, now)) {
		track := c.ToTrack(uid, h.kind)
		if err := h.repo.AddPacingTrack(ctx, &track); err != nil {
			return nil, err
		}
		selected = append(selected, track)
	}
	h.log.Info().Str("user_id", uid).Str("kind", string(h.kind)).Int("selected", len(selected)).Msg("Auto-selected pacing tracks")
	return selected, nil
}
