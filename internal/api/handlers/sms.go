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
	"github.com/dvloznov/budgenudge/internal/sms"
)

// DefaultSendHour is the local hour used for users without preferences.
const DefaultSendHour = 8

// PreferencesStore reads and writes SMS preferences.
type PreferencesStore interface {
	GetSMSPreferences(ctx context.Context, userID string) (*domain.SMSPreferences, error)
	UpsertSMSPreferences(ctx context.Context, p *domain.SMSPreferences) error
}

// ManualSender sends one message outside the daily schedule.
type ManualSender interface {
	SendManual(ctx context.Context, userID string, template domain.TemplateType, body string, force bool) (*domain.SMSLogEntry, error)
}

// SMSHandler handles SMS preferences and manual sends.
type SMSHandler struct {
	repo   PreferencesStore
	sender ManualSender
	log    zerolog.Logger
}

// NewSMSHandler creates a new SMS handler.
func NewSMSHandler(repo PreferencesStore, sender ManualSender, log zerolog.Logger) *SMSHandler {
	return &SMSHandler{repo: repo, sender: sender, log: log}
}

type preferencesRequest struct {
	PhoneNumber string                `json:"phone_number"`
	Enabled     bool                  `json:"enabled"`
	SendHour    *int                  `json:"send_hour"`
	Timezone    string                `json:"timezone"`
	Templates   []domain.TemplateType `json:"templates"`
}

type manualSMSRequest struct {
	Template domain.TemplateType `json:"template"`
	Message  string              `json:"message"`
	Force    bool                `json:"force"`
}

// Preferences handles GET and PUT /api/sms-preferences.
func (h *SMSHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetPreferences(w, r)
	case http.MethodPut:
		h.PutPreferences(w, r)
	default:
		methodNotAllowed(w)
	}
}

// GetPreferences returns the stored preferences or the defaults.
func (h *SMSHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	prefs, err := h.repo.GetSMSPreferences(r.Context(), uid)
	if errors.Is(err, domain.ErrNotFound) {
		prefs = &domain.SMSPreferences{
			UserID:    uid,
			SendHour:  DefaultSendHour,
			Timezone:  domain.DefaultTimezone,
			Templates: domain.AllTemplates,
		}
	} else if err != nil {
		writeStoreError(w, h.log, err, "Failed to get SMS preferences")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, prefs)
}

// PutPreferences validates and stores the preferences. The phone number is
// stored in E.164.
func (h *SMSHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req preferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	prefs := &domain.SMSPreferences{
		UserID:    uid,
		Enabled:   req.Enabled,
		SendHour:  DefaultSendHour,
		Timezone:  strings.TrimSpace(req.Timezone),
		Templates: req.Templates,
	}
	if req.PhoneNumber != "" {
		phone, err := sms.NormalizePhone(req.PhoneNumber)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid phone_number")
			return
		}
		prefs.PhoneNumber = phone
	} else if req.Enabled {
		middleware.WriteError(w, http.StatusBadRequest, "phone_number is required when enabled")
		return
	}
	if req.SendHour != nil {
		if *req.SendHour < 0 || *req.SendHour > 23 {
			middleware.WriteError(w, http.StatusBadRequest, "send_hour must be between 0 and 23")
			return
		}
		prefs.SendHour = *req.SendHour
	}
	if prefs.Timezone == "" {
		prefs.Timezone = domain.DefaultTimezone
	}
	if _, err := time.LoadLocation(prefs.Timezone); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid timezone")
		return
	}
	if prefs.Templates == nil {
		prefs.Templates = domain.AllTemplates
	}
	for _, t := range prefs.Templates {
		if !t.Valid() || t == domain.TemplateManual {
			middleware.WriteError(w, http.StatusBadRequest, "Unknown template: "+string(t))
			return
		}
	}

	if err := h.repo.UpsertSMSPreferences(r.Context(), prefs); err != nil {
		writeStoreError(w, h.log, err, "Failed to save SMS preferences")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, prefs)
}

// ManualSMS handles POST /api/manual-sms.
func (h *SMSHandler) ManualSMS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req manualSMSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Template == "" {
		req.Template = domain.TemplateManual
	}
	if !req.Template.Valid() {
		middleware.WriteError(w, http.StatusBadRequest, "Unknown template")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing message")
		return
	}

	entry, err := h.sender.SendManual(r.Context(), uid, req.Template, req.Message, req.Force)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, entry)
	case errors.Is(err, sms.ErrDuplicate):
		middleware.WriteError(w, http.StatusConflict, "Message already sent today")
	case errors.Is(err, sms.ErrOptedOut):
		middleware.WriteError(w, http.StatusConflict, "Recipient opted out")
	case errors.Is(err, sms.ErrInvalidPhone):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid phone number on file")
	case errors.Is(err, sms.ErrNothingToSend):
		middleware.WriteError(w, http.StatusBadRequest, "Missing message")
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, "SMS preferences not set")
	default:
		h.log.Error().Err(err).Str("user_id", uid).Msg("Manual SMS failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to send SMS")
	}
}
