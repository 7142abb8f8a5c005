package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/pacing"
	"github.com/dvloznov/budgenudge/internal/recurring"
	"github.com/dvloznov/budgenudge/internal/sms"
)

const (
	merchantsPath     = "/api/tagged-merchants/"
	maxUpcomingDays   = 90
	merchantLookback  = 400
	defaultConfidence = 100
)

// MerchantStore reads and edits tagged merchants.
type MerchantStore interface {
	ListTaggedMerchants(ctx context.Context, userID string) ([]domain.TaggedMerchant, error)
	GetTaggedMerchant(ctx context.Context, userID string, id int64) (*domain.TaggedMerchant, error)
	CreateTaggedMerchant(ctx context.Context, m *domain.TaggedMerchant) error
	UpdateTaggedMerchant(ctx context.Context, m *domain.TaggedMerchant) error
	DeleteTaggedMerchant(ctx context.Context, userID string, id int64) error
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
}

// MerchantsHandler handles tagged merchants and the upcoming bills derived from them.
type MerchantsHandler struct {
	repo MerchantStore
	log  zerolog.Logger
	now  func() time.Time
}

// NewMerchantsHandler creates a new merchants handler.
func NewMerchantsHandler(repo MerchantStore, log zerolog.Logger) *MerchantsHandler {
	return &MerchantsHandler{repo: repo, log: log, now: time.Now}
}

type merchantRequest struct {
	MerchantName        string           `json:"merchant_name"`
	ExpectedAmount      *decimal.Decimal `json:"expected_amount"`
	PredictionFrequency string           `json:"prediction_frequency"`
	NextPredictedDate   string           `json:"next_predicted_date"`
	IsActive            *bool            `json:"is_active"`
}

// Collection handles GET and POST /api/tagged-merchants.
func (h *MerchantsHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	default:
		methodNotAllowed(w)
	}
}

// Item handles PUT and DELETE /api/tagged-merchants/{id}.
func (h *MerchantsHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.Update(w, r)
	case http.MethodDelete:
		h.Delete(w, r)
	default:
		methodNotAllowed(w)
	}
}

// List returns every tagged merchant of the user.
func (h *MerchantsHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	merchants, err := h.repo.ListTaggedMerchants(r.Context(), uid)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list tagged merchants")
		return
	}
	if merchants == nil {
		merchants = []domain.TaggedMerchant{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchants": merchants,
		"count":     len(merchants),
	})
}

// Create tags a merchant as a recurring bill. Without next_predicted_date
// the next due date is predicted from the latest matching charge.
func (h *MerchantsHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req merchantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.MerchantName)
	if name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing merchant_name")
		return
	}
	if req.ExpectedAmount == nil || !req.ExpectedAmount.IsPositive() {
		middleware.WriteError(w, http.StatusBadRequest, "expected_amount must be positive")
		return
	}
	freq, err := domain.ParseFrequency(req.PredictionFrequency)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid prediction_frequency")
		return
	}
	next, err := parseDate(req.NextPredictedDate)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid next_predicted_date format")
		return
	}

	m := &domain.TaggedMerchant{
		UserID:              uid,
		MerchantName:        name,
		ExpectedAmount:      *req.ExpectedAmount,
		PredictionFrequency: freq,
		ConfidenceScore:     defaultConfidence,
		IsActive:            true,
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}
	if next != nil {
		m.NextPredictedDate = *next
	} else if err := h.predict(r.Context(), m); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			middleware.WriteError(w, http.StatusBadRequest, "No charges found for merchant; next_predicted_date is required")
			return
		}
		writeStoreError(w, h.log, err, "Failed to predict next charge")
		return
	}

	if err := h.repo.CreateTaggedMerchant(r.Context(), m); err != nil {
		writeStoreError(w, h.log, err, "Failed to create tagged merchant")
		return
	}
	h.log.Info().Str("user_id", uid).Str("merchant", m.MerchantName).Msg("Tagged merchant created")
	middleware.WriteJSON(w, http.StatusCreated, m)
}

// predict anchors m on its most recent charge.
func (h *MerchantsHandler) predict(ctx context.Context, m *domain.TaggedMerchant) error {
	now := h.now()
	txs, err := h.repo.ListTransactionsSince(ctx, m.UserID, now.AddDate(0, 0, -merchantLookback))
	if err != nil {
		return err
	}
	key := pacing.Key{Kind: domain.PacingMerchant, Name: m.MerchantName}
	var latest *time.Time
	for _, tx := range txs {
		if !tx.IsOutflow() || !key.Matches(tx) {
			continue
		}
		if latest == nil || tx.Date.After(*latest) {
			d := tx.Date
			latest = &d
		}
	}
	if latest == nil {
		return domain.ErrNotFound
	}
	_, err = recurring.Refresh(m, latest, now)
	return err
}

// Update edits amount, frequency, next date or the active flag. Activating
// an auto-detected merchant is how the user confirms it.
func (h *MerchantsHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := merchantID(w, r)
	if !ok {
		return
	}
	var req merchantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.repo.GetTaggedMerchant(r.Context(), uid, id)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to get tagged merchant")
		return
	}

	if name := strings.TrimSpace(req.MerchantName); name != "" {
		m.MerchantName = name
	}
	if req.ExpectedAmount != nil {
		if !req.ExpectedAmount.IsPositive() {
			middleware.WriteError(w, http.StatusBadRequest, "expected_amount must be positive")
			return
		}
		m.ExpectedAmount = *req.ExpectedAmount
	}
	if req.PredictionFrequency != "" {
		freq, err := domain.ParseFrequency(req.PredictionFrequency)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid prediction_frequency")
			return
		}
		m.PredictionFrequency = freq
	}
	if req.NextPredictedDate != "" {
		next, err := parseDate(req.NextPredictedDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid next_predicted_date format")
			return
		}
		m.NextPredictedDate = *next
	}
	if req.IsActive != nil {
		m.IsActive = *req.IsActive
	}

	if err := h.repo.UpdateTaggedMerchant(r.Context(), m); err != nil {
		writeStoreError(w, h.log, err, "Failed to update tagged merchant")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, m)
}

// Delete removes a tagged merchant.
func (h *MerchantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, ok := merchantID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeleteTaggedMerchant(r.Context(), uid, id); err != nil {
		writeStoreError(w, h.log, err, "Failed to delete tagged merchant")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// RecurringBills handles GET /api/recurring-bills?days=N.
func (h *MerchantsHandler) RecurringBills(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	days, err := intParam(r, "days", sms.BillsHorizonDays, 0, maxUpcomingDays)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid days")
		return
	}

	merchants, err := h.repo.ListTaggedMerchants(r.Context(), uid)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list tagged merchants")
		return
	}
	bills := recurring.Upcoming(merchants, h.now(), days)
	if bills == nil {
		bills = []domain.TaggedMerchant{}
	}
	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(b.ExpectedAmount)
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bills": bills,
		"count": len(bills),
		"total": total,
		"days":  days,
	})
}

func merchantID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, merchantsPath), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid merchant ID")
		return 0, false
	}
	return id, true
}
