package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/adf"
	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// ADFStore is what the ADF calculation reads.
type ADFStore interface {
	ListTransactionsSince(ctx context.Context, userID string, since time.Time) ([]domain.Transaction, error)
	ListTaggedMerchants(ctx context.Context, userID string) ([]domain.TaggedMerchant, error)
	GetIncomeProfile(ctx context.Context, userID string) (*domain.IncomeProfile, error)
}

// ADFHandler serves Available Discretionary Funds.
type ADFHandler struct {
	repo ADFStore
	log  zerolog.Logger
	now  func() time.Time
}

// NewADFHandler creates a new ADF handler.
func NewADFHandler(repo ADFStore, log zerolog.Logger) *ADFHandler {
	return &ADFHandler{repo: repo, log: log, now: time.Now}
}

// GetADF handles GET /api/adf.
func (h *ADFHandler) GetADF(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	now := h.now()
	today := recurring.DayOf(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	profile, err := h.repo.GetIncomeProfile(r.Context(), uid)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		writeStoreError(w, h.log, err, "Failed to load income profile")
		return
	}
	merchants, err := h.repo.ListTaggedMerchants(r.Context(), uid)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to list tagged merchants")
		return
	}
	txs, err := h.repo.ListTransactionsSince(r.Context(), uid, monthStart)
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return
	}

	classifier := adf.NewClassifier(adf.WithRecurring(merchants))
	middleware.WriteJSON(w, http.StatusOK, adf.Calculate(classifier, profile, txs, merchants, now))
}
