package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/infra/postgres"
)

// TransactionStore lists transactions.
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID string, f postgres.TransactionFilter) ([]domain.Transaction, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo TransactionStore
	log  zerolog.Logger
	now  func() time.Time
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{repo: repo, log: log, now: time.Now}
}

// ListTransactions handles GET /api/transactions?start_date&end_date&limit&offset.
// Without a range the last year is returned.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	start, err := parseDate(query.Get("start_date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
		return
	}
	end, err := parseDate(query.Get("end_date"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
		return
	}
	if start == nil {
		t := h.now().AddDate(-1, 0, 0)
		start = &t
	}
	if end != nil && end.Before(*start) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	limit, err := intParam(r, "limit", 0, 0, 5000)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	offset, err := intParam(r, "offset", 0, 0, 1<<30)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid offset")
		return
	}

	txs, err := h.repo.ListTransactions(r.Context(), uid, postgres.TransactionFilter{
		Start: start, End: end, Limit: limit, Offset: offset,
	})
	if err != nil {
		writeStoreError(w, h.log, err, "Failed to query transactions")
		return
	}

	// Return array directly for frontend compatibility
	if txs == nil {
		txs = []domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}
