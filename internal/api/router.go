// Package api wires the HTTP handlers into one http.Handler.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/handlers"
	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/archive"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/metrics"
)

// Store is the persistence the API needs; *postgres.Repository implements it.
type Store interface {
	handlers.TransactionStore
	handlers.PacingStore
	handlers.MerchantStore
	handlers.ADFStore
	handlers.TaggingStore
	handlers.PreferencesStore
	handlers.ItemStore
}

// Deps are the collaborators of the router.
type Deps struct {
	Store         Store
	Jobs          jobs.JobStore
	Publisher     jobs.Publisher
	Sender        handlers.ManualSender
	Inbound       handlers.InboundProcessor
	Archiver      archive.Archiver
	Metrics       *metrics.Metrics
	Log           zerolog.Logger
	JWTSecret     string
	WebhookSecret string
	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string
	// AITaggingEnabled gates POST /api/ai-tagging.
	AITaggingEnabled bool
	// Ping checks the database for /health. Nil skips the check.
	Ping func(ctx context.Context) error
}

// NewRouter builds the full handler: public health and metrics, webhooks
// behind the shared secret, and every other /api route behind JWT auth.
func NewRouter(d Deps) http.Handler {
	log := d.Log

	transactionsHandler := handlers.NewTransactionsHandler(d.Store, log)
	merchantPacing := handlers.NewPacingHandler(d.Store, domain.PacingMerchant, log)
	categoryPacing := handlers.NewPacingHandler(d.Store, domain.PacingCategory, log)
	merchantsHandler := handlers.NewMerchantsHandler(d.Store, log)
	adfHandler := handlers.NewADFHandler(d.Store, log)
	taggingHandler := handlers.NewTaggingHandler(d.Store, d.Publisher, d.AITaggingEnabled, log)
	smsHandler := handlers.NewSMSHandler(d.Store, d.Sender, log)
	webhooksHandler := handlers.NewWebhooksHandler(d.Store, d.Publisher, d.Inbound, d.Archiver, log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, log)

	api := http.NewServeMux()
	api.HandleFunc("/api/transactions", get(transactionsHandler.ListTransactions))
	api.Handle("/api/merchant-pacing-tracking", merchantPacing)
	api.Handle("/api/category-pacing-tracking", categoryPacing)
	api.HandleFunc("/api/tagged-merchants", merchantsHandler.Collection)
	api.HandleFunc("/api/tagged-merchants/", merchantsHandler.Item)
	api.HandleFunc("/api/recurring-bills", get(merchantsHandler.RecurringBills))
	api.HandleFunc("/api/adf", get(adfHandler.GetADF))
	api.HandleFunc("/api/ai-tagging-status", get(taggingHandler.Status))
	api.HandleFunc("/api/ai-tagging", post(taggingHandler.Trigger))
	api.HandleFunc("/api/sms-preferences", smsHandler.Preferences)
	api.HandleFunc("/api/manual-sms", smsHandler.ManualSMS)
	api.HandleFunc("/api/jobs", jobsHandler.ListJobs)
	api.HandleFunc("/api/jobs/", jobsHandler.GetJob)

	webhooks := http.NewServeMux()
	webhooks.HandleFunc("/api/webhooks/plaid", webhooksHandler.Plaid)
	webhooks.HandleFunc("/api/webhooks/slicktext", webhooksHandler.SlickText)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", health(d.Ping))
	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics.Handler())
	}
	mux.Handle("/api/webhooks/", middleware.WebhookSecret(d.WebhookSecret)(webhooks))
	mux.Handle("/api/", middleware.Auth(d.JWTSecret)(api))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.Metrics(d.Metrics),
		middleware.CORS(d.CORSOrigins),
	)
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return only(http.MethodGet, h)
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return only(http.MethodPost, h)
}

func only(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

func health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}
