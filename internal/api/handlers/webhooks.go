package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budgenudge/internal/api/middleware"
	"github.com/dvloznov/budgenudge/internal/archive"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/jobs"
	"github.com/dvloznov/budgenudge/internal/sms"
)

// Plaid webhook types and codes the service reacts to.
const (
	plaidTypeTransactions = "TRANSACTIONS"
	plaidTypeItem         = "ITEM"

	plaidCodeError             = "ERROR"
	plaidCodePendingExpiration = "PENDING_EXPIRATION"
	plaidCodeLoginRepaired     = "LOGIN_REPAIRED"
	plaidErrorLoginRequired    = "ITEM_LOGIN_REQUIRED"
)

// Webhook outcomes reported in the response.
const (
	WebhookQueued  = "queued"
	WebhookUpdated = "item_updated"
	WebhookIgnored = "ignored"
)

// transactionCodes trigger a reprocess of the item owner.
var transactionCodes = map[string]bool{
	"SYNC_UPDATES_AVAILABLE": true,
	"INITIAL_UPDATE":         true,
	"HISTORICAL_UPDATE":      true,
	"DEFAULT_UPDATE":         true,
	"TRANSACTIONS_REMOVED":   true,
}

// ItemStore resolves Plaid items.
type ItemStore interface {
	GetItemByPlaidID(ctx context.Context, plaidItemID string) (*domain.Item, error)
	UpdateItemStatus(ctx context.Context, plaidItemID, status, errorCode string) error
}

// InboundProcessor handles replies from SMS recipients.
type InboundProcessor interface {
	HandleInbound(ctx context.Context, from, body string) (*sms.InboundResult, error)
}

// WebhooksHandler receives Plaid and SlickText callbacks.
type WebhooksHandler struct {
	items     ItemStore
	publisher jobs.Publisher
	inbound   InboundProcessor
	archiver  archive.Archiver
	log       zerolog.Logger
}

// NewWebhooksHandler creates a new webhooks handler. A nil archiver
// disables payload archiving.
func NewWebhooksHandler(items ItemStore, publisher jobs.Publisher, inbound InboundProcessor, archiver archive.Archiver, log zerolog.Logger) *WebhooksHandler {
	if archiver == nil {
		archiver = archive.Nop{}
	}
	return &WebhooksHandler{items: items, publisher: publisher, inbound: inbound, archiver: archiver, log: log}
}

// PlaidWebhook is the part of a Plaid webhook body the service reads.
type PlaidWebhook struct {
	WebhookType string `json:"webhook_type"`
	WebhookCode string `json:"webhook_code"`
	ItemID      string `json:"item_id"`
	Error       *struct {
		ErrorCode string `json:"error_code"`
	} `json:"error"`
}

// ParsePlaidWebhook decodes payload and requires an item_id.
func ParsePlaidWebhook(payload []byte) (PlaidWebhook, error) {
	var hook PlaidWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return hook, fmt.Errorf("ParsePlaidWebhook: %w", err)
	}
	if hook.ItemID == "" {
		return hook, errors.New("ParsePlaidWebhook: missing item_id")
	}
	return hook, nil
}

// TriggersProcessing reports whether the webhook announces new or changed
// transactions.
func (h PlaidWebhook) TriggersProcessing() bool {
	return h.WebhookType == plaidTypeTransactions && transactionCodes[h.WebhookCode]
}

type slickTextWebhook struct {
	From        string `json:"from"`
	PhoneNumber string `json:"phone_number"`
	Body        string `json:"body"`
	Message     string `json:"message"`
}

// readPayload reads and archives the raw body. Archive failures are logged only.
func (h *WebhooksHandler) readPayload(w http.ResponseWriter, r *http.Request, source string) ([]byte, bool) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return nil, false
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if uri, err := h.archiver.Put(r.Context(), source, payload); err != nil {
		h.log.Warn().Err(err).Str("source", source).Msg("Failed to archive webhook payload")
	} else if uri != "" {
		h.log.Debug().Str("uri", uri).Msg("Archived webhook payload")
	}
	return payload, true
}

// Plaid handles POST /api/webhooks/plaid. Unknown items and codes are
// acknowledged with 200 so Plaid does not retry them.
func (h *WebhooksHandler) Plaid(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readPayload(w, r, "plaid")
	if !ok {
		return
	}
	hook, err := ParsePlaidWebhook(payload)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid Plaid webhook")
		return
	}
	log := h.log.With().Str("item_id", hook.ItemID).Str("type", hook.WebhookType).Str("code", hook.WebhookCode).Logger()

	action, err := h.handlePlaid(r.Context(), hook, log)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn().Msg("Webhook for unknown item")
		action, err = WebhookIgnored, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to handle Plaid webhook")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to handle webhook")
		return
	}
	log.Info().Str("action", action).Msg("Plaid webhook handled")
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"received": true, "action": action})
}

func (h *WebhooksHandler) handlePlaid(ctx context.Context, hook PlaidWebhook, log zerolog.Logger) (string, error) {
	switch {
	case hook.TriggersProcessing():
		item, err := h.items.GetItemByPlaidID(ctx, hook.ItemID)
		if err != nil {
			return "", err
		}
		job := &jobs.Job{
			Type:   jobs.JobTypeProcessUser,
			UserID: item.UserID,
			Params: map[string]string{"item_id": hook.ItemID, "webhook_code": hook.WebhookCode},
		}
		if err := h.publisher.Publish(ctx, job); err != nil {
			return "", err
		}
		log.Debug().Str("job_id", job.ID).Msg("Queued processing job")
		return WebhookQueued, nil

	case hook.WebhookType == plaidTypeItem:
		status, errorCode := "", ""
		switch hook.WebhookCode {
		case plaidCodeError:
			status = domain.ItemStatusError
			if hook.Error != nil {
				errorCode = hook.Error.ErrorCode
				if errorCode == plaidErrorLoginRequired {
					status = domain.ItemStatusLoginRequired
				}
			}
		case plaidCodePendingExpiration:
			status = domain.ItemStatusPendingExpiration
		case plaidCodeLoginRepaired:
			status = domain.ItemStatusActive
		default:
			return WebhookIgnored, nil
		}
		if err := h.items.UpdateItemStatus(ctx, hook.ItemID, status, errorCode); err != nil {
			return "", err
		}
		return WebhookUpdated, nil
	}
	return WebhookIgnored, nil
}

// SlickText handles POST /api/webhooks/slicktext: STOP/START/HELP replies.
func (h *WebhooksHandler) SlickText(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.readPayload(w, r, "slicktext")
	if !ok {
		return
	}
	var hook slickTextWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid SlickText webhook")
		return
	}
	from := hook.From
	if from == "" {
		from = hook.PhoneNumber
	}
	body := hook.Body
	if body == "" {
		body = hook.Message
	}

	res, err := h.inbound.HandleInbound(r.Context(), from, body)
	if err != nil {
		if errors.Is(err, sms.ErrInvalidPhone) {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid phone number")
			return
		}
		h.log.Error().Err(err).Msg("Failed to handle inbound SMS")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to handle webhook")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}
