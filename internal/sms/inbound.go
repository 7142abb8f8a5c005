package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Inbound actions.
const (
	ActionOptOut = "opt_out"
	ActionOptIn  = "opt_in"
	ActionHelp   = "help"
	ActionNone   = "none"
)

const (
	replyOptOut = "You're unsubscribed from Krezzo texts. Reply START to resubscribe."
	replyOptIn  = "You're subscribed to Krezzo texts again. Reply STOP to unsubscribe."
	replyHelp   = "Krezzo: daily spending texts. Reply STOP to unsubscribe, START to resubscribe."
)

var keywords = map[string]string{
	"STOP":        ActionOptOut,
	"STOPALL":     ActionOptOut,
	"UNSUBSCRIBE": ActionOptOut,
	"CANCEL":      ActionOptOut,
	"END":         ActionOptOut,
	"QUIT":        ActionOptOut,
	"START":       ActionOptIn,
	"UNSTOP":      ActionOptIn,
	"YES":         ActionOptIn,
	"HELP":        ActionHelp,
	"INFO":        ActionHelp,
}

// OptOutStore flips the opt-out flag for every preference row with phone.
type OptOutStore interface {
	SetSMSOptOut(ctx context.Context, phone string, optedOut bool) (int64, error)
}

// InboundResult is what HandleInbound did and what to reply.
type InboundResult struct {
	Phone  string `json:"phone"`
	Action string `json:"action"`
	Reply  string `json:"reply,omitempty"`
}

// InboundHandler processes replies from recipients.
type InboundHandler struct {
	store OptOutStore
	log   zerolog.Logger
}

// NewInboundHandler creates an InboundHandler.
func NewInboundHandler(store OptOutStore, log zerolog.Logger) *InboundHandler {
	return &InboundHandler{store: store, log: log}
}

// ParseKeyword maps the first word of body to an action.
func ParseKeyword(body string) string {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return ActionNone
	}
	word := strings.ToUpper(strings.Trim(fields[0], ".!?,;:\"'"))
	if action, ok := keywords[word]; ok {
		return action
	}
	return ActionNone
}

// HandleInbound applies opt-out and opt-in keywords from phone.
func (h *InboundHandler) HandleInbound(ctx context.Context, from, body string) (*InboundResult, error) {
	phone, err := NormalizePhone(from)
	if err != nil {
		return nil, fmt.Errorf("HandleInbound: %w", err)
	}
	res := &InboundResult{Phone: phone, Action: ParseKeyword(body)}

	switch res.Action {
	case ActionOptOut, ActionOptIn:
		optOut := res.Action == ActionOptOut
		n, err := h.store.SetSMSOptOut(ctx, phone, optOut)
		if err != nil {
			return nil, fmt.Errorf("HandleInbound: update opt-out: %w", err)
		}
		if n == 0 {
			h.log.Warn().Str("phone", MaskPhone(phone)).Msg("Inbound keyword from unknown number")
		}
		h.log.Info().Str("phone", MaskPhone(phone)).Bool("opted_out", optOut).Int64("rows", n).Msg("Updated SMS opt-out")
		if optOut {
			res.Reply = replyOptOut
		} else {
			res.Reply = replyOptIn
		}
	case ActionHelp:
		res.Reply = replyHelp
	default:
		h.log.Debug().Str("phone", MaskPhone(phone)).Msg("Ignoring inbound message without keyword")
	}
	return res, nil
}
