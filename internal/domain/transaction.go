package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one bank transaction as synced from Plaid into the
// transactions table. Amount follows the Plaid sign convention:
// positive = money leaving the account, negative = money coming in.
type Transaction struct {
	ID                 string          `json:"id"`
	PlaidTransactionID string          `json:"plaid_transaction_id"`
	UserID             string          `json:"user_id"`
	ItemID             string          `json:"item_id"`
	AccountID          string          `json:"account_id"`
	Date               time.Time       `json:"date"`
	Name               string          `json:"name"`
	MerchantName       string          `json:"merchant_name,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Category           string          `json:"category,omitempty"`
	Subcategory        string          `json:"subcategory,omitempty"`
	Pending            bool            `json:"pending"`
	AIMerchantName     string          `json:"ai_merchant_name,omitempty"`
	AICategoryTag      string          `json:"ai_category_tag,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Merchant returns the best display name for the counterparty:
// the AI/rule normalized name, then Plaid's merchant name, then the raw name.
func (t Transaction) Merchant() string {
	for _, s := range []string{t.AIMerchantName, t.MerchantName, t.Name} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// SpendCategory returns the AI category tag when present, else the Plaid category.
func (t Transaction) SpendCategory() string {
	if t.AICategoryTag != "" {
		return t.AICategoryTag
	}
	return t.Category
}

// IsOutflow reports whether money left the account.
func (t Transaction) IsOutflow() bool {
	return t.Amount.IsPositive()
}

// IsTagged reports whether the AI tagger has already processed the transaction.
func (t Transaction) IsTagged() bool {
	return t.AIMerchantName != "" && t.AICategoryTag != ""
}

// Item is a Plaid item (one bank login) owned by a user.
type Item struct {
	ID              int64      `json:"id"`
	PlaidItemID     string     `json:"plaid_item_id"`
	UserID          string     `json:"user_id"`
	InstitutionName string     `json:"institution_name,omitempty"`
	Status          string     `json:"status"`
	ErrorCode       string     `json:"error_code,omitempty"`
	LastWebhookAt   *time.Time `json:"last_webhook_at,omitempty"`
}

// Item statuses.
const (
	ItemStatusActive            = "active"
	ItemStatusLoginRequired     = "login_required"
	ItemStatusPendingExpiration = "pending_expiration"
	ItemStatusError             = "error"
)
