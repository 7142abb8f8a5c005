package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// TransactionRow is one row of <dataset>.transactions.
type TransactionRow struct {
	TransactionID      string `bigquery:"transaction_id"`       // REQUIRED
	PlaidTransactionID string `bigquery:"plaid_transaction_id"` // REQUIRED
	UserID             string `bigquery:"user_id"`              // REQUIRED
	AccountID          string `bigquery:"account_id"`           // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	Amount          *big.Rat   `bigquery:"amount"`           // REQUIRED NUMERIC

	Name           string              `bigquery:"name"`             // REQUIRED
	MerchantName   bigquery.NullString `bigquery:"merchant_name"`    // NULLABLE
	Category       bigquery.NullString `bigquery:"category"`         // NULLABLE
	Subcategory    bigquery.NullString `bigquery:"subcategory"`      // NULLABLE
	AIMerchantName bigquery.NullString `bigquery:"ai_merchant_name"` // NULLABLE
	AICategoryTag  bigquery.NullString `bigquery:"ai_category_tag"`  // NULLABLE

	IsPending bool `bigquery:"is_pending"`
	IsOutflow bool `bigquery:"is_outflow"`

	ExportedTS time.Time `bigquery:"exported_ts"` // REQUIRED
}

// SMSSendRow is one row of <dataset>.sms_sends.
type SMSSendRow struct {
	LogID        string              `bigquery:"log_id"`
	UserID       string              `bigquery:"user_id"`
	TemplateType string              `bigquery:"template_type"`
	SendDate     civil.Date          `bigquery:"send_date"`
	Status       string              `bigquery:"status"`
	MessageID    bigquery.NullString `bigquery:"message_id"`
	BodyLength   int64               `bigquery:"body_length"`
	ExportedTS   time.Time           `bigquery:"exported_ts"`
}

// CategorySpendRow is one result row of MonthlyCategorySpend.
type CategorySpendRow struct {
	Month        civil.Date `bigquery:"month"`
	Category     string     `bigquery:"category"`
	Total        *big.Rat   `bigquery:"total"`
	Transactions int64      `bigquery:"transactions"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

// NewTransactionRow converts a domain transaction for export.
func NewTransactionRow(t domain.Transaction, exported time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID:      t.ID,
		PlaidTransactionID: t.PlaidTransactionID,
		UserID:             t.UserID,
		AccountID:          t.AccountID,
		TransactionDate:    civil.DateOf(t.Date),
		Amount:             t.Amount.Rat(),
		Name:               t.Name,
		MerchantName:       nullString(t.MerchantName),
		Category:           nullString(t.Category),
		Subcategory:        nullString(t.Subcategory),
		AIMerchantName:     nullString(t.AIMerchantName),
		AICategoryTag:      nullString(t.AICategoryTag),
		IsPending:          t.Pending,
		IsOutflow:          t.IsOutflow(),
		ExportedTS:         exported,
	}
}

// NewSMSSendRow converts a send log entry for export. The body and phone
// number are not exported.
func NewSMSSendRow(e domain.SMSLogEntry, exported time.Time) (*SMSSendRow, error) {
	day, err := civil.ParseDate(e.SendDate)
	if err != nil {
		return nil, err
	}
	return &SMSSendRow{
		LogID:        e.ID,
		UserID:       e.UserID,
		TemplateType: string(e.TemplateType),
		SendDate:     day,
		Status:       e.Status,
		MessageID:    nullString(e.MessageID),
		BodyLength:   int64(len([]rune(e.Body))),
		ExportedTS:   exported,
	}, nil
}
