package bigquery

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/domain"
)

func TestNewTransactionRow(t *testing.T) {
	exported := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tx := domain.Transaction{
		ID:                 "c0ffee",
		PlaidTransactionID: "plaid-1",
		UserID:             "user-1",
		AccountID:          "acc-1",
		Date:               time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
		Name:               "SQ *BLUE BOTTLE",
		Amount:             decimal.RequireFromString("4.75"),
		Category:           "FOOD_AND_DRINK",
		AICategoryTag:      "Coffee",
	}

	row := NewTransactionRow(tx, exported)
	assert.Equal(t, civil.Date{Year: 2026, Month: time.October, Day: 15}, row.TransactionDate)
	assert.Equal(t, "19/4", row.Amount.String())
	assert.True(t, row.IsOutflow)
	assert.False(t, row.MerchantName.Valid)
	assert.True(t, row.Category.Valid)
	assert.Equal(t, "Coffee", row.AICategoryTag.StringVal)
	assert.Equal(t, exported, row.ExportedTS)
}

func TestNewSMSSendRow(t *testing.T) {
	row, err := NewSMSSendRow(domain.SMSLogEntry{
		ID:           "log-1",
		UserID:       "user-1",
		PhoneNumber:  "+15551234567",
		TemplateType: domain.TemplateADF,
		SendDate:     "2026-10-16",
		Status:       domain.SMSStatusSent,
		Body:         "héllo",
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2026, Month: time.October, Day: 16}, row.SendDate)
	assert.Equal(t, int64(5), row.BodyLength)
	assert.False(t, row.MessageID.Valid)

	_, err = NewSMSSendRow(domain.SMSLogEntry{SendDate: "16/10/2026"}, time.Now())
	assert.Error(t, err)
}
