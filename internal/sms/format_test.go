package sms

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/adf"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/pacing"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"(555) 123-4567", "+15551234567", false},
		{"555.123.4567", "+15551234567", false},
		{"1-555-123-4567", "+15551234567", false},
		{"+44 20 7946 0958", "+442079460958", false},
		{"+1 555 123 4567", "+15551234567", false},
		{" +1 (212) 555-0100 ", "+12125550100", false},
		{"555-1234", "", true},
		{"+1 234 5678", "", true},
		{"12345", "", true},
		{"2555123456789", "", true},
		{"+1234567", "", true},
		{"555-CALL-NOW", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$0.00", FormatMoney(decimal.Zero))
	assert.Equal(t, "$15.49", FormatMoney(dec("15.49")))
	assert.Equal(t, "$999.50", FormatMoney(dec("999.5")))
	assert.Equal(t, "$1,234.56", FormatMoney(dec("1234.56")))
	assert.Equal(t, "$1,234,567.00", FormatMoney(dec("1234567")))
	assert.Equal(t, "-$2,000.10", FormatMoney(dec("-2000.1")))
	assert.Equal(t, "$1,000.00", FormatMoney(dec("999.995")))
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, Truncate(short))

	long := strings.Repeat("a", MaxMessageLength+50)
	got := Truncate(long)
	assert.Len(t, []rune(got), MaxMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestFormatBills(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	bills := []domain.TaggedMerchant{
		{MerchantName: "Netflix", ExpectedAmount: dec("15.49"), NextPredictedDate: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), IsActive: true},
		{MerchantName: "Rent", ExpectedAmount: dec("1400"), NextPredictedDate: time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), IsActive: true},
		{MerchantName: "Gym", ExpectedAmount: dec("30"), NextPredictedDate: time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC), IsActive: true},
	}

	body, err := FormatBills(bills, now)
	require.NoError(t, err)
	assert.Equal(t, "Upcoming bills:\nSat 10/17 Rent $1,400.00\nMon 10/19 Netflix $15.49\nTotal: $1,415.49", body)

	_, err = FormatBills(bills[2:], now)
	assert.ErrorIs(t, err, ErrNothingToSend)
}

func TestFormatPacing(t *testing.T) {
	reports := []pacing.Report{
		{Name: "Starbucks", MonthToDate: dec("155"), ExpectedToDate: dec("154.84"), PacingPercent: 100, Status: pacing.StatusOnTrack},
		{Name: "New Place", Status: pacing.StatusNoHistory},
	}
	body, err := FormatPacing(reports)
	require.NoError(t, err)
	assert.Equal(t, "Spending pace this month:\nStarbucks: $155.00 vs $154.84 expected (100%, on track)", body)

	_, err = FormatPacing(reports[1:])
	assert.ErrorIs(t, err, ErrNothingToSend)
}

func TestFormatDailySummary(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{MerchantName: "Chipotle", Amount: dec("12.50"), Date: yesterday},
		{MerchantName: "Shell", Amount: dec("40"), Date: yesterday},
		{MerchantName: "chipotle", Amount: dec("8"), Date: yesterday},
		{MerchantName: "Payroll", Amount: dec("-1000"), Date: yesterday},
		{MerchantName: "Target", Amount: dec("99"), Date: now},
	}

	body, err := FormatDailySummary(txs, now)
	require.NoError(t, err)
	assert.Equal(t, "Yesterday you spent $60.50 across 3 transactions.\n- Shell $40.00\n- Chipotle $20.50", body)

	_, err = FormatDailySummary(txs[4:], now)
	assert.ErrorIs(t, err, ErrNothingToSend)
}

func TestFormatADF(t *testing.T) {
	body, err := FormatADF(adf.Summary{
		ExpectedIncome: dec("3000"),
		FixedSpent:     dec("1400"),
		UpcomingBills:  dec("100"),
		Available:      dec("1200"),
		DailyAllowance: dec("75"),
		DaysLeft:       16,
	})
	require.NoError(t, err)
	assert.Equal(t, "Available to spend: $1,200.00 for the rest of the month.\nThat's $75.00/day for 16 days.\nBills still due: $100.00", body)

	_, err = FormatADF(adf.Summary{})
	assert.ErrorIs(t, err, ErrNothingToSend)
}
