package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often a recurring bill repeats.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnually  Frequency = "annually"
)

// ParseFrequency normalizes user input such as "Bi-Weekly" or "yearly".
func ParseFrequency(s string) (Frequency, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "")
	switch norm {
	case "weekly":
		return FrequencyWeekly, nil
	case "biweekly":
		return FrequencyBiweekly, nil
	case "monthly":
		return FrequencyMonthly, nil
	case "quarterly":
		return FrequencyQuarterly, nil
	case "annually", "annual", "yearly":
		return FrequencyAnnually, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// TaggedMerchant is a merchant the user (or detection) marked as a recurring bill.
type TaggedMerchant struct {
	ID                  int64           `json:"id"`
	UserID              string          `json:"user_id"`
	MerchantName        string          `json:"merchant_name"`
	ExpectedAmount      decimal.Decimal `json:"expected_amount"`
	PredictionFrequency Frequency       `json:"prediction_frequency"`
	NextPredictedDate   time.Time       `json:"next_predicted_date"`
	LastTransactionDate *time.Time      `json:"last_transaction_date,omitempty"`
	ConfidenceScore     int             `json:"confidence_score"`
	IsActive            bool            `json:"is_active"`
	AutoDetected        bool            `json:"auto_detected"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// PacingKind distinguishes merchant tracking from category tracking.
type PacingKind string

const (
	PacingMerchant PacingKind = "merchant"
	PacingCategory PacingKind = "category"
)

// PacingTrack is one row of merchant_pacing_tracking or category_pacing_tracking.
type PacingTrack struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Kind         PacingKind `json:"kind"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"is_active"`
	AutoSelected bool       `json:"auto_selected"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IncomeProfile describes a user's expected income.
type IncomeProfile struct {
	UserID        string          `json:"user_id"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	PayFrequency  Frequency       `json:"pay_frequency,omitempty"`
	NextPayDate   *time.Time      `json:"next_pay_date,omitempty"`
}
