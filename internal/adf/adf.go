// Package adf computes Available Discretionary Funds: income left after
// fixed bills and discretionary spending for the current month.
package adf

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// Kind is the ADF bucket of a transaction.
type Kind string

const (
	KindIncome        Kind = "income"
	KindFixed         Kind = "fixed"
	KindDiscretionary Kind = "discretionary"
)

// DefaultFixedKeywords are merchant fragments that always indicate a fixed expense.
var DefaultFixedKeywords = []string{
	"rent", "mortgage", "insurance", "geico", "state farm", "progressive",
	"electric", "utility", "utilities", "water dept", "sewer", "duke energy",
	"loan", "navient", "sallie mae", "car payment", "auto pay",
	"verizon", "at&t", "t-mobile", "comcast", "xfinity", "spectrum", "internet",
	"hoa", "childcare", "daycare", "tuition",
}

// DefaultFixedCategories are Plaid primary categories (or AI tags) that are fixed.
var DefaultFixedCategories = []string{
	"RENT_AND_UTILITIES", "LOAN_PAYMENTS", "TRANSFER_OUT", "BANK_FEES",
	"RENT", "UTILITIES", "INSURANCE", "LOAN", "MORTGAGE",
}

// Classifier assigns transactions to ADF buckets. Safe for concurrent use
// after construction.
type Classifier struct {
	keywords   []string
	categories map[string]bool
	recurring  map[string]bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithKeywords replaces the fixed-expense keyword list.
func WithKeywords(keywords []string) Option {
	return func(c *Classifier) {
		c.keywords = nil
		for _, k := range keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				c.keywords = append(c.keywords, k)
			}
		}
	}
}

// WithRecurring marks the given active tagged merchants as fixed expenses.
func WithRecurring(merchants []domain.TaggedMerchant) Option {
	return func(c *Classifier) {
		for _, m := range merchants {
			if m.IsActive {
				c.recurring[strings.ToLower(strings.TrimSpace(m.MerchantName))] = true
			}
		}
	}
}

// NewClassifier builds a classifier with the default keyword and category lists.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{
		categories: make(map[string]bool),
		recurring:  make(map[string]bool),
	}
	WithKeywords(DefaultFixedKeywords)(c)
	for _, cat := range DefaultFixedCategories {
		c.categories[normalizeCategory(cat)] = true
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsFixedCategory reports whether category counts as a fixed expense.
func (c *Classifier) IsFixedCategory(category string) bool {
	return c.categories[normalizeCategory(category)]
}

// MatchesFixedKeyword reports whether text contains a fixed-expense keyword.
func (c *Classifier) MatchesFixedKeyword(text string) bool {
	lower := strings.ToLower(text)
	if lower == "" {
		return false
	}
	for _, k := range c.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Classify returns the ADF bucket for tx.
func (c *Classifier) Classify(tx domain.Transaction) Kind {
	if !tx.IsOutflow() {
		return KindIncome
	}
	if c.recurring[strings.ToLower(tx.Merchant())] {
		return KindFixed
	}
	if c.MatchesFixedKeyword(tx.Merchant()) || c.MatchesFixedKeyword(tx.Name) {
		return KindFixed
	}
	if c.IsFixedCategory(tx.Category) || c.IsFixedCategory(tx.AICategoryTag) {
		return KindFixed
	}
	return KindDiscretionary
}

func normalizeCategory(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	return strings.ReplaceAll(s, " ", "_")
}

// Summary is the month-to-date ADF picture returned by GET /api/adf.
type Summary struct {
	MonthStart         time.Time       `json:"month_start"`
	ExpectedIncome     decimal.Decimal `json:"expected_income"`
	ReceivedIncome     decimal.Decimal `json:"received_income"`
	FixedSpent         decimal.Decimal `json:"fixed_spent"`
	DiscretionarySpent decimal.Decimal `json:"discretionary_spent"`
	UpcomingBills      decimal.Decimal `json:"upcoming_bills"`
	Available          decimal.Decimal `json:"available"`
	DaysLeft           int             `json:"days_left"`
	DailyAllowance     decimal.Decimal `json:"daily_allowance"`
}

// Calculate computes the ADF summary for the month containing now. When
// profile is nil or has no income, income received so far is used instead.
func Calculate(c *Classifier, profile *domain.IncomeProfile, txs []domain.Transaction, bills []domain.TaggedMerchant, now time.Time) Summary {
	today := recurring.DayOf(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)

	s := Summary{
		MonthStart:         monthStart,
		ReceivedIncome:     decimal.Zero,
		FixedSpent:         decimal.Zero,
		DiscretionarySpent: decimal.Zero,
		UpcomingBills:      decimal.Zero,
		DailyAllowance:     decimal.Zero,
	}

	for _, tx := range txs {
		d := recurring.DayOf(tx.Date)
		if d.Before(monthStart) || d.After(today) {
			continue
		}
		switch c.Classify(tx) {
		case KindIncome:
			s.ReceivedIncome = s.ReceivedIncome.Add(tx.Amount.Neg())
		case KindFixed:
			s.FixedSpent = s.FixedSpent.Add(tx.Amount)
		case KindDiscretionary:
			s.DiscretionarySpent = s.DiscretionarySpent.Add(tx.Amount)
		}
	}

	daysLeft := recurring.DaysBetween(today, monthEnd) + 1
	for _, b := range recurring.Upcoming(bills, now, daysLeft-1) {
		s.UpcomingBills = s.UpcomingBills.Add(b.ExpectedAmount)
	}

	s.ExpectedIncome = s.ReceivedIncome
	if profile != nil && profile.MonthlyIncome.IsPositive() {
		s.ExpectedIncome = profile.MonthlyIncome
	}

	s.Available = s.ExpectedIncome.Sub(s.FixedSpent).Sub(s.UpcomingBills).Sub(s.DiscretionarySpent)
	s.DaysLeft = daysLeft
	if s.Available.IsPositive() {
		s.DailyAllowance = s.Available.Div(decimal.NewFromInt(int64(daysLeft))).Round(2)
	}
	return s
}
