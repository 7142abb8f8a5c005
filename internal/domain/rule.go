package domain

// MatchType selects how a rule pattern is compared with a merchant string.
type MatchType string

const (
	MatchStartsWith MatchType = "starts_with"
	MatchContains   MatchType = "contains"
	MatchRegex      MatchType = "regex"
	MatchExact      MatchType = "exact"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	switch m {
	case MatchStartsWith, MatchContains, MatchRegex, MatchExact:
		return true
	}
	return false
}

// Rule rewrites the merchant name and/or category of matching transactions.
type Rule struct {
	ID              int64     `json:"id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	MatchType       MatchType `json:"match_type"`
	Pattern         string    `json:"pattern"`
	Priority        int       `json:"priority"`
	SetMerchantName string    `json:"set_merchant_name,omitempty"`
	SetCategory     string    `json:"set_category,omitempty"`
	IsActive        bool      `json:"is_active"`
}
