package pacing

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budgenudge/internal/adf"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// AutoSelectOptions tunes AutoSelect.
type AutoSelectOptions struct {
	Kind            domain.PacingKind
	Now             time.Time
	MinMonthlySpend decimal.Decimal
	MinTransactions int
	LookbackMonths  int
	MaxSelections   int
	// Classifier excludes fixed expenses from selection. Nil uses the defaults.
	Classifier *adf.Classifier
}

// DefaultAutoSelectOptions returns the production thresholds.
func DefaultAutoSelectOptions(kind domain.PacingKind, now time.Time) AutoSelectOptions {
	return AutoSelectOptions{
		Kind:            kind,
		Now:             now,
		MinMonthlySpend: decimal.NewFromInt(50),
		MinTransactions: 3,
		LookbackMonths:  3,
		MaxSelections:   3,
	}
}

// Candidate is a merchant or category worth tracking.
type Candidate struct {
	Name           string          `json:"name"`
	TotalSpend     decimal.Decimal `json:"total_spend"`
	AverageMonthly decimal.Decimal `json:"average_monthly"`
	Transactions   int             `json:"transactions"`
}

// ToTrack converts c into an auto-selected pacing track.
func (c Candidate) ToTrack(userID string, kind domain.PacingKind) domain.PacingTrack {
	return domain.PacingTrack{
		UserID:       userID,
		Kind:         kind,
		Name:         c.Name,
		IsActive:     true,
		AutoSelected: true,
	}
}

type bucket struct {
	name  string
	total decimal.Decimal
	count int
}

// AutoSelect picks the highest-spend merchants or categories that are not
// already tracked. The number picked never exceeds MaxSelections minus the
// active tracks of the same kind.
func AutoSelect(txs []domain.Transaction, existing []domain.PacingTrack, opts AutoSelectOptions) []Candidate {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = adf.NewClassifier()
	}
	if opts.LookbackMonths <= 0 {
		opts.LookbackMonths = 3
	}

	tracked := make(map[string]bool)
	active := 0
	for _, t := range existing {
		if t.Kind != opts.Kind {
			continue
		}
		tracked[strings.ToLower(strings.TrimSpace(t.Name))] = true
		if t.IsActive {
			active++
		}
	}
	remaining := opts.MaxSelections - active
	if remaining <= 0 {
		return nil
	}

	today := recurring.DayOf(opts.Now)
	since := today.AddDate(0, -opts.LookbackMonths, 0)

	buckets := make(map[string]*bucket)
	var order []string
	for _, tx := range txs {
		if !tx.IsOutflow() || tx.Pending {
			continue
		}
		d := recurring.DayOf(tx.Date)
		if d.Before(since) || d.After(today) {
			continue
		}

		var name string
		switch opts.Kind {
		case domain.PacingCategory:
			name = tx.SpendCategory()
			if classifier.IsFixedCategory(name) {
				continue
			}
		default:
			name = tx.Merchant()
			if classifier.Classify(tx) == adf.KindFixed {
				continue
			}
		}
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if key == "" || tracked[key] {
			continue
		}

		b, ok := buckets[key]
		if !ok {
			b = &bucket{name: name, total: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		b.total = b.total.Add(tx.Amount)
		b.count++
	}

	months := decimal.NewFromInt(int64(opts.LookbackMonths))
	var out []Candidate
	for _, key := range order {
		b := buckets[key]
		avg := b.total.Div(months).Round(2)
		if b.count < opts.MinTransactions || avg.LessThan(opts.MinMonthlySpend) {
			continue
		}
		out = append(out, Candidate{
			Name:           b.name,
			TotalSpend:     b.total,
			AverageMonthly: avg,
			Transactions:   b.count,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].TotalSpend.Equal(out[j].TotalSpend) {
			return out[i].TotalSpend.GreaterThan(out[j].TotalSpend)
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if len(out) > remaining {
		out = out[:remaining]
	}
	return out
}
