package recurring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// DetectOptions tunes recurring-merchant detection.
type DetectOptions struct {
	// MinOccurrences is the minimum number of distinct charge days.
	MinOccurrences int
	// AmountTolerance is the fractional deviation from the median amount
	// still counted as "the same bill".
	AmountTolerance float64
}

// DefaultDetectOptions returns the production detection thresholds.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		MinOccurrences:  3,
		AmountTolerance: 0.2,
	}
}

// Candidate is a merchant that looks like a recurring bill.
type Candidate struct {
	MerchantName   string           `json:"merchant_name"`
	Frequency      domain.Frequency `json:"frequency"`
	ExpectedAmount decimal.Decimal  `json:"expected_amount"`
	LastDate       time.Time        `json:"last_date"`
	NextDate       time.Time        `json:"next_date"`
	Occurrences    int              `json:"occurrences"`
	Confidence     int              `json:"confidence"`
}

// ToTaggedMerchant converts a candidate into an auto-detected, inactive row.
func (c Candidate) ToTaggedMerchant(userID string) domain.TaggedMerchant {
	last := c.LastDate
	return domain.TaggedMerchant{
		UserID:              userID,
		MerchantName:        c.MerchantName,
		ExpectedAmount:      c.ExpectedAmount,
		PredictionFrequency: c.Frequency,
		NextPredictedDate:   c.NextDate,
		LastTransactionDate: &last,
		ConfidenceScore:     c.Confidence,
		AutoDetected:        true,
	}
}

type interval struct {
	freq      domain.Frequency
	min, max  int
	nominal   int
	tolerance int
}

var intervals = []interval{
	{domain.FrequencyWeekly, 5, 9, 7, 2},
	{domain.FrequencyBiweekly, 12, 16, 14, 3},
	{domain.FrequencyMonthly, 26, 35, 30, 5},
	{domain.FrequencyQuarterly, 85, 95, 91, 7},
	{domain.FrequencyAnnually, 355, 375, 365, 10},
}

func classify(days int) (interval, bool) {
	for _, iv := range intervals {
		if days >= iv.min && days <= iv.max {
			return iv, true
		}
	}
	return interval{}, false
}

type charge struct {
	date   time.Time
	amount decimal.Decimal
	name   string
}

// Detect groups outflows by merchant and returns those charged on a regular
// schedule, highest confidence first.
func Detect(txs []domain.Transaction, now time.Time, opts DetectOptions) []Candidate {
	if opts.MinOccurrences < 2 {
		opts.MinOccurrences = 2
	}

	groups := make(map[string][]charge)
	for _, tx := range txs {
		if !tx.IsOutflow() || tx.Pending {
			continue
		}
		name := tx.Merchant()
		key := strings.ToLower(name)
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], charge{date: DayOf(tx.Date), amount: tx.Amount, name: name})
	}

	var out []Candidate
	for _, charges := range groups {
		if c, ok := detectOne(charges, now, opts); ok {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].MerchantName < out[j].MerchantName
	})
	return out
}

func detectOne(charges []charge, now time.Time, opts DetectOptions) (Candidate, bool) {
	sort.Slice(charges, func(i, j int) bool { return charges[i].date.Before(charges[j].date) })

	// One charge per day; split payments on the same day count once.
	days := charges[:0:0]
	for _, c := range charges {
		if n := len(days); n > 0 && days[n-1].date.Equal(c.date) {
			days[n-1].amount = days[n-1].amount.Add(c.amount)
			continue
		}
		days = append(days, c)
	}
	if len(days) < opts.MinOccurrences {
		return Candidate{}, false
	}

	gaps := make([]int, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		gaps = append(gaps, DaysBetween(days[i-1].date, days[i].date))
	}
	iv, ok := classify(medianInt(gaps))
	if !ok {
		return Candidate{}, false
	}

	regular := 0
	for _, g := range gaps {
		if abs(g-iv.nominal) <= iv.tolerance || (g >= iv.min && g <= iv.max) {
			regular++
		}
	}

	amounts := make([]decimal.Decimal, len(days))
	for i, d := range days {
		amounts[i] = d.amount
	}
	expected := medianDecimal(amounts)

	stable := 0
	if expected.IsPositive() {
		limit := expected.Mul(decimal.NewFromFloat(opts.AmountTolerance))
		for _, a := range amounts {
			if a.Sub(expected).Abs().LessThanOrEqual(limit) {
				stable++
			}
		}
	}

	regularity := float64(regular) / float64(len(gaps))
	stability := float64(stable) / float64(len(amounts))
	confidence := int(math.Round(60*regularity + 40*stability))

	last := days[len(days)-1]
	next, err := NextAfter(last.date, iv.freq, now)
	if err != nil {
		return Candidate{}, false
	}

	return Candidate{
		MerchantName:   last.name,
		Frequency:      iv.freq,
		ExpectedAmount: expected.Round(2),
		LastDate:       last.date,
		NextDate:       next,
		Occurrences:    len(days),
		Confidence:     confidence,
	}, true
}

func medianInt(xs []int) int {
	s := append([]int(nil), xs...)
	sort.Ints(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func medianDecimal(xs []decimal.Decimal) decimal.Decimal {
	s := append([]decimal.Decimal(nil), xs...)
	sort.Slice(s, func(i, j int) bool { return s[i].LessThan(s[j]) })
	n := len(s)
	if n == 0 {
		return decimal.Zero
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return s[n/2-1].Add(s[n/2]).Div(decimal.NewFromInt(2))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
