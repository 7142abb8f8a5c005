// Package pacing compares month-to-date spending on a merchant or category
// against its recent monthly average.
package pacing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// HistoryMonths is the number of full months before the current one used
// for the monthly average.
const HistoryMonths = 3

// Status is the pacing verdict for a tracked merchant or category.
type Status string

const (
	StatusUnder     Status = "under"
	StatusOnTrack   Status = "on_track"
	StatusOver      Status = "over"
	StatusNoHistory Status = "no_history"
)

// Key identifies what is being paced.
type Key struct {
	Kind domain.PacingKind
	Name string
}

// Report is the pacing picture for one key.
type Report struct {
	Kind           domain.PacingKind `json:"kind"`
	Name           string            `json:"name"`
	MonthToDate    decimal.Decimal   `json:"month_to_date"`
	AverageMonthly decimal.Decimal   `json:"average_monthly"`
	ExpectedToDate decimal.Decimal   `json:"expected_to_date"`
	PacingPercent  int               `json:"pacing_percent"`
	Status         Status            `json:"status"`
	Transactions   int               `json:"transactions_this_month"`
}

// Matches reports whether tx counts toward key.
func (k Key) Matches(tx domain.Transaction) bool {
	want := strings.ToLower(strings.TrimSpace(k.Name))
	if want == "" {
		return false
	}
	switch k.Kind {
	case domain.PacingCategory:
		return strings.ToLower(tx.SpendCategory()) == want
	default:
		return strings.ToLower(tx.Merchant()) == want
	}
}

// Compute builds the pacing report for key as of now. The average is the
// spend over the previous HistoryMonths full months divided by
// HistoryMonths, so months without spend on key count as zero.
func Compute(txs []domain.Transaction, key Key, now time.Time) Report {
	today := recurring.DayOf(now)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	historyStart := monthStart.AddDate(0, -HistoryMonths, 0)

	r := Report{
		Kind:           key.Kind,
		Name:           key.Name,
		MonthToDate:    decimal.Zero,
		AverageMonthly: decimal.Zero,
		ExpectedToDate: decimal.Zero,
		Status:         StatusNoHistory,
	}

	history := decimal.Zero
	for _, tx := range txs {
		if !tx.IsOutflow() || !key.Matches(tx) {
			continue
		}
		d := recurring.DayOf(tx.Date)
		switch {
		case !d.Before(monthStart) && !d.After(today):
			r.MonthToDate = r.MonthToDate.Add(tx.Amount)
			r.Transactions++
		case !d.Before(historyStart) && d.Before(monthStart):
			history = history.Add(tx.Amount)
		}
	}

	if !history.IsPositive() {
		return r
	}

	r.AverageMonthly = history.Div(decimal.NewFromInt(HistoryMonths)).Round(2)
	dim := monthStart.AddDate(0, 1, -1).Day()
	r.ExpectedToDate = r.AverageMonthly.
		Mul(decimal.NewFromInt(int64(today.Day()))).
		Div(decimal.NewFromInt(int64(dim))).
		Round(2)
	if !r.ExpectedToDate.IsPositive() {
		return r
	}

	r.PacingPercent = int(r.MonthToDate.Div(r.ExpectedToDate).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	r.Status = StatusFor(r.PacingPercent)
	return r
}

// StatusFor maps a pacing percent to a status.
func StatusFor(percent int) Status {
	switch {
	case percent < 90:
		return StatusUnder
	case percent > 110:
		return StatusOver
	default:
		return StatusOnTrack
	}
}

// ComputeAll reports on every active track.
func ComputeAll(txs []domain.Transaction, tracks []domain.PacingTrack, now time.Time) []Report {
	reports := make([]Report, 0, len(tracks))
	for _, t := range tracks {
		if !t.IsActive {
			continue
		}
		reports = append(reports, Compute(txs, Key{Kind: t.Kind, Name: t.Name}, now))
	}
	return reports
}
