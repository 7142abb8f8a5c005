// Package recurring predicts the next due date of recurring bills and
// detects recurring merchants from transaction history.
package recurring

import (
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/budgenudge/internal/domain"
)

// maxSteps bounds NextAfter so a very old anchor date cannot spin forever.
const maxSteps = 10000

// Advance returns date moved forward by one period of freq. Month-based
// frequencies clamp to the last day of the target month.
func Advance(date time.Time, freq domain.Frequency) (time.Time, error) {
	return step(date, freq, 1)
}

// NextAfter returns the first occurrence of the schedule anchored at last
// whose calendar date is strictly after now's calendar date. Steps are
// computed from the anchor, so Jan 31 monthly yields Feb 28, Mar 31, Apr 30.
func NextAfter(last time.Time, freq domain.Frequency, now time.Time) (time.Time, error) {
	today := DayOf(now)
	for k := 1; k <= maxSteps; k++ {
		next, err := step(last, freq, k)
		if err != nil {
			return time.Time{}, err
		}
		if DayOf(next).After(today) {
			return next, nil
		}
	}
	return time.Time{}, fmt.Errorf("NextAfter: no occurrence of %s schedule from %s within %d steps", freq, last.Format(dateLayout), maxSteps)
}

func step(date time.Time, freq domain.Frequency, k int) (time.Time, error) {
	switch freq {
	case domain.FrequencyWeekly:
		return date.AddDate(0, 0, 7*k), nil
	case domain.FrequencyBiweekly:
		return date.AddDate(0, 0, 14*k), nil
	case domain.FrequencyMonthly:
		return addMonthsClamped(date, k), nil
	case domain.FrequencyQuarterly:
		return addMonthsClamped(date, 3*k), nil
	case domain.FrequencyAnnually:
		return addMonthsClamped(date, 12*k), nil
	}
	return time.Time{}, fmt.Errorf("unsupported frequency %q", freq)
}

func addMonthsClamped(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, date.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	h, mi, s := date.Clock()
	return time.Date(first.Year(), first.Month(), d, h, mi, s, date.Nanosecond(), date.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

const dateLayout = "2006-01-02"

// DayOf truncates t to midnight UTC of its calendar date, so comparisons
// ignore time of day and DST.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DayOf(b).Sub(DayOf(a)).Hours() / 24)
}

// Upcoming returns active merchants due within [today, today+horizonDays],
// ordered by due date then merchant name.
func Upcoming(merchants []domain.TaggedMerchant, now time.Time, horizonDays int) []domain.TaggedMerchant {
	today := DayOf(now)
	limit := today.AddDate(0, 0, horizonDays)

	var due []domain.TaggedMerchant
	for _, m := range merchants {
		if !m.IsActive || m.NextPredictedDate.IsZero() {
			continue
		}
		d := DayOf(m.NextPredictedDate)
		if d.Before(today) || d.After(limit) {
			continue
		}
		due = append(due, m)
	}

	sort.Slice(due, func(i, j int) bool {
		di, dj := DayOf(due[i].NextPredictedDate), DayOf(due[j].NextPredictedDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return due[i].MerchantName < due[j].MerchantName
	})
	return due
}

// Refresh updates m after observing a charge on lastTx and re-predicts the
// next due date. It also rolls a stale prediction forward when no new charge
// arrived. Returns true when m changed.
func Refresh(m *domain.TaggedMerchant, lastTx *time.Time, now time.Time) (bool, error) {
	changed := false
	if lastTx != nil && (m.LastTransactionDate == nil || DayOf(*lastTx).After(DayOf(*m.LastTransactionDate))) {
		t := *lastTx
		m.LastTransactionDate = &t
		changed = true
	}

	anchor := m.NextPredictedDate
	if m.LastTransactionDate != nil {
		anchor = *m.LastTransactionDate
	}
	if anchor.IsZero() {
		return changed, nil
	}

	// A prediction still in the future that already follows the latest charge is kept.
	if !changed && DayOf(m.NextPredictedDate).After(DayOf(now)) {
		return false, nil
	}

	next, err := NextAfter(anchor, m.PredictionFrequency, now)
	if err != nil {
		return changed, fmt.Errorf("Refresh: merchant %q: %w", m.MerchantName, err)
	}
	if !DayOf(next).Equal(DayOf(m.NextPredictedDate)) {
		m.NextPredictedDate = next
		changed = true
	}
	return changed, nil
}
