package sms

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budgenudge/internal/adf"
	"github.com/dvloznov/budgenudge/internal/domain"
	"github.com/dvloznov/budgenudge/internal/pacing"
	"github.com/dvloznov/budgenudge/internal/recurring"
)

// MaxMessageLength is six concatenated GSM segments.
const MaxMessageLength = 918

const ellipsis = "..."

// BillsHorizonDays is how far ahead the bills template looks.
const BillsHorizonDays = 7

// ErrNothingToSend is returned when a template has no content for the user today.
var ErrNothingToSend = errors.New("nothing to send")

// FormatMoney renders d as $1,234.56 (or -$1,234.56).
func FormatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	s := d.StringFixed(2)
	return sign + "$" + humanize.Comma(d.Round(2).IntPart()) + s[len(s)-3:]
}

// Truncate shortens body to MaxMessageLength runes, ending with an ellipsis.
func Truncate(body string) string {
	runes := []rune(body)
	if len(runes) <= MaxMessageLength {
		return body
	}
	return strings.TrimRight(string(runes[:MaxMessageLength-len(ellipsis)]), " \n") + ellipsis
}

func finish(lines []string) (string, error) {
	if len(lines) == 0 {
		return "", ErrNothingToSend
	}
	return Truncate(strings.Join(lines, "\n")), nil
}

// FormatBills lists active bills due in the next BillsHorizonDays days.
func FormatBills(bills []domain.TaggedMerchant, now time.Time) (string, error) {
	due := recurring.Upcoming(bills, now, BillsHorizonDays)
	if len(due) == 0 {
		return "", ErrNothingToSend
	}

	total := decimal.Zero
	lines := []string{"Upcoming bills:"}
	for _, b := range due {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			b.NextPredictedDate.Format("Mon 1/2"), b.MerchantName, FormatMoney(b.ExpectedAmount)))
		total = total.Add(b.ExpectedAmount)
	}
	lines = append(lines, "Total: "+FormatMoney(total))
	return finish(lines)
}

var statusText = map[pacing.Status]string{
	pacing.StatusUnder:   "under pace",
	pacing.StatusOnTrack: "on track",
	pacing.StatusOver:    "over pace",
}

// FormatPacing summarizes reports that have history.
func FormatPacing(reports []pacing.Report) (string, error) {
	var lines []string
	for _, r := range reports {
		if r.Status == pacing.StatusNoHistory {
			continue
		}
		if lines == nil {
			lines = append(lines, "Spending pace this month:")
		}
		lines = append(lines, fmt.Sprintf("%s: %s vs %s expected (%d%%, %s)",
			r.Name, FormatMoney(r.MonthToDate), FormatMoney(r.ExpectedToDate), r.PacingPercent, statusText[r.Status]))
	}
	return finish(lines)
}

type merchantSpend struct {
	name  string
	total decimal.Decimal
}

func topMerchants(txs []domain.Transaction, from, to time.Time, n int) (decimal.Decimal, int, []merchantSpend) {
	total := decimal.Zero
	count := 0
	byName := make(map[string]*merchantSpend)
	for _, tx := range txs {
		d := recurring.DayOf(tx.Date)
		if !tx.IsOutflow() || d.Before(from) || d.After(to) {
			continue
		}
		total = total.Add(tx.Amount)
		count++
		key := strings.ToLower(tx.Merchant())
		ms, ok := byName[key]
		if !ok {
			ms = &merchantSpend{name: tx.Merchant(), total: decimal.Zero}
			byName[key] = ms
		}
		ms.total = ms.total.Add(tx.Amount)
	}

	top := make([]merchantSpend, 0, len(byName))
	for _, ms := range byName {
		top = append(top, *ms)
	}
	sort.Slice(top, func(i, j int) bool {
		if !top[i].total.Equal(top[j].total) {
			return top[i].total.GreaterThan(top[j].total)
		}
		return top[i].name < top[j].name
	})
	if len(top) > n {
		top = top[:n]
	}
	return total, count, top
}

// FormatDailySummary reports yesterday's spending.
func FormatDailySummary(txs []domain.Transaction, now time.Time) (string, error) {
	yesterday := recurring.DayOf(now).AddDate(0, 0, -1)
	total, count, top := topMerchants(txs, yesterday, yesterday, 3)
	if count == 0 {
		return "", ErrNothingToSend
	}

	lines := []string{fmt.Sprintf("Yesterday you spent %s across %d transactions.", FormatMoney(total), count)}
	for _, ms := range top {
		lines = append(lines, fmt.Sprintf("- %s %s", ms.name, FormatMoney(ms.total)))
	}
	return finish(lines)
}

// FormatWeeklySummary reports the last seven full days of spending.
func FormatWeeklySummary(txs []domain.Transaction, now time.Time) (string, error) {
	to := recurring.DayOf(now).AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -6)
	total, count, top := topMerchants(txs, from, to, 5)
	if count == 0 {
		return "", ErrNothingToSend
	}

	lines := []string{fmt.Sprintf("Last 7 days: %s across %d transactions.", FormatMoney(total), count)}
	for _, ms := range top {
		lines = append(lines, fmt.Sprintf("- %s %s", ms.name, FormatMoney(ms.total)))
	}
	return finish(lines)
}

// FormatADF reports available discretionary funds.
func FormatADF(s adf.Summary) (string, error) {
	if s.ExpectedIncome.IsZero() && s.FixedSpent.IsZero() && s.DiscretionarySpent.IsZero() {
		return "", ErrNothingToSend
	}
	lines := []string{
		fmt.Sprintf("Available to spend: %s for the rest of the month.", FormatMoney(s.Available)),
	}
	if s.Available.IsPositive() {
		lines = append(lines, fmt.Sprintf("That's %s/day for %d days.", FormatMoney(s.DailyAllowance), s.DaysLeft))
	} else {
		lines = append(lines, "You're over budget for the month.")
	}
	if s.UpcomingBills.IsPositive() {
		lines = append(lines, fmt.Sprintf("Bills still due: %s", FormatMoney(s.UpcomingBills)))
	}
	return finish(lines)
}
