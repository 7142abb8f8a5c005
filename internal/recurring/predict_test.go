package recurring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/budgenudge/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		freq domain.Frequency
		want time.Time
	}{
		{"weekly", date(2026, 10, 1), domain.FrequencyWeekly, date(2026, 10, 8)},
		{"biweekly", date(2026, 10, 1), domain.FrequencyBiweekly, date(2026, 10, 15)},
		{"monthly", date(2026, 10, 15), domain.FrequencyMonthly, date(2026, 11, 15)},
		{"monthly clamps to february", date(2026, 1, 31), domain.FrequencyMonthly, date(2026, 2, 28)},
		{"monthly clamps leap year", date(2028, 1, 31), domain.FrequencyMonthly, date(2028, 2, 29)},
		{"quarterly", date(2026, 11, 30), domain.FrequencyQuarterly, date(2027, 2, 28)},
		{"annually", date(2028, 2, 29), domain.FrequencyAnnually, date(2029, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(tt.from, tt.freq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Advance(date(2026, 1, 1), domain.Frequency("daily"))
	assert.Error(t, err)
}

func TestNextAfter_StrictlyAfterToday(t *testing.T) {
	now := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	next, err := NextAfter(date(2026, 9, 16), domain.FrequencyMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 11, 16), next, "a bill due today rolls to the next period")

	next, err = NextAfter(date(2025, 1, 3), domain.FrequencyWeekly, now)
	require.NoError(t, err)
	assert.True(t, next.After(DayOf(now)))
	assert.Equal(t, time.Friday, next.Weekday())
	assert.True(t, DaysBetween(now, next) <= 7)
}

func TestNextAfter_NoDriftFromAnchor(t *testing.T) {
	now := date(2026, 3, 1)
	next, err := NextAfter(date(2026, 1, 31), domain.FrequencyMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 31), next)
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	merchants := []domain.TaggedMerchant{
		{MerchantName: "Rent", NextPredictedDate: date(2026, 11, 1), IsActive: true},
		{MerchantName: "Netflix", NextPredictedDate: date(2026, 10, 16), IsActive: true},
		{MerchantName: "Gym", NextPredictedDate: date(2026, 10, 20), IsActive: false},
		{MerchantName: "Old", NextPredictedDate: date(2026, 10, 15), IsActive: true},
		{MerchantName: "Hulu", NextPredictedDate: date(2026, 10, 20), IsActive: true},
		{MerchantName: "Disney", NextPredictedDate: date(2026, 10, 20), IsActive: true},
	}

	due := Upcoming(merchants, now, 7)
	var names []string
	for _, m := range due {
		names = append(names, m.MerchantName)
	}
	assert.Equal(t, []string{"Netflix", "Disney", "Hulu"}, names)
}

func TestRefresh(t *testing.T) {
	now := date(2026, 10, 16)

	t.Run("new charge re-anchors prediction", func(t *testing.T) {
		m := &domain.TaggedMerchant{
			MerchantName:        "Spotify",
			PredictionFrequency: domain.FrequencyMonthly,
			NextPredictedDate:   date(2026, 10, 12),
		}
		charged := date(2026, 10, 14)
		changed, err := Refresh(m, &charged, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, date(2026, 11, 14), m.NextPredictedDate)
		assert.Equal(t, charged, *m.LastTransactionDate)
	})

	t.Run("future prediction is kept", func(t *testing.T) {
		last := date(2026, 10, 1)
		m := &domain.TaggedMerchant{
			PredictionFrequency: domain.FrequencyMonthly,
			NextPredictedDate:   date(2026, 11, 1),
			LastTransactionDate: &last,
		}
		changed, err := Refresh(m, nil, now)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("stale prediction rolls forward", func(t *testing.T) {
		m := &domain.TaggedMerchant{
			PredictionFrequency: domain.FrequencyWeekly,
			NextPredictedDate:   date(2026, 10, 2),
		}
		changed, err := Refresh(m, nil, now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, date(2026, 10, 23), m.NextPredictedDate)
	})

	t.Run("older charge is ignored", func(t *testing.T) {
		last := date(2026, 10, 10)
		m := &domain.TaggedMerchant{
			PredictionFrequency: domain.FrequencyMonthly,
			NextPredictedDate:   date(2026, 11, 10),
			LastTransactionDate: &last,
		}
		older := date(2026, 9, 10)
		changed, err := Refresh(m, &older, now)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, last, *m.LastTransactionDate)
	})
}

func TestDetect(t *testing.T) {
	now := date(2026, 10, 16)
	var txs []domain.Transaction
	for _, d := range []time.Time{date(2026, 6, 5), date(2026, 7, 5), date(2026, 8, 4), date(2026, 9, 5), date(2026, 10, 5)} {
		txs = append(txs, domain.Transaction{Name: "NETFLIX.COM", MerchantName: "Netflix", Date: d, Amount: decimal.RequireFromString("15.49")})
	}
	// Irregular coffee purchases.
	for _, d := range []time.Time{date(2026, 10, 1), date(2026, 10, 2), date(2026, 10, 9), date(2026, 10, 10)} {
		txs = append(txs, domain.Transaction{MerchantName: "Starbucks", Date: d, Amount: decimal.RequireFromString("6.10")})
	}
	// Refunds and pending charges are ignored.
	txs = append(txs,
		domain.Transaction{MerchantName: "Netflix", Date: date(2026, 10, 6), Amount: decimal.RequireFromString("-15.49")},
		domain.Transaction{MerchantName: "Gym", Date: date(2026, 10, 1), Amount: decimal.RequireFromString("30"), Pending: true},
	)

	got := Detect(txs, now, DefaultDetectOptions())
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "Netflix", c.MerchantName)
	assert.Equal(t, domain.FrequencyMonthly, c.Frequency)
	assert.Equal(t, "15.49", c.ExpectedAmount.StringFixed(2))
	assert.Equal(t, 5, c.Occurrences)
	assert.Equal(t, 100, c.Confidence)
	assert.Equal(t, date(2026, 11, 5), c.NextDate)

	tm := c.ToTaggedMerchant("user-1")
	assert.True(t, tm.AutoDetected)
	assert.False(t, tm.IsActive)
}

func TestDetect_TooFewOccurrences(t *testing.T) {
	txs := []domain.Transaction{
		{MerchantName: "Water Co", Date: date(2026, 8, 1), Amount: decimal.NewFromInt(40)},
		{MerchantName: "Water Co", Date: date(2026, 9, 1), Amount: decimal.NewFromInt(40)},
	}
	assert.Empty(t, Detect(txs, date(2026, 10, 16), DefaultDetectOptions()))
}
