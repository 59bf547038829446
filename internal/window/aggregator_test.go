package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 8, n, 0, 0, 0, 0, time.UTC)
}

func TestBuildEmpty(t *testing.T) {
	got := Build(nil)
	assert.Empty(t, got)
}

func TestBuildSingleRow(t *testing.T) {
	rows := []DailyRow{
		{Date: day(1), Spend: 100, Revenue: 250, Purchases: 2, Impressions: 10000, Clicks: 120},
	}
	got := Build(rows)
	require.Len(t, got, 3)

	// All three windows collapse to the single row.
	for _, days := range []int{1, 3, 7} {
		w := got[days]
		assert.Equal(t, 100.0, w.Spend, "window %d", days)
		assert.Equal(t, 250.0, w.Revenue, "window %d", days)
		require.NotNil(t, w.ROAS)
		assert.InDelta(t, 2.5, *w.ROAS, 1e-9)
	}
}

func TestBuildSevenDaySum(t *testing.T) {
	// 10 rows; the 7-day window must sum exactly the last 7.
	var rows []DailyRow
	for i := 1; i <= 10; i++ {
		rows = append(rows, DailyRow{
			Date: day(i), Spend: float64(i * 100), Revenue: float64(i * 150),
			Purchases: i, Impressions: int64(i * 1000), Clicks: int64(i * 10),
		})
	}
	got := Build(rows)

	// last 7 rows are i=4..10: sum(i) = 49
	w7 := got[7]
	assert.Equal(t, 4900.0, w7.Spend)
	assert.Equal(t, 7350.0, w7.Revenue)
	assert.Equal(t, 49, w7.Purchases)
	assert.Equal(t, int64(49000), w7.Impressions)
	assert.Equal(t, int64(490), w7.Clicks)

	// last 3 rows are i=8..10: sum(i) = 27
	w3 := got[3]
	assert.Equal(t, 2700.0, w3.Spend)

	// 1-day window is the most recent row only
	w1 := got[1]
	assert.Equal(t, 1000.0, w1.Spend)
	assert.Equal(t, 10, w1.Purchases)
}

func TestBuildFewerRowsThanWindow(t *testing.T) {
	rows := []DailyRow{
		{Date: day(1), Spend: 100, Revenue: 100, Purchases: 1, Clicks: 10, Impressions: 100},
		{Date: day(2), Spend: 200, Revenue: 300, Purchases: 2, Clicks: 20, Impressions: 200},
	}
	got := Build(rows)

	// 3- and 7-day windows fall back to all available rows.
	assert.Equal(t, 300.0, got[3].Spend)
	assert.Equal(t, 300.0, got[7].Spend)
	assert.Equal(t, 200.0, got[1].Spend)
}

func TestRatiosRecomputedFromSums(t *testing.T) {
	// Per-row ROAS is 1.0 and 3.0; the windowed ROAS must come from the
	// summed totals (400/300), not the average of per-row ratios (2.0).
	rows := []DailyRow{
		{Date: day(1), Spend: 100, Revenue: 100},
		{Date: day(2), Spend: 200, Revenue: 300},
	}
	w := Build(rows)[7]
	require.NotNil(t, w.ROAS)
	assert.InDelta(t, 400.0/300.0, *w.ROAS, 1e-9)
}

func TestZeroDenominatorsAreAbsent(t *testing.T) {
	rows := []DailyRow{{Date: day(1), Spend: 0, Revenue: 0, Purchases: 0, Clicks: 0, Impressions: 0}}
	w := Build(rows)[1]
	assert.Nil(t, w.ROAS)
	assert.Nil(t, w.CPA)
	assert.Nil(t, w.CVR)
	assert.Nil(t, w.CTR)
	assert.Nil(t, w.CPC)
}
