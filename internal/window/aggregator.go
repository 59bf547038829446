// Package window converts chronologically ordered daily performance rows
// into fixed-size trailing aggregates (1/3/7 days) with derived ratios.
package window

import (
	"time"

	"github.com/ignite/audience-pilot/internal/domain"
)

// DailyRow is one day of raw performance for a single audience. Rows must be
// sorted ascending by date before aggregation.
type DailyRow struct {
	Date        time.Time
	Spend       float64
	Revenue     float64
	Purchases   int
	Impressions int64
	Clicks      int64
}

// Aggregate is the summed metrics for one trailing window. Ratio fields are
// recomputed from the summed totals, never averaged from per-row ratios; a
// ratio whose denominator is zero stays nil.
type Aggregate struct {
	Spend       float64
	Revenue     float64
	Purchases   int
	Impressions int64
	Clicks      int64

	CTR  *float64 // clicks / impressions * 100
	CPC  *float64 // spend / clicks
	ROAS *float64 // revenue / spend
	CPA  *float64 // spend / purchases
	CVR  *float64 // purchases / clicks
}

// Build aggregates sorted daily rows into the standard trailing windows.
// The 1-day window is the most recent row; the 3- and 7-day windows sum the
// last 3 (respectively 7) rows, or all available rows if fewer exist.
// Empty input yields an empty map, not an error.
func Build(rows []DailyRow) map[int]Aggregate {
	out := make(map[int]Aggregate)
	if len(rows) == 0 {
		return out
	}
	for _, days := range domain.WindowLengths {
		tail := rows
		if len(rows) > days {
			tail = rows[len(rows)-days:]
		}
		out[days] = sum(tail)
	}
	return out
}

func sum(rows []DailyRow) Aggregate {
	var a Aggregate
	for _, r := range rows {
		a.Spend += r.Spend
		a.Revenue += r.Revenue
		a.Purchases += r.Purchases
		a.Impressions += r.Impressions
		a.Clicks += r.Clicks
	}
	a.deriveRatios()
	return a
}

func (a *Aggregate) deriveRatios() {
	if a.Impressions > 0 {
		a.CTR = ptr(float64(a.Clicks) / float64(a.Impressions) * 100)
	}
	if a.Clicks > 0 {
		a.CPC = ptr(a.Spend / float64(a.Clicks))
		a.CVR = ptr(float64(a.Purchases) / float64(a.Clicks))
	}
	if a.Spend > 0 {
		a.ROAS = ptr(a.Revenue / a.Spend)
	}
	if a.Purchases > 0 {
		a.CPA = ptr(a.Spend / float64(a.Purchases))
	}
}

func ptr(f float64) *float64 { return &f }
