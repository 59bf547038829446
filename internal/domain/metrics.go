package domain

import "time"

// Window lengths stored per audience per snapshot date.
const (
	Window1Day = 1
	Window3Day = 3
	Window7Day = 7
)

// WindowLengths lists the trailing windows computed on every sync.
var WindowLengths = []int{Window1Day, Window3Day, Window7Day}

// MetricWindow is a trailing aggregate of daily performance rows, keyed by
// (audience, snapshot date, window length). Ratio fields are derived from the
// summed totals; a ratio with a zero denominator is nil, never zero or Inf.
type MetricWindow struct {
	ID           string    `json:"id" db:"id"`
	AudienceID   string    `json:"audience_id" db:"audience_id"`
	SnapshotDate time.Time `json:"snapshot_date" db:"snapshot_date"`
	WindowDays   int       `json:"window_days" db:"window_days"`

	Spend       float64 `json:"spend" db:"spend"`
	Revenue     float64 `json:"revenue" db:"revenue"`
	Purchases   int     `json:"purchases" db:"purchases"`
	Impressions int64   `json:"impressions" db:"impressions"`
	Clicks      int64   `json:"clicks" db:"clicks"`

	CTR  *float64 `json:"ctr" db:"ctr"`   // clicks / impressions * 100
	CPC  *float64 `json:"cpc" db:"cpc"`   // spend / clicks
	ROAS *float64 `json:"roas" db:"roas"` // revenue / spend
	CPA  *float64 `json:"cpa" db:"cpa"`   // spend / purchases
	CVR  *float64 `json:"cvr" db:"cvr"`   // purchases / clicks

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// MetricsSummary is the frozen metrics snapshot embedded in recommendations
// and action logs.
type MetricsSummary struct {
	Spend       float64  `json:"spend"`
	Revenue     float64  `json:"revenue"`
	Purchases   int      `json:"purchases"`
	Impressions int64    `json:"impressions"`
	Clicks      int64    `json:"clicks"`
	ROAS        *float64 `json:"roas"`
	CPA         *float64 `json:"cpa"`
	CVR         *float64 `json:"cvr"`
}

// Summarize freezes the window's headline metrics.
func (w *MetricWindow) Summarize() MetricsSummary {
	return MetricsSummary{
		Spend:       w.Spend,
		Revenue:     w.Revenue,
		Purchases:   w.Purchases,
		Impressions: w.Impressions,
		Clicks:      w.Clicks,
		ROAS:        w.ROAS,
		CPA:         w.CPA,
		CVR:         w.CVR,
	}
}

// AccountBenchmark holds account-level normalization baselines. It is
// recomputed on demand and never persisted.
type AccountBenchmark struct {
	AvgROAS         float64 `json:"account_avg_roas"`
	MedianSpend     float64 `json:"median_spend"`
	AvgCVR          float64 `json:"account_avg_cvr"`
	MedianPurchases float64 `json:"median_purchases"`
	SampleSize      int     `json:"sample_size"`
}

// TrendMetrics holds slope/volatility statistics over trailing daily windows.
type TrendMetrics struct {
	ROASSlope         float64 `json:"roas_slope"`
	CPAVolatility     float64 `json:"cpa_volatility"`
	SpendAcceleration float64 `json:"spend_acceleration"`
	DoDROASChange     float64 `json:"dod_roas_change"`
}
