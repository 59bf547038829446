package domain

import "time"

// Action is the recommended operation for an audience.
type Action string

const (
	ActionScale  Action = "SCALE"
	ActionHold   Action = "HOLD"
	ActionPause  Action = "PAUSE"
	ActionRetest Action = "RETEST"
)

// ValidAction reports whether s is a permitted action value. Used to validate
// structured output from the optional reasoning upgrade.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionScale, ActionHold, ActionPause, ActionRetest:
		return true
	}
	return false
}

// Confidence grades how much data backs a recommendation.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// PerformanceBucket classifies normalized ROAS against account benchmarks.
type PerformanceBucket string

const (
	BucketWinner  PerformanceBucket = "WINNER"
	BucketAverage PerformanceBucket = "AVERAGE"
	BucketLoser   PerformanceBucket = "LOSER"
)

// TrendState classifies the trailing performance trajectory.
type TrendState string

const (
	TrendStable    TrendState = "STABLE"
	TrendImproving TrendState = "IMPROVING"
	TrendDeclining TrendState = "DECLINING"
	TrendVolatile  TrendState = "VOLATILE"
)

// Recommendation is one generated decision for an audience. Rows are
// immutable once written; history is append-only per audience.
type Recommendation struct {
	ID              string            `json:"id" db:"id"`
	AudienceID      string            `json:"audience_id" db:"audience_id"`
	Action          Action            `json:"action" db:"action"`
	ScalePercentage *int              `json:"scale_percentage" db:"scale_percentage"`
	Confidence      Confidence        `json:"confidence" db:"confidence"`
	Bucket          PerformanceBucket `json:"performance_bucket" db:"performance_bucket"`
	Trend           TrendState        `json:"trend_state" db:"trend_state"`
	Reasons         []string          `json:"reasons" db:"reasons"`
	Risks           []string          `json:"risks" db:"risks"`
	Metrics         MetricsSummary    `json:"metrics_snapshot" db:"metrics_snapshot"`
	CompositeScore  float64           `json:"composite_score" db:"composite_score"`
	GeneratedAt     time.Time         `json:"generated_at" db:"generated_at"`
}

// ActionLog is the durable feedback-loop record for each decision. Outcome
// metrics are backfilled exactly twice, at +3d and +7d after creation.
type ActionLog struct {
	ID           string          `json:"id" db:"id"`
	AudienceID   string          `json:"audience_id" db:"audience_id"`
	AccountID    string          `json:"account_id" db:"account_id"`
	Decision     Action          `json:"decision" db:"decision"`
	Confidence   Confidence      `json:"confidence" db:"confidence"`
	Reasons      []string        `json:"reasons" db:"reasons"`
	InputMetrics MetricsSummary  `json:"input_metrics" db:"input_metrics"`
	Outcome3d    *MetricsSummary `json:"outcome_3d_metrics" db:"outcome_3d_metrics"`
	Outcome7d    *MetricsSummary `json:"outcome_7d_metrics" db:"outcome_7d_metrics"`
	Outcome3dAt  *time.Time      `json:"outcome_3d_at" db:"outcome_3d_at"`
	Outcome7dAt  *time.Time      `json:"outcome_7d_at" db:"outcome_7d_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
