// Package rules implements the deterministic decision engine: performance
// buckets, trend states, the bucket×trend decision matrix, and the
// guardrails applied after lookup.
package rules

import (
	"time"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
)

// Engine classifies audience performance and produces raw actions with
// guardrails. It is pure: all state comes in through Input.
type Engine struct {
	cfg config.ThresholdConfig
}

// NewEngine creates a rule engine with the given thresholds.
func NewEngine(cfg config.ThresholdConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Input carries everything one evaluation needs. LastScaleAt is the
// generated-at time of the most recent prior SCALE recommendation for this
// audience, or nil if there is none.
type Input struct {
	Audience    *domain.Audience
	Window      domain.MetricWindow // latest 7-day window
	Benchmark   domain.AccountBenchmark
	Trend       domain.TrendMetrics
	LastScaleAt *time.Time
	Now         time.Time
}

// Result is the engine's output for one audience.
type Result struct {
	Action          domain.Action
	RawAction       domain.Action // matrix action before guardrails
	ScalePercentage *int
	Bucket          domain.PerformanceBucket
	TrendState      domain.TrendState
	NormalizedROAS  float64
}

// Eligible is the noise pre-filter: audiences below the spend floor, the
// purchase minimum, or the age minimum are excluded from rule evaluation
// entirely. These are data-sufficiency filters, not decisions.
func (e *Engine) Eligible(aud *domain.Audience, w domain.MetricWindow, now time.Time) bool {
	if w.Spend < e.cfg.MinSpend {
		return false
	}
	if w.Purchases < e.cfg.MinPurchases {
		return false
	}
	if aud.AgeDays(now) < e.cfg.MinAgeDays {
		return false
	}
	return true
}

// ClassifyPerformance buckets normalized ROAS (audience ROAS divided by the
// account average). BROAD audiences are judged more leniently: both
// thresholds are scaled down by the configured multiplier.
func (e *Engine) ClassifyPerformance(normalizedROAS float64, audienceType domain.AudienceType) domain.PerformanceBucket {
	winner := e.cfg.WinnerThreshold
	loser := e.cfg.LoserThreshold
	if audienceType == domain.AudienceBroad {
		winner *= e.cfg.BroadThresholdMultiplier
		loser *= e.cfg.BroadThresholdMultiplier
	}
	switch {
	case normalizedROAS >= winner:
		return domain.BucketWinner
	case normalizedROAS >= loser:
		return domain.BucketAverage
	default:
		return domain.BucketLoser
	}
}

// ClassifyTrend maps trend statistics to a trend state. Volatility above its
// threshold overrides the slope entirely.
func (e *Engine) ClassifyTrend(t domain.TrendMetrics) domain.TrendState {
	switch {
	case t.CPAVolatility > e.cfg.VolatileCPAStd:
		return domain.TrendVolatile
	case t.ROASSlope > e.cfg.ImprovingSlope:
		return domain.TrendImproving
	case t.ROASSlope < e.cfg.DecliningSlope:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

type matrixKey struct {
	bucket domain.PerformanceBucket
	trend  domain.TrendState
}

// decisionMatrix is the full 12-case bucket×trend policy, kept as data so it
// stays auditable and independently testable.
var decisionMatrix = map[matrixKey]domain.Action{
	{domain.BucketWinner, domain.TrendStable}:     domain.ActionScale,
	{domain.BucketWinner, domain.TrendImproving}:  domain.ActionScale,
	{domain.BucketWinner, domain.TrendDeclining}:  domain.ActionHold,
	{domain.BucketWinner, domain.TrendVolatile}:   domain.ActionHold,
	{domain.BucketAverage, domain.TrendStable}:    domain.ActionHold,
	{domain.BucketAverage, domain.TrendImproving}: domain.ActionHold,
	{domain.BucketAverage, domain.TrendDeclining}: domain.ActionPause,
	{domain.BucketAverage, domain.TrendVolatile}:  domain.ActionHold,
	{domain.BucketLoser, domain.TrendStable}:      domain.ActionPause,
	{domain.BucketLoser, domain.TrendImproving}:   domain.ActionHold,
	{domain.BucketLoser, domain.TrendDeclining}:   domain.ActionPause,
	{domain.BucketLoser, domain.TrendVolatile}:    domain.ActionPause,
}

// MatrixAction returns the raw action for a (bucket, trend) pair.
func MatrixAction(bucket domain.PerformanceBucket, trend domain.TrendState) domain.Action {
	if a, ok := decisionMatrix[matrixKey{bucket, trend}]; ok {
		return a
	}
	return domain.ActionHold
}

// ScalePercentage computes the scale cap for an audience type: the base cap,
// bumped for lookalikes up to an absolute ceiling, and capped lower for
// custom audiences.
func (e *Engine) ScalePercentage(audienceType domain.AudienceType) int {
	pct := e.cfg.MaxScalePct
	switch audienceType {
	case domain.AudienceLookalike:
		pct += e.cfg.LookalikeScaleBump
		if pct > e.cfg.LookalikeScaleCeiling {
			pct = e.cfg.LookalikeScaleCeiling
		}
	case domain.AudienceCustom:
		if pct > e.cfg.CustomMaxScalePct {
			pct = e.cfg.CustomMaxScalePct
		}
	}
	return pct
}

// Evaluate runs the full pipeline for one audience: eligibility filter,
// classification, matrix lookup, then guardrails. Returns nil when the
// audience is filtered out by the noise pre-filter.
func (e *Engine) Evaluate(in Input) *Result {
	if !e.Eligible(in.Audience, in.Window, in.Now) {
		return nil
	}

	var normROAS float64
	if in.Window.ROAS != nil && in.Benchmark.AvgROAS > 0 {
		normROAS = *in.Window.ROAS / in.Benchmark.AvgROAS
	}

	bucket := e.ClassifyPerformance(normROAS, in.Audience.Type)
	trend := e.ClassifyTrend(in.Trend)
	raw := MatrixAction(bucket, trend)

	res := &Result{
		Action:         raw,
		RawAction:      raw,
		Bucket:         bucket,
		TrendState:     trend,
		NormalizedROAS: normROAS,
	}
	e.applyGuardrails(res, in)
	return res
}

// applyGuardrails enforces the post-lookup safety rules:
//   - a PAUSE below the spend floor becomes HOLD (insufficient evidence)
//   - a SCALE inside the cooldown window of a prior SCALE becomes HOLD
//   - a surviving SCALE gets its type-specific percentage
func (e *Engine) applyGuardrails(res *Result, in Input) {
	switch res.RawAction {
	case domain.ActionPause:
		if in.Window.Spend < e.cfg.MinSpend {
			res.Action = domain.ActionHold
			res.ScalePercentage = nil
		}
	case domain.ActionScale:
		if in.LastScaleAt != nil && in.Now.Sub(*in.LastScaleAt) < e.cfg.ScaleCooldown() {
			res.Action = domain.ActionHold
			res.ScalePercentage = nil
			return
		}
		pct := e.ScalePercentage(in.Audience.Type)
		res.ScalePercentage = &pct
	}
}
