package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
)

// Deterministic is the template-based strategy. It never fails and is the
// mandatory fallback for the reasoning upgrade.
type Deterministic struct {
	cfg config.ThresholdConfig
}

// NewDeterministic creates the template strategy.
func NewDeterministic(cfg config.ThresholdConfig) *Deterministic {
	return &Deterministic{cfg: cfg}
}

// Explain builds two to three reasons and up to three risks from the metrics
// that drove the decision.
func (d *Deterministic) Explain(_ context.Context, in NarrativeInput) (*Narrative, error) {
	n := &Narrative{Action: in.Result.Action}

	roas := 0.0
	if in.Window.ROAS != nil {
		roas = *in.Window.ROAS
	}
	n.Reasons = append(n.Reasons, fmt.Sprintf(
		"7-day ROAS of %.2f is %.1fx the account average of %.2f",
		roas, in.Result.NormalizedROAS, in.Benchmark.AvgROAS))
	n.Reasons = append(n.Reasons, trendReason(in.Result.TrendState, in.Trend))

	if br := bucketReason(in.Result.Bucket, in.Window.Spend); br != "" {
		n.Reasons = append(n.Reasons, br)
	}
	if len(n.Reasons) > 3 {
		n.Reasons = n.Reasons[:3]
	}

	n.Risks = d.risks(in)
	return n, nil
}

func trendReason(state domain.TrendState, t domain.TrendMetrics) string {
	switch state {
	case domain.TrendImproving:
		return fmt.Sprintf("ROAS is trending up (slope %+.3f per day)", t.ROASSlope)
	case domain.TrendDeclining:
		return fmt.Sprintf("ROAS is trending down (slope %+.3f per day)", t.ROASSlope)
	case domain.TrendVolatile:
		return fmt.Sprintf("CPA is unstable (volatility %.2f), trajectory unreliable", t.CPAVolatility)
	default:
		return "performance has been stable over the trailing week"
	}
}

func bucketReason(bucket domain.PerformanceBucket, spend float64) string {
	switch bucket {
	case domain.BucketWinner:
		return fmt.Sprintf("outperforming the account on $%.0f of recent spend", spend)
	case domain.BucketLoser:
		return fmt.Sprintf("underperforming the account on $%.0f of recent spend", spend)
	}
	return ""
}

func (d *Deterministic) risks(in NarrativeInput) []string {
	var risks []string
	if in.Trend.CPAVolatility > d.cfg.VolatileCPAStd {
		risks = append(risks, "day-to-day CPA swings make short windows unreliable")
	}
	if in.Trend.SpendAcceleration > 1.5 {
		risks = append(risks, fmt.Sprintf(
			"spend is accelerating (%.1fx the weekly pace); efficiency may lag", in.Trend.SpendAcceleration))
	}
	if in.Audience.Type == domain.AudienceLookalike &&
		in.Benchmark.MedianSpend > 0 &&
		in.Window.Spend > d.cfg.LookalikeFatigueSpendX*in.Benchmark.MedianSpend {
		risks = append(risks, fmt.Sprintf(
			"lookalike spend is %.1fx the account median; audience fatigue risk",
			in.Window.Spend/in.Benchmark.MedianSpend))
	}
	if in.Window.Purchases < d.cfg.HighConfPurchases {
		risks = append(risks, fmt.Sprintf(
			"only %d purchases in the window; evidence is thin", in.Window.Purchases))
	}
	if len(risks) > 3 {
		risks = risks[:3]
	}
	return risks
}

// GradeConfidence grades data sufficiency. Meeting every high bar grades
// HIGH; meeting the base eligibility thresholds grades MEDIUM; anything
// below them is LOW. An audience that passed the noise pre-filter can
// therefore never grade LOW.
func GradeConfidence(cfg config.ThresholdConfig, aud *domain.Audience, w domain.MetricWindow, now time.Time) domain.Confidence {
	age := aud.AgeDays(now)
	if w.Purchases >= cfg.HighConfPurchases &&
		w.Spend >= cfg.HighConfSpendMult*cfg.MinSpend &&
		age >= cfg.HighConfAgeDays {
		return domain.ConfidenceHigh
	}
	if w.Purchases >= cfg.MinPurchases &&
		w.Spend >= cfg.MinSpend &&
		age >= cfg.MinAgeDays {
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}
