package recommend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/ignite/audience-pilot/internal/rules"
)

func testThresholds() config.ThresholdConfig {
	return config.ThresholdConfig{
		MinSpend:                 3000,
		MinPurchases:             2,
		MinAgeDays:               2,
		WinnerThreshold:          1.3,
		LoserThreshold:           0.7,
		ImprovingSlope:           0.05,
		DecliningSlope:           -0.05,
		VolatileCPAStd:           0.35,
		MaxScalePct:              25,
		ScaleCooldownHours:       48,
		BroadThresholdMultiplier: 0.9,
		LookalikeScaleBump:       5,
		LookalikeScaleCeiling:    30,
		CustomMaxScalePct:        15,
		LookalikeFatigueSpendX:   2.0,
		HighConfPurchases:        10,
		HighConfSpendMult:        3,
		HighConfAgeDays:          7,
		ROASWeight:               0.7,
		SpendWeight:              0.15,
		CVRWeight:                0.05,
		VolumeWeight:             0.1,
	}
}

func narrativeInput(action domain.Action, audType domain.AudienceType) NarrativeInput {
	roas := 2.4
	launched := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return NarrativeInput{
		Audience: &domain.Audience{
			ID:         "aud-1",
			Name:       "Lookalike 1% purchasers",
			Type:       audType,
			LaunchedAt: &launched,
		},
		Result: &rules.Result{
			Action:         action,
			RawAction:      action,
			Bucket:         domain.BucketWinner,
			TrendState:     domain.TrendStable,
			NormalizedROAS: 2.0,
		},
		Window: domain.MetricWindow{
			Spend:     5000,
			Revenue:   12000,
			Purchases: 12,
			ROAS:      &roas,
		},
		Benchmark: domain.AccountBenchmark{AvgROAS: 1.2, MedianSpend: 2000, AvgCVR: 0.02},
		Trend:     domain.TrendMetrics{SpendAcceleration: 1.0},
	}
}

func TestDeterministicExplainShape(t *testing.T) {
	d := NewDeterministic(testThresholds())
	n, err := d.Explain(context.Background(), narrativeInput(domain.ActionScale, domain.AudienceInterest))
	require.NoError(t, err)

	assert.Equal(t, domain.ActionScale, n.Action)
	assert.GreaterOrEqual(t, len(n.Reasons), 2)
	assert.LessOrEqual(t, len(n.Reasons), 3)
	assert.LessOrEqual(t, len(n.Risks), 3)
	assert.Contains(t, n.Reasons[0], "2.0x the account average")
}

func TestDeterministicRisksLookalikeFatigue(t *testing.T) {
	d := NewDeterministic(testThresholds())
	in := narrativeInput(domain.ActionScale, domain.AudienceLookalike)
	in.Window.Spend = 5000 // 2.5x the 2000 median, above the 2.0x multiplier

	n, err := d.Explain(context.Background(), in)
	require.NoError(t, err)
	found := false
	for _, r := range n.Risks {
		if strings.Contains(r, "fatigue") {
			found = true
		}
	}
	assert.True(t, found, "expected a fatigue risk, got %v", n.Risks)
}

func TestDeterministicThinEvidenceRisk(t *testing.T) {
	d := NewDeterministic(testThresholds())
	in := narrativeInput(domain.ActionHold, domain.AudienceInterest)
	in.Window.Purchases = 3

	n, err := d.Explain(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, n.Risks)
	assert.Contains(t, n.Risks[len(n.Risks)-1], "evidence is thin")
}

func TestGradeConfidence(t *testing.T) {
	cfg := testThresholds()
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	oldLaunch := now.Add(-10 * 24 * time.Hour)
	newLaunch := now.Add(-3 * 24 * time.Hour)

	tests := []struct {
		name      string
		launched  time.Time
		purchases int
		spend     float64
		want      domain.Confidence
	}{
		{"all high bars", oldLaunch, 12, 10000, domain.ConfidenceHigh},
		{"young audience", newLaunch, 12, 10000, domain.ConfidenceMedium},
		{"above base thresholds only", oldLaunch, 4, 4000, domain.ConfidenceMedium},
		{"young and thin but eligible", newLaunch, 4, 4000, domain.ConfidenceMedium},
		{"below purchase floor", oldLaunch, 1, 10000, domain.ConfidenceLow},
		{"below spend floor", oldLaunch, 12, 2000, domain.ConfidenceLow},
		{"launched yesterday", now.Add(-24 * time.Hour), 12, 10000, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aud := &domain.Audience{LaunchedAt: &tt.launched}
			w := domain.MetricWindow{Purchases: tt.purchases, Spend: tt.spend}
			assert.Equal(t, tt.want, GradeConfidence(cfg, aud, w, now))
		})
	}
}
