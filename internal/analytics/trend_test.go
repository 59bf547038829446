package analytics

import (
	"testing"
	"time"

	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func snap(day int, roas float64, cpa *float64, spend float64) domain.MetricWindow {
	r := roas
	return domain.MetricWindow{
		SnapshotDate: time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
		WindowDays:   1,
		Spend:        spend,
		ROAS:         &r,
		CPA:          cpa,
	}
}

func f(v float64) *float64 { return &v }

func TestComputeTrendTooFewSnapshots(t *testing.T) {
	got := ComputeTrend([]domain.MetricWindow{snap(1, 2.0, f(100), 500)})
	assert.Zero(t, got.ROASSlope)
	assert.Zero(t, got.CPAVolatility)
	assert.Equal(t, 1.0, got.SpendAcceleration)
	assert.Zero(t, got.DoDROASChange)
}

func TestComputeTrendLinearROAS(t *testing.T) {
	// ROAS rises 0.1 per day: slope must be 0.1 exactly.
	var snaps []domain.MetricWindow
	for i := 0; i < 10; i++ {
		snaps = append(snaps, snap(i+1, 1.0+0.1*float64(i), f(100), 1000))
	}
	got := ComputeTrend(snaps)
	assert.InDelta(t, 0.1, got.ROASSlope, 1e-9)
	assert.InDelta(t, 0, got.CPAVolatility, 1e-9)
	// Constant spend: acceleration is exactly 1.
	assert.InDelta(t, 1.0, got.SpendAcceleration, 1e-9)
}

func TestComputeTrendCPAVolatility(t *testing.T) {
	snaps := []domain.MetricWindow{
		snap(1, 1.0, f(100), 1000),
		snap(2, 1.0, f(200), 1000),
		snap(3, 1.0, f(100), 1000),
		snap(4, 1.0, f(200), 1000),
	}
	got := ComputeTrend(snaps)
	// mean=150, sample stdev=57.735..., CV ≈ 0.3849
	assert.InDelta(t, 0.3849, got.CPAVolatility, 0.001)
}

func TestComputeTrendMissingCPAObservations(t *testing.T) {
	// Only one CPA observation: volatility must be zero.
	snaps := []domain.MetricWindow{
		snap(1, 1.0, f(100), 1000),
		snap(2, 1.2, nil, 1000),
		snap(3, 1.4, nil, 1000),
	}
	got := ComputeTrend(snaps)
	assert.Zero(t, got.CPAVolatility)
}

func TestComputeTrendSpendAcceleration(t *testing.T) {
	// 7 days at 100/day, then spend jumps to 400/day for the last 3.
	var snaps []domain.MetricWindow
	for i := 0; i < 4; i++ {
		snaps = append(snaps, snap(i+1, 1.0, f(100), 100))
	}
	for i := 4; i < 7; i++ {
		snaps = append(snaps, snap(i+1, 1.0, f(100), 400))
	}
	got := ComputeTrend(snaps)
	// last 3 mean = 400; last 7 mean = (4*100+3*400)/7 = 228.57...
	assert.InDelta(t, 400.0/(1600.0/7.0), got.SpendAcceleration, 1e-9)
	assert.Greater(t, got.SpendAcceleration, 1.0)
}

func TestComputeTrendDayOverDay(t *testing.T) {
	snaps := []domain.MetricWindow{
		snap(1, 2.0, f(100), 1000),
		snap(2, 2.5, f(100), 1000),
	}
	got := ComputeTrend(snaps)
	assert.InDelta(t, 0.25, got.DoDROASChange, 1e-9)
}

func TestComputeTrendUsesTrailingFourteen(t *testing.T) {
	// 20 snapshots: flat ROAS for the first 6, then rising. The flat head
	// must be dropped before fitting.
	var snaps []domain.MetricWindow
	for i := 0; i < 6; i++ {
		snaps = append(snaps, snap(i+1, 5.0, f(100), 1000))
	}
	for i := 0; i < 14; i++ {
		snaps = append(snaps, snap(i+7, 1.0+0.1*float64(i), f(100), 1000))
	}
	got := ComputeTrend(snaps)
	assert.InDelta(t, 0.1, got.ROASSlope, 1e-9)
}
