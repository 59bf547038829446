package analytics

import (
	"testing"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func window7(spend float64, roas, cvr *float64) domain.MetricWindow {
	return domain.MetricWindow{WindowDays: 7, Spend: spend, ROAS: roas, CVR: cvr}
}

func TestComputeBenchmarks(t *testing.T) {
	windows := []domain.MetricWindow{
		window7(5000, f(2.0), f(0.05)),
		window7(4000, f(1.0), f(0.03)),
		window7(3000, f(1.5), f(0.04)),
		window7(500, f(9.0), f(0.9)), // below floor, excluded
	}
	b := ComputeBenchmarks(windows, 3000)

	assert.InDelta(t, 1.5, b.AvgROAS, 1e-9)
	assert.InDelta(t, 4000, b.MedianSpend, 1e-9)
	assert.InDelta(t, 0.04, b.AvgCVR, 1e-9)
	assert.Equal(t, 3, b.SampleSize)
}

func TestComputeBenchmarksEvenMedian(t *testing.T) {
	windows := []domain.MetricWindow{
		window7(3000, f(1.0), nil),
		window7(5000, f(1.0), nil),
	}
	b := ComputeBenchmarks(windows, 3000)
	assert.InDelta(t, 4000, b.MedianSpend, 1e-9)
}

func TestComputeBenchmarksNeutralDefaults(t *testing.T) {
	// Nothing qualifies: fall back to neutral values so downstream
	// normalization never divides by zero.
	windows := []domain.MetricWindow{
		window7(100, f(4.0), f(0.5)),
	}
	b := ComputeBenchmarks(windows, 3000)

	assert.Equal(t, 1.0, b.AvgROAS)
	assert.Equal(t, 3000.0, b.MedianSpend)
	assert.Equal(t, 0.01, b.AvgCVR)
	assert.Zero(t, b.SampleSize)
}

func TestComputeBenchmarksMedianPurchases(t *testing.T) {
	w1 := window7(5000, f(2.0), nil)
	w1.Purchases = 12
	w2 := window7(4000, f(1.0), nil)
	w2.Purchases = 4
	w3 := window7(3000, f(1.5), nil)
	w3.Purchases = 8

	b := ComputeBenchmarks([]domain.MetricWindow{w1, w2, w3}, 3000)
	assert.InDelta(t, 8, b.MedianPurchases, 1e-9)
}

func TestComputeBenchmarksMedianPurchasesNeutralWhenZero(t *testing.T) {
	// Qualifying spend but no purchases anywhere: keep the neutral baseline
	// rather than a zero divisor for the volume component.
	windows := []domain.MetricWindow{
		window7(5000, f(2.0), nil),
		window7(4000, f(1.0), nil),
	}
	b := ComputeBenchmarks(windows, 3000)
	assert.Equal(t, 1.0, b.MedianPurchases)
}

func compositeWeights() config.ThresholdConfig {
	return config.ThresholdConfig{
		ROASWeight:   0.7,
		SpendWeight:  0.15,
		CVRWeight:    0.05,
		VolumeWeight: 0.1,
	}
}

func TestCompositeScore(t *testing.T) {
	w := window7(6000, f(2.4), f(0.05))
	w.Purchases = 12
	b := domain.AccountBenchmark{
		AvgROAS:         1.2,
		MedianSpend:     4000,
		AvgCVR:          0.025,
		MedianPurchases: 10,
	}

	// 2.0*0.7 + 1.5*0.15 + 2.0*0.05 + 1.2*0.1
	assert.InDelta(t, 1.845, CompositeScore(w, b, compositeWeights()), 1e-9)
}

func TestCompositeScoreCapsVolume(t *testing.T) {
	w := window7(4000, nil, nil)
	w.Purchases = 50
	b := domain.AccountBenchmark{
		AvgROAS:         1.0,
		MedianSpend:     4000,
		AvgCVR:          0.01,
		MedianPurchases: 5,
	}

	// Volume maxes out at 2x the median; nil ratios contribute nothing.
	assert.InDelta(t, 1.0*0.15+2.0*0.1, CompositeScore(w, b, compositeWeights()), 1e-9)
}

func TestCompositeScoreRoundsToFourPlaces(t *testing.T) {
	w := window7(0, f(1.0), nil)
	b := domain.AccountBenchmark{AvgROAS: 3.0, MedianSpend: 4000, MedianPurchases: 1}

	assert.Equal(t, 0.2333, CompositeScore(w, b, compositeWeights()))
}

func TestComputeBenchmarksIgnoresNilRatios(t *testing.T) {
	windows := []domain.MetricWindow{
		window7(4000, nil, nil),
		window7(5000, f(2.0), nil),
	}
	b := ComputeBenchmarks(windows, 3000)

	// Spend counts both; ROAS average only sees the one observation.
	assert.InDelta(t, 4500, b.MedianSpend, 1e-9)
	assert.InDelta(t, 2.0, b.AvgROAS, 1e-9)
	assert.Equal(t, 0.01, b.AvgCVR)
}
