// Package analytics computes trend statistics and account benchmarks from
// stored metric windows. Everything here is a pure function over snapshots;
// data access stays with the caller.
package analytics

import (
	"math"

	"github.com/ignite/audience-pilot/internal/domain"
)

// TrailingDays is how many daily snapshots feed the trend computation.
const TrailingDays = 14

// ComputeTrend derives slope/volatility statistics from a trailing series of
// daily (1-day window) snapshots, sorted ascending by snapshot date. Fewer
// than 2 snapshots yields neutral output, not an error.
//
// Slope regresses ROAS against the row index rather than the calendar date,
// so gaps from missing days do not distort the fit.
func ComputeTrend(snapshots []domain.MetricWindow) domain.TrendMetrics {
	if len(snapshots) < 2 {
		return domain.TrendMetrics{SpendAcceleration: 1.0}
	}
	if len(snapshots) > TrailingDays {
		snapshots = snapshots[len(snapshots)-TrailingDays:]
	}

	roas := make([]float64, len(snapshots))
	spend := make([]float64, len(snapshots))
	var cpa []float64
	for i, s := range snapshots {
		if s.ROAS != nil {
			roas[i] = *s.ROAS
		}
		spend[i] = s.Spend
		if s.CPA != nil {
			cpa = append(cpa, *s.CPA)
		}
	}

	return domain.TrendMetrics{
		ROASSlope:         olsSlope(roas),
		CPAVolatility:     coefficientOfVariation(cpa),
		SpendAcceleration: spendAcceleration(spend),
		DoDROASChange:     dayOverDay(roas),
	}
}

// olsSlope is the ordinary least-squares slope of ys against its index.
func olsSlope(ys []float64) float64 {
	n := len(ys)
	xMean := float64(n-1) / 2
	var yMean float64
	for _, y := range ys {
		yMean += y
	}
	yMean /= float64(n)

	var num, den float64
	for i, y := range ys {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// coefficientOfVariation is the sample standard deviation divided by the
// mean. Requires at least 2 observations, else 0.
func coefficientOfVariation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if mean == 0 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	stdev := math.Sqrt(ss / float64(len(xs)-1))
	return stdev / mean
}

// spendAcceleration is the ratio of mean daily spend over the most recent
// 3 days to mean daily spend over the most recent 7 days. Values above 1
// indicate accelerating spend.
func spendAcceleration(spend []float64) float64 {
	mean7 := tailMean(spend, 7)
	mean3 := tailMean(spend, 3)
	if mean7 == 0 {
		return 1.0
	}
	return mean3 / mean7
}

func tailMean(xs []float64, n int) float64 {
	if len(xs) == 0 {
		return 0
	}
	if len(xs) > n {
		xs = xs[len(xs)-n:]
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// dayOverDay is the relative delta between the two most recent observations.
func dayOverDay(xs []float64) float64 {
	if len(xs) < 2 || xs[len(xs)-2] == 0 {
		return 0
	}
	prev := xs[len(xs)-2]
	return (xs[len(xs)-1] - prev) / prev
}
