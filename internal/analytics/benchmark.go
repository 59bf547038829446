package analytics

import (
	"math"
	"sort"

	"github.com/ignite/audience-pilot/internal/config"
	"github.com/ignite/audience-pilot/internal/domain"
)

// Fallback benchmark values used when no audience clears the spend floor,
// so normalization never divides by zero or runs on an empty set.
const (
	neutralROAS      = 1.0
	neutralCVR       = 0.01
	neutralPurchases = 1.0
)

// ComputeBenchmarks derives account-level normalization baselines from the
// latest 7-day windows of the account's audiences. Only windows whose spend
// meets minSpend contribute; averages and the median are computed over that
// filtered set.
func ComputeBenchmarks(latest7d []domain.MetricWindow, minSpend float64) domain.AccountBenchmark {
	var roasVals, spendVals, cvrVals, purchaseVals []float64
	for _, w := range latest7d {
		if w.Spend < minSpend {
			continue
		}
		spendVals = append(spendVals, w.Spend)
		purchaseVals = append(purchaseVals, float64(w.Purchases))
		if w.ROAS != nil && *w.ROAS > 0 {
			roasVals = append(roasVals, *w.ROAS)
		}
		if w.CVR != nil && *w.CVR > 0 {
			cvrVals = append(cvrVals, *w.CVR)
		}
	}

	b := domain.AccountBenchmark{
		AvgROAS:         neutralROAS,
		MedianSpend:     minSpend,
		AvgCVR:          neutralCVR,
		MedianPurchases: neutralPurchases,
		SampleSize:      len(spendVals),
	}
	if len(roasVals) > 0 {
		b.AvgROAS = mean(roasVals)
	}
	if len(spendVals) > 0 {
		b.MedianSpend = median(spendVals)
	}
	if len(cvrVals) > 0 {
		b.AvgCVR = mean(cvrVals)
	}
	if len(purchaseVals) > 0 && median(purchaseVals) > 0 {
		b.MedianPurchases = median(purchaseVals)
	}
	return b
}

// CompositeScore blends normalized ROAS, spend, CVR and purchase volume into
// one weighted figure for ranking audiences within an account. The volume
// component is capped at twice the account's median purchase count.
func CompositeScore(w domain.MetricWindow, b domain.AccountBenchmark, cfg config.ThresholdConfig) float64 {
	var normROAS, normCVR float64
	if w.ROAS != nil && b.AvgROAS > 0 {
		normROAS = *w.ROAS / b.AvgROAS
	}
	var normSpend float64
	if b.MedianSpend > 0 {
		normSpend = w.Spend / b.MedianSpend
	}
	if w.CVR != nil && b.AvgCVR > 0 {
		normCVR = *w.CVR / b.AvgCVR
	}
	var volume float64
	if b.MedianPurchases > 0 {
		volume = math.Min(2.0, float64(w.Purchases)/b.MedianPurchases)
	}
	score := normROAS*cfg.ROASWeight +
		normSpend*cfg.SpendWeight +
		normCVR*cfg.CVRWeight +
		volume*cfg.VolumeWeight
	return math.Round(score*10000) / 10000
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
