// Package stats holds the order statistics shared by the simulation and risk
// packages.
package stats

import (
	"math"
	"sort"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/pools"
)

// Percentile returns the q-th percentile (q in [0, 100]) of data using
// linear interpolation between closest ranks: rank = q/100·(n-1). It returns
// NaN for empty data. data is not modified.
func Percentile(data []float64, q float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	sorted := pools.Scratch.Get(len(data))
	defer pools.Scratch.Put(sorted)
	copy(sorted, data)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, q)
}

// Percentiles evaluates several percentiles with a single sort
func Percentiles(data []float64, qs []float64) []float64 {
	out := make([]float64, len(qs))
	if len(data) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	sorted := pools.Scratch.Get(len(data))
	defer pools.Scratch.Put(sorted)
	copy(sorted, data)
	sort.Float64s(sorted)
	for i, q := range qs {
		out[i] = PercentileSorted(sorted, q)
	}
	return out
}

// PercentileSorted is Percentile for data already in ascending order
func PercentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	q = math.Max(0, math.Min(100, q))
	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
