package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CalmarRatio is annualReturn / |maxDrawdown|. Without a drawdown it is +Inf
// for a positive return and 0 otherwise.
func CalmarRatio(annualReturn, maxDrawdown float64) float64 {
	if maxDrawdown == 0 {
		if annualReturn > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return annualReturn / math.Abs(maxDrawdown)
}

// SharpeRatio is (mean - riskFree) / std with the sample (n-1) standard
// deviation. Both inputs are per period; it is 0 when std is 0 or undefined.
func SharpeRatio(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (mean - riskFree) / std
}

// SortinoRatio is SharpeRatio with the denominator restricted to returns
// below target. With no downside observations it is +Inf when the mean beats
// riskFree and 0 otherwise.
func SortinoRatio(returns []float64, riskFree, target float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := stat.Mean(returns, nil)

	var downside []float64
	for _, r := range returns {
		if r < target {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		if mean > riskFree {
			return math.Inf(1)
		}
		return 0
	}
	if len(downside) < 2 {
		return 0
	}
	dd := stat.StdDev(downside, nil)
	if dd == 0 || math.IsNaN(dd) {
		return 0
	}
	return (mean - riskFree) / dd
}
