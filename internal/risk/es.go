package risk

import (
	"math"
)

// ExpectedShortfall is the mean of all returns at or below ValueAtRisk.
// The tail always contains the sample minimum, but if it is ever empty the
// VaR threshold itself is returned rather than NaN.
func ExpectedShortfall(returns []float64, confidence float64) (float64, error) {
	threshold, err := ValueAtRisk(returns, confidence)
	if err != nil {
		return math.NaN(), err
	}

	sum, count := 0.0, 0
	for _, r := range returns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return threshold, nil
	}
	return sum / float64(count), nil
}
