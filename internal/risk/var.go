package risk

import (
	"math"

	"github.com/rzzdr/portfolio-risk-engine/internal/stats"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
)

// DefaultConfidenceLevel is used when a caller passes a level outside (0, 1)
const DefaultConfidenceLevel = 0.95

// ValueAtRisk returns the (1-confidence) percentile of returns, so 95% VaR
// is the 5th percentile. The value is a return, typically negative.
func ValueAtRisk(returns []float64, confidence float64) (float64, error) {
	if err := checkTailInput(returns, confidence); err != nil {
		return math.NaN(), err
	}
	return stats.Percentile(returns, (1-confidence)*100), nil
}

func checkTailInput(returns []float64, confidence float64) error {
	if len(returns) == 0 {
		return errors.InsufficientData("tail risk needs at least one return")
	}
	if !(confidence > 0 && confidence < 1) {
		return errors.InvalidArgument("confidence level must lie strictly between 0 and 1")
	}
	return nil
}
