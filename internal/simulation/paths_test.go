package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// three steps of five paths
func fixedPaths() *mat.Dense {
	return mat.NewDense(3, 5, []float64{
		100, 100, 100, 100, 100,
		90, 95, 100, 105, 110,
		80, 120, 100, 110, 130,
	})
}

func TestBands(t *testing.T) {
	b := Bands(fixedPaths(), []float64{0, 50, 100})

	assert.Equal(t, []float64{0, 50, 100}, b.Percentiles)
	assert.Equal(t, []float64{100, 90, 80}, b.Values[0])
	assert.Equal(t, []float64{100, 100, 110}, b.Values[1])
	assert.Equal(t, []float64{100, 110, 130}, b.Values[2])
	assert.Equal(t, []float64{100, 100, 108}, b.Mean)
}

func TestBandsDefaultPercentiles(t *testing.T) {
	b := Bands(fixedPaths(), nil)
	assert.Equal(t, DefaultBands, b.Percentiles)
	assert.Len(t, b.Values, len(DefaultBands))
}

func TestTerminalReturns(t *testing.T) {
	got := TerminalReturns(fixedPaths())
	want := []float64{-0.2, 0.2, 0, 0.1, 0.3}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
}

func TestStepReturns(t *testing.T) {
	got := StepReturns(mat.NewDense(3, 1, []float64{100, 110, 99}))
	assert.InDeltaSlice(t, []float64{0.1, -0.1}, got, 1e-12)

	assert.Nil(t, StepReturns(mat.NewDense(1, 2, []float64{1, 1})))
}

func TestMedianPath(t *testing.T) {
	assert.Equal(t, []float64{100, 100, 110}, MedianPath(fixedPaths()))
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixedPaths(), nil)

	assert.Equal(t, 2, s.Steps)
	assert.Equal(t, 5, s.NumPaths)
	assert.InDelta(t, 108.0, s.MeanFinalValue, 1e-12)
	assert.Equal(t, 110.0, s.MedianFinalValue)
	assert.InDelta(t, 0.2, s.ProbabilityOfLoss, 1e-12)
}
