package risk

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
)

func TestValueAtRisk(t *testing.T) {
	returns := []float64{-0.05, -0.02, 0.01, 0.03, -0.01, 0.02, 0.00, 0.04, -0.03, 0.05}

	v, err := ValueAtRisk(returns, 0.95)
	require.NoError(t, err)
	// 5th percentile of 10 points: rank 0.45 between -0.05 and -0.03
	assert.InDelta(t, -0.05+0.45*0.02, v, 1e-12)

	v, err = ValueAtRisk(returns, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, v, 1e-12)
}

func TestValueAtRiskErrors(t *testing.T) {
	_, err := ValueAtRisk(nil, 0.95)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsufficientData))

	for _, c := range []float64{0, 1, -0.5, 1.5, math.NaN()} {
		_, err = ValueAtRisk([]float64{0.1}, c)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument), "confidence %v", c)
	}

	_, err = ExpectedShortfall(nil, 0.95)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsufficientData))
}

func TestExpectedShortfall(t *testing.T) {
	returns := []float64{-0.05, -0.02, 0.01, 0.03, -0.01, 0.02, 0.00, 0.04, -0.03, 0.05}

	es, err := ExpectedShortfall(returns, 0.8)
	require.NoError(t, err)
	// 20th percentile: rank 1.8 between -0.03 and -0.02 gives -0.022
	assert.InDelta(t, (-0.05-0.03)/2, es, 1e-12)

	es, err = ExpectedShortfall([]float64{0.02}, 0.99)
	require.NoError(t, err)
	assert.Equal(t, 0.02, es)
}

func TestExpectedShortfallNotAboveVaR(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5))
	for trial := 0; trial < 50; trial++ {
		returns := make([]float64, 1+rng.IntN(200))
		for i := range returns {
			returns[i] = rng.NormFloat64() * 0.02
		}
		for _, c := range []float64{0.9, 0.95, 0.99, 0.999} {
			v, err := ValueAtRisk(returns, c)
			require.NoError(t, err)
			es, err := ExpectedShortfall(returns, c)
			require.NoError(t, err)
			assert.LessOrEqual(t, es, v+1e-12)
		}
	}
}

func TestMaxDrawdownDuration(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   int
	}{
		{"empty", nil, 0},
		{"monotonic", []float64{1, 1, 2, 3, 3, 5}, 0},
		{"one dip", []float64{100, 90, 95, 101}, 2},
		{"longest run wins", []float64{100, 99, 101, 100, 99, 98, 102, 101}, 3},
		{"never recovers", []float64{10, 9, 8, 9.5}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxDrawdownDuration(tt.values))
		})
	}
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3}))
	assert.InDelta(t, -0.25, MaxDrawdown([]float64{100, 120, 90, 110, 100}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown(nil))
}

func TestCalmarRatio(t *testing.T) {
	assert.InDelta(t, 0.5, CalmarRatio(0.1, -0.2), 1e-12)
	assert.True(t, math.IsInf(CalmarRatio(0.1, 0), 1))
	assert.Equal(t, 0.0, CalmarRatio(-0.1, 0))
	assert.Equal(t, 0.0, CalmarRatio(0, 0))
}

func TestSharpeRatio(t *testing.T) {
	// mean 0.02, sample std 0.01
	returns := []float64{0.01, 0.02, 0.03}
	assert.InDelta(t, 1.5, SharpeRatio(returns, 0.005), 1e-12)

	assert.Equal(t, 0.0, SharpeRatio([]float64{0.5, 0.5, 0.5}, 0))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.25, 0.25}, -1))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.05}, 0))
}

func TestSortinoRatio(t *testing.T) {
	returns := []float64{0.03, -0.01, 0.02, -0.03, 0.04}
	mean := 0.01
	downsideStd := math.Sqrt(((-0.01+0.02)*(-0.01+0.02) + (-0.03+0.02)*(-0.03+0.02)) / 1)
	assert.InDelta(t, mean/downsideStd, SortinoRatio(returns, 0, 0), 1e-12)

	assert.True(t, math.IsInf(SortinoRatio([]float64{0.01, 0.02}, 0, 0), 1))
	assert.Equal(t, 0.0, SortinoRatio([]float64{0.01, 0.02}, 0.05, 0))
	assert.Equal(t, 0.0, SortinoRatio([]float64{0.01, -0.02}, 0, 0))
	assert.Equal(t, 0.0, SortinoRatio(nil, 0, 0))
}
