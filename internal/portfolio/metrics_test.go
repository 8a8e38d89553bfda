package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/portfolio-risk-engine/internal/covariance"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func twoAssetTable(t *testing.T) *models.PriceTable {
	t.Helper()
	table, err := models.NewPriceTable(dates(4), []string{"A", "B"}, [][]float64{
		{100, 50},
		{101, 50.5},
		{99, 49},
		{103, 51},
	})
	require.NoError(t, err)
	return table
}

func TestComputeTwoAssetScenario(t *testing.T) {
	m, err := NewCalculator(nil).Compute(twoAssetTable(t), models.Weights{"A": 0.6, "B": 0.4}, 252)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, m.Assets)
	assert.Equal(t, []float64{0.6, 0.4}, m.Weights.RawVector().Data)
	assert.Equal(t, map[string]float64{"A": 0.6, "B": 0.4}, m.WeightMap)
	assert.Len(t, m.PortfolioReturns, 3)
	assert.Len(t, m.Dates, 3)

	r0 := 0.6*math.Log(101.0/100) + 0.4*math.Log(50.5/50)
	assert.InDelta(t, r0, m.PortfolioReturns[0], 1e-15)
}

func TestComputeAnnualizationIsExactScaling(t *testing.T) {
	m, err := NewCalculator(nil).Compute(twoAssetTable(t), models.Weights{"A": 1, "B": 3}, 252)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		assert.Equal(t, m.MeanDaily.AtVec(i)*252, m.MeanAnnual.AtVec(i))
		for j := 0; j < 2; j++ {
			assert.Equal(t, m.CovDaily.At(i, j)*252, m.CovAnnual.At(i, j))
		}
	}
}

func TestComputeWeightsSumToOne(t *testing.T) {
	tests := []struct {
		name    string
		weights models.Weights
	}{
		{"fractions", models.Weights{"A": 0.25, "B": 0.5}},
		{"percentages", models.Weights{"A": 33, "B": 67}},
		{"tiny", models.Weights{"A": 1e-9, "B": 3e-9}},
		{"one zero", models.Weights{"A": 0, "B": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewCalculator(nil).Compute(twoAssetTable(t), tt.weights, 0)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, mat.Sum(m.Weights), 1e-9)
			assert.Equal(t, DefaultAnnualization, m.Annualization)
		})
	}
}

func TestComputeDropsMissingAssets(t *testing.T) {
	m, err := NewCalculator(nil).Compute(twoAssetTable(t), models.Weights{"A": 1, "B": 1, "ZZZ": 5, "C": 2}, 252)
	require.NoError(t, err)

	assert.Equal(t, []string{"C", "ZZZ"}, m.Dropped)
	assert.Equal(t, []string{"A", "B"}, m.Assets)
	assert.InDelta(t, 0.5, m.WeightMap["A"], 1e-15)
}

func TestComputeConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		weights models.Weights
	}{
		{"no overlap", models.Weights{"X": 1}},
		{"empty", models.Weights{}},
		{"all zero", models.Weights{"A": 0, "B": 0}},
		{"negative", models.Weights{"A": -1, "B": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalculator(nil).Compute(twoAssetTable(t), tt.weights, 252)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration), err.Error())
		})
	}
}

func TestComputeInsufficientData(t *testing.T) {
	table, err := models.NewPriceTable(dates(4), []string{"A", "B"}, [][]float64{
		{100, math.NaN()},
		{101, 50},
		{102, math.NaN()},
		{103, 51},
	})
	require.NoError(t, err)

	_, err = NewCalculator(nil).Compute(table, models.Weights{"A": 1, "B": 1}, 252)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInsufficientData))
	assert.Contains(t, err.Error(), "got 0")
}

func TestComputeSkipsGapRows(t *testing.T) {
	table, err := models.NewPriceTable(dates(5), []string{"A"}, [][]float64{
		{100}, {101}, {math.NaN()}, {103}, {104},
	})
	require.NoError(t, err)

	m, err := NewCalculator(covariance.Sample{}).Compute(table, models.Weights{"A": 1}, 252)
	require.NoError(t, err)
	// rows 2 and 3 touch the gap
	assert.Len(t, m.PortfolioReturns, 2)
	assert.Equal(t, table.Dates[1], m.Dates[0])
	assert.Equal(t, table.Dates[4], m.Dates[1])
}

func TestRiskContribution(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.0,
		0.0, 0.01,
	})
	w := mat.NewVecDense(2, []float64{0.5, 0.5})

	vol, rc := riskContribution(cov, w)

	assert.InDelta(t, math.Sqrt(0.25*0.04+0.25*0.01), vol, 1e-15)
	assert.InDelta(t, 0.8, rc[0], 1e-12)
	assert.InDelta(t, 0.2, rc[1], 1e-12)
}

func TestRiskContributionZeroVolatility(t *testing.T) {
	cov := mat.NewSymDense(2, nil)
	w := mat.NewVecDense(2, []float64{0.5, 0.5})

	vol, rc := riskContribution(cov, w)

	assert.Equal(t, 0.0, vol)
	for _, v := range rc {
		assert.False(t, math.IsNaN(v))
	}
}

func TestComputeCorrelationDiagonal(t *testing.T) {
	m, err := NewCalculator(nil).Compute(twoAssetTable(t), models.Weights{"A": 1, "B": 1}, 252)
	require.NoError(t, err)

	assert.Equal(t, 1.0, m.Correlation.At(0, 0))
	assert.Equal(t, 1.0, m.Correlation.At(1, 1))
	assert.LessOrEqual(t, math.Abs(m.Correlation.At(0, 1)), 1.0)
	assert.InDelta(t, 1.0, m.RiskContribution[0]+m.RiskContribution[1], 1e-12)
	assert.Greater(t, m.Volatility, 0.0)
}
