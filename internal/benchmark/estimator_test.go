package benchmark

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/portfolio-risk-engine/internal/simulation"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
)

// benchTable has 41 prices for SPY (40 returns) and 11 for QQQ (10 returns)
func benchTable(t *testing.T) *models.PriceTable {
	t.Helper()
	n := 41
	dates := make([]time.Time, n)
	values := make([][]float64, n)
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	spy, qqq := 400.0, 300.0
	for i := 0; i < n; i++ {
		dates[i] = start.AddDate(0, 0, i)
		if i%2 == 0 {
			spy *= 1.01
		} else {
			spy *= 0.995
		}
		q := math.NaN()
		if i < 11 {
			qqq *= 1.002
			q = qqq
		}
		values[i] = []float64{spy, q}
	}
	table, err := models.NewPriceTable(dates, []string{"SPY", "QQQ"}, values)
	require.NoError(t, err)
	return table
}

func TestEstimate(t *testing.T) {
	defs := []models.BenchmarkDefinition{
		{Label: "S&P 500", Ticker: "SPY"},
		{Label: "Nasdaq 100", Ticker: "QQQ"},
		{Label: "Gold", Ticker: "GLD"},
	}

	got := NewEstimator(0).Estimate(benchTable(t), defs, 252)

	require.Len(t, got, 1)
	spy, ok := got["S&P 500"]
	require.True(t, ok)
	assert.Equal(t, "SPY", spy.Ticker)
	assert.Equal(t, 40, spy.Observations)

	// alternating +1% / -0.5% log returns, 20 of each
	up, down := math.Log(1.01), math.Log(0.995)
	mean := (up + down) / 2
	variance := 40 * ((up-mean)*(up-mean) + (down-mean)*(down-mean)) / 2 / 39
	assert.InDelta(t, mean*252, spy.MuAnnual, 1e-12)
	assert.InDelta(t, math.Sqrt(variance)*math.Sqrt(252), spy.VolAnnual, 1e-12)
}

func TestEstimateLowerThreshold(t *testing.T) {
	got := NewEstimator(10).Estimate(benchTable(t), []models.BenchmarkDefinition{{Label: "NDX", Ticker: "QQQ"}}, 252)
	require.Contains(t, got, "NDX")
	assert.Equal(t, 10, got["NDX"].Observations)
	assert.InDelta(t, 0, got["NDX"].VolAnnual, 1e-9)
}

func TestEstimateNilPrices(t *testing.T) {
	got := NewEstimator(0).Estimate(nil, []models.BenchmarkDefinition{{Label: "S&P 500", Ticker: "SPY"}}, 252)
	assert.Empty(t, got)
}

func TestProject(t *testing.T) {
	params := map[string]models.BenchmarkParams{
		"flat":   {Label: "flat", MuAnnual: 0.12, VolAnnual: 0},
		"market": {Label: "market", MuAnnual: 0.08, VolAnnual: 0.15},
	}
	sim := simulation.NewSimulator(simulation.Config{})
	p := simulation.Params{StartValue: 100, Steps: 12, NumPaths: 200}

	got, err := Project(context.Background(), sim, rand.New(rand.NewPCG(42, 42)), params, p, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)

	flat := got["flat"]
	assert.InDelta(t, 100*math.Pow(1.01, 12), flat.MedianFinalValue, 1e-9)
	assert.Equal(t, 0.0, flat.ProbabilityOfLoss)
	assert.Equal(t, 200, got["market"].NumPaths)

	again, err := Project(context.Background(), sim, rand.New(rand.NewPCG(42, 42)), params, p, nil)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}
