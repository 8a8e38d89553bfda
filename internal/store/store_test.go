package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
)

func TestPortfolioStoreRoundTrip(t *testing.T) {
	s := NewInMemoryPortfolioStore()
	now := time.Now()

	p := &models.Portfolio{ID: "p1", Name: "Balanced", Universe: "us", Weights: models.Weights{"SPY": 0.6, "AGG": 0.4}, Created: now}
	require.NoError(t, s.SavePortfolio(p))

	// callers cannot mutate stored state through their own pointer
	p.Weights["SPY"] = 1
	got, err := s.GetPortfolio("p1")
	require.NoError(t, err)
	assert.Equal(t, 0.6, got.Weights["SPY"])

	got.Weights["AGG"] = 0
	again, _ := s.GetPortfolio("p1")
	assert.Equal(t, 0.4, again.Weights["AGG"])

	require.NoError(t, s.SavePortfolio(&models.Portfolio{ID: "p0", Universe: "us", Weights: models.Weights{"SPY": 1}, Created: now.Add(-time.Hour)}))
	all, err := s.GetAllPortfolios()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "p0", all[0].ID)
	assert.Equal(t, "p1", all[1].ID)

	require.NoError(t, s.DeletePortfolio("p1"))
	_, err = s.GetPortfolio("p1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.True(t, errors.IsType(s.DeletePortfolio("p1"), errors.ErrorTypeNotFound))
}

func TestPortfolioStoreValidation(t *testing.T) {
	s := NewInMemoryPortfolioStore()

	tests := []struct {
		name      string
		portfolio *models.Portfolio
	}{
		{"nil", nil},
		{"no id", &models.Portfolio{Universe: "us", Weights: models.Weights{"A": 1}}},
		{"no universe", &models.Portfolio{ID: "x", Weights: models.Weights{"A": 1}}},
		{"no weights", &models.Portfolio{ID: "x", Universe: "us"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SavePortfolio(tt.portfolio)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
		})
	}
}

func TestPriceStore(t *testing.T) {
	s := NewInMemoryPriceStore()

	_, err := s.GetPrices("us")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	table, err := models.NewPriceTable(
		[]time.Time{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)},
		[]string{"SPY"},
		[][]float64{{470}, {472}},
	)
	require.NoError(t, err)

	require.NoError(t, s.SavePrices("us", table))
	require.NoError(t, s.SavePrices("eu", table))
	assert.Equal(t, []string{"eu", "us"}, s.Universes())

	got, err := s.GetPrices("us")
	require.NoError(t, err)
	assert.Same(t, table, got)

	assert.True(t, errors.IsType(s.SavePrices("", table), errors.ErrorTypeInvalidArgument))
	assert.True(t, errors.IsType(s.SavePrices("x", nil), errors.ErrorTypeInvalidArgument))
}
