package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
)

// PriceTable holds aligned closing prices. Values[i][j] is the close of
// Assets[j] on Dates[i]; NaN marks a missing observation.
type PriceTable struct {
	Dates  []time.Time
	Assets []string
	Values [][]float64
	index  map[string]int
}

// NewPriceTable validates the shape of a price table: unique asset columns,
// strictly increasing dates and one value per asset on every row
func NewPriceTable(dates []time.Time, assets []string, values [][]float64) (*PriceTable, error) {
	if len(values) != len(dates) {
		return nil, errors.InvalidArgumentf("price table has %d rows but %d dates", len(values), len(dates))
	}

	index := make(map[string]int, len(assets))
	for j, a := range assets {
		if a == "" {
			return nil, errors.InvalidArgumentf("price table column %d has an empty asset identifier", j)
		}
		if _, dup := index[a]; dup {
			return nil, errors.InvalidArgumentf("duplicate asset column %q", a)
		}
		index[a] = j
	}

	for i := range dates {
		if i > 0 && !dates[i].After(dates[i-1]) {
			return nil, errors.InvalidArgumentf("dates must be strictly increasing: %s follows %s",
				dates[i].Format(time.DateOnly), dates[i-1].Format(time.DateOnly))
		}
		if len(values[i]) != len(assets) {
			return nil, errors.InvalidArgumentf("row %d has %d values, expected %d", i, len(values[i]), len(assets))
		}
	}

	return &PriceTable{Dates: dates, Assets: assets, Values: values, index: index}, nil
}

// Rows returns the number of dates in the table
func (t *PriceTable) Rows() int {
	return len(t.Dates)
}

// Has reports whether the table carries a column for asset
func (t *PriceTable) Has(asset string) bool {
	_, ok := t.columnIndex(asset)
	return ok
}

// Column returns a copy of the price series for asset
func (t *PriceTable) Column(asset string) ([]float64, bool) {
	j, ok := t.columnIndex(asset)
	if !ok {
		return nil, false
	}
	col := make([]float64, len(t.Values))
	for i, row := range t.Values {
		col[i] = row[j]
	}
	return col, true
}

func (t *PriceTable) columnIndex(asset string) (int, bool) {
	if t.index == nil {
		for j, a := range t.Assets {
			if a == asset {
				return j, true
			}
		}
		return -1, false
	}
	j, ok := t.index[asset]
	return j, ok
}

type priceTableJSON struct {
	Dates  []string     `json:"dates"`
	Assets []string     `json:"assets"`
	Prices [][]*float64 `json:"prices"`
}

// MarshalJSON encodes missing prices as null
func (t *PriceTable) MarshalJSON() ([]byte, error) {
	out := priceTableJSON{
		Dates:  make([]string, len(t.Dates)),
		Assets: t.Assets,
		Prices: make([][]*float64, len(t.Values)),
	}
	for i, d := range t.Dates {
		out.Dates[i] = d.Format(time.DateOnly)
	}
	for i, row := range t.Values {
		out.Prices[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				out.Prices[i][j] = &v
			}
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a table with YYYY-MM-DD dates and null for missing prices
func (t *PriceTable) UnmarshalJSON(data []byte) error {
	var in priceTableJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	dates := make([]time.Time, len(in.Dates))
	for i, s := range in.Dates {
		d, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return errors.InvalidArgumentf("invalid date %q: %v", s, err)
		}
		dates[i] = d
	}

	values := make([][]float64, len(in.Prices))
	for i, row := range in.Prices {
		values[i] = make([]float64, len(row))
		for j, p := range row {
			if p == nil {
				values[i][j] = math.NaN()
			} else {
				values[i][j] = *p
			}
		}
	}

	parsed, err := NewPriceTable(dates, in.Assets, values)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// Weights maps an asset identifier to a raw, unnormalized portfolio weight
type Weights map[string]float64

// BenchmarkDefinition pairs a display label with the column holding its prices
type BenchmarkDefinition struct {
	Label  string `json:"label"`
	Ticker string `json:"ticker"`
}
