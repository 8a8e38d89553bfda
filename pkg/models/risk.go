package models

import (
	"encoding/json"
	"math"
	"time"
)

// Scenario names used as keys of a RiskMetricsBundle
const (
	ScenarioHistorical = "historical"
	ScenarioNormalMC   = "normal_mc"
	ScenarioRandomMC   = "random_mc"
)

// Metric is a float64 that survives JSON encoding when it is not finite:
// NaN becomes null and infinities become the strings "Infinity" / "-Infinity"
type Metric float64

// MarshalJSON implements json.Marshaler
func (m Metric) MarshalJSON() ([]byte, error) {
	v := float64(m)
	switch {
	case math.IsNaN(v):
		return []byte("null"), nil
	case math.IsInf(v, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Infinity"`), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Metric) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*m = Metric(math.NaN())
		return nil
	case `"Infinity"`:
		*m = Metric(math.Inf(1))
		return nil
	case `"-Infinity"`:
		*m = Metric(math.Inf(-1))
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Metric(v)
	return nil
}

// Portfolio is a stored weight configuration evaluated against a named price universe
type Portfolio struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Universe string    `json:"universe"`
	Weights  Weights   `json:"weights"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// SimulationParams controls the Monte Carlo projections of one analysis run.
// Zero numeric fields take the configured defaults. RandomnessFactor and Seed
// are pointers so that 0 is an explicit value; nil takes the default.
type SimulationParams struct {
	StartCapital     float64  `json:"startCapital"`
	Steps            int      `json:"steps"`
	NumPaths         int      `json:"numPaths"`
	RandomnessFactor *float64 `json:"randomnessFactor,omitempty"`
	PeriodsPerYear   int      `json:"periodsPerYear"`
	Annualization    int      `json:"annualization"`
	Seed             *uint64  `json:"seed,omitempty"`
}

// AnalysisRequest is everything one analysis run consumes
type AnalysisRequest struct {
	Prices          *PriceTable           `json:"prices"`
	Weights         Weights               `json:"weights"`
	BenchmarkPrices *PriceTable           `json:"benchmarkPrices,omitempty"`
	Benchmarks      []BenchmarkDefinition `json:"benchmarks,omitempty"`
	Params          SimulationParams      `json:"params"`
}

// AnalysisJob runs a stored portfolio against the prices of its universe.
// Benchmarks are looked up in BenchmarkUniverse, or the portfolio's own
// universe when that is empty.
type AnalysisJob struct {
	PortfolioID       string                `json:"portfolioId"`
	Params            SimulationParams      `json:"params"`
	BenchmarkUniverse string                `json:"benchmarkUniverse,omitempty"`
	Benchmarks        []BenchmarkDefinition `json:"benchmarks,omitempty"`
}

// ScenarioMetrics holds the tail-risk and ratio statistics of one scenario
type ScenarioMetrics struct {
	ValueAtRisk         Metric `json:"valueAtRisk"`
	ExpectedShortfall   Metric `json:"expectedShortfall"`
	MaxDrawdown         Metric `json:"maxDrawdown"`
	MaxDrawdownDuration int    `json:"maxDrawdownDuration"`
	AnnualReturn        Metric `json:"annualReturn"`
	CalmarRatio         Metric `json:"calmarRatio"`
	SharpeRatio         Metric `json:"sharpeRatio"`
	SortinoRatio        Metric `json:"sortinoRatio"`
}

// RiskMetricsBundle maps a scenario name to its statistics
type RiskMetricsBundle map[string]ScenarioMetrics

// PortfolioSummary is the JSON-facing view of the portfolio moments
type PortfolioSummary struct {
	Assets           []string           `json:"assets"`
	Weights          map[string]float64 `json:"weights"`
	DroppedAssets    []string           `json:"droppedAssets,omitempty"`
	MeanAnnual       map[string]float64 `json:"meanAnnual"`
	Correlation      [][]float64        `json:"correlation"`
	RiskContribution map[string]float64 `json:"riskContribution"`
	Volatility       float64            `json:"volatility"`
	Observations     int                `json:"observations"`
}

// Bands are per-step cross-sectional percentiles of a path matrix
type Bands struct {
	Percentiles []float64   `json:"percentiles"`
	Values      [][]float64 `json:"values"`
	Mean        []float64   `json:"mean"`
}

// ProjectionSummary describes one simulated path matrix
type ProjectionSummary struct {
	Steps             int     `json:"steps"`
	NumPaths          int     `json:"numPaths"`
	Bands             Bands   `json:"bands"`
	MeanFinalValue    float64 `json:"meanFinalValue"`
	MedianFinalValue  float64 `json:"medianFinalValue"`
	ProbabilityOfLoss float64 `json:"probabilityOfLoss"`
}

// BenchmarkParams are annualized log-return moments of one benchmark series
type BenchmarkParams struct {
	Label        string  `json:"label"`
	Ticker       string  `json:"ticker"`
	MuAnnual     float64 `json:"muAnnual"`
	VolAnnual    float64 `json:"volAnnual"`
	Observations int     `json:"observations"`
}

// AnalysisResult is the numeric output of one analysis run
type AnalysisResult struct {
	ID                   string                       `json:"id"`
	PortfolioID          string                       `json:"portfolioId,omitempty"`
	Timestamp            time.Time                    `json:"timestamp"`
	Seed                 uint64                       `json:"seed"`
	Portfolio            PortfolioSummary             `json:"portfolio"`
	Risk                 RiskMetricsBundle            `json:"risk"`
	Projections          map[string]ProjectionSummary `json:"projections"`
	Benchmarks           map[string]BenchmarkParams   `json:"benchmarks,omitempty"`
	BenchmarkProjections map[string]ProjectionSummary `json:"benchmarkProjections,omitempty"`
	Duration             time.Duration                `json:"duration"`
}
