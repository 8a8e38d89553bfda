package benchmark

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/portfolio-risk-engine/internal/simulation"
	"github.com/rzzdr/portfolio-risk-engine/pkg/metrics"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// DefaultMinObservations is the fewest log returns a benchmark needs
const DefaultMinObservations = 30

// Estimator derives annualized moments for benchmark series.
// Coverage is best effort: unusable benchmarks are omitted, never errors.
type Estimator struct {
	minObservations int
	log             *logger.Logger
}

// NewEstimator creates an estimator; minObservations <= 0 selects the default
func NewEstimator(minObservations int) *Estimator {
	if minObservations <= 0 {
		minObservations = DefaultMinObservations
	}
	return &Estimator{
		minObservations: minObservations,
		log:             logger.GetLogger("benchmark.estimator"),
	}
}

// Estimate returns annualized log-return mean and sample volatility keyed by
// label for every definition whose ticker has enough valid observations
func (e *Estimator) Estimate(prices *models.PriceTable, defs []models.BenchmarkDefinition, annualization int) map[string]models.BenchmarkParams {
	out := make(map[string]models.BenchmarkParams, len(defs))
	if annualization <= 0 {
		annualization = 252
	}
	for _, def := range defs {
		if prices == nil {
			e.omit(def, "no benchmark prices")
			continue
		}
		column, ok := prices.Column(def.Ticker)
		if !ok {
			e.omit(def, "ticker not in price table")
			continue
		}

		returns := logReturns(column)
		if len(returns) < e.minObservations {
			e.omit(def, "too few observations")
			continue
		}

		mean, std := stat.MeanStdDev(returns, nil)
		out[def.Label] = models.BenchmarkParams{
			Label:        def.Label,
			Ticker:       def.Ticker,
			MuAnnual:     mean * float64(annualization),
			VolAnnual:    std * math.Sqrt(float64(annualization)),
			Observations: len(returns),
		}
	}
	return out
}

func (e *Estimator) omit(def models.BenchmarkDefinition, reason string) {
	e.log.Debugf("Omitting benchmark %s (%s): %s", def.Label, def.Ticker, reason)
	metrics.RecordBenchmarkOmitted()
}

// logReturns keeps ln(p_t/p_{t-1}) wherever both prices give a finite value
func logReturns(prices []float64) []float64 {
	var out []float64
	for t := 1; t < len(prices); t++ {
		r := math.Log(prices[t] / prices[t-1])
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Project simulates every benchmark as a single asset and summarizes its paths.
// Benchmarks are projected in label order so a seeded generator gives the
// same result on every run.
func Project(ctx context.Context, sim *simulation.Simulator, rng *rand.Rand, params map[string]models.BenchmarkParams,
	p simulation.Params, percentiles []float64) (map[string]models.ProjectionSummary, error) {
	out := make(map[string]models.ProjectionSummary, len(params))
	for _, label := range sortedLabels(params) {
		bp := params[label]
		paths, err := sim.SimulateSingleAsset(ctx, rng, bp.MuAnnual, bp.VolAnnual, p)
		if err != nil {
			return nil, err
		}
		out[label] = simulation.Summarize(paths, percentiles)
	}
	return out, nil
}

func sortedLabels(params map[string]models.BenchmarkParams) []string {
	labels := make([]string, 0, len(params))
	for label := range params {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
