package risk

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/portfolio-risk-engine/internal/benchmark"
	"github.com/rzzdr/portfolio-risk-engine/internal/portfolio"
	"github.com/rzzdr/portfolio-risk-engine/internal/simulation"
	"github.com/rzzdr/portfolio-risk-engine/pkg/metrics"
	"github.com/rzzdr/portfolio-risk-engine/pkg/models"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// CalculatorConfig contains configuration for the risk calculator
type CalculatorConfig struct {
	VaRConfidenceLevel float64
	ESConfidenceLevel  float64
	// RiskFreeRate is annual; it is converted to the period of each series
	RiskFreeRate float64
	Percentiles  []float64
	// Defaults fill any zero field of a request's simulation parameters
	Defaults models.SimulationParams
	Limits   Limits
}

// Limits bound the size of the path matrices one analysis may allocate
type Limits struct {
	MaxSteps int
	MaxPaths int
	// MaxCells caps (steps+1)·paths of a single path matrix
	MaxCells int
}

// DefaultLimits keep one path matrix under roughly 400 MB
var DefaultLimits = Limits{
	MaxSteps: 1200,
	MaxPaths: 1_000_000,
	MaxCells: 50_000_000,
}

// PortfolioStore defines an interface for retrieving stored portfolios
type PortfolioStore interface {
	GetPortfolio(id string) (*models.Portfolio, error)
}

// PriceStore defines an interface for retrieving price universes
type PriceStore interface {
	GetPrices(universe string) (*models.PriceTable, error)
}

// Publisher receives every completed analysis
type Publisher interface {
	Name() string
	Publish(ctx context.Context, result *models.AnalysisResult) error
}

// Calculator runs one analysis: portfolio moments, the two Monte Carlo
// projections, per-scenario risk metrics and optional benchmarks
type Calculator struct {
	config     CalculatorConfig
	portfolio  *portfolio.Calculator
	simulator  *simulation.Simulator
	benchmarks *benchmark.Estimator
	portfolios PortfolioStore
	prices     PriceStore
	publishers []Publisher
	recorder   *metrics.Recorder
	log        *logger.Logger
}

// Option configures optional collaborators of a Calculator
type Option func(*Calculator)

// WithStores enables AnalyzePortfolio
func WithStores(portfolios PortfolioStore, prices PriceStore) Option {
	return func(c *Calculator) {
		c.portfolios = portfolios
		c.prices = prices
	}
}

// WithPublishers registers result sinks
func WithPublishers(publishers ...Publisher) Option {
	return func(c *Calculator) {
		c.publishers = append(c.publishers, publishers...)
	}
}

// WithRecorder records analysis metrics
func WithRecorder(recorder *metrics.Recorder) Option {
	return func(c *Calculator) {
		c.recorder = recorder
	}
}

// NewCalculator creates a new risk calculator
func NewCalculator(config CalculatorConfig, pc *portfolio.Calculator, sim *simulation.Simulator,
	bench *benchmark.Estimator, opts ...Option) *Calculator {
	if !(config.VaRConfidenceLevel > 0 && config.VaRConfidenceLevel < 1) {
		config.VaRConfidenceLevel = DefaultConfidenceLevel
	}
	if !(config.ESConfidenceLevel > 0 && config.ESConfidenceLevel < 1) {
		config.ESConfidenceLevel = DefaultConfidenceLevel
	}
	if len(config.Percentiles) == 0 {
		config.Percentiles = simulation.DefaultBands
	}
	config.Defaults = withBuiltinDefaults(config.Defaults)
	if config.Limits.MaxSteps <= 0 {
		config.Limits.MaxSteps = DefaultLimits.MaxSteps
	}
	if config.Limits.MaxPaths <= 0 {
		config.Limits.MaxPaths = DefaultLimits.MaxPaths
	}
	if config.Limits.MaxCells <= 0 {
		config.Limits.MaxCells = DefaultLimits.MaxCells
	}

	if pc == nil {
		pc = portfolio.NewCalculator(nil)
	}
	if sim == nil {
		sim = simulation.NewSimulator(simulation.Config{})
	}
	if bench == nil {
		bench = benchmark.NewEstimator(0)
	}

	c := &Calculator{
		config:     config,
		portfolio:  pc,
		simulator:  sim,
		benchmarks: bench,
		log:        logger.GetLogger("risk.calculator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func withBuiltinDefaults(p models.SimulationParams) models.SimulationParams {
	if p.StartCapital == 0 {
		p.StartCapital = 10000
	}
	if p.Steps == 0 {
		p.Steps = 36
	}
	if p.NumPaths == 0 {
		p.NumPaths = 50000
	}
	if p.RandomnessFactor == nil {
		factor := simulation.DefaultRandomness
		p.RandomnessFactor = &factor
	}
	if p.PeriodsPerYear == 0 {
		p.PeriodsPerYear = simulation.DefaultPeriods
	}
	if p.Annualization == 0 {
		p.Annualization = portfolio.DefaultAnnualization
	}
	if p.Seed == nil {
		seed := uint64(42)
		p.Seed = &seed
	}
	return p
}

// resolveParams overlays the non-zero request fields on the configured defaults
func (c *Calculator) resolveParams(p models.SimulationParams) (models.SimulationParams, error) {
	d := c.config.Defaults
	if p.StartCapital != 0 {
		d.StartCapital = p.StartCapital
	}
	if p.Steps != 0 {
		d.Steps = p.Steps
	}
	if p.NumPaths != 0 {
		d.NumPaths = p.NumPaths
	}
	if p.RandomnessFactor != nil {
		factor := *p.RandomnessFactor
		d.RandomnessFactor = &factor
	}
	if p.PeriodsPerYear != 0 {
		d.PeriodsPerYear = p.PeriodsPerYear
	}
	if p.Annualization != 0 {
		d.Annualization = p.Annualization
	}
	if p.Seed != nil {
		seed := *p.Seed
		d.Seed = &seed
	}

	switch {
	case d.StartCapital < 0 || math.IsNaN(d.StartCapital) || math.IsInf(d.StartCapital, 0):
		return d, errors.InvalidArgument("start capital must be a positive number")
	case d.Steps < 0, d.NumPaths < 0, d.PeriodsPerYear < 0, d.Annualization < 0:
		return d, errors.InvalidArgument("steps, paths, periods per year and annualization must be positive")
	case *d.RandomnessFactor < 0 || math.IsNaN(*d.RandomnessFactor) || math.IsInf(*d.RandomnessFactor, 0):
		return d, errors.InvalidArgument("randomness factor must be a non-negative number")
	}
	return d, c.checkLimits(d)
}

// checkLimits rejects path matrices larger than the configured limits. The
// cell check divides instead of multiplying so it cannot overflow.
func (c *Calculator) checkLimits(p models.SimulationParams) error {
	l := c.config.Limits
	switch {
	case p.Steps > l.MaxSteps:
		return errors.InvalidArgumentf("steps %d exceeds the limit of %d", p.Steps, l.MaxSteps)
	case p.NumPaths > l.MaxPaths:
		return errors.InvalidArgumentf("paths %d exceeds the limit of %d", p.NumPaths, l.MaxPaths)
	case p.NumPaths > 0 && p.Steps+1 > l.MaxCells/p.NumPaths:
		return errors.InvalidArgumentf("%d paths x %d steps exceeds the limit of %d simulated values",
			p.NumPaths, p.Steps, l.MaxCells)
	}
	return nil
}

// Analyze runs a complete analysis on inline prices and weights and
// publishes the result to every registered sink
func (c *Calculator) Analyze(ctx context.Context, req *models.AnalysisRequest) (*models.AnalysisResult, error) {
	return c.analyze(ctx, req, "")
}

func (c *Calculator) analyze(ctx context.Context, req *models.AnalysisRequest, portfolioID string) (result *models.AnalysisResult, err error) {
	startTime := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.RecordAnalysis(err, time.Since(startTime))
		}
	}()

	if req == nil {
		return nil, errors.InvalidArgument("analysis request is required")
	}
	params, err := c.resolveParams(req.Params)
	if err != nil {
		return nil, err
	}

	m, err := c.portfolio.Compute(req.Prices, req.Weights, params.Annualization)
	if err != nil {
		return nil, err
	}

	seed := *params.Seed
	rng := rand.New(rand.NewPCG(seed, seed))
	simParams := simulation.Params{
		StartValue:       params.StartCapital,
		Steps:            params.Steps,
		NumPaths:         params.NumPaths,
		PeriodsPerYear:   params.PeriodsPerYear,
		RandomnessFactor: *params.RandomnessFactor,
	}

	normal, err := c.simulator.SimulateGaussian(ctx, rng, m.MeanAnnual, m.CovAnnual, m.Weights, simParams)
	if err != nil {
		return nil, errors.Wrap(err, "normal projection failed")
	}
	random, err := c.simulator.SimulateGaussianWithRandomness(ctx, rng, m.MeanAnnual, m.CovAnnual, m.Weights, simParams)
	if err != nil {
		return nil, errors.Wrap(err, "randomized projection failed")
	}

	bundle := models.RiskMetricsBundle{}
	if bundle[models.ScenarioHistorical], err = c.historicalMetrics(m, params.StartCapital); err != nil {
		return nil, err
	}
	if bundle[models.ScenarioNormalMC], err = c.simulatedMetrics(normal, params.PeriodsPerYear); err != nil {
		return nil, err
	}
	if bundle[models.ScenarioRandomMC], err = c.simulatedMetrics(random, params.PeriodsPerYear); err != nil {
		return nil, err
	}

	result = &models.AnalysisResult{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		Timestamp:   startTime.UTC(),
		Seed:        seed,
		Portfolio:   summarizePortfolio(m),
		Risk:        bundle,
		Projections: map[string]models.ProjectionSummary{
			models.ScenarioNormalMC: simulation.Summarize(normal, c.config.Percentiles),
			models.ScenarioRandomMC: simulation.Summarize(random, c.config.Percentiles),
		},
	}

	if len(req.Benchmarks) > 0 {
		result.Benchmarks = c.benchmarks.Estimate(req.BenchmarkPrices, req.Benchmarks, params.Annualization)
		result.BenchmarkProjections, err = benchmark.Project(ctx, c.simulator, rng, result.Benchmarks, simParams, c.config.Percentiles)
		if err != nil {
			return nil, errors.Wrap(err, "benchmark projection failed")
		}
	}

	result.Duration = time.Since(startTime)
	if c.recorder != nil {
		for scenario, sm := range bundle {
			c.recorder.RecordScenarioRisk(scenario, float64(sm.ValueAtRisk), float64(sm.ExpectedShortfall))
		}
	}

	c.log.Infof("Completed analysis %s of %d assets, %d paths x %d steps in %v",
		result.ID, len(m.Assets), params.NumPaths, params.Steps, result.Duration)
	c.publish(ctx, result)
	return result, nil
}

// AnalyzePortfolio analyzes a stored portfolio against its stored universe
func (c *Calculator) AnalyzePortfolio(ctx context.Context, job *models.AnalysisJob) (*models.AnalysisResult, error) {
	if c.portfolios == nil || c.prices == nil {
		return nil, errors.Configuration("calculator has no portfolio or price store")
	}
	if job == nil || job.PortfolioID == "" {
		return nil, errors.InvalidArgument("portfolio ID is required")
	}

	p, err := c.portfolios.GetPortfolio(job.PortfolioID)
	if err != nil {
		c.log.Errorf("Failed to get portfolio %s: %v", job.PortfolioID, err)
		return nil, err
	}
	prices, err := c.prices.GetPrices(p.Universe)
	if err != nil {
		return nil, err
	}

	req := &models.AnalysisRequest{
		Prices:     prices,
		Weights:    p.Weights,
		Benchmarks: job.Benchmarks,
		Params:     job.Params,
	}
	if len(job.Benchmarks) > 0 {
		universe := job.BenchmarkUniverse
		if universe == "" {
			universe = p.Universe
		}
		// missing benchmark prices only omit benchmarks
		if req.BenchmarkPrices, err = c.prices.GetPrices(universe); err != nil {
			c.log.Warnf("Benchmark universe %s unavailable: %v", universe, err)
		}
	}

	return c.analyze(ctx, req, p.ID)
}

// publish hands result to every sink. Sink failures are logged and
// recorded but never fail the analysis.
func (c *Calculator) publish(ctx context.Context, result *models.AnalysisResult) {
	for _, p := range c.publishers {
		err := p.Publish(ctx, result)
		if err != nil {
			c.log.Warnf("Failed to publish analysis %s to %s: %v", result.ID, p.Name(), err)
		}
		if c.recorder != nil {
			c.recorder.RecordPublish(p.Name(), err)
		}
	}
}

// historicalMetrics evaluates the realized daily portfolio returns
func (c *Calculator) historicalMetrics(m *portfolio.Metrics, startCapital float64) (models.ScenarioMetrics, error) {
	r := m.PortfolioReturns
	ann := float64(m.Annualization)

	valueAtRisk, err := ValueAtRisk(r, c.config.VaRConfidenceLevel)
	if err != nil {
		return models.ScenarioMetrics{}, err
	}
	shortfall, err := ExpectedShortfall(r, c.config.ESConfidenceLevel)
	if err != nil {
		return models.ScenarioMetrics{}, err
	}

	values := make([]float64, len(r)+1)
	values[0] = startCapital
	cum := 0.0
	for i, x := range r {
		cum += x
		values[i+1] = startCapital * math.Exp(cum)
	}

	annual := stat.Mean(r, nil) * ann
	drawdown := MaxDrawdown(values)
	rf := c.config.RiskFreeRate / ann

	return models.ScenarioMetrics{
		ValueAtRisk:         models.Metric(valueAtRisk),
		ExpectedShortfall:   models.Metric(shortfall),
		MaxDrawdown:         models.Metric(drawdown),
		MaxDrawdownDuration: MaxDrawdownDuration(values),
		AnnualReturn:        models.Metric(annual),
		CalmarRatio:         models.Metric(CalmarRatio(annual, drawdown)),
		SharpeRatio:         models.Metric(SharpeRatio(r, rf) * math.Sqrt(ann)),
		SortinoRatio:        models.Metric(SortinoRatio(r, rf, 0) * math.Sqrt(ann)),
	}, nil
}

// simulatedMetrics evaluates a path matrix: tail risk on horizon returns,
// drawdown and CAGR on the median path, ratios on pooled step returns
func (c *Calculator) simulatedMetrics(paths *mat.Dense, periodsPerYear int) (models.ScenarioMetrics, error) {
	terminal := simulation.TerminalReturns(paths)
	valueAtRisk, err := ValueAtRisk(terminal, c.config.VaRConfidenceLevel)
	if err != nil {
		return models.ScenarioMetrics{}, err
	}
	shortfall, err := ExpectedShortfall(terminal, c.config.ESConfidenceLevel)
	if err != nil {
		return models.ScenarioMetrics{}, err
	}

	median := simulation.MedianPath(paths)
	drawdown := MaxDrawdown(median)
	annual := cagr(median, periodsPerYear)

	ppy := float64(periodsPerYear)
	steps := simulation.StepReturns(paths)
	rf := c.config.RiskFreeRate / ppy

	return models.ScenarioMetrics{
		ValueAtRisk:         models.Metric(valueAtRisk),
		ExpectedShortfall:   models.Metric(shortfall),
		MaxDrawdown:         models.Metric(drawdown),
		MaxDrawdownDuration: MaxDrawdownDuration(median),
		AnnualReturn:        models.Metric(annual),
		CalmarRatio:         models.Metric(CalmarRatio(annual, drawdown)),
		SharpeRatio:         models.Metric(SharpeRatio(steps, rf) * math.Sqrt(ppy)),
		SortinoRatio:        models.Metric(SortinoRatio(steps, rf, 0) * math.Sqrt(ppy)),
	}, nil
}

// cagr annualizes the growth from the first to the last value of a path
func cagr(path []float64, periodsPerYear int) float64 {
	n := len(path) - 1
	if n <= 0 || path[0] <= 0 {
		return 0
	}
	growth := path[n] / path[0]
	if growth <= 0 {
		return -1
	}
	return math.Pow(growth, float64(periodsPerYear)/float64(n)) - 1
}

func summarizePortfolio(m *portfolio.Metrics) models.PortfolioSummary {
	p := len(m.Assets)
	s := models.PortfolioSummary{
		Assets:           m.Assets,
		Weights:          m.WeightMap,
		DroppedAssets:    m.Dropped,
		MeanAnnual:       make(map[string]float64, p),
		Correlation:      make([][]float64, p),
		RiskContribution: make(map[string]float64, p),
		Volatility:       m.Volatility,
		Observations:     len(m.PortfolioReturns),
	}
	for i, asset := range m.Assets {
		s.MeanAnnual[asset] = m.MeanAnnual.AtVec(i)
		s.RiskContribution[asset] = m.RiskContribution[i]
		s.Correlation[i] = make([]float64, p)
		for j := 0; j < p; j++ {
			s.Correlation[i][j] = m.Correlation.At(i, j)
		}
	}
	return s
}
