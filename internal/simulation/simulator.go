package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/portfolio-risk-engine/pkg/metrics"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// Model names, also used as metric labels
const (
	ModelGaussian     = "gaussian"
	ModelRandomness   = "gaussian_randomness"
	ModelSingleAsset  = "single_asset"
	DefaultPeriods    = 12
	DefaultRandomness = 0.30
	DefaultJumpChance = 0.05

	// MinStepReturn and MaxStepReturn bound a single portfolio step of the
	// jump and stochastic-volatility model
	MinStepReturn = -0.5
	MaxStepReturn = 1.0
)

// Params describe the shape of a simulated path matrix
type Params struct {
	StartValue       float64
	Steps            int
	NumPaths         int
	PeriodsPerYear   int
	RandomnessFactor float64
}

// Config controls how the path matrix is split across goroutines.
// A nil JumpProbability takes DefaultJumpChance; 0 disables jumps.
type Config struct {
	Workers         int
	BatchSize       int
	JumpProbability *float64
}

// Simulator advances portfolio value paths step by step.
//
// Paths are split into column batches of BatchSize. Each batch draws from its
// own PCG stream seeded from the caller's generator before any goroutine
// starts, so a given seed, batch size and path count always produce the same
// matrix regardless of Workers.
type Simulator struct {
	config          Config
	jumpProbability float64
	log             *logger.Logger
}

// NewSimulator creates a simulator, filling zero config fields with defaults
func NewSimulator(config Config) *Simulator {
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 5000
	}
	s := &Simulator{
		config:          config,
		jumpProbability: DefaultJumpChance,
		log:             logger.GetLogger("simulation.paths"),
	}
	if p := config.JumpProbability; p != nil {
		if *p >= 0 && *p <= 1 {
			s.jumpProbability = *p
		} else {
			s.log.Warnf("Jump probability %g outside [0, 1], using %g", *p, DefaultJumpChance)
		}
	}
	return s
}

// SimulateGaussian projects a portfolio under correlated Gaussian asset
// returns. muAnnual and covAnnual are annualized; weights must sum to one.
// The result has Steps+1 rows and NumPaths columns.
func (s *Simulator) SimulateGaussian(ctx context.Context, rng *rand.Rand, muAnnual mat.Vector, covAnnual mat.Symmetric, weights mat.Vector, p Params) (*mat.Dense, error) {
	p = withDefaults(p)
	setup, err := s.multiAssetSetup(muAnnual, covAnnual, weights, p)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, rng, p, ModelGaussian, func(src rand.Source, cols int) stepper {
		return newGaussianStepper(src, setup, cols, nil)
	})
}

// SimulateGaussianWithRandomness adds per-cell jumps and a clamped
// volatility multiplier to the Gaussian model and bounds every portfolio
// step to [MinStepReturn, MaxStepReturn]
func (s *Simulator) SimulateGaussianWithRandomness(ctx context.Context, rng *rand.Rand, muAnnual mat.Vector, covAnnual mat.Symmetric, weights mat.Vector, p Params) (*mat.Dense, error) {
	p = withDefaults(p)
	if p.RandomnessFactor < 0 || math.IsNaN(p.RandomnessFactor) {
		return nil, errors.InvalidArgument("randomness factor must be non-negative")
	}
	setup, err := s.multiAssetSetup(muAnnual, covAnnual, weights, p)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, rng, p, ModelRandomness, func(src rand.Source, cols int) stepper {
		return newGaussianStepper(src, setup, cols, newShock(src, p.RandomnessFactor, s.jumpProbability))
	})
}

// SimulateSingleAsset projects one asset from its annual mean and volatility,
// value_t = value_{t-1}·(1 + N(mu/periods, vol/sqrt(periods)))
func (s *Simulator) SimulateSingleAsset(ctx context.Context, rng *rand.Rand, muAnnual, volAnnual float64, p Params) (*mat.Dense, error) {
	p = withDefaults(p)
	if err := validate(p); err != nil {
		return nil, err
	}
	if volAnnual < 0 || math.IsNaN(volAnnual) || math.IsNaN(muAnnual) {
		return nil, errors.InvalidArgument("single-asset mean must be a number and volatility non-negative")
	}
	periods := float64(p.PeriodsPerYear)
	muStep := muAnnual / periods
	sigmaStep := volAnnual / math.Sqrt(periods)
	return s.run(ctx, rng, p, ModelSingleAsset, func(src rand.Source, _ int) stepper {
		return newSingleAssetStepper(src, muStep, sigmaStep)
	})
}

func withDefaults(p Params) Params {
	if p.PeriodsPerYear <= 0 {
		p.PeriodsPerYear = DefaultPeriods
	}
	return p
}

func validate(p Params) error {
	if p.Steps < 0 {
		return errors.InvalidArgument("steps must be non-negative")
	}
	if p.NumPaths <= 0 {
		return errors.InvalidArgument("number of paths must be positive")
	}
	if p.Steps >= math.MaxInt/p.NumPaths {
		return errors.InvalidArgumentf("%d paths x %d steps does not fit in memory", p.NumPaths, p.Steps)
	}
	return nil
}

// multiAssetSetup converts annual moments to per-step moments and factors
// the per-step covariance
func (s *Simulator) multiAssetSetup(muAnnual mat.Vector, covAnnual mat.Symmetric, weights mat.Vector, p Params) (*gaussianSetup, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if muAnnual == nil || covAnnual == nil || weights == nil {
		return nil, errors.InvalidArgument("mean, covariance and weights are required")
	}
	n := muAnnual.Len()
	if n == 0 || covAnnual.SymmetricDim() != n || weights.Len() != n {
		return nil, errors.InvalidArgument("mean, covariance and weights must have matching asset dimensions")
	}

	periods := float64(p.PeriodsPerYear)
	muStep := make([]float64, n)
	for i := range muStep {
		muStep[i] = muAnnual.AtVec(i) / periods
	}
	covStep := mat.NewSymDense(n, nil)
	covStep.ScaleSym(1/periods, covAnnual)

	chol, jitter, err := CholeskyWithJitter(covStep)
	if err != nil {
		return nil, err
	}
	if jitter > 0 {
		s.log.Warnf("Per-step covariance needed jitter %g to factorize", jitter)
		metrics.RecordCholeskyRegularization(jitter)
	}

	return &gaussianSetup{
		chol:    chol,
		muStep:  muStep,
		weights: mat.VecDenseCopyOf(weights),
	}, nil
}

// jitters are the diagonal loadings tried, in order, before giving up
var jitters = []float64{0, 1e-12, 1e-6}

// CholeskyWithJitter returns the lower factor L with L·Lᵀ = cov + jitter·I
// for the first jitter in {0, 1e-12, 1e-6} that makes cov positive definite
func CholeskyWithJitter(cov mat.Symmetric) (*mat.TriDense, float64, error) {
	n := cov.SymmetricDim()
	for _, jitter := range jitters {
		a := mat.NewSymDense(n, nil)
		a.CopySym(cov)
		for i := 0; i < n; i++ {
			a.SetSym(i, i, a.At(i, i)+jitter)
		}

		var chol mat.Cholesky
		if chol.Factorize(a) {
			var l mat.TriDense
			chol.LTo(&l)
			return &l, jitter, nil
		}
	}
	return nil, 0, errors.Numerical("covariance is not positive definite after regularization",
		errors.Newf("cholesky failed with diagonal jitter up to %g", jitters[len(jitters)-1]))
}

// stepper produces one step of per-path returns for a batch of paths
type stepper interface {
	next(out []float64)
}

type stepperFactory func(src rand.Source, cols int) stepper

type batch struct {
	start, size int
}

func (s *Simulator) batches(numPaths int) []batch {
	var out []batch
	for start := 0; start < numPaths; start += s.config.BatchSize {
		out = append(out, batch{start: start, size: min(s.config.BatchSize, numPaths-start)})
	}
	return out
}

// run owns the path matrix: row 0 is the start value broadcast across paths
// and every later row compounds the previous one by (1 + step return)
func (s *Simulator) run(ctx context.Context, rng *rand.Rand, p Params, model string, factory stepperFactory) (*mat.Dense, error) {
	if rng == nil {
		return nil, errors.InvalidArgument("a random number generator is required")
	}
	started := time.Now()

	paths := mat.NewDense(p.Steps+1, p.NumPaths, nil)
	raw := paths.RawMatrix()
	for j := 0; j < p.NumPaths; j++ {
		raw.Data[j] = p.StartValue
	}

	batches := s.batches(p.NumPaths)
	seeds := make([][2]uint64, len(batches))
	for i := range seeds {
		seeds[i] = [2]uint64{rng.Uint64(), rng.Uint64()}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for i, b := range batches {
		g.Go(func() error {
			st := factory(rand.NewPCG(seeds[i][0], seeds[i][1]), b.size)
			ret := make([]float64, b.size)
			for t := 1; t <= p.Steps; t++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				st.next(ret)
				prev := raw.Data[(t-1)*raw.Stride+b.start : (t-1)*raw.Stride+b.start+b.size]
				cur := raw.Data[t*raw.Stride+b.start : t*raw.Stride+b.start+b.size]
				for k, r := range ret {
					cur[k] = prev[k] * (1 + r)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	elapsed := time.Since(started)
	metrics.RecordSimulation(model, p.NumPaths, elapsed)
	s.log.Debugf("Simulated %d paths x %d steps (%s) in %v across %d batches",
		p.NumPaths, p.Steps, model, elapsed, len(batches))
	return paths, nil
}
