package covariance

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/rzzdr/portfolio-risk-engine/pkg/metrics"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/logger"
)

// Estimator estimates a daily-scale covariance matrix from a return matrix
// whose rows are observations and whose columns are assets
type Estimator interface {
	Estimate(returns mat.Matrix) (*mat.SymDense, error)
	Name() string
}

// Sample is the unbiased sample covariance, (1/(n-1)) XcᵀXc
type Sample struct{}

// Name implements Estimator
func (Sample) Name() string { return "sample" }

// Estimate implements Estimator
func (Sample) Estimate(returns mat.Matrix) (*mat.SymDense, error) {
	n, p := returns.Dims()
	if n < 2 {
		return nil, errors.InsufficientDataf("sample covariance needs at least 2 observations, got %d", n)
	}
	cov := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(cov, returns, nil)
	return cov, nil
}

// LedoitWolf shrinks the maximum-likelihood covariance toward a scaled
// identity mu·I with the Ledoit-Wolf optimal intensity
type LedoitWolf struct{}

// Name implements Estimator
func (LedoitWolf) Name() string { return "ledoit_wolf" }

// Estimate implements Estimator
func (LedoitWolf) Estimate(returns mat.Matrix) (*mat.SymDense, error) {
	n, p := returns.Dims()
	if n < 2 {
		return nil, errors.InsufficientDataf("ledoit-wolf needs at least 2 observations, got %d", n)
	}

	x := mat.DenseCopyOf(returns)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, x)
		for _, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.InvalidArgument("ledoit-wolf input contains non-finite returns")
			}
		}
		mean := stat.Mean(col, nil)
		for i := 0; i < n; i++ {
			x.Set(i, j, col[i]-mean)
		}
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	fn := float64(n)
	fp := float64(p)

	empCov := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			empCov.SetSym(i, j, xtx.At(i, j)/fn)
		}
	}

	shrinkage := ledoitWolfShrinkage(x, &xtx)
	mu := mat.Trace(empCov) / fp

	shrunk := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := (1 - shrinkage) * empCov.At(i, j)
			if i == j {
				v += shrinkage * mu
			}
			shrunk.SetSym(i, j, v)
		}
	}
	return shrunk, nil
}

// ledoitWolfShrinkage returns the intensity in [0, 1] for centered data x
// with precomputed xᵀx
func ledoitWolfShrinkage(x *mat.Dense, xtx *mat.Dense) float64 {
	n, p := x.Dims()
	if p == 1 {
		return 0
	}
	fn := float64(n)
	fp := float64(p)

	var x2 mat.Dense
	x2.MulElem(x, x)

	traceTerms := make([]float64, p)
	for j := 0; j < p; j++ {
		traceTerms[j] = mat.Sum(x2.ColView(j)) / fn
	}
	traceSum := 0.0
	for _, v := range traceTerms {
		traceSum += v
	}
	mu := traceSum / fp

	var x2tx2 mat.Dense
	x2tx2.Mul(x2.T(), &x2)
	betaRaw := mat.Sum(&x2tx2)

	var sq mat.Dense
	sq.MulElem(xtx, xtx)
	delta := mat.Sum(&sq) / (fn * fn)

	beta := (betaRaw/fn - delta) / (fp * fn)
	delta = (delta - 2*mu*traceSum + fp*mu*mu) / fp
	beta = math.Min(beta, delta)

	if beta <= 0 || delta <= 0 {
		return 0
	}
	return beta / delta
}

// Fallback tries Primary and, on any error, degrades to Secondary without
// surfacing the primary failure
type Fallback struct {
	Primary   Estimator
	Secondary Estimator
	log       *logger.Logger
}

// NewFallback creates a two-step estimator
func NewFallback(primary, secondary Estimator) *Fallback {
	return &Fallback{
		Primary:   primary,
		Secondary: secondary,
		log:       logger.GetLogger("covariance.estimator"),
	}
}

// NewDefault returns Ledoit-Wolf with a sample-covariance fallback
func NewDefault() *Fallback {
	return NewFallback(LedoitWolf{}, Sample{})
}

// Name implements Estimator
func (f *Fallback) Name() string {
	return f.Primary.Name() + "|" + f.Secondary.Name()
}

// Estimate implements Estimator
func (f *Fallback) Estimate(returns mat.Matrix) (*mat.SymDense, error) {
	cov, err := f.Primary.Estimate(returns)
	if err == nil {
		return cov, nil
	}

	f.log.Warnf("%s covariance failed, falling back to %s: %v", f.Primary.Name(), f.Secondary.Name(), err)
	metrics.RecordCovarianceFallback(f.Primary.Name())
	return f.Secondary.Estimate(returns)
}

// Correlation derives the correlation matrix of a covariance matrix. Assets
// with zero variance get zero off-diagonal correlation.
func Correlation(cov mat.Symmetric) *mat.SymDense {
	p := cov.SymmetricDim()
	corr := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		si := math.Sqrt(cov.At(i, i))
		for j := i; j < p; j++ {
			if i == j {
				corr.SetSym(i, i, 1)
				continue
			}
			sj := math.Sqrt(cov.At(j, j))
			if si == 0 || sj == 0 {
				continue
			}
			corr.SetSym(i, j, cov.At(i, j)/(si*sj))
		}
	}
	return corr
}
