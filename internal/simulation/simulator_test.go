package simulation

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/portfolio-risk-engine/pkg/utils/errors"
)

func testRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func twoAssetInputs() (*mat.VecDense, *mat.SymDense, *mat.VecDense) {
	mu := mat.NewVecDense(2, []float64{0.08, 0.05})
	cov := mat.NewSymDense(2, []float64{
		0.04, 0.006,
		0.006, 0.01,
	})
	w := mat.NewVecDense(2, []float64{0.6, 0.4})
	return mu, cov, w
}

func TestSimulateGaussianShapeAndStart(t *testing.T) {
	sim := NewSimulator(Config{BatchSize: 250})
	mu, cov, w := twoAssetInputs()

	paths, err := sim.SimulateGaussian(context.Background(), testRNG(42), mu, cov, w,
		Params{StartValue: 10000, Steps: 12, NumPaths: 1000})
	require.NoError(t, err)

	rows, cols := paths.Dims()
	assert.Equal(t, 13, rows)
	assert.Equal(t, 1000, cols)
	for j := 0; j < cols; j++ {
		assert.Equal(t, 10000.0, paths.At(0, j))
	}
}

func TestSimulateGaussianMostlyPositive(t *testing.T) {
	sim := NewSimulator(Config{})
	mu, cov, w := twoAssetInputs()

	paths, err := sim.SimulateGaussian(context.Background(), testRNG(7), mu, cov, w,
		Params{StartValue: 1, Steps: 36, NumPaths: 5000})
	require.NoError(t, err)

	nonPositive := 0
	rows, cols := paths.Dims()
	for j := 0; j < cols; j++ {
		if paths.At(rows-1, j) <= 0 {
			nonPositive++
		}
	}
	assert.Less(t, float64(nonPositive)/float64(cols), 0.01)
}

func TestSimulateDeterministicAcrossWorkers(t *testing.T) {
	mu, cov, w := twoAssetInputs()
	p := Params{StartValue: 100, Steps: 10, NumPaths: 1000, RandomnessFactor: 0.3}

	serial, err := NewSimulator(Config{Workers: 1, BatchSize: 100}).
		SimulateGaussianWithRandomness(context.Background(), testRNG(42), mu, cov, w, p)
	require.NoError(t, err)

	parallel, err := NewSimulator(Config{Workers: 8, BatchSize: 100}).
		SimulateGaussianWithRandomness(context.Background(), testRNG(42), mu, cov, w, p)
	require.NoError(t, err)

	assert.True(t, mat.Equal(serial, parallel))

	other, err := NewSimulator(Config{Workers: 8, BatchSize: 100}).
		SimulateGaussianWithRandomness(context.Background(), testRNG(43), mu, cov, w, p)
	require.NoError(t, err)
	assert.False(t, mat.Equal(serial, other))
}

func TestSimulateWithRandomnessClipsSteps(t *testing.T) {
	jumps := 0.5
	sim := NewSimulator(Config{JumpProbability: &jumps})
	mu, cov, w := twoAssetInputs()

	paths, err := sim.SimulateGaussianWithRandomness(context.Background(), testRNG(3), mu, cov, w,
		Params{StartValue: 100, Steps: 24, NumPaths: 2000, RandomnessFactor: 2.0})
	require.NoError(t, err)

	sawLowerClip, sawUpperClip := false, false
	for _, r := range StepReturns(paths) {
		require.GreaterOrEqual(t, r, MinStepReturn-1e-9)
		require.LessOrEqual(t, r, MaxStepReturn+1e-9)
		if math.Abs(r-MinStepReturn) < 1e-9 {
			sawLowerClip = true
		}
		if math.Abs(r-MaxStepReturn) < 1e-9 {
			sawUpperClip = true
		}
	}
	assert.True(t, sawLowerClip)
	assert.True(t, sawUpperClip)
}

func TestSimulateSingleAssetZeroVolatility(t *testing.T) {
	sim := NewSimulator(Config{})

	paths, err := sim.SimulateSingleAsset(context.Background(), testRNG(1), 0.12, 0, Params{
		StartValue: 1000, Steps: 3, NumPaths: 4, PeriodsPerYear: 12,
	})
	require.NoError(t, err)

	for j := 0; j < 4; j++ {
		assert.InDelta(t, 1000*math.Pow(1.01, 3), paths.At(3, j), 1e-9)
	}
}

func TestSimulateZeroSteps(t *testing.T) {
	sim := NewSimulator(Config{})

	paths, err := sim.SimulateSingleAsset(context.Background(), testRNG(1), 0.1, 0.2, Params{
		StartValue: 50, Steps: 0, NumPaths: 3,
	})
	require.NoError(t, err)

	rows, cols := paths.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 3, cols)
}

func TestSimulateInvalidArguments(t *testing.T) {
	sim := NewSimulator(Config{})
	mu, cov, w := twoAssetInputs()
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"no paths", func() error {
			_, err := sim.SimulateGaussian(ctx, testRNG(1), mu, cov, w, Params{Steps: 1})
			return err
		}},
		{"negative steps", func() error {
			_, err := sim.SimulateGaussian(ctx, testRNG(1), mu, cov, w, Params{Steps: -1, NumPaths: 1})
			return err
		}},
		{"dimension mismatch", func() error {
			_, err := sim.SimulateGaussian(ctx, testRNG(1), mat.NewVecDense(3, nil), cov, w, Params{Steps: 1, NumPaths: 1})
			return err
		}},
		{"negative randomness", func() error {
			_, err := sim.SimulateGaussianWithRandomness(ctx, testRNG(1), mu, cov, w,
				Params{Steps: 1, NumPaths: 1, RandomnessFactor: -0.1})
			return err
		}},
		{"matrix size overflows", func() error {
			_, err := sim.SimulateSingleAsset(ctx, testRNG(1), 0.1, 0.2, Params{Steps: 1<<33 - 1, NumPaths: 1 << 31})
			return err
		}},
		{"negative volatility", func() error {
			_, err := sim.SimulateSingleAsset(ctx, testRNG(1), 0.1, -0.2, Params{Steps: 1, NumPaths: 1})
			return err
		}},
		{"nil rng", func() error {
			_, err := sim.SimulateSingleAsset(ctx, nil, 0.1, 0.2, Params{Steps: 1, NumPaths: 1})
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument), err.Error())
		})
	}
}

func TestSimulateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mu, cov, w := twoAssetInputs()
	_, err := NewSimulator(Config{}).SimulateGaussian(ctx, testRNG(1), mu, cov, w,
		Params{StartValue: 1, Steps: 5, NumPaths: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCholeskyWithJitter(t *testing.T) {
	l, jitter, err := CholeskyWithJitter(mat.NewSymDense(2, []float64{4, 2, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 0.0, jitter)
	assert.Equal(t, 2.0, l.At(0, 0))
	assert.Equal(t, 1.0, l.At(1, 0))

	// perfectly correlated assets are only semi-definite
	_, jitter, err = CholeskyWithJitter(mat.NewSymDense(2, []float64{1, 1, 1, 1}))
	require.NoError(t, err)
	assert.Greater(t, jitter, 0.0)
}

func TestCholeskyWithJitterFails(t *testing.T) {
	_, _, err := CholeskyWithJitter(mat.NewSymDense(2, []float64{math.NaN(), 0, 0, 1}))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNumerical))

	_, _, err = CholeskyWithJitter(mat.NewSymDense(2, []float64{1, 0, 0, -1}))
	require.Error(t, err)
}

func TestSimulateSingularCovariance(t *testing.T) {
	mu := mat.NewVecDense(2, []float64{0.06, 0.06})
	cov := mat.NewSymDense(2, []float64{0.12, 0.12, 0.12, 0.12})
	w := mat.NewVecDense(2, []float64{0.5, 0.5})

	paths, err := NewSimulator(Config{}).SimulateGaussian(context.Background(), testRNG(9), mu, cov, w,
		Params{StartValue: 1, Steps: 2, NumPaths: 10})
	require.NoError(t, err)
	for _, v := range paths.RawMatrix().Data {
		assert.False(t, math.IsNaN(v))
	}
}

func TestNewSimulatorJumpProbability(t *testing.T) {
	zero, half, bad := 0.0, 0.5, 1.5
	tests := []struct {
		name string
		in   *float64
		want float64
	}{
		{"unset", nil, DefaultJumpChance},
		{"disabled", &zero, 0},
		{"explicit", &half, 0.5},
		{"out of range", &bad, DefaultJumpChance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSimulator(Config{JumpProbability: tt.in}).jumpProbability)
		})
	}
}
