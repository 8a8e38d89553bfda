package simulation

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	minVolMultiplier = 0.5
	maxVolMultiplier = 2.0
)

type gaussianSetup struct {
	chol    *mat.TriDense
	muStep  []float64
	weights *mat.VecDense
}

// gaussianStepper draws correlated asset returns mu + L·Z for a batch of
// paths and folds them into portfolio returns
type gaussianStepper struct {
	setup *gaussianSetup
	rng   *rand.Rand
	shock *shock

	z, x *mat.Dense
	port *mat.VecDense
}

func newGaussianStepper(src rand.Source, setup *gaussianSetup, cols int, sh *shock) *gaussianStepper {
	n := len(setup.muStep)
	return &gaussianStepper{
		setup: setup,
		rng:   rand.New(src),
		shock: sh,
		z:     mat.NewDense(n, cols, nil),
		x:     mat.NewDense(n, cols, nil),
		port:  mat.NewVecDense(cols, nil),
	}
}

func (g *gaussianStepper) next(out []float64) {
	zRaw := g.z.RawMatrix()
	for i := range zRaw.Data {
		zRaw.Data[i] = g.rng.NormFloat64()
	}

	g.x.Mul(g.setup.chol, g.z)

	xRaw := g.x.RawMatrix()
	for i, mu := range g.setup.muStep {
		row := xRaw.Data[i*xRaw.Stride : i*xRaw.Stride+xRaw.Cols]
		for k := range row {
			if g.shock != nil {
				row[k] = g.shock.apply(mu + row[k])
			} else {
				row[k] += mu
			}
		}
	}

	g.port.MulVec(g.x.T(), g.setup.weights)
	for k := range out {
		r := g.port.AtVec(k)
		if g.shock != nil {
			r = math.Max(MinStepReturn, math.Min(MaxStepReturn, r))
		}
		out[k] = r
	}
}

// shock layers a clamped volatility multiplier and a Bernoulli-gated jump
// onto one asset return
type shock struct {
	vol  distuv.Normal
	jump distuv.Normal
	hit  distuv.Bernoulli
}

func newShock(src rand.Source, factor, jumpProbability float64) *shock {
	return &shock{
		vol:  distuv.Normal{Mu: 0, Sigma: factor / 2, Src: src},
		jump: distuv.Normal{Mu: 0, Sigma: factor, Src: src},
		hit:  distuv.Bernoulli{P: jumpProbability, Src: src},
	}
}

func (s *shock) apply(r float64) float64 {
	m := 1 + s.vol.Rand()
	m = math.Max(minVolMultiplier, math.Min(maxVolMultiplier, m))
	r *= m
	if s.hit.Rand() == 1 {
		r += s.jump.Rand()
	}
	return r
}

type singleAssetStepper struct {
	dist distuv.Normal
}

func newSingleAssetStepper(src rand.Source, mu, sigma float64) *singleAssetStepper {
	return &singleAssetStepper{dist: distuv.Normal{Mu: mu, Sigma: sigma, Src: src}}
}

func (s *singleAssetStepper) next(out []float64) {
	for k := range out {
		out[k] = s.dist.Rand()
	}
}
