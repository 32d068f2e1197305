package montecarlo

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PathSet holds simulated prices, one row per timestep and one column per
// path. Row 0 is the spot.
type PathSet struct {
	prices *mat.Dense
}

// Simulate draws p.Sims paths of p.Timesteps prices each. Normal deviates come
// from a PCG generator seeded with p.Seed and are consumed step by step across
// all paths, so equal Params always produce equal paths.
func Simulate(ctx context.Context, p Params) (*PathSet, error) {
	p, err := p.normalize()
	if err != nil {
		return nil, err
	}
	return simulate(ctx, p)
}

func simulate(ctx context.Context, p Params) (*PathSet, error) {
	var (
		steps  = p.Timesteps
		sims   = p.Sims
		mu     = p.Mu / 100
		sigma  = p.Sigma / 100
		dt     = p.Horizon / float64(steps)
		drift  = mu * dt
		spread = sigma * math.Sqrt(dt)
	)

	z := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(p.Seed, p.Seed)}

	prices := mat.NewDense(steps, sims, nil)
	first := prices.RawRowView(0)
	for j := range first {
		first[j] = p.Spot
	}

	for i := 0; i < steps-1; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("montecarlo: simulate cancelled at step %d of %d: %w", i, steps, err)
		}
		prev := prices.RawRowView(i)
		next := prices.RawRowView(i + 1)
		for j := range next {
			next[j] = prev[j] * (1 + drift + spread*z.Rand())
		}
	}

	return &PathSet{prices: prices}, nil
}

// Dims returns the number of timesteps and paths.
func (ps *PathSet) Dims() (timesteps, sims int) { return ps.prices.Dims() }

// At returns the price of path j at step i.
func (ps *PathSet) At(i, j int) float64 { return ps.prices.At(i, j) }

// Terminal returns the last price of every path.
func (ps *PathSet) Terminal() []float64 {
	steps, _ := ps.prices.Dims()
	return mat.Row(nil, steps-1, ps.prices)
}

// Averages returns the arithmetic mean of every path.
func (ps *PathSet) Averages() []float64 {
	return ps.reduce(func(path []float64) float64 {
		return floats.Sum(path) / float64(len(path))
	})
}

// Maxima returns the running maximum of every path at expiry.
func (ps *PathSet) Maxima() []float64 {
	return ps.reduce(floats.Max)
}

// Minima returns the running minimum of every path at expiry.
func (ps *PathSet) Minima() []float64 {
	return ps.reduce(floats.Min)
}

func (ps *PathSet) reduce(fn func([]float64) float64) []float64 {
	steps, sims := ps.prices.Dims()
	out := make([]float64, sims)
	path := make([]float64, steps)
	for j := 0; j < sims; j++ {
		mat.Col(path, j, ps.prices)
		out[j] = fn(path)
	}
	return out
}
