// Package montecarlo prices European, arithmetic Asian and lookback options
// by simulating price paths.
package montecarlo

import (
	"context"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// DefaultSeed seeds the generator when a caller does not pick a seed.
const DefaultSeed uint64 = 2024

// Params describes one simulation. Mu and Sigma are percentage points and
// Horizon is years. Mu is both the drift and the discount rate.
type Params struct {
	Spot      float64               `json:"spot"`
	Strike    float64               `json:"strike"`
	Mu        float64               `json:"mu"`
	Sigma     float64               `json:"sigma"`
	Horizon   float64               `json:"horizon"`
	Timesteps int                   `json:"timesteps"`
	Sims      int                   `json:"sims"`
	Category  domain.PayoffCategory `json:"category"`
	Seed      uint64                `json:"seed"`
}

// Limits caps the size of the path matrix. Zero means unlimited.
type Limits struct {
	MaxPathCells int
}

// Result is the discounted mean payoff of each side with its standard error.
type Result struct {
	Category   domain.PayoffCategory `json:"category"`
	CallPrice  float64               `json:"call_price"`
	PutPrice   float64               `json:"put_price"`
	CallStdErr float64               `json:"call_std_err"`
	PutStdErr  float64               `json:"put_std_err"`
	Timesteps  int                   `json:"timesteps"`
	Sims       int                   `json:"sims"`
	Seed       uint64                `json:"seed"`
}

// Engine runs simulations under a fixed set of limits.
type Engine struct {
	Limits Limits
}

// Price runs p without limits.
func Price(ctx context.Context, p Params) (Result, error) {
	return Engine{}.Price(ctx, p)
}

// Price simulates the paths for p and aggregates the payoff of p.Category.
func (e Engine) Price(ctx context.Context, p Params) (Result, error) {
	p, err := p.normalize()
	if err != nil {
		return Result{}, err
	}
	if cells := float64(p.Timesteps) * float64(p.Sims); e.Limits.MaxPathCells > 0 && cells > float64(e.Limits.MaxPathCells) {
		return Result{}, fmt.Errorf("montecarlo: %d x %d path cells exceeds %d: %w",
			p.Timesteps, p.Sims, e.Limits.MaxPathCells, domain.ErrBudgetExceeded)
	}

	paths, err := simulate(ctx, p)
	if err != nil {
		return Result{}, err
	}

	var callBasis, putBasis []float64
	switch p.Category {
	case domain.CategoryEuropean:
		callBasis = paths.Terminal()
		putBasis = callBasis
	case domain.CategoryAsian:
		callBasis = paths.Averages()
		putBasis = callBasis
	case domain.CategoryLookback:
		callBasis = paths.Maxima()
		putBasis = paths.Minima()
	}

	discount := math.Exp(-p.Mu / 100 * p.Horizon)
	call, callErr, err := discounted(payoffs(callBasis, p.Strike, 1), discount)
	if err != nil {
		return Result{}, err
	}
	put, putErr, err := discounted(payoffs(putBasis, p.Strike, -1), discount)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Category:   p.Category,
		CallPrice:  call,
		PutPrice:   put,
		CallStdErr: callErr,
		PutStdErr:  putErr,
		Timesteps:  p.Timesteps,
		Sims:       p.Sims,
		Seed:       p.Seed,
	}, nil
}

func payoffs(basis []float64, strike, sign float64) []float64 {
	out := make([]float64, len(basis))
	for i, s := range basis {
		out[i] = math.Max(sign*(s-strike), 0)
	}
	return out
}

// discounted returns the discounted sample mean and its standard error.
func discounted(payoffs []float64, discount float64) (price, stdErr float64, err error) {
	mean, err := stats.Mean(payoffs)
	if err != nil {
		return 0, 0, fmt.Errorf("montecarlo: mean payoff: %w", err)
	}
	if len(payoffs) < 2 {
		return discount * mean, 0, nil
	}
	sd, err := stats.StandardDeviationSample(payoffs)
	if err != nil {
		return 0, 0, fmt.Errorf("montecarlo: payoff deviation: %w", err)
	}
	return discount * mean, discount * sd / math.Sqrt(float64(len(payoffs))), nil
}

func (p Params) normalize() (Params, error) {
	if err := domain.RequireFinite(
		domain.Field{Name: "spot", Value: p.Spot},
		domain.Field{Name: "strike", Value: p.Strike},
		domain.Field{Name: "mu", Value: p.Mu},
		domain.Field{Name: "sigma", Value: p.Sigma},
		domain.Field{Name: "horizon", Value: p.Horizon},
	); err != nil {
		return p, fmt.Errorf("montecarlo: %w", err)
	}
	if p.Category == "" {
		p.Category = domain.CategoryEuropean
	}
	category, err := domain.ParseCategory(string(p.Category))
	if err != nil {
		return p, fmt.Errorf("montecarlo: %w", err)
	}
	p.Category = category

	switch {
	case p.Strike <= 0:
		return p, fmt.Errorf("montecarlo: strike must be positive, got %v: %w", p.Strike, domain.ErrInvalidInput)
	case p.Spot <= 0:
		return p, fmt.Errorf("montecarlo: spot must be positive, got %v: %w", p.Spot, domain.ErrInvalidInput)
	case p.Sigma < 0:
		return p, fmt.Errorf("montecarlo: negative sigma %v: %w", p.Sigma, domain.ErrInvalidInput)
	case p.Horizon < 0:
		return p, fmt.Errorf("montecarlo: negative horizon %v: %w", p.Horizon, domain.ErrInvalidInput)
	case p.Timesteps < 1 || p.Sims < 1:
		return p, fmt.Errorf("montecarlo: need at least one timestep and one path, got %d x %d: %w",
			p.Timesteps, p.Sims, domain.ErrInvalidInput)
	}
	return p, nil
}
