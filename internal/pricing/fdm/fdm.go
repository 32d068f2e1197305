// Package fdm prices European options on a non-dividend-paying underlying
// with an explicit finite-difference scheme on the Black-Scholes PDE.
package fdm

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// DefaultAssetSteps is the asset discretisation used when Params leaves it 0.
const DefaultAssetSteps = 20

// stability is the fraction of the explicit scheme's stability bound used for dt.
const stability = 0.9

// Flag selects the payoff: +1 for calls, -1 for puts.
type Flag int

const (
	Call Flag = 1
	Put  Flag = -1
)

// FlagFor maps a contract side to its payoff flag.
func FlagFor(side domain.Side) Flag {
	if side == domain.SidePut {
		return Put
	}
	return Call
}

// Params describes one grid. Vol and Rate are percentage points, DTE is years.
type Params struct {
	Strike     float64 `json:"strike"`
	Vol        float64 `json:"vol"`
	Rate       float64 `json:"rate"`
	DTE        float64 `json:"dte"`
	AssetSteps int     `json:"asset_steps"`
}

// Limits caps the work one solve may do. Zero means unlimited.
type Limits struct {
	MaxAssetSteps int
	MaxTimeSteps  int
}

// Result holds the call and put values read off their grids at the strike
// and the full time to expiry.
type Result struct {
	CallPrice  float64 `json:"call_price"`
	PutPrice   float64 `json:"put_price"`
	AssetSteps int     `json:"asset_steps"`
	TimeSteps  int     `json:"time_steps"`
}

// Solver builds grids under a fixed set of limits.
type Solver struct {
	Limits Limits
}

// Solve builds and solves a single grid without limits.
func Solve(p Params, flag Flag) (*Grid, error) {
	return Solver{}.Solve(p, flag)
}

// Price solves the call and put grids without limits.
func Price(ctx context.Context, p Params) (Result, error) {
	return Solver{}.Price(ctx, p)
}

// Solve builds and solves the grid for flag.
func (s Solver) Solve(p Params, flag Flag) (*Grid, error) {
	return s.SolveContext(context.Background(), p, flag)
}

// SolveContext is Solve that gives up between time columns once ctx is done.
func (s Solver) SolveContext(ctx context.Context, p Params, flag Flag) (*Grid, error) {
	return s.solve(ctx, p, flag)
}

// Price solves the call and put grids concurrently and reads both at
// (strike, round(dte, 4)).
func (s Solver) Price(ctx context.Context, p Params) (Result, error) {
	var calls, puts *Grid

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		calls, err = s.solve(gctx, p, Call)
		return err
	})
	g.Go(func() error {
		var err error
		puts, err = s.solve(gctx, p, Put)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	tte := roundTo(p.DTE, 4)
	call, err := calls.Lookup(p.Strike, tte)
	if err != nil {
		return Result{}, err
	}
	put, err := puts.Lookup(p.Strike, tte)
	if err != nil {
		return Result{}, err
	}

	return Result{
		CallPrice:  call,
		PutPrice:   put,
		AssetSteps: calls.AssetSteps(),
		TimeSteps:  calls.TimeSteps(),
	}, nil
}

// Plan reports the asset and time discretisation Solve would use for p,
// without allocating the grid.
func (s Solver) Plan(p Params) (assetSteps, timeSteps int, err error) {
	p, err = s.normalize(p)
	if err != nil {
		return 0, 0, err
	}
	_, nts, err := s.timeGrid(p)
	if err != nil {
		return 0, 0, err
	}
	return p.AssetSteps, nts, nil
}

func (s Solver) solve(ctx context.Context, p Params, flag Flag) (*Grid, error) {
	if flag != Call && flag != Put {
		return nil, fmt.Errorf("fdm: flag %d: %w", flag, domain.ErrInvalidInput)
	}
	p, err := s.normalize(p)
	if err != nil {
		return nil, err
	}
	dt, nts, err := s.timeGrid(p)
	if err != nil {
		return nil, err
	}

	var (
		nas  = p.AssetSteps
		ds   = 2 * p.Strike / float64(nas)
		vol  = p.Vol / 100
		rate = p.Rate / 100
		sign = float64(flag)
	)

	values := mat.NewDense(nas+1, nts+1, nil)
	prev := make([]float64, nas+1)
	cur := make([]float64, nas+1)

	for i := range prev {
		prev[i] = math.Max(sign*(float64(i)*ds-p.Strike), 0)
	}
	values.SetCol(0, prev)

	for k := 1; k <= nts; k++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fdm: solve cancelled at step %d of %d: %w", k, nts, err)
		}
		for i := 1; i < nas; i++ {
			asset := float64(i) * ds
			delta := (prev[i+1] - prev[i-1]) / (2 * ds)
			gamma := (prev[i+1] - 2*prev[i] + prev[i-1]) / (ds * ds)
			theta := -0.5*vol*vol*asset*asset*gamma - rate*asset*delta + rate*prev[i]
			cur[i] = prev[i] - theta*dt
		}
		cur[0] = prev[0] * (1 - rate*dt)
		// Zero curvature at the top node.
		cur[nas] = math.Abs(2*cur[nas-1] - cur[nas-2])

		values.SetCol(k, cur)
		prev, cur = cur, prev
	}

	values.Apply(func(_, _ int, v float64) float64 { return roundTo(v, 2) }, values)

	return &Grid{
		values:     values,
		ds:         ds,
		dt:         dt,
		assetSteps: nas,
		timeSteps:  nts,
	}, nil
}

// normalize validates p, applies the default asset steps and rounds DTE to
// the 4 decimals used to label time columns.
func (s Solver) normalize(p Params) (Params, error) {
	if err := domain.RequireFinite(
		domain.Field{Name: "strike", Value: p.Strike},
		domain.Field{Name: "vol", Value: p.Vol},
		domain.Field{Name: "rate", Value: p.Rate},
		domain.Field{Name: "dte", Value: p.DTE},
	); err != nil {
		return p, fmt.Errorf("fdm: %w", err)
	}
	if p.AssetSteps == 0 {
		p.AssetSteps = DefaultAssetSteps
	}
	switch {
	case p.Strike <= 0:
		return p, fmt.Errorf("fdm: strike must be positive, got %v: %w", p.Strike, domain.ErrInvalidInput)
	case p.DTE < 0:
		return p, fmt.Errorf("fdm: negative dte %v: %w", p.DTE, domain.ErrInvalidInput)
	case p.AssetSteps < 2:
		return p, fmt.Errorf("fdm: need at least 2 asset steps, got %d: %w", p.AssetSteps, domain.ErrInvalidInput)
	case p.Vol <= 0:
		return p, fmt.Errorf("fdm: stability bound undefined for vol %v: %w", p.Vol, domain.ErrNumericalDomain)
	case s.Limits.MaxAssetSteps > 0 && p.AssetSteps > s.Limits.MaxAssetSteps:
		return p, fmt.Errorf("fdm: %d asset steps exceeds %d: %w",
			p.AssetSteps, s.Limits.MaxAssetSteps, domain.ErrBudgetExceeded)
	}
	p.DTE = roundTo(p.DTE, 4)
	return p, nil
}

// timeGrid derives dt and NTS from the stability bound. An expired contract
// gets no time steps, only the payoff column.
func (s Solver) timeGrid(p Params) (dt float64, nts int, err error) {
	if p.DTE == 0 {
		return 0, 0, nil
	}
	vol := p.Vol / 100
	nas := float64(p.AssetSteps)
	dt = stability / (vol * vol * nas * nas)

	steps := math.Floor(p.DTE/dt) + 1
	limit := float64(math.MaxInt32)
	if s.Limits.MaxTimeSteps > 0 {
		limit = float64(s.Limits.MaxTimeSteps)
	}
	if steps > limit || steps*(nas+1) > math.MaxInt32 {
		return 0, 0, fmt.Errorf("fdm: %v time steps exceeds %v: %w", steps, limit, domain.ErrBudgetExceeded)
	}

	nts = int(steps)
	return p.DTE / float64(nts), nts, nil
}
