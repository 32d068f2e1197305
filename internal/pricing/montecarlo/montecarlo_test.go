package montecarlo

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

func fixture(category domain.PayoffCategory) Params {
	return Params{
		Spot:      100,
		Strike:    100,
		Mu:        5,
		Sigma:     20,
		Horizon:   1,
		Timesteps: 252,
		Sims:      10000,
		Category:  category,
		Seed:      DefaultSeed,
	}
}

func TestPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("same seed reproduces the result", func(t *testing.T) {
		first, err := Price(ctx, fixture(domain.CategoryEuropean))
		require.NoError(t, err)
		second, err := Price(ctx, fixture(domain.CategoryEuropean))
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("different seed gives a different sample", func(t *testing.T) {
		p := fixture(domain.CategoryEuropean)
		first, err := Price(ctx, p)
		require.NoError(t, err)
		p.Seed = 7
		second, err := Price(ctx, p)
		require.NoError(t, err)

		assert.NotEqual(t, first.CallPrice, second.CallPrice)
	})

	t.Run("european tracks the closed form", func(t *testing.T) {
		res, err := Price(ctx, fixture(domain.CategoryEuropean))
		require.NoError(t, err)

		// The last step is never simulated, so the closed form is taken at
		// 251/252 of a year.
		assert.InDelta(t, 10.42, res.CallPrice, 0.75)
		assert.InDelta(t, 5.55, res.PutPrice, 0.5)
		assert.Greater(t, res.CallStdErr, 0.0)
		assert.Less(t, res.CallStdErr, 0.3)
		assert.Equal(t, domain.CategoryEuropean, res.Category)
	})

	t.Run("seed 2024 fixture", func(t *testing.T) {
		cases := []struct {
			category        domain.PayoffCategory
			call, put       float64
			callErr, putErr float64
		}{
			{domain.CategoryEuropean, 10.35105012538629, 5.565618252618888, 0.14658527376164288, 0.08594150325640589},
			{domain.CategoryAsian, 5.682506503779274, 3.3946576574103964, 0.0785908524386212, 0.052420314380772985},
			{domain.CategoryLookback, 18.205739428410357, 11.792898368185426, 0.15223287311101388, 0.08885345577260159},
		}
		for _, tc := range cases {
			t.Run(string(tc.category), func(t *testing.T) {
				res, err := Price(ctx, fixture(tc.category))
				require.NoError(t, err)

				assert.InDelta(t, tc.call, res.CallPrice, 1e-9)
				assert.InDelta(t, tc.put, res.PutPrice, 1e-9)
				assert.InDelta(t, tc.callErr, res.CallStdErr, 1e-9)
				assert.InDelta(t, tc.putErr, res.PutStdErr, 1e-9)
			})
		}
	})

	t.Run("payoff families are ordered", func(t *testing.T) {
		eu, err := Price(ctx, fixture(domain.CategoryEuropean))
		require.NoError(t, err)
		asian, err := Price(ctx, fixture(domain.CategoryAsian))
		require.NoError(t, err)
		lookback, err := Price(ctx, fixture(domain.CategoryLookback))
		require.NoError(t, err)

		assert.Less(t, asian.CallPrice, eu.CallPrice)
		assert.GreaterOrEqual(t, lookback.CallPrice, eu.CallPrice)
		assert.GreaterOrEqual(t, lookback.PutPrice, eu.PutPrice)
	})

	t.Run("eu alias and empty category", func(t *testing.T) {
		want, err := Price(ctx, fixture(domain.CategoryEuropean))
		require.NoError(t, err)

		alias, err := Price(ctx, fixture("eu"))
		require.NoError(t, err)
		assert.Equal(t, want, alias)

		empty, err := Price(ctx, fixture(""))
		require.NoError(t, err)
		assert.Equal(t, want, empty)
	})

	t.Run("single timestep is the discounted intrinsic value", func(t *testing.T) {
		p := fixture(domain.CategoryEuropean)
		p.Spot, p.Timesteps, p.Sims = 110, 1, 3
		res, err := Price(ctx, p)
		require.NoError(t, err)

		assert.InDelta(t, 10*math.Exp(-0.05), res.CallPrice, 1e-12)
		assert.Zero(t, res.PutPrice)
		assert.Zero(t, res.CallStdErr)
	})

	t.Run("budget", func(t *testing.T) {
		e := Engine{Limits: Limits{MaxPathCells: 1_000_000}}
		_, err := e.Price(ctx, fixture(domain.CategoryEuropean))
		assert.ErrorIs(t, err, domain.ErrBudgetExceeded)

		p := fixture(domain.CategoryEuropean)
		p.Sims = 1000
		_, err = e.Price(ctx, p)
		assert.NoError(t, err)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		mutate := map[string]func(*Params){
			"zero strike":      func(p *Params) { p.Strike = 0 },
			"zero spot":        func(p *Params) { p.Spot = 0 },
			"no timesteps":     func(p *Params) { p.Timesteps = 0 },
			"no paths":         func(p *Params) { p.Sims = 0 },
			"negative horizon": func(p *Params) { p.Horizon = -1 },
			"unknown category": func(p *Params) { p.Category = "barrier" },
			"infinite sigma":   func(p *Params) { p.Sigma = math.Inf(1) },
		}
		for name, fn := range mutate {
			t.Run(name, func(t *testing.T) {
				p := fixture(domain.CategoryEuropean)
				fn(&p)
				_, err := Price(ctx, p)
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
			})
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Price(cctx, fixture(domain.CategoryAsian))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSimulate(t *testing.T) {
	p := fixture(domain.CategoryEuropean)
	p.Timesteps, p.Sims = 12, 50

	paths, err := Simulate(context.Background(), p)
	require.NoError(t, err)

	steps, sims := paths.Dims()
	assert.Equal(t, 12, steps)
	assert.Equal(t, 50, sims)
	for j := 0; j < sims; j++ {
		assert.Equal(t, 100.0, paths.At(0, j))
	}

	maxima, minima, avg, last := paths.Maxima(), paths.Minima(), paths.Averages(), paths.Terminal()
	require.Len(t, last, sims)
	for j := 0; j < sims; j++ {
		assert.GreaterOrEqual(t, maxima[j], last[j])
		assert.LessOrEqual(t, minima[j], last[j])
		assert.GreaterOrEqual(t, maxima[j], avg[j])
		assert.LessOrEqual(t, minima[j], avg[j])
		assert.Equal(t, paths.At(steps-1, j), last[j])
	}
}
