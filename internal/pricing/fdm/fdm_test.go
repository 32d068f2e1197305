package fdm

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// Closed-form values for K=100, vol=20%, r=5%, T=1 with spot at the strike.
const (
	analyticCall = 10.450583572185565
	analyticPut  = 5.573526022256971
)

func relErr(got, want float64) float64 {
	return math.Abs(got-want) / want
}

func TestPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("default asset steps", func(t *testing.T) {
		res, err := Price(ctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1})
		require.NoError(t, err)

		assert.Equal(t, DefaultAssetSteps, res.AssetSteps)
		assert.Equal(t, 18, res.TimeSteps)
		assert.InDelta(t, 10.26, res.CallPrice, 1e-9)
		assert.InDelta(t, 5.37, res.PutPrice, 1e-9)
	})

	t.Run("converges to the closed form", func(t *testing.T) {
		coarse, err := Price(ctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 20})
		require.NoError(t, err)
		fine, err := Price(ctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 200})
		require.NoError(t, err)

		assert.Equal(t, 1778, fine.TimeSteps)
		assert.InDelta(t, 10.45, fine.CallPrice, 1e-9)
		assert.InDelta(t, 5.57, fine.PutPrice, 1e-9)

		assert.Less(t, relErr(coarse.CallPrice, analyticCall), 0.05)
		assert.Less(t, relErr(fine.CallPrice, analyticCall), 0.01)
		assert.Less(t, relErr(fine.CallPrice, analyticCall), relErr(coarse.CallPrice, analyticCall))
		assert.Less(t, relErr(fine.PutPrice, analyticPut), relErr(coarse.PutPrice, analyticPut))
	})

	t.Run("odd asset steps put the strike off grid", func(t *testing.T) {
		_, err := Price(ctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 21})
		assert.ErrorIs(t, err, domain.ErrLookup)
	})

	t.Run("expired contract is the payoff", func(t *testing.T) {
		res, err := Price(ctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 0})
		require.NoError(t, err)
		assert.Zero(t, res.TimeSteps)
		assert.Zero(t, res.CallPrice)
		assert.Zero(t, res.PutPrice)
	})

	t.Run("invalid inputs", func(t *testing.T) {
		cases := []struct {
			name   string
			params Params
			want   error
		}{
			{"zero strike", Params{Strike: 0, Vol: 20, Rate: 5, DTE: 1}, domain.ErrInvalidInput},
			{"negative dte", Params{Strike: 100, Vol: 20, Rate: 5, DTE: -1}, domain.ErrInvalidInput},
			{"one asset step", Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 1}, domain.ErrInvalidInput},
			{"zero vol", Params{Strike: 100, Vol: 0, Rate: 5, DTE: 1}, domain.ErrNumericalDomain},
			{"nan rate", Params{Strike: 100, Vol: 20, Rate: math.NaN(), DTE: 1}, domain.ErrInvalidInput},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				_, err := Price(ctx, c.params)
				assert.ErrorIs(t, err, c.want)
			})
		}
	})

	t.Run("limits", func(t *testing.T) {
		s := Solver{Limits: Limits{MaxAssetSteps: 100, MaxTimeSteps: 1000}}

		_, err := s.Price(ctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 200})
		assert.ErrorIs(t, err, domain.ErrBudgetExceeded)

		_, err = s.Price(ctx, Params{Strike: 100, Vol: 200, Rate: 5, DTE: 1, AssetSteps: 20})
		assert.ErrorIs(t, err, domain.ErrBudgetExceeded)

		nas, nts, err := s.Plan(Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1})
		require.NoError(t, err)
		assert.Equal(t, 20, nas)
		assert.Equal(t, 18, nts)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Price(cctx, Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSolve(t *testing.T) {
	p := Params{Strike: 100, Vol: 20, Rate: 5, DTE: 1, AssetSteps: 20}

	t.Run("terminal column is the payoff", func(t *testing.T) {
		calls, err := Solve(p, Call)
		require.NoError(t, err)
		puts, err := Solve(p, Put)
		require.NoError(t, err)

		for i := 0; i <= calls.AssetSteps(); i++ {
			s := float64(i) * calls.AssetStep()
			assert.InDelta(t, math.Max(s-100, 0), calls.At(i, 0), 1e-9)
			assert.InDelta(t, math.Max(100-s, 0), puts.At(i, 0), 1e-9)
		}
	})

	t.Run("boundaries", func(t *testing.T) {
		calls, err := Solve(p, Call)
		require.NoError(t, err)
		puts, err := Solve(p, Put)
		require.NoError(t, err)

		for k := 0; k <= calls.TimeSteps(); k++ {
			assert.Zero(t, calls.At(0, k))
		}
		// The put at S=0 is the discounted strike.
		last := puts.TimeSteps()
		assert.InDelta(t, 100*math.Pow(1-0.05*puts.TimeStep(), float64(last)), puts.At(0, last), 0.01)
	})

	t.Run("lookup", func(t *testing.T) {
		g, err := Solve(p, Call)
		require.NoError(t, err)

		v, err := g.Lookup(100, 1)
		require.NoError(t, err)
		assert.InDelta(t, 10.26, v, 1e-9)

		v, err = g.Lookup(100, 0)
		require.NoError(t, err)
		assert.Zero(t, v)

		_, err = g.Lookup(105, 1)
		assert.ErrorIs(t, err, domain.ErrLookup)

		_, err = g.Lookup(100, 0.5001)
		assert.ErrorIs(t, err, domain.ErrLookup)
	})

	t.Run("solve stops once the context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Solver{}.SolveContext(ctx, p, Put)
		assert.ErrorIs(t, err, context.Canceled)

		g, err := Solver{}.SolveContext(context.Background(), p, Put)
		require.NoError(t, err)
		v, err := g.Lookup(100, 1)
		require.NoError(t, err)
		assert.InDelta(t, 5.37, v, 1e-9)
	})

	t.Run("points cover the surface", func(t *testing.T) {
		g, err := Solve(p, Put)
		require.NoError(t, err)

		points := g.Points()
		require.Len(t, points, (g.AssetSteps()+1)*(g.TimeSteps()+1))
		assert.Equal(t, Point{AssetPrice: 0, TimeToExpiry: 0, Value: 100}, points[0])
		lastPoint := points[len(points)-1]
		assert.Equal(t, 200.0, lastPoint.AssetPrice)
		assert.Equal(t, 1.0, lastPoint.TimeToExpiry)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := Solve(p, Flag(0))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
