package analytic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

func mustSpec(t *testing.T, spot, strike, ratePct, dte, volPct, divPct float64) domain.ContractSpec {
	t.Helper()
	spec, err := domain.ContractFromPercent(spot, strike, ratePct, dte, volPct, divPct, domain.SideCall)
	require.NoError(t, err)
	return spec
}

func TestPrice(t *testing.T) {
	t.Run("reference contract", func(t *testing.T) {
		res, err := Price(mustSpec(t, 100, 100, 5, 1, 20, 0))
		require.NoError(t, err)

		assert.InDelta(t, 10.450583572185565, res.CallPrice, 1e-9)
		assert.InDelta(t, 5.573526022256971, res.PutPrice, 1e-9)
		assert.InDelta(t, 0.6368306511756191, res.Call.Delta, 1e-9)
		assert.InDelta(t, -0.3631693488243809, res.Put.Delta, 1e-9)
		assert.InDelta(t, 0.018762017345846895, res.Call.Gamma, 1e-9)
		assert.Equal(t, res.Call.Gamma, res.Put.Gamma)
		assert.InDelta(t, 0.3752403469169379, res.Call.Vega, 1e-9)
		assert.InDelta(t, -0.01757267820941972, res.Call.Theta, 1e-9)
		assert.InDelta(t, -0.004542138147766099, res.Put.Theta, 1e-9)
		assert.InDelta(t, 0.5323248154537634, res.Call.Rho, 1e-9)
		assert.InDelta(t, -0.4189046090469506, res.Put.Rho, 1e-9)
	})

	t.Run("with dividend yield", func(t *testing.T) {
		res, err := Price(mustSpec(t, 100, 95, 3, 0.5, 25, 2))
		require.NoError(t, err)

		assert.InDelta(t, 9.831948725700414, res.CallPrice, 1e-9)
		assert.InDelta(t, 4.412599613074562, res.PutPrice, 1e-9)
		assert.InDelta(t, 0.6513875019895264, res.Call.Delta, 1e-9)
		assert.InDelta(t, -0.018586497617491825, res.Call.Theta, 1e-9)
		assert.InDelta(t, -0.016319458274011298, res.Put.Theta, 1e-9)
		assert.InDelta(t, -0.5*100*0.6513875019895264, res.Call.DivSensitivity, 1e-9)
	})

	t.Run("put-call parity", func(t *testing.T) {
		cases := []struct{ spot, strike, rate, dte, vol, div float64 }{
			{100, 100, 5, 1, 20, 0},
			{80, 100, 1, 0.25, 45, 3},
			{150, 90, 7, 2, 10, 1},
			{42, 40, 0, 0.1, 80, 0},
			{100, 120, -0.5, 3, 35, 4},
		}
		for _, c := range cases {
			spec := mustSpec(t, c.spot, c.strike, c.rate, c.dte, c.vol, c.div)
			res, err := Price(spec)
			require.NoError(t, err)

			forward := spec.Spot*math.Exp(-spec.Div*spec.DTE) - spec.Strike*math.Exp(-spec.Rate*spec.DTE)
			assert.InDelta(t, forward, res.CallPrice-res.PutPrice, 1e-6, "%s", spec)
		}
	})

	t.Run("degenerate collapse to intrinsic", func(t *testing.T) {
		cases := []struct {
			name        string
			spot, dte   float64
			vol         float64
			call, put   float64
			callD, putD float64
		}{
			{"zero vol in the money call", 110, 1, 0, 10, 0, 1, 0},
			{"zero vol in the money put", 90, 1, 0, 0, 10, 0, -1},
			{"expired in the money put", 85, 0, 20, 0, 15, 0, -1},
			{"expired at the money", 100, 0, 20, 0, 0, 0, 0},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				res, err := Price(mustSpec(t, c.spot, 100, 5, c.dte, c.vol, 0))
				require.NoError(t, err)

				assert.Equal(t, c.call, res.CallPrice)
				assert.Equal(t, c.put, res.PutPrice)
				assert.Equal(t, c.callD, res.Call.Delta)
				assert.Equal(t, c.putD, res.Put.Delta)
				assert.Zero(t, res.Call.Vega)
				assert.Zero(t, res.Put.Vega)
			})
		}
	})

	t.Run("zero strike is invalid input", func(t *testing.T) {
		spec := domain.ContractSpec{Spot: 100, Strike: 0, Rate: 0.05, DTE: 1, Vol: 0.2, Side: domain.SideCall}
		_, err := Price(spec)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("non-positive spot is a domain error", func(t *testing.T) {
		spec := domain.ContractSpec{Spot: 0, Strike: 100, Rate: 0.05, DTE: 1, Vol: 0.2, Side: domain.SideCall}
		_, err := Price(spec)
		assert.ErrorIs(t, err, domain.ErrNumericalDomain)
	})

	t.Run("non-finite input", func(t *testing.T) {
		spec := domain.ContractSpec{Spot: 100, Strike: 100, Rate: math.NaN(), DTE: 1, Vol: 0.2, Side: domain.SideCall}
		_, err := Price(spec)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestGreeksCurve(t *testing.T) {
	spec := mustSpec(t, 100, 100, 5, 1, 20, 0)

	t.Run("default window", func(t *testing.T) {
		lo, hi := DefaultCurveWindow(spec.Spot)
		assert.Equal(t, 80, lo)
		assert.Equal(t, 120, hi)

		points, err := GreeksCurve(spec, lo, hi)
		require.NoError(t, err)
		require.Len(t, points, 40)
		assert.Equal(t, 80.0, points[0].Spot)
		assert.Equal(t, 119.0, points[len(points)-1].Spot)

		for i := 1; i < len(points); i++ {
			assert.Greater(t, points[i].Greeks.Delta, points[i-1].Greeks.Delta)
		}
	})

	t.Run("put side", func(t *testing.T) {
		put := spec
		put.Side = domain.SidePut
		points, err := GreeksCurve(put, 90, 110)
		require.NoError(t, err)
		for _, p := range points {
			assert.Less(t, p.Greeks.Delta, 0.0)
		}
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := GreeksCurve(spec, 120, 80)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = GreeksCurve(spec, 0, 10)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = GreeksCurve(spec, 1, 1+maxCurvePoints+1)
		assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	})
}
