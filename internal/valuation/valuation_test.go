package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		name        string
		theoretical float64
		market      float64
		verdict     Verdict
		percent     float64
		message     string
	}{
		{"undervalued", 110, 100, Undervalued, 10, "undervalued by 10.00%"},
		{"overvalued", 90, 100, Overvalued, 10, "overvalued by 10.00%"},
		{"fair", 100, 100, Fair, 0, "fairly valued"},
		{"rounds to two decimals", 10.45, 9.87, Undervalued, 5.88, "undervalued by 5.88%"},
		{"small overvaluation", 1.001, 1.1, Overvalued, 9, "overvalued by 9.00%"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, err := Compare(c.theoretical, c.market)
			require.NoError(t, err)
			assert.Equal(t, c.verdict, v.Verdict)
			assert.InDelta(t, c.percent, v.Percent, 1e-9)
			assert.Equal(t, c.message, v.Message)
		})
	}

	t.Run("zero market price", func(t *testing.T) {
		_, err := Compare(5, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("non-finite price", func(t *testing.T) {
		_, err := Compare(math.NaN(), 1)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestDecompose(t *testing.T) {
	t.Run("in the money call", func(t *testing.T) {
		b, err := Decompose(110, 100, domain.SideCall, 14.25)
		require.NoError(t, err)
		assert.Equal(t, Breakdown{Intrinsic: 10, TimeValue: 4.25}, b)
	})

	t.Run("out of the money put is all time value", func(t *testing.T) {
		b, err := Decompose(110, 100, domain.SidePut, 2.5)
		require.NoError(t, err)
		assert.Equal(t, Breakdown{Intrinsic: 0, TimeValue: 2.5}, b)
	})

	t.Run("unknown side", func(t *testing.T) {
		_, err := Decompose(110, 100, domain.Side("straddle"), 2.5)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
