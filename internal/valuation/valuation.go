// Package valuation compares a model price with an observed market price.
package valuation

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// Verdict classifies a model price against the market.
type Verdict string

const (
	Undervalued Verdict = "undervalued"
	Fair        Verdict = "fairly valued"
	Overvalued  Verdict = "overvalued"
)

// Valuation is the outcome of Compare. Percent is the magnitude of the
// relative difference, rounded to 2 decimals.
type Valuation struct {
	Verdict Verdict `json:"verdict"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

var hundred = decimal.NewFromInt(100)

// Compare classifies theoretical against market by (theoretical-market)/market.
// A model price above the market means the option trades cheap.
func Compare(theoretical, market float64) (Valuation, error) {
	if err := domain.RequireFinite(
		domain.Field{Name: "theoretical", Value: theoretical},
		domain.Field{Name: "market", Value: market},
	); err != nil {
		return Valuation{}, fmt.Errorf("valuation: %w", err)
	}
	if market == 0 {
		return Valuation{}, fmt.Errorf("valuation: market price is zero: %w", domain.ErrInvalidInput)
	}

	m := decimal.NewFromFloat(market)
	diff := decimal.NewFromFloat(theoretical).Sub(m).DivRound(m, 16)
	pct := diff.Abs().Mul(hundred).Round(2)

	switch diff.Sign() {
	case 1:
		return Valuation{
			Verdict: Undervalued,
			Percent: pct.InexactFloat64(),
			Message: fmt.Sprintf("undervalued by %s%%", pct.StringFixed(2)),
		}, nil
	case -1:
		return Valuation{
			Verdict: Overvalued,
			Percent: pct.InexactFloat64(),
			Message: fmt.Sprintf("overvalued by %s%%", pct.StringFixed(2)),
		}, nil
	default:
		return Valuation{Verdict: Fair, Message: string(Fair)}, nil
	}
}

// Breakdown splits an option price into intrinsic and time value.
type Breakdown struct {
	Intrinsic float64 `json:"intrinsic_value"`
	TimeValue float64 `json:"time_value"`
}

// Decompose returns the intrinsic value of side at spot and strike and the
// remainder of price over it, both rounded to 4 decimals.
func Decompose(spot, strike float64, side domain.Side, price float64) (Breakdown, error) {
	if err := domain.RequireFinite(
		domain.Field{Name: "spot", Value: spot},
		domain.Field{Name: "strike", Value: strike},
		domain.Field{Name: "price", Value: price},
	); err != nil {
		return Breakdown{}, fmt.Errorf("valuation: %w", err)
	}
	if side != domain.SideCall && side != domain.SidePut {
		return Breakdown{}, fmt.Errorf("valuation: unknown side %q: %w", side, domain.ErrInvalidInput)
	}

	intrinsic := decimal.NewFromFloat(math.Max(side.Sign()*(spot-strike), 0))
	timeValue := decimal.NewFromFloat(price).Sub(intrinsic)
	return Breakdown{
		Intrinsic: intrinsic.Round(4).InexactFloat64(),
		TimeValue: timeValue.Round(4).InexactFloat64(),
	}, nil
}
