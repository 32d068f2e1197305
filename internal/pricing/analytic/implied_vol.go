package analytic

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// VolPricer re-prices one side of a contract at a candidate volatility given
// in percentage points.
type VolPricer interface {
	PriceAt(volPct float64) (float64, error)
}

// VolPricerFunc adapts a function to VolPricer.
type VolPricerFunc func(volPct float64) (float64, error)

// PriceAt calls f.
func (f VolPricerFunc) PriceAt(volPct float64) (float64, error) { return f(volPct) }

// SidePricer returns a VolPricer that re-prices spec's given side with the
// closed-form model.
func SidePricer(spec domain.ContractSpec, side domain.Side) VolPricer {
	return VolPricerFunc(func(volPct float64) (float64, error) {
		res, err := Price(spec.WithVol(volPct / 100))
		if err != nil {
			return 0, err
		}
		return res.Price(side), nil
	})
}

// BisectConfig bounds one bisection search. Low and High are percentage
// points.
type BisectConfig struct {
	Low       float64
	High      float64
	Tolerance float64
	MaxIter   int
}

// DefaultBisect searches [0%, 500%] for at most 1000 iterations with the
// midpoint floored at 1e-7.
var DefaultBisect = BisectConfig{
	Low:       0,
	High:      500,
	Tolerance: 1e-7,
	MaxIter:   1000,
}

// IVResult is the outcome of an implied volatility search. Vol is in
// percentage points. When Converged is false Vol holds the last midpoint.
type IVResult struct {
	Vol        float64 `json:"vol"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
}

// ImpliedVol solves for the volatility at which spec's side reprices to
// observed. A nil observed price returns the contract's own volatility.
func ImpliedVol(spec domain.ContractSpec, observed *float64, side domain.Side) (IVResult, error) {
	return ImpliedVolWith(spec, observed, side, DefaultBisect)
}

// ImpliedVolWith is ImpliedVol with explicit search bounds.
func ImpliedVolWith(spec domain.ContractSpec, observed *float64, side domain.Side, cfg BisectConfig) (IVResult, error) {
	if err := validate(spec); err != nil {
		return IVResult{}, err
	}
	if observed == nil {
		return IVResult{Vol: spec.Vol * 100, Converged: true}, nil
	}
	return Bisect(*observed, SidePricer(spec, side), cfg)
}

// CallImpliedVol is ImpliedVol for the call side.
func CallImpliedVol(spec domain.ContractSpec, observed *float64) (IVResult, error) {
	return ImpliedVol(spec, observed, domain.SideCall)
}

// PutImpliedVol is ImpliedVol for the put side.
func PutImpliedVol(spec domain.ContractSpec, observed *float64) (IVResult, error) {
	return ImpliedVol(spec, observed, domain.SidePut)
}

// Bisect searches [cfg.Low, cfg.High] for the volatility whose price, rounded
// to 6 decimals, equals target rounded to 6 decimals. If the iteration cap is
// reached or the bracket stops shrinking first, it returns the last midpoint
// together with ErrNonConvergence.
func Bisect(target float64, pricer VolPricer, cfg BisectConfig) (IVResult, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) || target <= 0 {
		return IVResult{}, fmt.Errorf("analytic: observed price must be positive, got %v: %w", target, domain.ErrInvalidInput)
	}
	if cfg.MaxIter < 1 || cfg.High <= cfg.Low {
		return IVResult{}, fmt.Errorf("analytic: bisection bounds [%v, %v] x %d: %w",
			cfg.Low, cfg.High, cfg.MaxIter, domain.ErrInvalidInput)
	}

	want := round6(target)
	low, high := cfg.Low, cfg.High
	mid := math.NaN()

	for i := 1; i <= cfg.MaxIter; i++ {
		next := math.Max((high+low)/2, cfg.Tolerance)
		if next == mid {
			// The bracket can no longer shrink in float64.
			return IVResult{Vol: mid, Iterations: i - 1},
				fmt.Errorf("analytic: implied vol stalled at %v after %d iterations: %w", mid, i-1, domain.ErrNonConvergence)
		}
		mid = next

		estimate, err := pricer.PriceAt(mid)
		if err != nil {
			return IVResult{Vol: mid, Iterations: i}, fmt.Errorf("analytic: reprice at %v: %w", mid, err)
		}

		switch {
		case round6(estimate).Equal(want):
			return IVResult{Vol: mid, Iterations: i, Converged: true}, nil
		case estimate > target:
			high = mid
		default:
			low = mid
		}
	}

	return IVResult{Vol: mid, Iterations: cfg.MaxIter},
		fmt.Errorf("analytic: implied vol not found in %d iterations: %w", cfg.MaxIter, domain.ErrNonConvergence)
}

func round6(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(6)
}
