// Package analytic prices European options in closed form under
// Black-Scholes-Merton with a continuous dividend yield, and solves for the
// implied volatility of an observed price.
package analytic

import (
	"fmt"
	"math"

	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/pricing/normal"
)

// Price computes call and put prices and Greeks for spec. Zero volatility or
// zero time to expiry collapses both sides to intrinsic value.
func Price(spec domain.ContractSpec) (domain.PricingResult, error) {
	if err := validate(spec); err != nil {
		return domain.PricingResult{}, err
	}
	if spec.Degenerate() {
		return degenerate(spec), nil
	}

	var (
		s, k, r, q, t, v = spec.Spot, spec.Strike, spec.Rate, spec.Div, spec.DTE, spec.Vol
		sqrtT            = math.Sqrt(t)
		volSqrtT         = v * sqrtT
		d1               = (math.Log(s/k) + (r-q+v*v/2)*t) / volSqrtT
		d2               = d1 - volSqrtT
		discR            = math.Exp(-r * t)
		discQ            = math.Exp(-q * t)
		pdfD1            = normal.PDF(d1)
	)

	callPrice := s*discQ*normal.CDF(d1) - k*discR*normal.CDF(d2)
	putPrice := k*discR*normal.CDF(-d2) - s*discQ*normal.CDF(-d1)

	gamma := discQ * pdfD1 / (s * volSqrtT)
	vega := s * discQ * pdfD1 * sqrtT / 100
	decay := -s * discQ * pdfD1 * v / (2 * sqrtT)

	call := domain.Greeks{
		Delta:          discQ * normal.CDF(d1),
		Gamma:          gamma,
		Vega:           vega,
		Theta:          (decay + q*s*discQ*normal.CDF(d1) - r*k*discR*normal.CDF(d2)) / 365,
		Rho:            k * t * discR * normal.CDF(d2) / 100,
		DivSensitivity: -t * s * discQ * normal.CDF(d1),
	}
	put := domain.Greeks{
		Delta:          -discQ * normal.CDF(-d1),
		Gamma:          gamma,
		Vega:           vega,
		Theta:          (decay - q*s*discQ*normal.CDF(-d1) + r*k*discR*normal.CDF(-d2)) / 365,
		Rho:            -k * t * discR * normal.CDF(-d2) / 100,
		DivSensitivity: t * s * discQ * normal.CDF(-d1),
	}

	return domain.PricingResult{
		Spec:      spec,
		CallPrice: callPrice,
		PutPrice:  putPrice,
		Call:      call,
		Put:       put,
	}, nil
}

// degenerate prices a contract with no remaining optionality. Both sides are
// computed independently.
func degenerate(spec domain.ContractSpec) domain.PricingResult {
	res := domain.PricingResult{
		Spec:      spec,
		CallPrice: math.Max(spec.Spot-spec.Strike, 0),
		PutPrice:  math.Max(spec.Strike-spec.Spot, 0),
	}
	if spec.Spot > spec.Strike {
		res.Call.Delta = 1
	}
	if spec.Spot < spec.Strike {
		res.Put.Delta = -1
	}
	return res
}

func validate(spec domain.ContractSpec) error {
	if err := domain.RequireFinite(
		domain.Field{Name: "spot", Value: spec.Spot},
		domain.Field{Name: "strike", Value: spec.Strike},
		domain.Field{Name: "rate", Value: spec.Rate},
		domain.Field{Name: "dte", Value: spec.DTE},
		domain.Field{Name: "vol", Value: spec.Vol},
		domain.Field{Name: "div", Value: spec.Div},
	); err != nil {
		return fmt.Errorf("analytic: %w", err)
	}
	switch {
	case spec.Strike <= 0:
		return fmt.Errorf("analytic: strike must be positive, got %v: %w", spec.Strike, domain.ErrInvalidInput)
	case spec.Spot <= 0:
		return fmt.Errorf("analytic: log of spot/strike with spot %v: %w", spec.Spot, domain.ErrNumericalDomain)
	case spec.DTE < 0 || spec.Vol < 0:
		return fmt.Errorf("analytic: negative dte or vol: %w", domain.ErrInvalidInput)
	}
	return nil
}
