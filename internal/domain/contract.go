// Package domain holds the value types and error taxonomy shared by the
// pricing engines, the service layer and the HTTP/CLI shell.
package domain

import (
	"fmt"
	"math"
	"strings"
)

// Side selects the call or put leg of a contract.
type Side string

const (
	SideCall Side = "call"
	SidePut  Side = "put"
)

// ParseSide accepts "call", "put", "C" and "P" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return SideCall, nil
	case "put", "p":
		return SidePut, nil
	default:
		return "", fmt.Errorf("domain: unknown side %q: %w", s, ErrInvalidInput)
	}
}

// Sign returns +1 for calls and -1 for puts.
func (s Side) Sign() float64 {
	if s == SidePut {
		return -1
	}
	return 1
}

// PayoffCategory selects the Monte Carlo payoff family.
type PayoffCategory string

const (
	CategoryEuropean PayoffCategory = "european"
	CategoryAsian    PayoffCategory = "asian"
	CategoryLookback PayoffCategory = "lookback"
)

// ParseCategory maps a category name to a PayoffCategory. "eu" is accepted as
// an alias for european.
func ParseCategory(s string) (PayoffCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "european", "eu":
		return CategoryEuropean, nil
	case "asian":
		return CategoryAsian, nil
	case "lookback":
		return CategoryLookback, nil
	default:
		return "", fmt.Errorf("domain: unknown payoff category %q: %w", s, ErrInvalidInput)
	}
}

// ContractSpec describes a vanilla European option. Rate, Vol and Div are
// stored as annualized fractions; DTE is in years. Build it through
// NewContractSpec or ContractFromPercent so the invariants hold.
type ContractSpec struct {
	Spot   float64 `json:"spot"`
	Strike float64 `json:"strike"`
	Rate   float64 `json:"rate"`
	DTE    float64 `json:"dte"`
	Vol    float64 `json:"vol"`
	Div    float64 `json:"div"`
	Side   Side    `json:"side"`
}

// NewContractSpec validates and returns a ContractSpec from fractional inputs.
func NewContractSpec(spot, strike, rate, dte, vol, div float64, side Side) (ContractSpec, error) {
	if err := RequireFinite(
		Field{"spot", spot}, Field{"strike", strike}, Field{"rate", rate},
		Field{"dte", dte}, Field{"vol", vol}, Field{"div", div},
	); err != nil {
		return ContractSpec{}, err
	}
	switch {
	case strike <= 0:
		return ContractSpec{}, fmt.Errorf("domain: strike must be positive, got %v: %w", strike, ErrInvalidInput)
	case spot <= 0:
		return ContractSpec{}, fmt.Errorf("domain: spot must be positive, got %v: %w", spot, ErrInvalidInput)
	case dte < 0:
		return ContractSpec{}, fmt.Errorf("domain: dte must be >= 0, got %v: %w", dte, ErrInvalidInput)
	case vol < 0:
		return ContractSpec{}, fmt.Errorf("domain: vol must be >= 0, got %v: %w", vol, ErrInvalidInput)
	case div < 0:
		return ContractSpec{}, fmt.Errorf("domain: div must be >= 0, got %v: %w", div, ErrInvalidInput)
	}
	if side != SideCall && side != SidePut {
		return ContractSpec{}, fmt.Errorf("domain: unknown side %q: %w", side, ErrInvalidInput)
	}
	return ContractSpec{
		Spot:   spot,
		Strike: strike,
		Rate:   rate,
		DTE:    dte,
		Vol:    vol,
		Div:    div,
		Side:   side,
	}, nil
}

// ContractFromPercent is NewContractSpec with rate, vol and div given in
// percentage points, the way quotes are entered by users.
func ContractFromPercent(spot, strike, ratePct, dte, volPct, divPct float64, side Side) (ContractSpec, error) {
	return NewContractSpec(spot, strike, ratePct/100, dte, volPct/100, divPct/100, side)
}

// WithVol returns a copy of the contract priced at a different volatility
// (fraction).
func (c ContractSpec) WithVol(vol float64) ContractSpec {
	c.Vol = vol
	return c
}

// WithSpot returns a copy of the contract with a different spot price.
func (c ContractSpec) WithSpot(spot float64) ContractSpec {
	c.Spot = spot
	return c
}

// Degenerate reports whether the contract has no optionality left to price,
// i.e. zero volatility or zero time to expiry.
func (c ContractSpec) Degenerate() bool {
	return c.Vol == 0 || c.DTE == 0
}

// Field names a numeric input for RequireFinite.
type Field struct {
	Name  string
	Value float64
}

// RequireFinite returns ErrInvalidInput naming the first NaN or infinite field.
func RequireFinite(fields ...Field) error {
	for _, f := range fields {
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			return fmt.Errorf("domain: %s is not finite: %w", f.Name, ErrInvalidInput)
		}
	}
	return nil
}

func (c ContractSpec) String() string {
	return fmt.Sprintf("Option[Spot=%g, Strike=%g, Rate=%g, DTE=%g, Vol=%g, Div=%g, Side=%s]",
		c.Spot, c.Strike, c.Rate, c.DTE, c.Vol, c.Div, c.Side)
}
