package service

import (
	"github.com/lasource18/options-price-calculator/internal/domain"
	"github.com/lasource18/options-price-calculator/internal/pricing/analytic"
	"github.com/lasource18/options-price-calculator/internal/pricing/fdm"
	"github.com/lasource18/options-price-calculator/internal/pricing/montecarlo"
	"github.com/lasource18/options-price-calculator/internal/valuation"
)

// ContractRequest is a contract as entered by a user: rate, vol and div in
// percentage points. Expiry (YYYY-MM-DD) takes precedence over DTE and is
// converted with the configured day-count convention.
type ContractRequest struct {
	Spot   float64 `json:"spot"`
	Strike float64 `json:"strike"`
	Rate   float64 `json:"rate"`
	Vol    float64 `json:"vol"`
	Div    float64 `json:"div"`
	DTE    float64 `json:"dte"`
	Expiry string  `json:"expiry,omitempty"`
	Side   string  `json:"side"`
}

// AnalyticRequest prices a contract in closed form. MarketPrice, when set,
// drives the implied volatility and the valuation.
type AnalyticRequest struct {
	ContractRequest
	MarketPrice *float64 `json:"market_price,omitempty"`
}

// GreeksRequest sweeps spot over [Lower, Upper). Zero bounds select a window
// of 80% to 120% of spot.
type GreeksRequest struct {
	ContractRequest
	Lower int `json:"lower,omitempty"`
	Upper int `json:"upper,omitempty"`
}

// FDMRequest prices on a finite-difference grid. Spot only feeds the
// intrinsic value and defaults to the strike.
type FDMRequest struct {
	Spot        float64  `json:"spot"`
	Strike      float64  `json:"strike"`
	Vol         float64  `json:"vol"`
	Rate        float64  `json:"rate"`
	DTE         float64  `json:"dte"`
	Expiry      string   `json:"expiry,omitempty"`
	AssetSteps  int      `json:"asset_steps,omitempty"`
	Side        string   `json:"side"`
	MarketPrice *float64 `json:"market_price,omitempty"`
}

// MonteCarloRequest prices by path simulation. Mu and Sigma are percentage
// points. HorizonDate takes precedence over Horizon. A nil Seed uses the
// configured default.
type MonteCarloRequest struct {
	Spot        float64  `json:"spot"`
	Strike      float64  `json:"strike"`
	Mu          float64  `json:"mu"`
	Sigma       float64  `json:"sigma"`
	Horizon     float64  `json:"horizon"`
	HorizonDate string   `json:"horizon_date,omitempty"`
	Timesteps   int      `json:"timesteps,omitempty"`
	Sims        int      `json:"sims,omitempty"`
	Category    string   `json:"category"`
	Seed        *uint64  `json:"seed,omitempty"`
	Side        string   `json:"side"`
	MarketPrice *float64 `json:"market_price,omitempty"`
}

// ValuationRequest compares a model price with a market price.
type ValuationRequest struct {
	Theoretical float64 `json:"theoretical"`
	Market      float64 `json:"market"`
}

// Assessment is the side-specific summary every engine response carries.
type Assessment struct {
	Side        domain.Side          `json:"side"`
	Price       float64              `json:"price"`
	Breakdown   valuation.Breakdown  `json:"breakdown"`
	MarketPrice *float64             `json:"market_price,omitempty"`
	Valuation   *valuation.Valuation `json:"valuation,omitempty"`
}

func (a Assessment) summary() (domain.Side, float64) { return a.Side, a.Price }

// AnalyticResponse is the closed-form price of both sides plus the requested
// side's Greeks, implied volatility and valuation.
type AnalyticResponse struct {
	Result     domain.PricingResult `json:"result"`
	Greeks     domain.Greeks        `json:"greeks"`
	ImpliedVol analytic.IVResult    `json:"implied_vol"`
	Assessment
	Warnings []string `json:"warnings,omitempty"`
	Cached   bool     `json:"cached"`
}

// IVResponse is the implied volatility of one side, in percentage points.
type IVResponse struct {
	Side domain.Side `json:"side"`
	analytic.IVResult
	Cached bool `json:"cached"`
}

func (r IVResponse) summary() (domain.Side, float64) { return r.Side, r.Vol }

// GreeksResponse is a Greeks-versus-spot curve.
type GreeksResponse struct {
	Side   domain.Side           `json:"side"`
	Points []analytic.CurvePoint `json:"points"`
	Cached bool                  `json:"cached"`
}

func (r GreeksResponse) summary() (domain.Side, float64) { return r.Side, float64(len(r.Points)) }

// FDMResponse is the grid price of both sides and the requested side's
// assessment.
type FDMResponse struct {
	fdm.Result
	Assessment
	Cached bool `json:"cached"`
}

// MonteCarloResponse is the simulated price of both sides and the requested
// side's assessment.
type MonteCarloResponse struct {
	montecarlo.Result
	Assessment
	Cached bool `json:"cached"`
}
