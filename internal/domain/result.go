package domain

// Greeks are the first and second order sensitivities of one side of a
// contract. Vega and Rho are per 1% move, Theta is per calendar day.
type Greeks struct {
	Delta          float64 `json:"delta"`
	Gamma          float64 `json:"gamma"`
	Vega           float64 `json:"vega"`
	Theta          float64 `json:"theta"`
	Rho            float64 `json:"rho"`
	DivSensitivity float64 `json:"div_sensitivity"`
}

// PricingResult is the analytic engine's output for both sides of a contract.
// It is computed once and never mutated.
type PricingResult struct {
	Spec      ContractSpec `json:"spec"`
	CallPrice float64      `json:"call_price"`
	PutPrice  float64      `json:"put_price"`
	Call      Greeks       `json:"call_greeks"`
	Put       Greeks       `json:"put_greeks"`
}

// Price returns the price of the requested side.
func (r PricingResult) Price(side Side) float64 {
	if side == SidePut {
		return r.PutPrice
	}
	return r.CallPrice
}

// Greeks returns the Greeks of the requested side.
func (r PricingResult) Greeks(side Side) Greeks {
	if side == SidePut {
		return r.Put
	}
	return r.Call
}
