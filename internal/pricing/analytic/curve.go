package analytic

import (
	"fmt"
	"math"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// maxCurvePoints caps the number of spots one GreeksCurve call evaluates.
const maxCurvePoints = 10_000

// CurvePoint is the Greeks of the contract's side re-priced at Spot.
type CurvePoint struct {
	Spot   float64       `json:"spot"`
	Greeks domain.Greeks `json:"greeks"`
}

// GreeksCurve re-prices spec at every integer spot in [lower, upper) and
// returns the Greeks of spec.Side at each one.
func GreeksCurve(spec domain.ContractSpec, lower, upper int) ([]CurvePoint, error) {
	if lower < 1 || upper <= lower {
		return nil, fmt.Errorf("analytic: curve window [%d, %d): %w", lower, upper, domain.ErrInvalidInput)
	}
	if upper-lower > maxCurvePoints {
		return nil, fmt.Errorf("analytic: curve window of %d points exceeds %d: %w",
			upper-lower, maxCurvePoints, domain.ErrBudgetExceeded)
	}

	points := make([]CurvePoint, 0, upper-lower)
	for s := lower; s < upper; s++ {
		res, err := Price(spec.WithSpot(float64(s)))
		if err != nil {
			return nil, err
		}
		points = append(points, CurvePoint{
			Spot:   float64(s),
			Greeks: res.Greeks(spec.Side),
		})
	}
	return points, nil
}

// DefaultCurveWindow is the spot window around spec.Spot used when a caller
// does not ask for one: [0.8·spot, 1.2·spot).
func DefaultCurveWindow(spot float64) (lower, upper int) {
	lower = int(math.Max(1, math.Floor(spot*0.8)))
	upper = int(math.Floor(spot * 1.2))
	if upper <= lower {
		upper = lower + 1
	}
	return lower, upper
}
