// Package normal exposes the standard normal density and distribution
// functions used by every pricing path.
package normal

import "gonum.org/v1/gonum/stat/distuv"

// PDF is the standard normal probability density φ(x).
func PDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// CDF is the standard normal cumulative distribution Φ(x).
func CDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
