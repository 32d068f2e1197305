package fdm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// Grid is a solved price surface. Row i is the asset price i*ds and column k
// is the residual time to expiry k*dt, so column 0 holds the expiry payoff.
// Values are rounded to 2 decimals.
type Grid struct {
	values     *mat.Dense
	ds         float64
	dt         float64
	assetSteps int
	timeSteps  int
}

// Point is one cell of a Grid.
type Point struct {
	AssetPrice   float64 `json:"asset_price" csv:"asset_price"`
	TimeToExpiry float64 `json:"time_to_expiry" csv:"time_to_expiry"`
	Value        float64 `json:"value" csv:"value"`
}

// AssetSteps returns the number of asset intervals (NAS).
func (g *Grid) AssetSteps() int { return g.assetSteps }

// TimeSteps returns the number of time intervals (NTS).
func (g *Grid) TimeSteps() int { return g.timeSteps }

// AssetStep returns the spacing between asset nodes.
func (g *Grid) AssetStep() float64 { return g.ds }

// TimeStep returns the spacing between time columns.
func (g *Grid) TimeStep() float64 { return g.dt }

// At returns the value at row i, column k.
func (g *Grid) At(i, k int) float64 { return g.values.At(i, k) }

// Lookup returns the value at asset price and residual time to expiry. Both
// coordinates must land on a node: the asset price to 6 decimals and the time
// to 4. Anything else is ErrLookup; the surface is never interpolated.
func (g *Grid) Lookup(asset, tte float64) (float64, error) {
	row := -1
	want := roundTo(asset, 6)
	for i := 0; i <= g.assetSteps; i++ {
		if roundTo(float64(i)*g.ds, 6) == want {
			row = i
			break
		}
	}
	if row < 0 {
		return 0, fmt.Errorf("fdm: asset price %v is not a grid node (ds=%v): %w", asset, g.ds, domain.ErrLookup)
	}

	// Latest matching column wins so that the full horizon is found even when
	// neighbouring columns round to the same label.
	wantT := roundTo(tte, 4)
	for k := g.timeSteps; k >= 0; k-- {
		if roundTo(g.columnTime(k), 4) == wantT {
			return g.values.At(row, k), nil
		}
	}
	return 0, fmt.Errorf("fdm: time to expiry %v is not a grid column (dt=%v): %w", tte, g.dt, domain.ErrLookup)
}

// Points flattens the surface row by row.
func (g *Grid) Points() []Point {
	rows, cols := g.values.Dims()
	out := make([]Point, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for k := 0; k < cols; k++ {
			out = append(out, Point{
				AssetPrice:   roundTo(float64(i)*g.ds, 6),
				TimeToExpiry: roundTo(g.columnTime(k), 4),
				Value:        g.values.At(i, k),
			})
		}
	}
	return out
}

func (g *Grid) columnTime(k int) float64 {
	return float64(k) * g.dt
}

func roundTo(x float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(x*p) / p
}
