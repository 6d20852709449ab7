// Package material holds the permittivity bounds a design region maps onto.
package material

import (
	"errors"
	"fmt"
	"math"
)

// Default refractive indices: silica cladding and silicon core.
const (
	DefaultLowerIndex  = 1.444
	DefaultHigherIndex = 3.478
)

// ErrInvalidBounds is returned for non-physical or inverted index bounds.
var ErrInvalidBounds = errors.New("material: invalid index bounds")

const containsTolerance = 1e-12

// Bounds stores the lower and higher refractive index as permittivities (n²).
type Bounds struct {
	LowerIndex    float64
	HigherIndex   float64
	LowerEpsilon  float64
	HigherEpsilon float64
}

// New validates the indices and returns their permittivity bounds.
func New(lowerIndex, higherIndex float64) (Bounds, error) {
	for _, n := range []float64{lowerIndex, higherIndex} {
		if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
			return Bounds{}, fmt.Errorf("%w: index %v must be positive and finite", ErrInvalidBounds, n)
		}
	}
	if lowerIndex > higherIndex {
		return Bounds{}, fmt.Errorf("%w: lower index %v exceeds higher index %v", ErrInvalidBounds, lowerIndex, higherIndex)
	}
	return Bounds{
		LowerIndex:    lowerIndex,
		HigherIndex:   higherIndex,
		LowerEpsilon:  lowerIndex * lowerIndex,
		HigherEpsilon: higherIndex * higherIndex,
	}, nil
}

// Default returns the SiO2/Si bounds.
func Default() Bounds {
	b, _ := New(DefaultLowerIndex, DefaultHigherIndex)
	return b
}

// Levels returns [lower, higher] permittivity, the eps_levels pair the engine expects.
func (b Bounds) Levels() [2]float64 {
	return [2]float64{b.LowerEpsilon, b.HigherEpsilon}
}

// Lerp maps a density in [0,1] linearly onto the permittivity range.
func (b Bounds) Lerp(rho float64) float64 {
	return b.LowerEpsilon + rho*(b.HigherEpsilon-b.LowerEpsilon)
}

// Clamp limits eps to the permittivity range.
func (b Bounds) Clamp(eps float64) float64 {
	return math.Max(b.LowerEpsilon, math.Min(b.HigherEpsilon, eps))
}

// Contains reports whether eps lies in the permittivity range, inclusive.
func (b Bounds) Contains(eps float64) bool {
	return eps >= b.LowerEpsilon-containsTolerance && eps <= b.HigherEpsilon+containsTolerance
}

// Density inverts Lerp. A degenerate range maps everything to 0.
func (b Bounds) Density(eps float64) float64 {
	span := b.HigherEpsilon - b.LowerEpsilon
	if span == 0 {
		return 0
	}
	return (eps - b.LowerEpsilon) / span
}
