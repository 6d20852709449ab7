package density

import (
	"errors"
	"fmt"
	"math"
)

// Defaults for the filter and projection.
const (
	DefaultRadius = 0.5 // µm
	DefaultEta    = 0.5
	DefaultBeta   = 1.0
)

// ErrOutOfRange is returned for filter parameters outside their domain.
var ErrOutOfRange = errors.New("density: parameter out of range")

// Params configures the filter and projection. Radius is in micrometres.
type Params struct {
	Radius float64 `json:"filter_radius"`
	Eta    float64 `json:"eta"`
	Beta   float64 `json:"beta"`
}

// DefaultParams returns R = 0.5 µm, eta = 0.5, beta = 1.
func DefaultParams() Params {
	return Params{Radius: DefaultRadius, Eta: DefaultEta, Beta: DefaultBeta}
}

// Validate checks R >= 0, eta in [0,1] and beta >= 0, all finite.
func (p Params) Validate() error {
	if math.IsNaN(p.Radius) || math.IsInf(p.Radius, 0) || p.Radius < 0 {
		return fmt.Errorf("%w: filter radius must be non-negative, got %v", ErrOutOfRange, p.Radius)
	}
	if math.IsNaN(p.Eta) || p.Eta < 0 || p.Eta > 1 {
		return fmt.Errorf("%w: eta must be in [0, 1], got %v", ErrOutOfRange, p.Eta)
	}
	if math.IsNaN(p.Beta) || math.IsInf(p.Beta, 0) || p.Beta < 0 {
		return fmt.Errorf("%w: beta must be non-negative and finite, got %v", ErrOutOfRange, p.Beta)
	}
	return nil
}
