// Package units provides shared constants and conversions for length units.
// Region geometry is expressed in micrometres; the FDTD engine works in metres.
package units

import "fmt"

// Unit constants
const (
	Metre      = "m"
	Micrometre = "um"
	Nanometre  = "nm"
)

// MicronsPerMetre is the fixed scale between the working unit and the engine unit.
const MicronsPerMetre = 1e6

// ValidUnits contains all valid unit values
var ValidUnits = []string{Metre, Micrometre, Nanometre}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "m, um, nm"
}

// Symbol returns the label used on plot axes for unit.
func Symbol(unit string) string {
	if unit == Micrometre {
		return "μm"
	}
	return unit
}

// MicronsToMetres converts a length in micrometres to metres.
func MicronsToMetres(um float64) float64 {
	return um / MicronsPerMetre
}

// MicronsSliceToMetres returns a new slice with every element converted to metres.
func MicronsSliceToMetres(um []float64) []float64 {
	out := make([]float64, len(um))
	for i, v := range um {
		out[i] = MicronsToMetres(v)
	}
	return out
}

// ConvertLength converts a length in micrometres to the target units.
func ConvertLength(um float64, targetUnits string) (float64, error) {
	switch targetUnits {
	case Metre:
		return MicronsToMetres(um), nil
	case Micrometre:
		return um, nil
	case Nanometre:
		return um * 1e3, nil
	default:
		return 0, fmt.Errorf("unknown length unit %q (valid: %s)", targetUnits, GetValidUnitsString())
	}
}
