package region

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when a design does not match the grid.
	ErrShapeMismatch = errors.New("region: design shape does not match grid")
	// ErrOutOfRange is returned for design values or parameters outside their domain.
	ErrOutOfRange = errors.New("region: value out of range")
	// ErrEngineCall wraps any failure reported by the engine session.
	ErrEngineCall = errors.New("region: engine call failed")
	// ErrUnconfiguredRegion is returned by reads issued before the first Update.
	ErrUnconfiguredRegion = errors.New("region: no design applied yet")
	// ErrUnsupported is returned for operations the variant does not offer.
	ErrUnsupported = errors.New("region: operation not supported")
)

func engineErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEngineCall, op, err)
}
