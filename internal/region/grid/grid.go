// Package grid describes the sampling lattice of a design region.
//
// All lengths are micrometres. A Grid is immutable once built: coordinate
// accessors hand out copies.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/toporegion/internal/units"
)

// ErrInvalidPitch is returned when a mesh pitch is not a positive finite number.
var ErrInvalidPitch = errors.New("grid: mesh pitch must be positive")

// ErrInvalidExtent is returned for non-finite corner or z coordinates.
var ErrInvalidExtent = errors.New("grid: extent must be finite")

// countTolerance absorbs floating point error in span/pitch so that an exact
// division such as 1.0/0.1 is not truncated one sample short.
const countTolerance = 1e-9

// Point is a lateral position in micrometres.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned extent. Min is component-wise <= Max.
type Box struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// Metres returns the box converted to the engine length unit.
func (b Box) Metres() Box {
	return Box{
		XMin: units.MicronsToMetres(b.XMin), XMax: units.MicronsToMetres(b.XMax),
		YMin: units.MicronsToMetres(b.YMin), YMax: units.MicronsToMetres(b.YMax),
		ZMin: units.MicronsToMetres(b.ZMin), ZMax: units.MicronsToMetres(b.ZMax),
	}
}

// Contains reports whether p lies inside the box, boundaries included.
func (b Box) Contains(x, y, z float64) bool {
	return x >= b.XMin && x <= b.XMax && y >= b.YMin && y <= b.YMax && z >= b.ZMin && z <= b.ZMax
}

// Spec collects the inputs needed to build a Grid.
type Spec struct {
	Corner1, Corner2 Point
	ZStart, ZEnd     float64
	DX, DY, DZ       float64
}

// Grid is the immutable sampling lattice of a region.
type Grid struct {
	box        Box
	dx, dy, dz float64
	nx, ny, nz int
	xs, ys, zs []float64
}

// New builds a Grid. Corners may be given in any order; they are normalized
// to bottom-left / top-right. The z range is normalized the same way.
func New(s Spec) (*Grid, error) {
	for _, v := range []float64{s.Corner1.X, s.Corner1.Y, s.Corner2.X, s.Corner2.Y, s.ZStart, s.ZEnd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrInvalidExtent
		}
	}
	for axis, p := range map[string]float64{"x": s.DX, "y": s.DY, "z": s.DZ} {
		if !(p > 0) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: %s pitch %v", ErrInvalidPitch, axis, p)
		}
	}

	b := Box{
		XMin: math.Min(s.Corner1.X, s.Corner2.X), XMax: math.Max(s.Corner1.X, s.Corner2.X),
		YMin: math.Min(s.Corner1.Y, s.Corner2.Y), YMax: math.Max(s.Corner1.Y, s.Corner2.Y),
		ZMin: math.Min(s.ZStart, s.ZEnd), ZMax: math.Max(s.ZStart, s.ZEnd),
	}
	g := &Grid{box: b, dx: s.DX, dy: s.DY, dz: s.DZ}
	g.nx = SampleCount(b.XMin, b.XMax, s.DX)
	g.ny = SampleCount(b.YMin, b.YMax, s.DY)
	g.nz = SampleCount(b.ZMin, b.ZMax, s.DZ)
	g.xs = Linspace(b.XMin, b.XMax, g.nx)
	g.ys = Linspace(b.YMin, b.YMax, g.ny)
	g.zs = Linspace(b.ZMin, b.ZMax, g.nz)
	return g, nil
}

// SampleCount returns floor((max-min)/pitch)+1. The quotient gets a 1e-9
// allowance before truncation so float noise cannot drop the last sample:
// (0, 0.3, 0.1) yields 4, where plain truncation of 2.9999999999999996 gives 3.
func SampleCount(min, max, pitch float64) int {
	return int(math.Floor((max-min)/pitch+countTolerance)) + 1
}

// Linspace returns n evenly spaced values from min to max inclusive.
// n == 1 yields [min].
func Linspace(min, max float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{min}
	}
	return floats.Span(make([]float64, n), min, max)
}

// Box returns the physical extent in micrometres.
func (g *Grid) Box() Box { return g.box }

// Pitch returns the per-axis mesh pitch in micrometres.
func (g *Grid) Pitch() (dx, dy, dz float64) { return g.dx, g.dy, g.dz }

// NX returns the x sample count.
func (g *Grid) NX() int { return g.nx }

// NY returns the y sample count.
func (g *Grid) NY() int { return g.ny }

// NZ returns the z sample count.
func (g *Grid) NZ() int { return g.nz }

// X returns a copy of the x coordinates.
func (g *Grid) X() []float64 { return append([]float64(nil), g.xs...) }

// Y returns a copy of the y coordinates.
func (g *Grid) Y() []float64 { return append([]float64(nil), g.ys...) }

// Z returns a copy of the z coordinates.
func (g *Grid) Z() []float64 { return append([]float64(nil), g.zs...) }

// ZEnds returns the two z planes that bound the slab.
func (g *Grid) ZEnds() []float64 { return []float64{g.box.ZMin, g.box.ZMax} }

func (g *Grid) String() string {
	return fmt.Sprintf("grid %dx%dx%d [%.4g,%.4g]x[%.4g,%.4g]x[%.4g,%.4g] um",
		g.nx, g.ny, g.nz, g.box.XMin, g.box.XMax, g.box.YMin, g.box.YMax, g.box.ZMin, g.box.ZMax)
}
