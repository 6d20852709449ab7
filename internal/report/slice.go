// Package report turns region read-backs into 2D slices and writes them as
// PNG heatmaps (gonum/plot) or interactive HTML pages (go-echarts).
package report

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/engine"
)

// MidZ returns the z index used for a slice through n planes: the middle
// plane of a volume, or plane 0 for a single-plane monitor.
func MidZ(n int) int {
	if n <= 1 {
		return 0
	}
	return n / 2
}

// EpsilonSlice extracts the z plane of a (nx, ny, nz, nf) permittivity tensor
// as an nx by ny matrix. Each entry is the real part averaged over frequency.
func EpsilonSlice(t *engine.Tensor, z int) (*mat.Dense, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil permittivity tensor", engine.ErrShape)
	}
	if len(t.Shape) != 4 {
		return nil, fmt.Errorf("%w: permittivity tensor has rank %d, want 4", engine.ErrShape, len(t.Shape))
	}
	nx, ny, nz, nf := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if z < 0 || z >= nz {
		return nil, fmt.Errorf("%w: z index %d outside [0,%d)", engine.ErrShape, z, nz)
	}
	if nx == 0 || ny == 0 || nf == 0 {
		return nil, fmt.Errorf("%w: empty permittivity tensor %v", engine.ErrShape, t.Shape)
	}

	out := mat.NewDense(nx, ny, nil)
	for i := range nx {
		for j := range ny {
			var sum float64
			for f := range nf {
				sum += real(t.At(i, j, z, f))
			}
			out.Set(i, j, sum/float64(nf))
		}
	}
	return out, nil
}

// FieldMagnitudeSlice extracts the z plane at one frequency index of a
// (nx, ny, nz, nf, 3) field tensor. Each entry is the magnitude of the mean
// of the three vector components.
func FieldMagnitudeSlice(f *engine.FieldData, z, freq int) (*mat.Dense, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil field", engine.ErrShape)
	}
	e := f.E
	if len(e.Shape) != 5 || e.Shape[4] != 3 {
		return nil, fmt.Errorf("%w: field tensor shape %v, want (nx, ny, nz, nf, 3)", engine.ErrShape, e.Shape)
	}
	nx, ny, nz, nf := e.Shape[0], e.Shape[1], e.Shape[2], e.Shape[3]
	if z < 0 || z >= nz {
		return nil, fmt.Errorf("%w: z index %d outside [0,%d)", engine.ErrShape, z, nz)
	}
	if freq < 0 || freq >= nf {
		return nil, fmt.Errorf("%w: frequency index %d outside [0,%d)", engine.ErrShape, freq, nf)
	}
	if nx == 0 || ny == 0 {
		return nil, fmt.Errorf("%w: empty field tensor %v", engine.ErrShape, e.Shape)
	}

	out := mat.NewDense(nx, ny, nil)
	for i := range nx {
		for j := range ny {
			var sum complex128
			for c := range 3 {
				sum += e.At(i, j, z, freq, c)
			}
			out.Set(i, j, cmplx.Abs(sum/3))
		}
	}
	return out, nil
}
