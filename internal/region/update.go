package region

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/region/density"
	"github.com/banshee-data/toporegion/internal/units"
)

// Update maps a lateral design onto permittivity and replaces the imported
// geometry. params must be XSize × YSize with every entry finite and in [0,1].
// On success the revision advances and the snapshot cache is cleared; on
// failure the region keeps its previous state.
func (r *Region) Update(ctx context.Context, params *mat.Dense) error {
	if params == nil {
		return fmt.Errorf("%w: nil design", ErrShapeMismatch)
	}
	if rows, cols := params.Dims(); rows != r.XSize() || cols != r.YSize() {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShapeMismatch, rows, cols, r.XSize(), r.YSize())
	}
	for i := 0; i < r.XSize(); i++ {
		for j := 0; j < r.YSize(); j++ {
			if v := params.At(i, j); !inUnit(v) {
				return fmt.Errorf("%w: design[%d][%d] = %v not in [0, 1]", ErrOutOfRange, i, j, v)
			}
		}
	}

	dx, dy, _ := r.grid.Pitch()
	eps, err := r.mapper.Permittivity(ctx, r.session, MapInput{
		Density: mat.DenseCopyOf(params),
		Filter:  r.filter,
		Bounds:  r.bounds,
		DX:      dx,
		DY:      dy,
	})
	if err != nil {
		return err
	}
	if rows, cols := eps.Dims(); rows != r.XSize() || cols != r.YSize() {
		return fmt.Errorf("%w: mapper returned %dx%d", ErrShapeMismatch, rows, cols)
	}

	var vol *density.Volume
	var zs []float64
	switch r.variant {
	case Layered3D:
		vol = density.Extrude(eps, r.ZSize())
		zs = r.grid.Z()
	default:
		vol = density.Extrude(eps, 2)
		zs = r.grid.ZEnds()
	}
	return r.apply(ctx, vol, zs)
}

// UpdateVolume applies a per-layer design of shape XSize × YSize × ZSize,
// filtered with the 3-D kernel. Layered3D only. The mapping always runs in
// process because the engine routine is lateral.
func (r *Region) UpdateVolume(ctx context.Context, design *density.Volume) error {
	if r.variant != Layered3D {
		return fmt.Errorf("%w: UpdateVolume on %s region", ErrUnsupported, r.variant)
	}
	if design == nil {
		return fmt.Errorf("%w: nil design", ErrShapeMismatch)
	}
	if err := design.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	if nx, ny, nz := design.Dims(); nx != r.XSize() || ny != r.YSize() || nz != r.ZSize() {
		return fmt.Errorf("%w: got %dx%dx%d, want %dx%dx%d",
			ErrShapeMismatch, nx, ny, nz, r.XSize(), r.YSize(), r.ZSize())
	}
	for n, v := range design.Data {
		if !inUnit(v) {
			i, rem := n/(design.NY*design.NZ), n%(design.NY*design.NZ)
			return fmt.Errorf("%w: design[%d][%d][%d] = %v not in [0, 1]",
				ErrOutOfRange, i, rem/design.NZ, rem%design.NZ, v)
		}
	}
	dx, dy, dz := r.grid.Pitch()
	vol := density.VolumeToPermittivity(design, r.filter, dx, dy, dz, r.bounds)
	return r.apply(ctx, vol, r.grid.Z())
}

// apply pushes a permittivity volume sampled at the grid's x, y and the given
// z planes (µm) into the engine as refractive index.
func (r *Region) apply(ctx context.Context, vol *density.Volume, zs []float64) error {
	data := engine.ImportData{
		Index: engine.Array{
			Shape: []int{vol.NX, vol.NY, vol.NZ},
			Data:  vol.Map(math.Sqrt).Data,
		},
		X: units.MicronsSliceToMetres(r.grid.X()),
		Y: units.MicronsSliceToMetres(r.grid.Y()),
		Z: units.MicronsSliceToMetres(zs),
	}
	h, err := r.session.ReplaceImport(ctx, r.geometry, data)
	if err != nil {
		return engineErr("replace import", err)
	}

	r.geometry = h
	r.eps = vol
	r.revision++
	r.snap = Snapshot{Revision: r.revision}

	lo, hi := vol.Range()
	logf("%s: revision %d applied, eps %.4f..%.4f mean %.4f", r.name, r.revision, lo, hi, vol.Mean())
	return nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Permittivity returns a copy of the last applied permittivity volume,
// shape XSize × YSize × planes (2 for Extruded2D, ZSize for Layered3D).
func (r *Region) Permittivity() (*density.Volume, error) {
	if r.eps == nil {
		return nil, ErrUnconfiguredRegion
	}
	return r.eps.Clone(), nil
}
