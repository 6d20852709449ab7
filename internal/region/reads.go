package region

import (
	"context"
	"fmt"

	"github.com/banshee-data/toporegion/internal/engine"
)

// Snapshot is the cached engine output for one revision. It is replaced as a
// whole, never merged: Update clears it, EDistribution fills Field and
// CaptureEpsilon fills Epsilon.
type Snapshot struct {
	Revision int
	Field    *engine.FieldData
	Epsilon  *engine.Tensor
}

// EDistribution reads the field monitor, shape (nx, ny, nz, frequencies, 3)
// with nz = 1 for Extruded2D, and caches the result.
func (r *Region) EDistribution(ctx context.Context) (*engine.FieldData, error) {
	f, err := r.readField(ctx, false)
	if err != nil {
		return nil, err
	}
	r.snap.Field = f
	return cloneField(f), nil
}

// EDistributionWithSpatial reads the field monitor together with its
// coordinates (metres). The result is not cached.
func (r *Region) EDistributionWithSpatial(ctx context.Context) (*engine.FieldData, error) {
	return r.readField(ctx, true)
}

func (r *Region) readField(ctx context.Context, withSpatial bool) (*engine.FieldData, error) {
	if r.revision == 0 {
		return nil, ErrUnconfiguredRegion
	}
	f, err := r.session.EDistribution(ctx, r.fieldMonitor, withSpatial)
	if err != nil {
		return nil, engineErr("read field", err)
	}
	if err := f.E.Validate(); err != nil || len(f.E.Shape) != 5 {
		return nil, engineErr("read field", fmt.Errorf("%w: field shape %v", engine.ErrShape, f.E.Shape))
	}
	return f, nil
}

// EpsilonDistribution reads the index monitor as permittivity, shape
// (nx, ny, nz, frequencies). The result is not cached.
func (r *Region) EpsilonDistribution(ctx context.Context) (*engine.Tensor, error) {
	if r.revision == 0 {
		return nil, ErrUnconfiguredRegion
	}
	t, err := r.session.EpsilonDistribution(ctx, r.indexMonitor)
	if err != nil {
		return nil, engineErr("read permittivity", err)
	}
	if err := t.Validate(); err != nil || len(t.Shape) != 4 {
		return nil, engineErr("read permittivity", fmt.Errorf("%w: permittivity shape %v", engine.ErrShape, t.Shape))
	}
	return t, nil
}

// CaptureEpsilon reads the index monitor and caches the result.
func (r *Region) CaptureEpsilon(ctx context.Context) (*engine.Tensor, error) {
	t, err := r.EpsilonDistribution(ctx)
	if err != nil {
		return nil, err
	}
	r.snap.Epsilon = t
	c := t.Clone()
	return &c, nil
}

// Snapshot returns a deep copy of the cache.
func (r *Region) Snapshot() Snapshot {
	s := Snapshot{Revision: r.snap.Revision, Field: cloneField(r.snap.Field)}
	if r.snap.Epsilon != nil {
		c := r.snap.Epsilon.Clone()
		s.Epsilon = &c
	}
	return s
}

func cloneField(f *engine.FieldData) *engine.FieldData {
	if f == nil {
		return nil
	}
	out := &engine.FieldData{E: f.E.Clone()}
	if f.X != nil {
		out.X = append([]float64(nil), f.X...)
		out.Y = append([]float64(nil), f.Y...)
		out.Z = append([]float64(nil), f.Z...)
	}
	return out
}
