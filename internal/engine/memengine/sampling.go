package memengine

import (
	"context"
	"sort"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/region/grid"
)

// coordTolerance (metres) absorbs rounding when monitor and import lattices
// were generated from the same extent.
const coordTolerance = 1e-13

type axes struct {
	x, y, z []float64
}

func (a axes) dims() (int, int, int) { return len(a.x), len(a.y), len(a.z) }

// monitorAxesLocked derives the sample lattice of a monitor from the first
// mesh region enclosing it.
func (s *Session) monitorAxesLocked(spec engine.MonitorSpec) axes {
	dx, dy, dz := s.cfg.DefaultPitch, s.cfg.DefaultPitch, s.cfg.DefaultPitch
	for _, name := range s.order {
		o, ok := s.objects[name]
		if !ok || o.handle.Kind != engine.KindMesh {
			continue
		}
		if o.mesh.Box.Encloses(spec.Box, coordTolerance) {
			dx, dy, dz = o.mesh.DX, o.mesh.DY, o.mesh.DZ
			break
		}
	}
	b := spec.Box
	a := axes{
		x: grid.Linspace(b.XMin, b.XMax, grid.SampleCount(b.XMin, b.XMax, dx)),
		y: grid.Linspace(b.YMin, b.YMax, grid.SampleCount(b.YMin, b.YMax, dy)),
	}
	if spec.Dimension == engine.Dim2D {
		a.z = []float64{(b.ZMin + b.ZMax) / 2}
	} else {
		a.z = grid.Linspace(b.ZMin, b.ZMax, grid.SampleCount(b.ZMin, b.ZMax, dz))
	}
	return a
}

// indexAtLocked returns the refractive index at a point. The most recently
// registered import containing the point wins.
func (s *Session) indexAtLocked(x, y, z float64) float64 {
	for i := len(s.order) - 1; i >= 0; i-- {
		o, ok := s.objects[s.order[i]]
		if !ok || o.data == nil {
			continue
		}
		d := o.data
		if !within(d.X, x) || !within(d.Y, y) || !within(d.Z, z) {
			continue
		}
		return d.Index.At(nearest(d.X, x), nearest(d.Y, y), nearest(d.Z, z))
	}
	return s.cfg.BackgroundIndex
}

func within(xs []float64, v float64) bool {
	return v >= xs[0]-coordTolerance && v <= xs[len(xs)-1]+coordTolerance
}

func nearest(xs []float64, v float64) int {
	i := sort.SearchFloat64s(xs, v)
	switch {
	case i == 0:
		return 0
	case i == len(xs):
		return len(xs) - 1
	case v-xs[i-1] <= xs[i]-v:
		return i - 1
	default:
		return i
	}
}

// EpsilonDistribution samples n² on the monitor lattice, shape (nx, ny, nz, f)
// with one column per monitor frequency. Materials are non-dispersive, so the
// columns are identical.
func (s *Session) EpsilonDistribution(ctx context.Context, h engine.Handle) (*engine.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.lookupLocked(h, engine.KindIndexMonitor)
	if err != nil {
		return nil, err
	}
	a := s.monitorAxesLocked(o.monitor)
	nx, ny, nz := a.dims()
	nf := s.cfg.Frequencies
	t := engine.NewTensor(nx, ny, nz, nf)
	for i, x := range a.x {
		for j, y := range a.y {
			for k, z := range a.z {
				n := s.indexAtLocked(x, y, z)
				for f := 0; f < nf; f++ {
					t.Set(complex(n*n, 0), i, j, k, f)
				}
			}
		}
	}
	return &t, nil
}

// EDistribution reports a placeholder field, Ey = 1/n, shape (nx, ny, nz, f, 3).
func (s *Session) EDistribution(ctx context.Context, h engine.Handle, withSpatial bool) (*engine.FieldData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.lookupLocked(h, engine.KindFieldMonitor)
	if err != nil {
		return nil, err
	}
	a := s.monitorAxesLocked(o.monitor)
	nx, ny, nz := a.dims()
	nf := s.cfg.Frequencies
	out := &engine.FieldData{E: engine.NewTensor(nx, ny, nz, nf, 3)}
	for i, x := range a.x {
		for j, y := range a.y {
			for k, z := range a.z {
				ey := complex(1/s.indexAtLocked(x, y, z), 0)
				for f := 0; f < nf; f++ {
					out.E.Set(ey, i, j, k, f, 1)
				}
			}
		}
	}
	if withSpatial {
		out.X, out.Y, out.Z = a.x, a.y, a.z
	}
	return out, nil
}
