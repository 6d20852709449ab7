package region

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/region/density"
	"github.com/banshee-data/toporegion/internal/region/material"
	"github.com/banshee-data/toporegion/internal/units"
)

// MapInput is a validated lateral design with the context needed to map it.
// Pitches are micrometres.
type MapInput struct {
	Density *mat.Dense
	Filter  density.Params
	Bounds  material.Bounds
	DX, DY  float64
}

// Mapper turns a lateral density into permittivity of the same shape.
type Mapper interface {
	Permittivity(ctx context.Context, s engine.Session, in MapInput) (*mat.Dense, error)
}

// LocalMapper filters, projects and maps in process.
type LocalMapper struct{}

// Permittivity implements Mapper.
func (LocalMapper) Permittivity(_ context.Context, _ engine.Session, in MapInput) (*mat.Dense, error) {
	return density.ToPermittivity(in.Density, in.Filter, in.DX, in.DY, in.Bounds), nil
}

// EngineMapper delegates to the engine's topoparamstoindex routine: the
// density is pushed as topo_rho, the routine is evaluated with lengths in
// metres and eps_geo is read back.
type EngineMapper struct{}

// Permittivity implements Mapper.
func (EngineMapper) Permittivity(ctx context.Context, s engine.Session, in MapInput) (*mat.Dense, error) {
	nx, ny := in.Density.Dims()
	rho := engine.NewArray(nx, ny)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			rho.Data[i*ny+j] = in.Density.At(i, j)
		}
	}
	if err := s.PutV(ctx, engine.VarDensity, rho); err != nil {
		return nil, engineErr("putv "+engine.VarDensity, err)
	}
	script := engine.TopoParamsToIndex(engine.TopoParams{
		EpsLevels:    in.Bounds.Levels(),
		FilterRadius: units.MicronsToMetres(in.Filter.Radius),
		Beta:         in.Filter.Beta,
		Eta:          in.Filter.Eta,
		DX:           units.MicronsToMetres(in.DX),
		DY:           units.MicronsToMetres(in.DY),
	})
	if err := s.Eval(ctx, script); err != nil {
		return nil, engineErr("eval topoparamstoindex", err)
	}
	eps, err := s.GetV(ctx, engine.VarPermittivity)
	if err != nil {
		return nil, engineErr("getv "+engine.VarPermittivity, err)
	}
	if len(eps.Shape) != 2 || eps.Shape[0] != nx || eps.Shape[1] != ny || eps.Validate() != nil {
		return nil, engineErr("getv "+engine.VarPermittivity,
			fmt.Errorf("%w: got %v, want [%d %d]", engine.ErrShape, eps.Shape, nx, ny))
	}
	out := mat.NewDense(nx, ny, nil)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			out.Set(i, j, in.Bounds.Clamp(eps.Data[i*ny+j]))
		}
	}
	return out, nil
}
