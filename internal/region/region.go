package region

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/monitoring"
	"github.com/banshee-data/toporegion/internal/region/density"
	"github.com/banshee-data/toporegion/internal/region/grid"
	"github.com/banshee-data/toporegion/internal/region/material"
	"github.com/banshee-data/toporegion/internal/units"
)

var logf = monitoring.Prefixed("region")

// Engine object name suffixes. The import itself uses the bare prefix.
const (
	suffixIndex = "_index"
	suffixField = "_field"
	suffixMesh  = "_mesh"
)

// Region is a design region bound to one engine session.
type Region struct {
	name    string
	variant Variant
	grid    *grid.Grid
	bounds  material.Bounds
	filter  density.Params
	mapper  Mapper
	session engine.Session

	indexMonitor engine.Handle
	fieldMonitor engine.Handle
	mesh         engine.Handle
	geometry     engine.Handle

	revision int
	eps      *density.Volume
	snap     Snapshot
}

// New validates opts, registers the region's engine objects and returns the
// region. Objects are registered in order: index monitor, field monitor, mesh
// override, empty import. A failed registration is not rolled back.
func New(ctx context.Context, s engine.Session, opts Options) (*Region, error) {
	if s == nil {
		return nil, errors.New("region: nil engine session")
	}
	if opts.Variant != Extruded2D && opts.Variant != Layered3D {
		return nil, fmt.Errorf("%w: variant %v", ErrOutOfRange, opts.Variant)
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: blank region name", ErrOutOfRange)
	}
	g, err := grid.New(grid.Spec{
		Corner1: opts.Corner1,
		Corner2: opts.Corner2,
		ZStart:  opts.ZStart,
		ZEnd:    opts.ZEnd,
		DX:      opts.DX,
		DY:      opts.DY,
		DZ:      opts.DZ,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	b, err := material.New(opts.LowerIndex, opts.HigherIndex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	if err := opts.Filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutOfRange, err)
	}
	mapper := opts.Mapper
	if mapper == nil {
		mapper = LocalMapper{}
	}

	r := &Region{
		name:    name,
		variant: opts.Variant,
		grid:    g,
		bounds:  b,
		filter:  opts.Filter,
		mapper:  mapper,
		session: s,
	}
	if err := r.register(ctx); err != nil {
		return nil, err
	}
	logf("%s: registered %s region on %s, eps %.4f..%.4f", r.name, r.variant, g, b.LowerEpsilon, b.HigherEpsilon)
	return r, nil
}

// New2D builds an Extruded2D region.
func New2D(ctx context.Context, s engine.Session, opts Options) (*Region, error) {
	opts.Variant = Extruded2D
	return New(ctx, s, opts)
}

// New3D builds a Layered3D region.
func New3D(ctx context.Context, s engine.Session, opts Options) (*Region, error) {
	opts.Variant = Layered3D
	return New(ctx, s, opts)
}

func (r *Region) register(ctx context.Context) error {
	box := r.grid.Box().Metres()
	ebox := engine.Box{
		XMin: box.XMin, XMax: box.XMax,
		YMin: box.YMin, YMax: box.YMax,
		ZMin: box.ZMin, ZMax: box.ZMax,
	}
	dim := r.variant.Dimension()

	var err error
	r.indexMonitor, err = r.session.AddIndexRegion(ctx, engine.MonitorSpec{
		Name:                 r.name + suffixIndex,
		Box:                  ebox,
		Dimension:            dim,
		SpatialInterpolation: engine.SpecifiedPosition,
	})
	if err != nil {
		return engineErr("add index monitor", err)
	}
	r.fieldMonitor, err = r.session.AddFieldRegion(ctx, engine.MonitorSpec{
		Name:                 r.name + suffixField,
		Box:                  ebox,
		Dimension:            dim,
		SpatialInterpolation: engine.SpecifiedPosition,
	})
	if err != nil {
		return engineErr("add field monitor", err)
	}
	dx, dy, dz := r.grid.Pitch()
	r.mesh, err = r.session.AddMeshRegion(ctx, engine.MeshSpec{
		Name: r.name + suffixMesh,
		Box:  ebox,
		DX:   units.MicronsToMetres(dx),
		DY:   units.MicronsToMetres(dy),
		DZ:   units.MicronsToMetres(dz),
	})
	if err != nil {
		return engineErr("add mesh region", err)
	}
	r.geometry, err = r.session.AddImport(ctx, engine.ImportSpec{Name: r.name, Detail: 1})
	if err != nil {
		return engineErr("add import", err)
	}
	return nil
}

// Name returns the engine object prefix.
func (r *Region) Name() string { return r.name }

// Variant returns the region variant.
func (r *Region) Variant() Variant { return r.variant }

// Grid returns the sampling lattice.
func (r *Region) Grid() *grid.Grid { return r.grid }

// Bounds returns the permittivity bounds.
func (r *Region) Bounds() material.Bounds { return r.bounds }

// Filter returns the filter and projection parameters.
func (r *Region) Filter() density.Params { return r.filter }

// XSize returns the number of x samples; design matrices have this many rows.
func (r *Region) XSize() int { return r.grid.NX() }

// YSize returns the number of y samples; design matrices have this many columns.
func (r *Region) YSize() int { return r.grid.NY() }

// ZSize returns the number of z samples of the grid.
func (r *Region) ZSize() int { return r.grid.NZ() }

// Revision counts successful updates. Zero means no design has been applied.
func (r *Region) Revision() int { return r.revision }

// Handles returns the engine handles owned by the region: index monitor,
// field monitor, mesh override and imported geometry.
func (r *Region) Handles() []engine.Handle {
	return []engine.Handle{r.indexMonitor, r.fieldMonitor, r.mesh, r.geometry}
}
