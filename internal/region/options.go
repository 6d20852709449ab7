package region

import (
	"fmt"
	"strings"

	"github.com/banshee-data/toporegion/internal/config"
	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/region/density"
	"github.com/banshee-data/toporegion/internal/region/grid"
	"github.com/banshee-data/toporegion/internal/region/material"
)

// Variant selects how the lateral design extends along z.
type Variant int

const (
	// Extruded2D duplicates the design onto the two z ends.
	Extruded2D Variant = iota
	// Layered3D fills every z sample of the grid.
	Layered3D
)

func (v Variant) String() string {
	switch v {
	case Extruded2D:
		return config.Variant2D
	case Layered3D:
		return config.Variant3D
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Dimension returns the monitor dimensionality of the variant.
func (v Variant) Dimension() engine.Dimension {
	if v == Layered3D {
		return engine.Dim3D
	}
	return engine.Dim2D
}

// ParseVariant accepts "2d" or "3d" in any case.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(s) {
	case config.Variant2D:
		return Extruded2D, nil
	case config.Variant3D:
		return Layered3D, nil
	}
	return 0, fmt.Errorf("%w: unknown variant %q", ErrOutOfRange, s)
}

// DefaultName is the engine object prefix used when Options.Name is empty.
// A name of only whitespace is rejected.
const DefaultName = "ToOptRegion"

// Options configures a Region. Lengths are micrometres.
type Options struct {
	Variant          Variant
	Corner1, Corner2 grid.Point
	DX, DY, DZ       float64
	ZStart, ZEnd     float64
	LowerIndex       float64
	HigherIndex      float64
	Name             string
	Filter           density.Params
	// Mapper turns densities into permittivity; nil means LocalMapper.
	Mapper Mapper
}

// DefaultOptions returns the reference defaults for a variant with the given
// corners: 20 nm lateral pitch, 7.1 nm (2-D) or 20 nm (3-D) z pitch, SiO2/Si
// bounds, z from -0.11 to 0.11 µm and R = 0.5 µm, eta = 0.5, beta = 1.
func DefaultOptions(v Variant, c1, c2 grid.Point) Options {
	dz := 0.0071
	if v == Layered3D {
		dz = 0.02
	}
	return Options{
		Variant:     v,
		Corner1:     c1,
		Corner2:     c2,
		DX:          0.02,
		DY:          0.02,
		DZ:          dz,
		ZStart:      -0.11,
		ZEnd:        0.11,
		LowerIndex:  material.DefaultLowerIndex,
		HigherIndex: material.DefaultHigherIndex,
		Name:        DefaultName,
		Filter:      density.DefaultParams(),
	}
}

// OptionsFromConfig builds Options from a RegionConfig, applying its defaults.
func OptionsFromConfig(cfg *config.RegionConfig) (Options, error) {
	if cfg == nil {
		cfg = config.EmptyRegionConfig()
	}
	v, err := ParseVariant(cfg.GetVariant())
	if err != nil {
		return Options{}, err
	}
	x1, y1 := cfg.GetCorner1()
	x2, y2 := cfg.GetCorner2()
	o := Options{
		Variant:     v,
		Corner1:     grid.Point{X: x1, Y: y1},
		Corner2:     grid.Point{X: x2, Y: y2},
		DX:          cfg.GetXMesh(),
		DY:          cfg.GetYMesh(),
		DZ:          cfg.GetZMesh(),
		ZStart:      cfg.GetZStart(),
		ZEnd:        cfg.GetZEnd(),
		LowerIndex:  cfg.GetLowerIndex(),
		HigherIndex: cfg.GetHigherIndex(),
		Name:        cfg.GetName(),
		Filter: density.Params{
			Radius: cfg.GetFilterRadius(),
			Eta:    cfg.GetEta(),
			Beta:   cfg.GetBeta(),
		},
	}
	switch cfg.GetMapper() {
	case config.MapperEngine:
		o.Mapper = EngineMapper{}
	default:
		o.Mapper = LocalMapper{}
	}
	return o, nil
}
