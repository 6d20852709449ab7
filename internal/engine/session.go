package engine

import (
	"context"
	"errors"
	"fmt"
)

// Engine-side failures. Implementations wrap these with detail.
var (
	ErrNameCollision = errors.New("engine: object name already registered")
	ErrNotFound      = errors.New("engine: object not found")
	ErrShape         = errors.New("engine: array shape mismatch")
	ErrUnsupported   = errors.New("engine: operation not supported")
)

// Dimension is the monitor dimensionality.
type Dimension int

const (
	Dim2D Dimension = 2
	Dim3D Dimension = 3
)

// ObjectKind identifies what a Handle refers to.
type ObjectKind string

const (
	KindIndexMonitor ObjectKind = "index_monitor"
	KindFieldMonitor ObjectKind = "field_monitor"
	KindMesh         ObjectKind = "mesh"
	KindImport       ObjectKind = "import"
)

// SpecifiedPosition makes monitors report data at mesh positions instead of
// interpolating to the Yee cell centre.
const SpecifiedPosition = "specified position"

// Handle references an engine object registered in one session.
type Handle struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind ObjectKind `json:"kind"`
}

// Valid reports whether the handle carries a token.
func (h Handle) Valid() bool { return h.ID != "" && h.Name != "" }

func (h Handle) String() string { return fmt.Sprintf("%s %q (%s)", h.Kind, h.Name, h.ID) }

// Box is an axis-aligned extent in metres.
type Box struct {
	XMin, XMax float64
	YMin, YMax float64
	ZMin, ZMax float64
}

// Span returns the extent along each axis.
func (b Box) Span() (x, y, z float64) { return b.XMax - b.XMin, b.YMax - b.YMin, b.ZMax - b.ZMin }

// Encloses reports whether o lies within b, with tolerance tol on every face.
func (b Box) Encloses(o Box, tol float64) bool {
	return o.XMin >= b.XMin-tol && o.XMax <= b.XMax+tol &&
		o.YMin >= b.YMin-tol && o.YMax <= b.YMax+tol &&
		o.ZMin >= b.ZMin-tol && o.ZMax <= b.ZMax+tol
}

// MonitorSpec describes an index or field monitor.
type MonitorSpec struct {
	Name                 string
	Box                  Box
	Dimension            Dimension
	SpatialInterpolation string
}

// MeshSpec describes a mesh override region. Pitches are metres.
type MeshSpec struct {
	Name       string
	Box        Box
	DX, DY, DZ float64
}

// ImportSpec describes an (initially empty) imported-geometry object.
type ImportSpec struct {
	Name   string
	Detail float64
}

// ImportData is a refractive-index volume sampled at X × Y × Z (metres).
type ImportData struct {
	Index   Array
	X, Y, Z []float64
}

// Validate checks that Index has shape (len X, len Y, len Z).
func (d ImportData) Validate() error {
	if err := d.Index.Validate(); err != nil {
		return err
	}
	want := []int{len(d.X), len(d.Y), len(d.Z)}
	if !sameShape(d.Index.Shape, want) {
		return fmt.Errorf("%w: index shape %v, coordinates %v", ErrShape, d.Index.Shape, want)
	}
	return nil
}

// FieldData is an electric field distribution. E has shape
// (nx, ny, nz, frequencies, 3). Coordinates are set only for spatial reads.
type FieldData struct {
	E       Tensor
	X, Y, Z []float64
}

// Session is one live engine session. Calls are synchronous; implementations
// should honour ctx cancellation where the transport allows it.
type Session interface {
	AddIndexRegion(ctx context.Context, spec MonitorSpec) (Handle, error)
	AddFieldRegion(ctx context.Context, spec MonitorSpec) (Handle, error)
	AddMeshRegion(ctx context.Context, spec MeshSpec) (Handle, error)
	AddImport(ctx context.Context, spec ImportSpec) (Handle, error)

	// ReplaceImport deletes the import object and recreates it under the same
	// name populated with data. The returned handle supersedes h.
	ReplaceImport(ctx context.Context, h Handle, data ImportData) (Handle, error)

	// Scripting bridge.
	PutV(ctx context.Context, name string, a Array) error
	GetV(ctx context.Context, name string) (Array, error)
	Eval(ctx context.Context, script string) error

	EDistribution(ctx context.Context, monitor Handle, withSpatial bool) (*FieldData, error)
	EpsilonDistribution(ctx context.Context, monitor Handle) (*Tensor, error)
}
