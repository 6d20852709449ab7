package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/engine/memengine"
	"github.com/banshee-data/toporegion/internal/fsutil"
	"github.com/banshee-data/toporegion/internal/region"
	"github.com/banshee-data/toporegion/internal/region/grid"
	"github.com/banshee-data/toporegion/internal/region/material"
	"github.com/banshee-data/toporegion/internal/units"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	g, err := grid.New(grid.Spec{
		Corner1: grid.Point{X: 0, Y: 0},
		Corner2: grid.Point{X: 0.2, Y: 0.1},
		ZStart:  -0.02,
		ZEnd:    0.02,
		DX:      0.02,
		DY:      0.02,
		DZ:      0.02,
	})
	require.NoError(t, err)
	return g
}

func TestMidZ(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 1},
		{31, 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MidZ(tt.n), "MidZ(%d)", tt.n)
	}
}

func TestEpsilonSlice(t *testing.T) {
	eps := engine.NewTensor(2, 3, 2, 2)
	for i := range 2 {
		for j := range 3 {
			base := float64(10*i + j)
			eps.Set(complex(base, 5), i, j, 1, 0)
			eps.Set(complex(base+2, -5), i, j, 1, 1)
		}
	}

	got, err := EpsilonSlice(&eps, 1)
	require.NoError(t, err)
	r, c := got.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 1.0, got.At(0, 0), 1e-12)
	assert.InDelta(t, 13.0, got.At(1, 2), 1e-12)

	plane0, err := EpsilonSlice(&eps, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mat.Max(plane0))
}

func TestEpsilonSliceRejects(t *testing.T) {
	eps := engine.NewTensor(2, 2, 1, 1)
	bad := engine.NewTensor(2, 2)

	tests := []struct {
		name string
		t    *engine.Tensor
		z    int
	}{
		{"nil", nil, 0},
		{"wrong rank", &bad, 0},
		{"z too large", &eps, 1},
		{"negative z", &eps, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EpsilonSlice(tt.t, tt.z)
			assert.ErrorIs(t, err, engine.ErrShape)
		})
	}
}

func TestFieldMagnitudeSlice(t *testing.T) {
	e := engine.NewTensor(2, 2, 1, 2, 3)
	e.Set(complex(3, 0), 1, 0, 0, 1, 0)
	e.Set(complex(0, 3), 1, 0, 0, 1, 1)
	e.Set(complex(3, 0), 0, 1, 0, 0, 2)

	f := &engine.FieldData{E: e}

	got, err := FieldMagnitudeSlice(f, 0, 1)
	require.NoError(t, err)
	// |(3 + 3i) / 3| = sqrt(2)
	assert.InDelta(t, 1.4142135623730951, got.At(1, 0), 1e-12)
	assert.Equal(t, 0.0, got.At(0, 1))

	got, err = FieldMagnitudeSlice(f, 0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got.At(0, 1), 1e-12)

	_, err = FieldMagnitudeSlice(f, 0, 2)
	assert.ErrorIs(t, err, engine.ErrShape)
	_, err = FieldMagnitudeSlice(&engine.FieldData{E: engine.NewTensor(2, 2, 1, 1, 2)}, 0, 0)
	assert.ErrorIs(t, err, engine.ErrShape)
	_, err = FieldMagnitudeSlice(nil, 0, 0)
	assert.ErrorIs(t, err, engine.ErrShape)
}

func TestRendererEpsilonPNG(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.Chdir("/work")
	r := Renderer{FS: mfs}
	g := testGrid(t)

	slice := mat.NewDense(g.NX(), g.NY(), nil)
	b := material.Default()
	for i := range g.NX() {
		for j := range g.NY() {
			slice.Set(i, j, b.Lerp(float64(i)/float64(g.NX()-1)))
		}
	}

	path, err := r.EpsilonPNG("./figs/eps.png", slice, g, b)
	require.NoError(t, err)
	assert.Equal(t, "/work/figs/eps.png", path)

	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic), "output is not a PNG")
}

func TestRendererFieldPNGUniformSlice(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	r := Renderer{FS: mfs}
	g := testGrid(t)

	slice := mat.NewDense(g.NX(), g.NY(), nil)
	path, err := r.FieldPNG("/out/field.png", slice, g)
	require.NoError(t, err)

	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestRendererHTMLHeatmap(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.Chdir("/home/run")
	r := Renderer{FS: mfs}
	g := testGrid(t)

	slice := mat.NewDense(g.NX(), g.NY(), nil)
	slice.Set(3, 2, 12.0)

	path, err := r.HTMLHeatmap("../pages/eps.html", "Design permittivity", slice, g)
	require.NoError(t, err)
	assert.Equal(t, "/home/pages/eps.html", path)

	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	html := string(data)
	assert.True(t, strings.Contains(html, "Design permittivity"))
	assert.True(t, strings.Contains(html, "heatmap"))
}

func TestRendererEmptySlice(t *testing.T) {
	r := Renderer{FS: fsutil.NewMemoryFileSystem()}
	g := testGrid(t)

	_, err := r.EpsilonPNG("/eps.png", nil, g, material.Default())
	assert.ErrorIs(t, err, ErrEmptySlice)
	_, err = r.FieldPNG("/field.png", nil, g)
	assert.ErrorIs(t, err, ErrEmptySlice)
	_, err = r.HTMLHeatmap("/eps.html", "x", &mat.Dense{}, g)
	assert.ErrorIs(t, err, ErrEmptySlice)
}

func TestRendererRegionReadBack(t *testing.T) {
	ctx := context.Background()
	sess := memengine.New(memengine.DefaultConfig())
	o := region.DefaultOptions(region.Extruded2D, grid.Point{X: 0, Y: 0}, grid.Point{X: 0.2, Y: 0.1})
	o.Filter.Radius = 0
	r, err := region.New(ctx, sess, o)
	require.NoError(t, err)

	design := mat.NewDense(r.XSize(), r.YSize(), nil)
	for i := r.XSize() / 2; i < r.XSize(); i++ {
		for j := range r.YSize() {
			design.Set(i, j, 1)
		}
	}
	require.NoError(t, r.Update(ctx, design))

	eps, err := r.CaptureEpsilon(ctx)
	require.NoError(t, err)
	slice, err := EpsilonSlice(eps, MidZ(eps.Shape[2]))
	require.NoError(t, err)
	assert.InDelta(t, r.Bounds().LowerEpsilon, slice.At(0, 0), 1e-9)
	assert.InDelta(t, r.Bounds().HigherEpsilon, slice.At(r.XSize()-1, 0), 1e-9)

	field, err := r.EDistribution(ctx)
	require.NoError(t, err)
	mag, err := FieldMagnitudeSlice(field, 0, 0)
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()
	rr := Renderer{FS: mfs}
	_, err = rr.EpsilonPNG("/eps.png", slice, r.Grid(), r.Bounds())
	require.NoError(t, err)
	_, err = rr.FieldPNG("/field.png", mag, r.Grid())
	require.NoError(t, err)
	assert.Equal(t, []string{"/eps.png", "/field.png"}, mfs.Files())
}

func TestRendererResolvePath(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.Chdir("/a/b")
	r := Renderer{FS: mfs}

	got, err := r.ResolvePath("../c/eps.png")
	require.NoError(t, err)
	assert.Equal(t, "/a/c/eps.png", got)
	assert.True(t, mfs.Exists("/a/c"))
}

func TestRendererAxisUnits(t *testing.T) {
	g := testGrid(t)
	slice := mat.NewDense(g.NX(), g.NY(), nil)

	tests := []struct {
		unit  string
		label string
		xMax  float64
	}{
		{"", "x (μm)", 0.2},
		{units.Micrometre, "x (μm)", 0.2},
		{units.Nanometre, "x (nm)", 200},
		{units.Metre, "x (m)", 2e-7},
	}
	for _, tt := range tests {
		t.Run("units="+tt.unit, func(t *testing.T) {
			r := Renderer{Units: tt.unit}
			x, _ := r.axisLabels()
			assert.Equal(t, tt.label, x)

			sg, err := newSliceGrid(slice, g, r.axisUnit())
			require.NoError(t, err)
			nx, _ := sg.Dims()
			assert.InDelta(t, tt.xMax, sg.X(nx-1), tt.xMax*1e-9)
		})
	}
}

func TestRendererHTMLHeatmapNanometres(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	r := Renderer{FS: mfs, Units: units.Nanometre}
	g := testGrid(t)

	path, err := r.HTMLHeatmap("/eps.html", "eps", mat.NewDense(g.NX(), g.NY(), nil), g)
	require.NoError(t, err)
	data, err := mfs.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "x (nm)")
}

func TestRendererRejectsUnknownUnits(t *testing.T) {
	r := Renderer{FS: fsutil.NewMemoryFileSystem(), Units: "furlong"}
	g := testGrid(t)
	_, err := r.FieldPNG("/field.png", mat.NewDense(g.NX(), g.NY(), nil), g)
	assert.Error(t, err)
	assert.Empty(t, r.FS.(*fsutil.MemoryFileSystem).Files())
}
