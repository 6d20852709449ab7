package report

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/toporegion/internal/fsutil"
	"github.com/banshee-data/toporegion/internal/monitoring"
	"github.com/banshee-data/toporegion/internal/region/grid"
	"github.com/banshee-data/toporegion/internal/region/material"
	"github.com/banshee-data/toporegion/internal/units"
)

var logf = monitoring.Prefixed("report")

// ErrEmptySlice is returned when a slice has no samples to draw.
var ErrEmptySlice = errors.New("report: empty slice")

const (
	figureWidth  = 6 * vg.Inch
	figureHeight = 5 * vg.Inch
	paletteSize  = 256
)

// Renderer writes figures through FS. A zero Renderer writes to the real
// filesystem with axes in micrometres.
type Renderer struct {
	FS fsutil.FileSystem
	// Units for axis coordinates, one of units.ValidUnits.
	Units string
}

func (r Renderer) axisUnit() string {
	if r.Units == "" {
		return units.Micrometre
	}
	return r.Units
}

func (r Renderer) axisLabels() (x, y string) {
	sym := units.Symbol(r.axisUnit())
	return fmt.Sprintf("x (%s)", sym), fmt.Sprintf("y (%s)", sym)
}

func (r Renderer) fs() fsutil.FileSystem {
	if r.FS == nil {
		return fsutil.OSFileSystem{}
	}
	return r.FS
}

// EpsilonPNG draws a permittivity slice in grayscale with the colour range
// pinned to the material bounds, so void is black and solid is white.
func (r Renderer) EpsilonPNG(path string, slice *mat.Dense, g *grid.Grid, b material.Bounds) (string, error) {
	return r.writePNG(path, "Permittivity", slice, g, grayPalette(paletteSize), b.LowerEpsilon, b.HigherEpsilon)
}

// FieldPNG draws a field magnitude slice with the heat palette scaled to the
// slice's own range.
func (r Renderer) FieldPNG(path string, slice *mat.Dense, g *grid.Grid) (string, error) {
	if slice == nil || slice.IsEmpty() {
		return "", ErrEmptySlice
	}
	lo, hi := mat.Min(slice), mat.Max(slice)
	return r.writePNG(path, "|E|", slice, g, palette.Heat(paletteSize, 1), lo, hi)
}

func (r Renderer) writePNG(path, title string, slice *mat.Dense, g *grid.Grid, pal palette.Palette, lo, hi float64) (string, error) {
	data, err := newSliceGrid(slice, g, r.axisUnit())
	if err != nil {
		return "", err
	}
	if hi <= lo {
		hi = lo + 1
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text, p.Y.Label.Text = r.axisLabels()

	hm := plotter.NewHeatMap(data, pal)
	hm.Min, hm.Max = lo, hi
	hm.Underflow = pal.Colors()[0]
	hm.Overflow = pal.Colors()[len(pal.Colors())-1]
	p.Add(hm)

	wt, err := p.WriterTo(figureWidth, figureHeight, "png")
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", title, err)
	}
	return r.write(path, wt)
}

// HTMLHeatmap writes an interactive heatmap page for slice.
func (r Renderer) HTMLHeatmap(path, title string, slice *mat.Dense, g *grid.Grid) (string, error) {
	data, err := newSliceGrid(slice, g, r.axisUnit())
	if err != nil {
		return "", err
	}
	nx, ny := data.Dims()
	axisX, axisY := r.axisLabels()

	xLabels := make([]string, nx)
	for i := range nx {
		xLabels[i] = strconv.FormatFloat(data.X(i), 'g', 4, 64)
	}
	yLabels := make([]string, ny)
	for j := range ny {
		yLabels[j] = strconv.FormatFloat(data.Y(j), 'g', 4, 64)
	}

	points := make([]opts.HeatMapData, 0, nx*ny)
	for i := range nx {
		for j := range ny {
			points = append(points, opts.HeatMapData{Value: [3]interface{}{i, j, data.Z(i, j)}})
		}
	}

	lo, hi := mat.Min(slice), mat.Max(slice)
	if hi <= lo {
		hi = lo + 1
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%dx%d samples", nx, ny)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: axisX, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: axisY, NameLocation: "middle", NameGap: 45}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: []string{"#000000", "#ffffff"}},
		}),
	)
	hm.AddSeries(title, points)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		return "", fmt.Errorf("failed to render heatmap page: %w", err)
	}
	return r.write(path, &buf)
}

// ResolvePath returns where a figure named p is written, creating its parent
// directory. See fsutil.ResolvePath for the "./" and "../" rules.
func (r Renderer) ResolvePath(p string) (string, error) {
	return fsutil.ResolvePath(r.fs(), p)
}

func (r Renderer) write(path string, src io.WriterTo) (string, error) {
	fsys := r.fs()
	resolved, err := r.ResolvePath(path)
	if err != nil {
		return "", fmt.Errorf("failed to prepare %s: %w", path, err)
	}
	w, err := fsys.Create(resolved)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", resolved, err)
	}
	if _, err := src.WriteTo(w); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write %s: %w", resolved, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", resolved, err)
	}
	logf("wrote %s", resolved)
	return resolved, nil
}

// sliceGrid adapts an nx by ny slice to plotter.GridXYZ with coordinates
// spread evenly over the region's lateral extent, expressed in unit.
type sliceGrid struct {
	m      *mat.Dense
	xs, ys []float64
}

func newSliceGrid(m *mat.Dense, g *grid.Grid, unit string) (*sliceGrid, error) {
	if m == nil || m.IsEmpty() {
		return nil, ErrEmptySlice
	}
	if !units.IsValid(unit) {
		return nil, fmt.Errorf("invalid axis units %q (valid: %s)", unit, units.GetValidUnitsString())
	}
	nx, ny := m.Dims()
	box := g.Box()
	var ext [4]float64
	for i, v := range []float64{box.XMin, box.XMax, box.YMin, box.YMax} {
		c, err := units.ConvertLength(v, unit)
		if err != nil {
			return nil, err
		}
		ext[i] = c
	}
	return &sliceGrid{
		m:  m,
		xs: grid.Linspace(ext[0], ext[1], nx),
		ys: grid.Linspace(ext[2], ext[3], ny),
	}, nil
}

func (s *sliceGrid) Dims() (c, r int)   { return len(s.xs), len(s.ys) }
func (s *sliceGrid) Z(c, r int) float64 { return s.m.At(c, r) }
func (s *sliceGrid) X(c int) float64    { return s.xs[c] }
func (s *sliceGrid) Y(r int) float64    { return s.ys[r] }

type grays []color.Color

func (p grays) Colors() []color.Color { return p }

// grayPalette runs from black to white in n steps.
func grayPalette(n int) palette.Palette {
	p := make(grays, n)
	for i := range p {
		v := uint8(i * 255 / (n - 1))
		p[i] = color.Gray{Y: v}
	}
	return p
}
