package memengine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/toporegion/internal/engine"
)

// box returns a 1 µm × 1 µm region at z ∈ [-0.11, 0.11] µm, in metres.
func box() engine.Box {
	return engine.Box{XMax: 1e-6, YMax: 1e-6, ZMin: -0.11e-6, ZMax: 0.11e-6}
}

func setup(t *testing.T, dim engine.Dimension) (*Session, engine.Handle, engine.Handle, engine.Handle) {
	t.Helper()
	ctx := context.Background()
	s := New(Config{Frequencies: 2, BackgroundIndex: 1})
	idx, err := s.AddIndexRegion(ctx, engine.MonitorSpec{Name: "r_index", Box: box(), Dimension: dim})
	require.NoError(t, err)
	fld, err := s.AddFieldRegion(ctx, engine.MonitorSpec{Name: "r_field", Box: box(), Dimension: dim})
	require.NoError(t, err)
	_, err = s.AddMeshRegion(ctx, engine.MeshSpec{Name: "r_mesh", Box: box(), DX: 0.25e-6, DY: 0.5e-6, DZ: 0.11e-6})
	require.NoError(t, err)
	imp, err := s.AddImport(ctx, engine.ImportSpec{Name: "r", Detail: 1})
	require.NoError(t, err)
	return s, idx, fld, imp
}

func TestNew_Defaults(t *testing.T) {
	s := New(Config{})
	assert.Equal(t, DefaultConfig(), s.Config())
}

func TestRegister_NameCollision(t *testing.T) {
	s, _, _, _ := setup(t, engine.Dim2D)
	_, err := s.AddFieldRegion(context.Background(), engine.MonitorSpec{Name: "r_index", Box: box(), Dimension: engine.Dim2D})
	assert.ErrorIs(t, err, engine.ErrNameCollision)
	assert.Len(t, s.Objects(), 4)
}

func TestRegister_Rejects(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultConfig())

	_, err := s.AddIndexRegion(ctx, engine.MonitorSpec{Name: "m", Box: box(), Dimension: 4})
	assert.ErrorIs(t, err, engine.ErrShape)

	_, err = s.AddMeshRegion(ctx, engine.MeshSpec{Name: "mesh", Box: box()})
	assert.ErrorIs(t, err, engine.ErrShape)

	_, err = s.AddImport(ctx, engine.ImportSpec{})
	assert.ErrorIs(t, err, engine.ErrShape)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.AddImport(cancelled, engine.ImportSpec{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMonitors_RecordInterpolation(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultConfig())
	spec := engine.MonitorSpec{Name: "r_index", Box: box(), Dimension: engine.Dim2D, SpatialInterpolation: engine.SpecifiedPosition}
	_, err := s.AddIndexRegion(ctx, spec)
	require.NoError(t, err)
	spec.Name = "r_field"
	_, err = s.AddFieldRegion(ctx, spec)
	require.NoError(t, err)
	_, err = s.AddFieldRegion(ctx, engine.MonitorSpec{Name: "plain", Box: box(), Dimension: engine.Dim2D})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`select("r_index");set("spatial interpolation","specified position");`,
		`select("r_field");set("spatial interpolation","specified position");`,
	}, s.Transcript())

	// A rejected registration records nothing.
	_, err = s.AddIndexRegion(ctx, spec)
	assert.ErrorIs(t, err, engine.ErrNameCollision)
	assert.Len(t, s.Transcript(), 2)
}

func TestHandles_AreUnique(t *testing.T) {
	s, idx, fld, imp := setup(t, engine.Dim2D)
	seen := map[string]bool{}
	for _, h := range s.Objects() {
		assert.True(t, h.Valid())
		assert.False(t, seen[h.ID], "duplicate id %s", h.ID)
		seen[h.ID] = true
	}
	assert.Equal(t, engine.KindIndexMonitor, idx.Kind)
	assert.Equal(t, engine.KindFieldMonitor, fld.Kind)
	assert.Equal(t, engine.KindImport, imp.Kind)
}

func TestEpsilonDistribution_Background(t *testing.T) {
	s, idx, _, _ := setup(t, engine.Dim2D)
	eps, err := s.EpsilonDistribution(context.Background(), idx)
	require.NoError(t, err)
	// 1 µm / 0.25 µm → 5 samples, 1 µm / 0.5 µm → 3 samples, 2-D → 1 plane.
	assert.Equal(t, []int{5, 3, 1, 2}, eps.Shape)
	for _, v := range eps.Data {
		assert.Equal(t, complex(1, 0), v)
	}
}

func TestReplaceImport_SamplesOntoMonitors(t *testing.T) {
	ctx := context.Background()
	for _, dim := range []engine.Dimension{engine.Dim2D, engine.Dim3D} {
		s, idx, fld, imp := setup(t, dim)

		data := engine.ImportData{
			Index: engine.NewArray(5, 3, 2),
			X:     []float64{0, 0.25e-6, 0.5e-6, 0.75e-6, 1e-6},
			Y:     []float64{0, 0.5e-6, 1e-6},
			Z:     []float64{-0.11e-6, 0.11e-6},
		}
		for i := range data.Index.Data {
			data.Index.Data[i] = 2
		}
		next, err := s.ReplaceImport(ctx, imp, data)
		require.NoError(t, err)
		assert.Equal(t, imp.Name, next.Name)
		assert.NotEqual(t, imp.ID, next.ID)

		// Superseded handle is stale.
		_, err = s.ReplaceImport(ctx, imp, data)
		assert.ErrorIs(t, err, engine.ErrNotFound)

		eps, err := s.EpsilonDistribution(ctx, idx)
		require.NoError(t, err)
		for _, v := range eps.Data {
			assert.InDelta(t, 4, real(v), 1e-12)
		}
		wantNZ := 1
		if dim == engine.Dim3D {
			wantNZ = 3
		}
		assert.Equal(t, []int{5, 3, wantNZ, 2}, eps.Shape)

		f, err := s.EDistribution(ctx, fld, true)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 3, wantNZ, 2, 3}, f.E.Shape)
		assert.Equal(t, complex(0.5, 0), f.E.At(0, 0, 0, 0, 1))
		assert.Equal(t, complex(0, 0), f.E.At(0, 0, 0, 0, 0))
		assert.Len(t, f.X, 5)
		assert.Len(t, f.Z, wantNZ)

		got, ok := s.ImportData("r")
		require.True(t, ok)
		assert.Equal(t, data.X, got.X)
	}
}

func TestReplaceImport_Errors(t *testing.T) {
	ctx := context.Background()
	s, idx, _, imp := setup(t, engine.Dim2D)

	bad := engine.ImportData{Index: engine.NewArray(2, 2, 2), X: []float64{0, 1}, Y: []float64{0, 1}, Z: []float64{0}}
	_, err := s.ReplaceImport(ctx, imp, bad)
	assert.ErrorIs(t, err, engine.ErrShape)

	good := engine.ImportData{Index: engine.NewArray(1, 1, 1), X: []float64{0}, Y: []float64{0}, Z: []float64{0}}
	_, err = s.ReplaceImport(ctx, idx, good)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestReads_WrongKind(t *testing.T) {
	ctx := context.Background()
	s, idx, fld, _ := setup(t, engine.Dim2D)
	_, err := s.EDistribution(ctx, idx, false)
	assert.ErrorIs(t, err, engine.ErrNotFound)
	_, err = s.EpsilonDistribution(ctx, fld)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestEDistribution_NoSpatial(t *testing.T) {
	s, _, fld, _ := setup(t, engine.Dim2D)
	f, err := s.EDistribution(context.Background(), fld, false)
	require.NoError(t, err)
	assert.Nil(t, f.X)
	assert.Nil(t, f.Y)
	assert.Nil(t, f.Z)
}

func TestVariables(t *testing.T) {
	ctx := context.Background()
	s := New(DefaultConfig())
	_, err := s.GetV(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	assert.ErrorIs(t, s.PutV(ctx, "bad", engine.Array{Shape: []int{2}}), engine.ErrShape)

	in := engine.Vector([]float64{1, 2})
	require.NoError(t, s.PutV(ctx, "x_geo", in))
	in.Data[0] = 99
	out, err := s.GetV(ctx, "x_geo")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, out.Data)
}

func TestNearest(t *testing.T) {
	xs := []float64{0, 1, 2}
	tests := []struct {
		v    float64
		want int
	}{
		{-1, 0}, {0, 0}, {0.4, 0}, {0.5, 0}, {0.6, 1}, {1.9, 2}, {5, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nearest(xs, tt.v), "v=%v", tt.v)
	}
	assert.True(t, within(xs, 2+1e-14))
	assert.False(t, within(xs, math.Nextafter(2, 3)+1e-12))
}
