package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/engine/memengine"
	"github.com/banshee-data/toporegion/internal/region"
	"github.com/banshee-data/toporegion/internal/region/density"
	"github.com/banshee-data/toporegion/internal/region/grid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRegion(t *testing.T) *region.Region {
	t.Helper()
	o := region.DefaultOptions(region.Extruded2D, grid.Point{X: 0, Y: 0}, grid.Point{X: 0.1, Y: 0.1})
	o.Filter.Radius = 0.05
	r, err := region.New(context.Background(), memengine.New(memengine.DefaultConfig()), o)
	require.NoError(t, err)
	return r
}

func TestOpen_MigratesToLatest(t *testing.T) {
	s := openTestStore(t)
	v, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateDown())
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	require.NoError(t, s.MigrateUp())
	require.NoError(t, s.MigrateUp(), "second up is a no-op")
	v, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}

func TestRuns(t *testing.T) {
	s := openTestStore(t)
	r := testRegion(t)

	run := RunFromRegion(r)
	run.ConfigJSON = []byte(`{"variant":"2d"}`)
	run.CreatedAt = 100
	require.NoError(t, s.InsertRun(run))
	assert.NotEmpty(t, run.RunID)

	later := RunFromRegion(r)
	later.CreatedAt = 200
	later.Notes = "second"
	require.NoError(t, s.InsertRun(later))

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.Equal(t, "2d", got.Variant)
	assert.Equal(t, 6, got.NX)

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, later.RunID, runs[0].RunID, "newest first")

	runs, err = s.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = s.GetRun("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteRun("missing"), ErrNotFound)
}

func TestUpdatesAndSnapshots(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	r := testRegion(t)
	run := RunFromRegion(r)
	require.NoError(t, s.InsertRun(run))

	design := mat.NewDense(r.XSize(), r.YSize(), nil)
	design.Set(2, 2, 1)
	require.NoError(t, r.Update(ctx, design))
	vol, err := r.Permittivity()
	require.NoError(t, err)

	id, err := s.InsertUpdate(&Update{RunID: run.RunID, Revision: r.Revision(), Permittivity: vol})
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = s.InsertUpdate(&Update{RunID: run.RunID, Revision: r.Revision(), Permittivity: vol})
	assert.Error(t, err, "revision is unique per run")

	ups, err := s.ListUpdates(run.RunID)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	lo, hi := vol.Range()
	assert.Equal(t, lo, ups[0].EpsMin)
	assert.Equal(t, hi, ups[0].EpsMax)
	assert.InDelta(t, vol.Mean(), ups[0].EpsMean, 1e-12)
	assert.Nil(t, ups[0].Permittivity)

	loaded, err := s.LoadPermittivity(id)
	require.NoError(t, err)
	assert.Equal(t, vol, loaded)

	_, err = r.EDistribution(ctx)
	require.NoError(t, err)
	_, err = r.CaptureEpsilon(ctx)
	require.NoError(t, err)
	snap := r.Snapshot()
	ids, err := s.InsertSnapshot(run.RunID, snap)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	recs, err := s.ListSnapshots(run.RunID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, KindField, recs[0].Kind)
	assert.Equal(t, snap.Field.E.Shape, recs[0].Shape)
	assert.Equal(t, KindEpsilon, recs[1].Kind)

	eps, err := s.LoadTensor(recs[1].SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, *snap.Epsilon, *eps)

	ids, err = s.InsertSnapshot(run.RunID, region.Snapshot{Revision: 9})
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, s.DeleteRun(run.RunID))
	ups, err = s.ListUpdates(run.RunID)
	require.NoError(t, err)
	assert.Empty(t, ups, "updates cascade with the run")
	_, err = s.LoadTensor(recs[0].SnapshotID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadPermittivity(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertUpdate_Rejects(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertUpdate(&Update{RunID: "x", Revision: 1})
	assert.Error(t, err)
	_, err = s.InsertUpdate(&Update{RunID: "x", Revision: 1, Permittivity: &density.Volume{NX: 2, NY: 2, NZ: 1}})
	assert.Error(t, err)

	// Foreign key: unknown run.
	_, err = s.InsertUpdate(&Update{RunID: "unknown", Revision: 1, Permittivity: density.NewVolume(1, 1, 1)})
	assert.Error(t, err)
}

func TestBlob(t *testing.T) {
	in := engine.NewTensor(2, 1)
	in.Set(complex(3, 4), 1, 0)
	blob, err := encodeBlob(in)
	require.NoError(t, err)

	var out engine.Tensor
	require.NoError(t, decodeBlob(blob, &out))
	assert.Equal(t, in, out)

	assert.Error(t, decodeBlob(nil, &out))
	assert.Error(t, decodeBlob([]byte("not gzip"), &out))
}

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSQLiteBusy(tt.err))
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	other := errors.New("constraint failed")
	assert.Equal(t, other, retryOnBusy(func() error { calls++; return other }))
	assert.Equal(t, 1, calls)
}

func TestBackup(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertRun(&Run{RegionName: "r", Variant: "2d", NX: 1, NY: 1, NZ: 1}))

	dst := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, s.Backup(dst))
	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	copied, err := Open(dst)
	require.NoError(t, err)
	defer copied.Close()
	runs, err := copied.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestAttachAdminRoutes(t *testing.T) {
	s := openTestStore(t)
	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	for _, path := range []string{"/debug/tailsql/", "/debug/backup"} {
		_, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, path, nil))
		assert.NotEmpty(t, pattern, path)
	}
}

func ledgerRequest(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLedgerRoutes(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	r := testRegion(t)
	run := RunFromRegion(r)
	require.NoError(t, s.InsertRun(run))

	design := mat.NewDense(r.XSize(), r.YSize(), nil)
	design.Set(1, 1, 1)
	require.NoError(t, r.Update(ctx, design))
	vol, err := r.Permittivity()
	require.NoError(t, err)
	updateID, err := s.InsertUpdate(&Update{RunID: run.RunID, Revision: r.Revision(), Permittivity: vol})
	require.NoError(t, err)
	_, err = r.CaptureEpsilon(ctx)
	require.NoError(t, err)
	snapIDs, err := s.InsertSnapshot(run.RunID, r.Snapshot())
	require.NoError(t, err)
	require.Len(t, snapIDs, 1)

	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	rec := ledgerRequest(mux, http.MethodGet, "/debug/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var runs []Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)

	rec = ledgerRequest(mux, http.MethodGet, "/debug/runs/"+run.RunID)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, r.Name(), got.RegionName)

	rec = ledgerRequest(mux, http.MethodGet, "/debug/runs/"+run.RunID+"/updates")
	require.Equal(t, http.StatusOK, rec.Code)
	var ups []Update
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ups))
	require.Len(t, ups, 1)
	assert.Equal(t, updateID, ups[0].UpdateID)

	rec = ledgerRequest(mux, http.MethodGet, "/debug/runs/"+run.RunID+"/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []SnapshotRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, KindEpsilon, recs[0].Kind)

	rec = ledgerRequest(mux, http.MethodGet, fmt.Sprintf("/debug/updates/%d", updateID))
	require.Equal(t, http.StatusOK, rec.Code)
	var vs volumeSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vs))
	assert.Equal(t, []int{vol.NX, vol.NY, vol.NZ}, vs.Shape)
	assert.InDelta(t, vol.Mean(), vs.EpsMean, 1e-12)

	rec = ledgerRequest(mux, http.MethodGet, fmt.Sprintf("/debug/snapshots/%d", snapIDs[0]))
	require.Equal(t, http.StatusOK, rec.Code)
	var ts tensorSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ts))
	assert.Equal(t, r.Snapshot().Epsilon.Shape, ts.Shape)
	assert.Positive(t, ts.MaxAbs)

	rec = ledgerRequest(mux, http.MethodGet, "/debug/migrations")
	require.Equal(t, http.StatusOK, rec.Code)
	var ms migrationState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	assert.Equal(t, uint(3), ms.Version)
	assert.False(t, ms.Dirty)

	rec = ledgerRequest(mux, http.MethodDelete, "/debug/runs/"+run.RunID)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ledgerRequest(mux, http.MethodGet, "/debug/runs/"+run.RunID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerRoutes_Errors(t *testing.T) {
	s := openTestStore(t)
	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"empty list", http.MethodGet, "/debug/runs", http.StatusOK},
		{"bad limit", http.MethodGet, "/debug/runs?limit=x", http.StatusBadRequest},
		{"unknown run", http.MethodGet, "/debug/runs/nope", http.StatusNotFound},
		{"unknown run updates", http.MethodGet, "/debug/runs/nope/updates", http.StatusNotFound},
		{"unknown run snapshots", http.MethodGet, "/debug/runs/nope/snapshots", http.StatusNotFound},
		{"bad update id", http.MethodGet, "/debug/updates/abc", http.StatusBadRequest},
		{"unknown update", http.MethodGet, "/debug/updates/99", http.StatusNotFound},
		{"unknown snapshot", http.MethodGet, "/debug/snapshots/99", http.StatusNotFound},
		{"post run", http.MethodPost, "/debug/runs/nope", http.StatusMethodNotAllowed},
		{"post list", http.MethodPost, "/debug/runs", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ledgerRequest(mux, tt.method, tt.path)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}
