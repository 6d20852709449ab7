package sqlite

import (
	"errors"
	"math/cmplx"
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/toporegion/internal/httputil"
)

// volumeSummary is the JSON body for a stored permittivity volume.
type volumeSummary struct {
	UpdateID int64   `json:"update_id"`
	Shape    []int   `json:"shape"`
	EpsMin   float64 `json:"eps_min"`
	EpsMax   float64 `json:"eps_max"`
	EpsMean  float64 `json:"eps_mean"`
}

// tensorSummary is the JSON body for a stored engine read.
type tensorSummary struct {
	SnapshotID int64   `json:"snapshot_id"`
	Shape      []int   `json:"shape"`
	Len        int     `json:"len"`
	MaxAbs     float64 `json:"max_abs"`
}

// migrationState is the JSON body for /debug/migrations.
type migrationState struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

// attachLedgerRoutes serves the read side of the ledger as JSON on debug.
func (s *Store) attachLedgerRoutes(debug *tsweb.DebugHandler) {
	debug.Handle("runs", "Design runs (JSON, ?limit=N)", http.HandlerFunc(s.handleListRuns))
	debug.HandleSilent("runs/{id}", http.HandlerFunc(s.handleRun))
	debug.HandleSilent("runs/{id}/updates", http.HandlerFunc(s.handleRunUpdates))
	debug.HandleSilent("runs/{id}/snapshots", http.HandlerFunc(s.handleRunSnapshots))
	debug.HandleSilent("updates/{id}", http.HandlerFunc(s.handleUpdate))
	debug.HandleSilent("snapshots/{id}", http.HandlerFunc(s.handleSnapshot))
	debug.Handle("migrations", "Ledger schema version (JSON)", http.HandlerFunc(s.handleMigrations))
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httputil.WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	logf("ledger request failed: %v", err)
	httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Store) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.ListRuns(limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if runs == nil {
		runs = []*Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Store) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch r.Method {
	case http.MethodGet:
		run, err := s.GetRun(id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		httputil.WriteJSONOK(w, run)
	case http.MethodDelete:
		if err := s.DeleteRun(id); err != nil {
			writeStoreError(w, err)
			return
		}
		logf("deleted run %s", id)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Store) handleRunUpdates(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.GetRun(id); err != nil {
		writeStoreError(w, err)
		return
	}
	ups, err := s.ListUpdates(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if ups == nil {
		ups = []*Update{}
	}
	httputil.WriteJSONOK(w, ups)
}

func (s *Store) handleRunSnapshots(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := r.PathValue("id")
	if _, err := s.GetRun(id); err != nil {
		writeStoreError(w, err)
		return
	}
	recs, err := s.ListSnapshots(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if recs == nil {
		recs = []*SnapshotRecord{}
	}
	httputil.WriteJSONOK(w, recs)
}

func (s *Store) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	vol, err := s.LoadPermittivity(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	lo, hi := vol.Range()
	httputil.WriteJSONOK(w, volumeSummary{
		UpdateID: id,
		Shape:    []int{vol.NX, vol.NY, vol.NZ},
		EpsMin:   lo,
		EpsMax:   hi,
		EpsMean:  vol.Mean(),
	})
}

func (s *Store) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.LoadTensor(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var maxAbs float64
	for _, v := range t.Data {
		maxAbs = max(maxAbs, cmplx.Abs(v))
	}
	httputil.WriteJSONOK(w, tensorSummary{
		SnapshotID: id,
		Shape:      t.Shape,
		Len:        t.Len(),
		MaxAbs:     maxAbs,
	})
}

func (s *Store) handleMigrations(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	v, dirty, err := s.MigrateVersion()
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteJSONOK(w, migrationState{Version: v, Dirty: dirty})
}
