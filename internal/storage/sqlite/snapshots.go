package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/toporegion/internal/engine"
	"github.com/banshee-data/toporegion/internal/region"
)

// Snapshot kinds.
const (
	KindField   = "field"
	KindEpsilon = "epsilon"
)

// SnapshotRecord describes a stored engine read.
type SnapshotRecord struct {
	SnapshotID int64  `json:"snapshot_id"`
	RunID      string `json:"run_id"`
	Revision   int    `json:"revision"`
	Kind       string `json:"kind"`
	Shape      []int  `json:"shape"`
	CreatedAt  int64  `json:"created_at"`
}

// InsertSnapshot stores whichever of the field and permittivity reads the
// region snapshot holds. It returns the IDs of the rows written.
func (s *Store) InsertSnapshot(runID string, snap region.Snapshot) ([]int64, error) {
	var ids []int64
	if snap.Field != nil {
		id, err := s.insertTensor(runID, snap.Revision, KindField, snap.Field.E)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	if snap.Epsilon != nil {
		id, err := s.insertTensor(runID, snap.Revision, KindEpsilon, *snap.Epsilon)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		logf("run %s revision %d: stored %d snapshot(s)", runID, snap.Revision, len(ids))
	}
	return ids, nil
}

func (s *Store) insertTensor(runID string, revision int, kind string, t engine.Tensor) (int64, error) {
	shape, err := json.Marshal(t.Shape)
	if err != nil {
		return 0, err
	}
	blob, err := encodeBlob(t)
	if err != nil {
		return 0, fmt.Errorf("encode %s tensor: %w", kind, err)
	}
	var id int64
	err = retryOnBusy(func() error {
		res, err := s.db.Exec(`
			INSERT INTO region_snapshots (run_id, revision, kind, shape_json, data_blob, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, revision, kind, string(shape), blob, time.Now().UnixNano())
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert %s snapshot: %w", kind, err)
	}
	return id, nil
}

// ListSnapshots returns the snapshot metadata of a run ordered by revision.
func (s *Store) ListSnapshots(runID string) ([]*SnapshotRecord, error) {
	rows, err := s.db.Query(`
		SELECT snapshot_id, run_id, revision, kind, shape_json, created_at
		FROM region_snapshots
		WHERE run_id = ?
		ORDER BY revision, snapshot_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var shape string
		if err := rows.Scan(&r.SnapshotID, &r.RunID, &r.Revision, &r.Kind, &shape, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(shape), &r.Shape); err != nil {
			return nil, fmt.Errorf("snapshot %d shape: %w", r.SnapshotID, err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// LoadTensor returns the array stored with a snapshot.
func (s *Store) LoadTensor(snapshotID int64) (*engine.Tensor, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT data_blob FROM region_snapshots WHERE snapshot_id = ?`, snapshotID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: snapshot %d", ErrNotFound, snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	var t engine.Tensor
	if err := decodeBlob(blob, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
