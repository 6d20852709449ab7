package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/toporegion/internal/region/density"
)

// Update is one applied design: the permittivity volume pushed to the engine
// at a given revision, with summary statistics.
type Update struct {
	UpdateID     int64           `json:"update_id"`
	RunID        string          `json:"run_id"`
	Revision     int             `json:"revision"`
	EpsMin       float64         `json:"eps_min"`
	EpsMax       float64         `json:"eps_max"`
	EpsMean      float64         `json:"eps_mean"`
	Permittivity *density.Volume `json:"-"`
	CreatedAt    int64           `json:"created_at"`
}

// InsertUpdate persists an update and returns its ID. The statistics are
// computed from Permittivity.
func (s *Store) InsertUpdate(u *Update) (int64, error) {
	if u.Permittivity == nil {
		return 0, fmt.Errorf("update for run %s revision %d has no permittivity", u.RunID, u.Revision)
	}
	if err := u.Permittivity.Validate(); err != nil {
		return 0, err
	}
	blob, err := encodeBlob(u.Permittivity)
	if err != nil {
		return 0, fmt.Errorf("encode permittivity: %w", err)
	}
	u.EpsMin, u.EpsMax = u.Permittivity.Range()
	u.EpsMean = u.Permittivity.Mean()
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().UnixNano()
	}

	err = retryOnBusy(func() error {
		res, err := s.db.Exec(`
			INSERT INTO region_updates (run_id, revision, eps_min, eps_max, eps_mean, eps_blob, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.RunID, u.Revision, u.EpsMin, u.EpsMax, u.EpsMean, blob, u.CreatedAt)
		if err != nil {
			return err
		}
		u.UpdateID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert update: %w", err)
	}
	return u.UpdateID, nil
}

// ListUpdates returns the updates of a run in revision order, without the
// permittivity payload.
func (s *Store) ListUpdates(runID string) ([]*Update, error) {
	rows, err := s.db.Query(`
		SELECT update_id, run_id, revision, eps_min, eps_max, eps_mean, created_at
		FROM region_updates
		WHERE run_id = ?
		ORDER BY revision`, runID)
	if err != nil {
		return nil, fmt.Errorf("query updates: %w", err)
	}
	defer rows.Close()

	var out []*Update
	for rows.Next() {
		var u Update
		if err := rows.Scan(&u.UpdateID, &u.RunID, &u.Revision, &u.EpsMin, &u.EpsMax, &u.EpsMean, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// LoadPermittivity returns the volume stored with an update.
func (s *Store) LoadPermittivity(updateID int64) (*density.Volume, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT eps_blob FROM region_updates WHERE update_id = ?`, updateID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: update %d", ErrNotFound, updateID)
	}
	if err != nil {
		return nil, fmt.Errorf("query update: %w", err)
	}
	var v density.Volume
	if err := decodeBlob(blob, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
