package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/toporegion/internal/region"
)

// ErrNotFound is returned when a run, update or snapshot does not exist.
var ErrNotFound = errors.New("ledger: record not found")

// Run is one design-region session.
type Run struct {
	RunID        string          `json:"run_id"`
	RegionName   string          `json:"region_name"`
	Variant      string          `json:"variant"`
	NX           int             `json:"nx"`
	NY           int             `json:"ny"`
	NZ           int             `json:"nz"`
	LowerEpsilon float64         `json:"lower_epsilon"`
	UpperEpsilon float64         `json:"upper_epsilon"`
	ConfigJSON   json.RawMessage `json:"config_json,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    int64           `json:"created_at"`
}

// RunFromRegion fills a Run from a built region.
func RunFromRegion(r *region.Region) *Run {
	b := r.Bounds()
	return &Run{
		RegionName:   r.Name(),
		Variant:      r.Variant().String(),
		NX:           r.XSize(),
		NY:           r.YSize(),
		NZ:           r.ZSize(),
		LowerEpsilon: b.LowerEpsilon,
		UpperEpsilon: b.HigherEpsilon,
	}
}

// InsertRun persists a run. If RunID is empty, a UUID is generated.
func (s *Store) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixNano()
	}

	var cfg interface{}
	if len(run.ConfigJSON) > 0 {
		cfg = string(run.ConfigJSON)
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO region_runs (
				run_id, region_name, variant, nx, ny, nz,
				lower_epsilon, upper_epsilon, config_json, notes, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.RegionName, run.Variant, run.NX, run.NY, run.NZ,
			run.LowerEpsilon, run.UpperEpsilon, cfg, run.Notes, run.CreatedAt,
		)
		return err
	})
}

const runColumns = `run_id, region_name, variant, nx, ny, nz,
	lower_epsilon, upper_epsilon, config_json, notes, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var cfg, notes sql.NullString
	err := row.Scan(&r.RunID, &r.RegionName, &r.Variant, &r.NX, &r.NY, &r.NZ,
		&r.LowerEpsilon, &r.UpperEpsilon, &cfg, &notes, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if cfg.Valid {
		r.ConfigJSON = json.RawMessage(cfg.String)
	}
	r.Notes = notes.String
	return &r, nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM region_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns runs, newest first. limit <= 0 means no limit.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM region_runs
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run with its updates and snapshots.
func (s *Store) DeleteRun(runID string) error {
	return retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM region_runs WHERE run_id = ?`, runID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: run %s", ErrNotFound, runID)
		}
		return nil
	})
}
