// Package store archives run results in a local SQLite database. Each run
// gets a UUID and a few indexed summary columns for listing; the full result
// record is kept as a JSON blob so nothing is lost between schema versions.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/thevenin-xyz/go-thevenin/results"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	cell_name  TEXT,
	status     TEXT,
	steps      INTEGER,
	final_time REAL,
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
`

// Store is a handle to one archive database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing archive schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunInfo is one row of the archive listing.
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	CellName  string
	Status    string
	Steps     int
	FinalTime float64
}

// SaveRun archives a run record and returns its generated ID.
func (s *Store) SaveRun(r *results.Results) (string, error) {
	blob, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO runs (id, created_at, cell_name, status, steps, final_time, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		r.Metadata.Timestamp.UTC().Format(time.RFC3339Nano),
		r.Cell.Name,
		r.Metadata.Status,
		len(r.Protocol),
		r.Results.Summary.FinalTime,
		string(blob),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// LoadRun retrieves the full record for one run.
func (s *Store) LoadRun(id string) (*results.Results, error) {
	var blob string
	err := s.db.QueryRow(`SELECT record FROM runs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run: %w", err)
	}

	var r results.Results
	if err := json.Unmarshal([]byte(blob), &r); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return &r, nil
}

// ListRuns returns the archive listing, newest first.
func (s *Store) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, cell_name, status, steps, final_time
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var infos []RunInfo
	for rows.Next() {
		var info RunInfo
		var created string
		if err := rows.Scan(&info.ID, &created, &info.CellName, &info.Status,
			&info.Steps, &info.FinalTime); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			info.CreatedAt = ts
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteRun removes one run from the archive.
func (s *Store) DeleteRun(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}
