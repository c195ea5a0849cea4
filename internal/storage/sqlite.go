package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/claude/stride/internal/models"

	_ "modernc.org/sqlite"
)

// SQLite is the default local store: a single-file database holding run
// history and the active-snapshot slot.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path. ":memory:" is
// supported for tests.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		type         TEXT NOT NULL,
		start_time   INTEGER NOT NULL,
		duration_sec INTEGER NOT NULL,
		distance_km  REAL NOT NULL,
		calories     INTEGER NOT NULL,
		steps        INTEGER NOT NULL DEFAULT 0,
		avg_pace     TEXT NOT NULL,
		path         TEXT NOT NULL,
		created_at   TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	// Single-slot table: the CHECK keeps it single-row by construction.
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS active_snapshot (
		slot       INTEGER PRIMARY KEY CHECK (slot = 1),
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating snapshot table: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveActiveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM active_snapshot WHERE slot = 1`)
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO active_snapshot (slot, payload, updated_at)
		 VALUES (1, ?, CURRENT_TIMESTAMP)`, string(payload))
	return err
}

func (s *SQLite) LoadActiveSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM active_snapshot WHERE slot = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		// Corrupt slot: fail open to a clean idle state.
		return nil, nil
	}
	if err := snap.Validate(); err != nil {
		return nil, nil
	}
	return &snap, nil
}

func (s *SQLite) AppendHistory(ctx context.Context, run models.RunSession) error {
	path, err := json.Marshal(run.Path)
	if err != nil {
		return fmt.Errorf("encoding path: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO runs (id, type, start_time, duration_sec, distance_km, calories, steps, avg_pace, path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Type, run.StartTime, run.Duration, run.Distance, run.Calories, run.Steps, run.AvgPace, string(path))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*models.RunSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, start_time, duration_sec, distance_km, calories, steps, avg_pace, path
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

func (s *SQLite) DeleteHistory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	return err
}

func (s *SQLite) LoadHistory(ctx context.Context) ([]models.RunSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, start_time, duration_sec, distance_km, calories, steps, avg_pace, path
		 FROM runs ORDER BY start_time DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var result []models.RunSession
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		result = append(result, *run)
	}
	return result, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.RunSession, error) {
	var run models.RunSession
	var path string
	if err := row.Scan(&run.ID, &run.Type, &run.StartTime, &run.Duration,
		&run.Distance, &run.Calories, &run.Steps, &run.AvgPace, &path); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(path), &run.Path); err != nil {
		// A run with an unreadable path is still a valid summary row.
		run.Path = nil
	}
	return &run, nil
}
