package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/stride/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is an alternative store for deployments that already run a
// database server. Schema is managed by migrations.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// OpenPostgres creates a connection pool and verifies connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (p *Postgres) SaveActiveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		_, err := p.pool.Exec(ctx, `DELETE FROM active_snapshot WHERE slot = 1`)
		return err
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO active_snapshot (slot, payload, updated_at)
		 VALUES (1, $1, now())
		 ON CONFLICT (slot) DO UPDATE SET payload = $1, updated_at = now()`,
		string(payload))
	return err
}

func (p *Postgres) LoadActiveSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var payload string
	err := p.pool.QueryRow(ctx,
		`SELECT payload FROM active_snapshot WHERE slot = 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, nil
	}
	if err := snap.Validate(); err != nil {
		return nil, nil
	}
	return &snap, nil
}

func (p *Postgres) AppendHistory(ctx context.Context, run models.RunSession) error {
	path, err := json.Marshal(run.Path)
	if err != nil {
		return fmt.Errorf("encoding path: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO runs (id, type, start_time, duration_sec, distance_km, calories, steps, avg_pace, path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT DO NOTHING`,
		run.ID, run.Type, run.StartTime, run.Duration, run.Distance, run.Calories, run.Steps, run.AvgPace, string(path))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (*models.RunSession, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, type, start_time, duration_sec, distance_km, calories, steps, avg_pace, path
		 FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return run, nil
}

func (p *Postgres) DeleteHistory(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM runs WHERE id = $1`, id)
	return err
}

func (p *Postgres) LoadHistory(ctx context.Context) ([]models.RunSession, error) {
	rows, err := p.pool.Query(ctx,
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

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
