// Package postgres stores analysis runs in PostgreSQL with JSONB payload
// columns.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"finmetrics/internal/core"
	"finmetrics/internal/storage"
)

type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL, verifies the connection and creates the
// schema if needed.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &Repository{pool: pool}
	if err := repo.migrate(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}

	slog.InfoContext(ctx, "Connected to PostgreSQL", "database", poolConfig.ConnConfig.Database)
	return repo, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		period_count INTEGER NOT NULL DEFAULT 0,
		periods JSONB NOT NULL,
		kpis JSONB NOT NULL,
		variances JSONB NOT NULL,
		forecasts JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at)`,
	`CREATE TABLE IF NOT EXISTS narratives (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
		focus TEXT NOT NULL,
		payload JSONB NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_narratives_run_id ON narratives(run_id, generated_at)`,
}

func (r *Repository) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Create(ctx context.Context, run core.AnalysisRun) error {
	if err := run.Validate(); err != nil {
		return err
	}
	cols, err := storage.EncodeRun(run)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO analysis_runs (id, name, created_at, period_count, periods, kpis, variances, forecasts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Name, run.CreatedAt.UTC(), len(run.Periods),
		cols.Periods, cols.KPIs, cols.Variances, cols.Forecasts,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	slog.InfoContext(ctx, "Analysis run saved to PostgreSQL", "run_id", run.ID, "name", run.Name)
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.AnalysisRun, error) {
	var (
		name      string
		createdAt time.Time
		cols      storage.RunColumns
	)
	err := r.pool.QueryRow(ctx, `
		SELECT name, created_at, periods, kpis, variances, forecasts
		FROM analysis_runs WHERE id = $1`, id,
	).Scan(&name, &createdAt, &cols.Periods, &cols.KPIs, &cols.Variances, &cols.Forecasts)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.AnalysisRun{}, core.ErrRunNotFound
	}
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("get run %s: %w", id, err)
	}

	run, err := storage.DecodeRun(id, name, createdAt.UTC(), cols)
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("decode run %s: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT payload FROM narratives WHERE run_id = $1 ORDER BY generated_at, id`, id)
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("list narratives: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return core.AnalysisRun{}, fmt.Errorf("scan narrative: %w", err)
		}
		n, err := storage.DecodeNarrative(payload)
		if err != nil {
			return core.AnalysisRun{}, fmt.Errorf("decode narrative: %w", err)
		}
		run.Narratives = append(run.Narratives, n)
	}
	return run, rows.Err()
}

func (r *Repository) List(ctx context.Context, limit int) ([]core.RunSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.created_at, r.period_count,
		       (SELECT COUNT(*) FROM narratives n WHERE n.run_id = r.id)
		FROM analysis_runs r
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []core.RunSummary
	for rows.Next() {
		var s core.RunSummary
		var narratives int64
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt, &s.PeriodCount, &narratives); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		s.NarrativeCount = int(narratives)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

func (r *Repository) AppendNarrative(ctx context.Context, runID string, n core.Narrative) error {
	payload, err := storage.EncodeNarrative(n)
	if err != nil {
		return fmt.Errorf("encode narrative: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO narratives (id, run_id, focus, payload, generated_at)
		SELECT $1, id, $3, $4, $5 FROM analysis_runs WHERE id = $2`,
		n.ID, runID, string(n.Focus), payload, n.GeneratedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert narrative: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrRunNotFound
	}
	return nil
}

func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
