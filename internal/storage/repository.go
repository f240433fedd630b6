package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"finmetrics/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialising here avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Create(ctx context.Context, run core.AnalysisRun) error {
	if err := run.Validate(); err != nil {
		return err
	}
	cols, err := EncodeRun(run)
	if err != nil {
		return err
	}

	err = r.queries.CreateRun(ctx, AnalysisRunRow{
		ID:            run.ID,
		Name:          run.Name,
		CreatedAt:     run.CreatedAt.UTC().UnixNano(),
		PeriodCount:   int64(len(run.Periods)),
		PeriodsJSON:   string(cols.Periods),
		KpisJSON:      string(cols.KPIs),
		VariancesJSON: string(cols.Variances),
		ForecastsJSON: string(cols.Forecasts),
	})
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	slog.InfoContext(ctx, "Analysis run saved to SQLite",
		"run_id", run.ID,
		"name", run.Name,
		"periods", len(run.Periods))
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.AnalysisRun, error) {
	row, err := r.queries.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.AnalysisRun{}, core.ErrRunNotFound
	}
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("get run %s: %w", id, err)
	}

	run, err := DecodeRun(row.ID, row.Name, time.Unix(0, row.CreatedAt).UTC(), RunColumns{
		Periods:   []byte(row.PeriodsJSON),
		KPIs:      []byte(row.KpisJSON),
		Variances: []byte(row.VariancesJSON),
		Forecasts: []byte(row.ForecastsJSON),
	})
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("decode run %s: %w", id, err)
	}

	narratives, err := r.queries.ListNarrativesByRun(ctx, id)
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("list narratives for run %s: %w", id, err)
	}
	for _, n := range narratives {
		decoded, err := DecodeNarrative([]byte(n.PayloadJSON))
		if err != nil {
			return core.AnalysisRun{}, fmt.Errorf("decode narrative %s: %w", n.ID, err)
		}
		run.Narratives = append(run.Narratives, decoded)
	}
	return run, nil
}

func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]core.RunSummary, error) {
	rows, err := r.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]core.RunSummary, len(rows))
	for i, row := range rows {
		out[i] = core.RunSummary{
			ID:             row.ID,
			Name:           row.Name,
			CreatedAt:      time.Unix(0, row.CreatedAt).UTC(),
			PeriodCount:    int(row.PeriodCount),
			NarrativeCount: int(row.NarrativeCount),
		}
	}
	return out, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteNarrativesByRun(ctx, id); err != nil {
			return fmt.Errorf("delete narratives: %w", err)
		}
		n, err := q.DeleteRun(ctx, id)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		if n == 0 {
			return core.ErrRunNotFound
		}
		slog.InfoContext(ctx, "Analysis run deleted from SQLite", "run_id", id)
		return nil
	})
}

func (r *SQLiteRepository) AppendNarrative(ctx context.Context, runID string, n core.Narrative) error {
	payload, err := EncodeNarrative(n)
	if err != nil {
		return fmt.Errorf("encode narrative: %w", err)
	}

	return r.inTx(ctx, func(q *Queries) error {
		exists, err := q.RunExists(ctx, runID)
		if err != nil {
			return fmt.Errorf("check run: %w", err)
		}
		if !exists {
			return core.ErrRunNotFound
		}
		return q.CreateNarrative(ctx, NarrativeRow{
			ID:          n.ID,
			RunID:       runID,
			Focus:       string(n.Focus),
			PayloadJSON: string(payload),
			GeneratedAt: n.GeneratedAt.UTC().UnixNano(),
		})
	})
}

func (r *SQLiteRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var purged int64
	err := r.inTx(ctx, func(q *Queries) error {
		ts := cutoff.UTC().UnixNano()
		if err := q.DeleteNarrativesBefore(ctx, ts); err != nil {
			return fmt.Errorf("purge narratives: %w", err)
		}
		n, err := q.DeleteRunsBefore(ctx, ts)
		if err != nil {
			return fmt.Errorf("purge runs: %w", err)
		}
		purged = n
		return nil
	})
	return int(purged), err
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
