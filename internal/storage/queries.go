package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AnalysisRunRow struct {
	ID            string
	Name          string
	CreatedAt     int64
	PeriodCount   int64
	PeriodsJSON   string
	KpisJSON      string
	VariancesJSON string
	ForecastsJSON string
}

type NarrativeRow struct {
	ID          string
	RunID       string
	Focus       string
	PayloadJSON string
	GeneratedAt int64
}

type RunSummaryRow struct {
	ID             string
	Name           string
	CreatedAt      int64
	PeriodCount    int64
	NarrativeCount int64
}

const createRun = `
INSERT INTO analysis_runs (id, name, created_at, period_count, periods_json, kpis_json, variances_json, forecasts_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateRun(ctx context.Context, arg AnalysisRunRow) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.Name,
		arg.CreatedAt,
		arg.PeriodCount,
		arg.PeriodsJSON,
		arg.KpisJSON,
		arg.VariancesJSON,
		arg.ForecastsJSON,
	)
	return err
}

const getRun = `
SELECT id, name, created_at, period_count, periods_json, kpis_json, variances_json, forecasts_json
FROM analysis_runs
WHERE id = ?
`

func (q *Queries) GetRun(ctx context.Context, id string) (AnalysisRunRow, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i AnalysisRunRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.CreatedAt,
		&i.PeriodCount,
		&i.PeriodsJSON,
		&i.KpisJSON,
		&i.VariancesJSON,
		&i.ForecastsJSON,
	)
	return i, err
}

const listRuns = `
SELECT r.id, r.name, r.created_at, r.period_count,
       (SELECT COUNT(*) FROM narratives n WHERE n.run_id = r.id) AS narrative_count
FROM analysis_runs r
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]RunSummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunSummaryRow
	for rows.Next() {
		var i RunSummaryRow
		if err := rows.Scan(&i.ID, &i.Name, &i.CreatedAt, &i.PeriodCount, &i.NarrativeCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const runExists = `SELECT EXISTS (SELECT 1 FROM analysis_runs WHERE id = ?)`

func (q *Queries) RunExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, runExists, id).Scan(&exists)
	return exists, err
}

const deleteRun = `DELETE FROM analysis_runs WHERE id = ?`

func (q *Queries) DeleteRun(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRun, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteNarrativesByRun = `DELETE FROM narratives WHERE run_id = ?`

func (q *Queries) DeleteNarrativesByRun(ctx context.Context, runID string) error {
	_, err := q.db.ExecContext(ctx, deleteNarrativesByRun, runID)
	return err
}

const createNarrative = `
INSERT INTO narratives (id, run_id, focus, payload_json, generated_at)
VALUES (?, ?, ?, ?, ?)
`

func (q *Queries) CreateNarrative(ctx context.Context, arg NarrativeRow) error {
	_, err := q.db.ExecContext(ctx, createNarrative,
		arg.ID,
		arg.RunID,
		arg.Focus,
		arg.PayloadJSON,
		arg.GeneratedAt,
	)
	return err
}

const listNarrativesByRun = `
SELECT id, run_id, focus, payload_json, generated_at
FROM narratives
WHERE run_id = ?
ORDER BY generated_at ASC, id ASC
`

func (q *Queries) ListNarrativesByRun(ctx context.Context, runID string) ([]NarrativeRow, error) {
	rows, err := q.db.QueryContext(ctx, listNarrativesByRun, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []NarrativeRow
	for rows.Next() {
		var i NarrativeRow
		if err := rows.Scan(&i.ID, &i.RunID, &i.Focus, &i.PayloadJSON, &i.GeneratedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteNarrativesBefore = `
DELETE FROM narratives
WHERE run_id IN (SELECT id FROM analysis_runs WHERE created_at < ?)
`

func (q *Queries) DeleteNarrativesBefore(ctx context.Context, cutoff int64) error {
	_, err := q.db.ExecContext(ctx, deleteNarrativesBefore, cutoff)
	return err
}

const deleteRunsBefore = `DELETE FROM analysis_runs WHERE created_at < ?`

func (q *Queries) DeleteRunsBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRunsBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
