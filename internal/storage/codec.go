package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"finmetrics/internal/core"
)

// RunColumns holds the JSON-encoded payload columns of a stored run. Both the
// SQLite and PostgreSQL backends persist runs in this shape.
type RunColumns struct {
	Periods   []byte
	KPIs      []byte
	Variances []byte
	Forecasts []byte
}

func EncodeRun(run core.AnalysisRun) (RunColumns, error) {
	var cols RunColumns
	var err error
	if cols.Periods, err = json.Marshal(nonNil(run.Periods)); err != nil {
		return cols, fmt.Errorf("encode periods: %w", err)
	}
	if cols.KPIs, err = json.Marshal(nonNil(run.KPIs)); err != nil {
		return cols, fmt.Errorf("encode kpis: %w", err)
	}
	if cols.Variances, err = json.Marshal(nonNil(run.Variances)); err != nil {
		return cols, fmt.Errorf("encode variances: %w", err)
	}
	forecasts := run.Forecasts
	if forecasts == nil {
		forecasts = map[string]core.ScenarioForecast{}
	}
	if cols.Forecasts, err = json.Marshal(forecasts); err != nil {
		return cols, fmt.Errorf("encode forecasts: %w", err)
	}
	return cols, nil
}

func DecodeRun(id, name string, createdAt time.Time, cols RunColumns) (core.AnalysisRun, error) {
	run := core.AnalysisRun{ID: id, Name: name, CreatedAt: createdAt}
	if err := json.Unmarshal(cols.Periods, &run.Periods); err != nil {
		return run, fmt.Errorf("decode periods: %w", err)
	}
	if err := json.Unmarshal(cols.KPIs, &run.KPIs); err != nil {
		return run, fmt.Errorf("decode kpis: %w", err)
	}
	if err := json.Unmarshal(cols.Variances, &run.Variances); err != nil {
		return run, fmt.Errorf("decode variances: %w", err)
	}
	if err := json.Unmarshal(cols.Forecasts, &run.Forecasts); err != nil {
		return run, fmt.Errorf("decode forecasts: %w", err)
	}
	return run, nil
}

func EncodeNarrative(n core.Narrative) ([]byte, error) {
	return json.Marshal(n)
}

func DecodeNarrative(data []byte) (core.Narrative, error) {
	var n core.Narrative
	err := json.Unmarshal(data, &n)
	return n, err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
