package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"finmetrics/internal/core"
)

// Store keeps analysis runs in process memory. It is safe for concurrent use
// and loses everything on restart.
type Store struct {
	mu   sync.RWMutex
	runs map[string]core.AnalysisRun
}

func New() *Store {
	return &Store{runs: make(map[string]core.AnalysisRun)}
}

func (s *Store) Create(_ context.Context, run core.AnalysisRun) error {
	if err := run.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = clone(run)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (core.AnalysisRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return core.AnalysisRun{}, core.ErrRunNotFound
	}
	return clone(run), nil
}

// List returns summaries newest first.
func (s *Store) List(_ context.Context, limit int) ([]core.RunSummary, error) {
	s.mu.RLock()
	out := make([]core.RunSummary, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return core.ErrRunNotFound
	}
	delete(s.runs, id)
	return nil
}

func (s *Store) AppendNarrative(_ context.Context, runID string, n core.Narrative) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return core.ErrRunNotFound
	}
	run.Narratives = append(append([]core.Narrative(nil), run.Narratives...), n)
	s.runs[runID] = run
	return nil
}

func (s *Store) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.runs {
		if r.CreatedAt.Before(cutoff) {
			delete(s.runs, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// clone copies the slices a caller could mutate. Nested values are immutable
// once a run is computed.
func clone(r core.AnalysisRun) core.AnalysisRun {
	r.Periods = append([]core.Period(nil), r.Periods...)
	r.KPIs = append([]core.IndicatorSet(nil), r.KPIs...)
	r.Variances = append([]core.VarianceRecord(nil), r.Variances...)
	r.Narratives = append([]core.Narrative(nil), r.Narratives...)
	forecasts := make(map[string]core.ScenarioForecast, len(r.Forecasts))
	for k, v := range r.Forecasts {
		forecasts[k] = v
	}
	r.Forecasts = forecasts
	return r
}
