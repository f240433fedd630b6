package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"finmetrics/internal/cache"
	"finmetrics/internal/core"
	applog "finmetrics/internal/log"
	"finmetrics/internal/metrics"
	"finmetrics/internal/narrative"
	"finmetrics/internal/ports"
)

const (
	DefaultRunName = "Financial Analysis"
	// MaxListedRuns caps ListRuns.
	MaxListedRuns = 100
)

// RunService computes analysis runs and manages their lifecycle across the
// store, the run cache and the event publisher.
type RunService struct {
	store     ports.RunStore
	publisher ports.EventPublisher
	cache     cache.Cache[core.AnalysisRun]
	composer  *narrative.Composer
	horizon   int
	loads     singleflight.Group
	now       func() time.Time

	// epoch advances on every write that invalidates a cached run. Loads
	// that started before a write never leave their copy in the cache.
	epoch atomic.Uint64
}

type Option func(*RunService)

// WithPublisher enables run events. A nil publisher disables them.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *RunService) { s.publisher = p }
}

func WithCache(c cache.Cache[core.AnalysisRun]) Option {
	return func(s *RunService) { s.cache = c }
}

func WithComposer(c *narrative.Composer) Option {
	return func(s *RunService) { s.composer = c }
}

// WithHorizon sets how many months forecasts project.
func WithHorizon(months int) Option {
	return func(s *RunService) { s.horizon = months }
}

func WithClock(now func() time.Time) Option {
	return func(s *RunService) { s.now = now }
}

func NewRunService(store ports.RunStore, opts ...Option) *RunService {
	s := &RunService{
		store:   store,
		horizon: metrics.DefaultHorizon,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs the metrics engine over periods without persisting anything.
// A non-positive horizon projects metrics.DefaultHorizon months. Results that
// overflow float64 are rejected with core.ErrOutOfRange.
func Analyze(periods []core.Period, horizon int) ([]core.IndicatorSet, []core.VarianceRecord, map[string]core.ScenarioForecast, error) {
	kpis, err := metrics.ComputeIndicators(periods)
	if err != nil {
		return nil, nil, nil, err
	}
	variances := []core.VarianceRecord{}
	if n := len(kpis); n >= 2 {
		variances = metrics.AnalyzeVariance(kpis[n-1], kpis[n-2])
	}
	for _, v := range variances {
		if err := v.Validate(); err != nil {
			return nil, nil, nil, err
		}
	}
	if horizon <= 0 {
		horizon = metrics.DefaultHorizon
	}
	forecasts := metrics.Forecast(kpis, horizon)
	for _, name := range metrics.ScenarioNames() {
		if f, ok := forecasts[name]; ok {
			if err := f.Validate(); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	return kpis, variances, forecasts, nil
}

// CreateRun computes and stores a new run. A blank name becomes
// DefaultRunName.
func (s *RunService) CreateRun(ctx context.Context, name string, periods []core.Period) (core.AnalysisRun, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultRunName
	}
	if len(periods) == 0 {
		return core.AnalysisRun{}, core.ErrEmptyPeriods
	}

	kpis, variances, forecasts, err := Analyze(periods, s.horizon)
	if err != nil {
		return core.AnalysisRun{}, fmt.Errorf("compute indicators: %w", err)
	}

	run := core.AnalysisRun{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  s.now().UTC(),
		Periods:    periods,
		KPIs:       kpis,
		Variances:  variances,
		Forecasts:  forecasts,
		Narratives: []core.Narrative{},
	}

	if err := s.store.Create(ctx, run); err != nil {
		return core.AnalysisRun{}, fmt.Errorf("save run: %w", err)
	}
	s.cacheSet(ctx, run)
	s.publish(ctx, ports.EventRunCreated, run.ID, run.Name)

	latest, _ := run.Latest()
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRunCreated(ctx, run.ID, run.Name, len(periods), latest.Period)
	return run, nil
}

// LoadSample replaces any earlier sample run with a fresh one.
func (s *RunService) LoadSample(ctx context.Context) (core.AnalysisRun, error) {
	if err := s.deleteByName(ctx, SampleRunName); err != nil {
		return core.AnalysisRun{}, err
	}
	return s.CreateRun(ctx, SampleRunName, SamplePeriods())
}

func (s *RunService) deleteByName(ctx context.Context, name string) error {
	runs, err := s.store.List(ctx, 10*MaxListedRuns)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	for _, r := range runs {
		if r.Name != name {
			continue
		}
		if err := s.DeleteRun(ctx, r.ID); err != nil && !errors.Is(err, core.ErrRunNotFound) {
			return err
		}
	}
	return nil
}

func (s *RunService) ListRuns(ctx context.Context) ([]core.RunSummary, error) {
	runs, err := s.store.List(ctx, MaxListedRuns)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if runs == nil {
		runs = []core.RunSummary{}
	}
	return runs, nil
}

// GetRun reads through the cache. Concurrent misses for the same id share
// one store read.
func (s *RunService) GetRun(ctx context.Context, id string) (core.AnalysisRun, error) {
	if s.cache != nil {
		if run, ok := s.cache.Get(ctx, id); ok {
			return run, nil
		}
	}

	v, err, _ := s.loads.Do(id, func() (any, error) {
		epoch := s.epoch.Load()
		run, err := s.store.Get(ctx, id)
		if err != nil {
			return core.AnalysisRun{}, err
		}
		s.cacheSet(ctx, run)
		if s.epoch.Load() != epoch {
			s.cacheDelete(ctx, id)
		}
		return run, nil
	})
	if err != nil {
		if errors.Is(err, core.ErrRunNotFound) {
			return core.AnalysisRun{}, err
		}
		return core.AnalysisRun{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return v.(core.AnalysisRun), nil
}

func (s *RunService) DeleteRun(ctx context.Context, id string) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.publish(ctx, ports.EventRunDeleted, id, run.Name)
	slog.InfoContext(ctx, "Analysis run deleted", "run_id", id)
	return nil
}

// KPIs returns the run's indicator sets, only those of period when given.
func (s *RunService) KPIs(ctx context.Context, id, period string) ([]core.IndicatorSet, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	period = strings.TrimSpace(period)
	if period == "" {
		return nonNil(run.KPIs), nil
	}
	out := []core.IndicatorSet{}
	for _, k := range run.KPIs {
		if k.Period == period {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *RunService) Variances(ctx context.Context, id string) ([]core.VarianceRecord, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return nonNil(run.Variances), nil
}

// Forecasts returns the single named scenario when it exists, otherwise
// every scenario of the run.
func (s *RunService) Forecasts(ctx context.Context, id, scenario string) (map[string]core.ScenarioForecast, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if f, ok := run.Forecasts[scenario]; ok {
		return map[string]core.ScenarioForecast{scenario: f}, nil
	}
	if run.Forecasts == nil {
		return map[string]core.ScenarioForecast{}, nil
	}
	return run.Forecasts, nil
}

// GenerateNarrative composes a narrative for the run and appends it to the
// run's history.
func (s *RunService) GenerateNarrative(ctx context.Context, id string, req core.NarrativeRequest) (core.Narrative, error) {
	if !s.composer.Available() {
		return core.Narrative{}, narrative.ErrGeneratorUnavailable
	}
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return core.Narrative{}, err
	}

	n, err := s.composer.Compose(ctx, run, req)
	if err != nil {
		return core.Narrative{}, err
	}
	if err := s.store.AppendNarrative(ctx, id, n); err != nil {
		return core.Narrative{}, fmt.Errorf("save narrative: %w", err)
	}
	s.invalidate(ctx, id)

	applog.NewStructuredLogger(applog.FromContext(ctx)).LogNarrativeGenerated(ctx, id, n.ID, string(n.Focus))
	return n, nil
}

func (s *RunService) Narratives(ctx context.Context, id string) ([]core.Narrative, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return nonNil(run.Narratives), nil
}

// PurgeOlderThan deletes runs created before cutoff. Cached copies of
// purged runs expire with the cache TTL.
func (s *RunService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := s.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs: %w", err)
	}
	return n, nil
}

func (s *RunService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *RunService) publish(ctx context.Context, eventType, id, name string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRunEvent(ctx, eventType, id, name); err != nil {
		slog.WarnContext(ctx, "Failed to publish run event",
			"type", eventType,
			"run_id", id,
			"error", err)
	}
}

func (s *RunService) cacheSet(ctx context.Context, run core.AnalysisRun) {
	if s.cache != nil {
		s.cache.Set(ctx, run.ID, run)
	}
}

// invalidate must run after the store write it follows. Loads in flight
// see the epoch change and drop what they cached; later callers start a
// fresh load instead of joining one that may predate the write.
func (s *RunService) invalidate(ctx context.Context, id string) {
	s.epoch.Add(1)
	s.loads.Forget(id)
	s.cacheDelete(ctx, id)
}

func (s *RunService) cacheDelete(ctx context.Context, id string) {
	if s.cache != nil {
		s.cache.Delete(ctx, id)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
