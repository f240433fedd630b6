package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"finmetrics/internal/core"
	"finmetrics/internal/metrics"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func computedRun(t *testing.T, id string, created time.Time) core.AnalysisRun {
	t.Helper()
	periods := []core.Period{
		{Date: "2024-11", Revenue: 2320000, COGS: 1392000, OpEx: 422000, Cash: core.Some(3800000.0)},
		{Date: "2024-12", Revenue: 2450000, COGS: 1470000, OpEx: 425000, Employees: core.Some(51)},
	}
	kpis, err := metrics.ComputeIndicators(periods)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return core.AnalysisRun{
		ID:        id,
		Name:      "Run " + id,
		CreatedAt: created,
		Periods:   periods,
		KPIs:      kpis,
		Variances: metrics.AnalyzeVariance(kpis[1], kpis[0]),
		Forecasts: metrics.Forecast(kpis, 3),
	}
}

func TestSQLiteRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created := time.Date(2024, 12, 31, 10, 0, 0, 123, time.UTC)
	run := computedRun(t, "r1", created)

	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(created) || got.Name != "Run r1" {
		t.Fatalf("unexpected header: %+v", got)
	}
	if len(got.Periods) != 2 || len(got.KPIs) != 2 || len(got.Variances) != 9 || len(got.Forecasts) != 4 {
		t.Fatalf("payload sizes: periods=%d kpis=%d variances=%d forecasts=%d",
			len(got.Periods), len(got.KPIs), len(got.Variances), len(got.Forecasts))
	}
	if v, ok := got.Periods[0].Cash.Get(); !ok || v != 3800000 {
		t.Fatalf("optional cash lost: %v %v", v, ok)
	}
	if got.Periods[0].Employees.IsPresent() {
		t.Fatalf("absent employees became present")
	}
	if g, ok := got.KPIs[1].MoMGrowth.Get(); !ok || g != run.KPIs[1].MoMGrowth.OrElse(-1) {
		t.Fatalf("mom growth lost: %v", g)
	}
	if len(got.Forecasts[core.ScenarioBase].Periods) != 3 {
		t.Fatalf("forecast periods lost")
	}
}

func TestSQLiteRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Get(ctx, "nope"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("get: %v", err)
	}
	if err := repo.Delete(ctx, "nope"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.AppendNarrative(ctx, "nope", core.Narrative{ID: "n"}); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("append narrative: %v", err)
	}
}

func TestSQLiteRepositoryNarrativesListAndPurge(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Now().UTC()

	if err := repo.Create(ctx, computedRun(t, "old", now.Add(-72*time.Hour))); err != nil {
		t.Fatalf("create old: %v", err)
	}
	if err := repo.Create(ctx, computedRun(t, "new", now)); err != nil {
		t.Fatalf("create new: %v", err)
	}

	n := core.Narrative{
		ID:          "n1",
		Focus:       core.FocusVariance,
		Summary:     "Revenue grew.",
		KeyInsights: []string{"a", "b"},
		GeneratedAt: now,
	}
	if err := repo.AppendNarrative(ctx, "new", n); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendNarrative(ctx, "old", core.Narrative{ID: "n0", GeneratedAt: now}); err != nil {
		t.Fatalf("append old: %v", err)
	}

	list, err := repo.List(ctx, 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[0].NarrativeCount != 1 || list[0].PeriodCount != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}

	got, _ := repo.Get(ctx, "new")
	if len(got.Narratives) != 1 || got.Narratives[0].Focus != core.FocusVariance || len(got.Narratives[0].KeyInsights) != 2 {
		t.Fatalf("narratives: %+v", got.Narratives)
	}

	purged, err := repo.PurgeOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil || purged != 1 {
		t.Fatalf("purge: %d %v", purged, err)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("old run survived purge")
	}

	if err := repo.Delete(ctx, "new"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = repo.List(ctx, 100)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %+v", list)
	}
}
