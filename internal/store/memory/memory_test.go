package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"finmetrics/internal/core"
)

func testRun(id string, created time.Time) core.AnalysisRun {
	return core.AnalysisRun{
		ID:        id,
		Name:      "run " + id,
		CreatedAt: created,
		Periods:   []core.Period{{Date: "2024-01", Revenue: 100, COGS: 40, OpEx: 20}},
	}
}

func TestMemoryStoreCreateGetList(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := s.Create(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if err := s.Create(ctx, testRun("a", base)); err == nil {
		t.Fatalf("duplicate id must fail")
	}
	if err := s.Create(ctx, core.AnalysisRun{ID: "x", Name: "empty"}); !errors.Is(err, core.ErrEmptyPeriods) {
		t.Fatalf("expected ErrEmptyPeriods, got %v", err)
	}

	list, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[0].PeriodCount != 1 {
		t.Fatalf("summary period count = %d", list[0].PeriodCount)
	}

	got, err := s.Get(ctx, "b")
	if err != nil || got.Name != "run b" {
		t.Fatalf("get: %+v %v", got, err)
	}
	got.Periods[0].Revenue = 999
	again, _ := s.Get(ctx, "b")
	if again.Periods[0].Revenue != 100 {
		t.Fatalf("stored run was mutated through a returned copy")
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestMemoryStoreNarrativesAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Create(ctx, testRun("a", time.Now())); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.AppendNarrative(ctx, "a", core.Narrative{ID: "n1", Summary: "ok"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendNarrative(ctx, "missing", core.Narrative{}); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	run, _ := s.Get(ctx, "a")
	if len(run.Narratives) != 1 || run.Narratives[0].ID != "n1" {
		t.Fatalf("unexpected narratives: %+v", run.Narratives)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "a"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMemoryStorePurge(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	_ = s.Create(ctx, testRun("old", now.Add(-48*time.Hour)))
	_ = s.Create(ctx, testRun("new", now))

	n, err := s.PurgeOlderThan(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
	if _, err := s.Get(ctx, "old"); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("old run should be gone")
	}
	if _, err := s.Get(ctx, "new"); err != nil {
		t.Fatalf("new run should remain: %v", err)
	}
}
