//go:build integration

package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"finmetrics/internal/core"

	"github.com/google/uuid"
)

// Run with: DATABASE_URL=postgres://... go test -tags=integration ./internal/storage/postgres

func TestIntegration_PostgresRunLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	repo, err := Open(ctx, url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer repo.Close()

	id := uuid.NewString()
	run := core.AnalysisRun{
		ID:        id,
		Name:      "integration",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		Periods:   []core.Period{{Date: "2024-01", Revenue: 100, COGS: 40, OpEx: 20}},
	}
	if err := repo.Create(ctx, run); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.AppendNarrative(ctx, id, core.Narrative{ID: uuid.NewString(), Focus: core.FocusForecast, GeneratedAt: time.Now()}); err != nil {
		t.Fatalf("append narrative: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != run.Name || len(got.Periods) != 1 || len(got.Narratives) != 1 {
		t.Fatalf("unexpected run: %+v", got)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, core.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}
