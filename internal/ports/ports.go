package ports

import (
	"context"
	"time"

	"finmetrics/internal/core"
)

// Event types published when the set of stored runs changes.
const (
	EventRunCreated = "run.created"
	EventRunDeleted = "run.deleted"
)

// Ports for outbound adapters.
type (
	RunWriter interface {
		Create(ctx context.Context, run core.AnalysisRun) error
		// Delete removes a run and its narratives. Deleting a missing run
		// returns core.ErrRunNotFound.
		Delete(ctx context.Context, id string) error
		AppendNarrative(ctx context.Context, runID string, n core.Narrative) error
	}

	RunReader interface {
		// Get returns the full run including its narratives.
		Get(ctx context.Context, id string) (core.AnalysisRun, error)
		// List returns run summaries, newest first, at most limit entries.
		List(ctx context.Context, limit int) ([]core.RunSummary, error)
	}

	// RunPurger deletes runs created before a cutoff.
	RunPurger interface {
		PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	}

	RunStore interface {
		RunWriter
		RunReader
		RunPurger
		Ping(ctx context.Context) error
		Close() error
	}

	// NarrativeGenerator completes a prompt with a language model.
	NarrativeGenerator interface {
		Complete(ctx context.Context, persona, prompt string) (string, error)
	}

	// RunExporter copies a run to an external destination and returns a
	// reference to where it was written.
	RunExporter interface {
		Export(ctx context.Context, run core.AnalysisRun) (ref string, err error)
	}

	EventPublisher interface {
		PublishRunEvent(ctx context.Context, eventType, runID, name string) error
	}
)
