package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finmetrics/internal/amqp"
	"finmetrics/internal/core"
	applog "finmetrics/internal/log"
	"finmetrics/internal/ports"
)

// ExportWorker reacts to run events by copying new runs to an external
// destination.
type ExportWorker struct {
	runs     ports.RunReader
	exporter ports.RunExporter
}

// NewExportWorker returns a worker. With a nil exporter run.created events
// are acknowledged without exporting.
func NewExportWorker(runs ports.RunReader, exporter ports.RunExporter) *ExportWorker {
	return &ExportWorker{runs: runs, exporter: exporter}
}

// HandleRunEvent processes one event. Errors cause a requeue, so runs that
// no longer exist are skipped rather than failed.
func (w *ExportWorker) HandleRunEvent(ctx context.Context, msg *amqp.RunEventMessage) error {
	switch msg.Type {
	case ports.EventRunCreated:
		return w.export(ctx, msg)
	case ports.EventRunDeleted:
		slog.InfoContext(ctx, "Run deleted", applog.FieldRunID, msg.RunID, applog.FieldRunName, msg.Name)
		return nil
	default:
		slog.WarnContext(ctx, "Ignoring unknown run event", "type", msg.Type, "run_id", msg.RunID)
		return nil
	}
}

func (w *ExportWorker) export(ctx context.Context, msg *amqp.RunEventMessage) error {
	if w.exporter == nil {
		slog.DebugContext(ctx, "No exporter configured, skipping run", "run_id", msg.RunID)
		return nil
	}

	run, err := w.runs.Get(ctx, msg.RunID)
	if errors.Is(err, core.ErrRunNotFound) {
		slog.WarnContext(ctx, "Run vanished before export", "run_id", msg.RunID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get run from storage: %w", err)
	}

	ref, err := w.exporter.Export(ctx, run)
	if err != nil {
		return fmt.Errorf("export run: %w", err)
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).LogRunExported(ctx, run.ID, run.Name, len(run.Periods), ref)
	return nil
}
