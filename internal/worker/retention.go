package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"finmetrics/internal/ports"
)

// RetentionJob deletes runs older than a fixed age.
type RetentionJob struct {
	purger    ports.RunPurger
	retention time.Duration
	now       func() time.Time
}

// NewRetentionJob returns a job keeping runs for retention. Zero disables
// purging.
func NewRetentionJob(purger ports.RunPurger, retention time.Duration) *RetentionJob {
	return &RetentionJob{purger: purger, retention: retention, now: time.Now}
}

// RunOnce purges expired runs and returns how many were removed.
func (j *RetentionJob) RunOnce(ctx context.Context) (int, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	cutoff := j.now().UTC().Add(-j.retention)
	n, err := j.purger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	slog.InfoContext(ctx, "Retention sweep complete", "purged", n, "cutoff", cutoff)
	return n, nil
}

// Schedule registers the job on a new cron scheduler using a standard
// five-field spec or a descriptor such as @daily. The caller starts and
// stops the returned scheduler.
func (j *RetentionJob) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "Retention sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule retention %q: %w", spec, err)
	}
	return c, nil
}
