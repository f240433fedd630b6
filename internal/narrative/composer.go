package narrative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finmetrics/internal/core"
	"finmetrics/internal/ports"
)

// ErrGeneratorUnavailable is returned when no language model is configured.
var ErrGeneratorUnavailable = errors.New("narrative generator not configured")

// Composer prompts a generator with a run's figures and parses the reply.
type Composer struct {
	gen     ports.NarrativeGenerator
	timeout time.Duration
	now     func() time.Time
}

// NewComposer returns a composer. A nil generator is allowed; Compose then
// fails with ErrGeneratorUnavailable.
func NewComposer(gen ports.NarrativeGenerator, timeout time.Duration) *Composer {
	return &Composer{gen: gen, timeout: timeout, now: time.Now}
}

func (c *Composer) Available() bool {
	return c != nil && c.gen != nil
}

func (c *Composer) Compose(ctx context.Context, run core.AnalysisRun, req core.NarrativeRequest) (core.Narrative, error) {
	if !c.Available() {
		return core.Narrative{}, ErrGeneratorUnavailable
	}
	req.Focus = core.ParseFocus(string(req.Focus))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.gen.Complete(ctx, Persona, BuildPrompt(run, req))
	if err != nil {
		return core.Narrative{}, fmt.Errorf("generate narrative: %w", err)
	}

	n := Parse(raw)
	n.ID = uuid.NewString()
	n.Focus = req.Focus
	n.GeneratedAt = c.now().UTC()
	return n, nil
}
