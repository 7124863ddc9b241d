package analyzer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/virail/studio/internal/model"
	"github.com/virail/studio/internal/platform/errs"
)

// CanRetry reports whether s is a failure the user may re-run as is.
func CanRetry(s State) bool {
	return s.Phase == Failed && s.LastError != nil && s.LastError.Retryable
}

// Retry returns s with its failure cleared, ready for a new Start. When
// CanRetry(s) is false it returns s unchanged.
func Retry(s State) State {
	if !CanRetry(s) {
		return s
	}
	return State{Phase: Idle}
}

// RetryPolicy controls RunWithRetries.
type RetryPolicy struct {
	// Attempts is how many times a retryable failure is re-run after the
	// first attempt.
	Attempts int
	// Backoff is the wait before the first retry. It doubles on each retry.
	Backoff time.Duration
}

// RunWithRetries starts in on c and re-runs it while the failure is
// retryable and attempts remain. Non-retryable failures return at once. The
// retry is accepted only after the backoff, so a run abandoned during the wait
// leaves c in the failed state it returned.
func RunWithRetries(ctx context.Context, c *Controller, in Input, policy RetryPolicy) (*model.AnalysisResult, error) {
	wait := policy.Backoff
	for attempt := 0; ; attempt++ {
		result, err := c.Start(ctx, in)
		if err == nil {
			return result, nil
		}

		var aerr *errs.AnalysisError
		if !errors.As(err, &aerr) || attempt >= policy.Attempts || !CanRetry(c.State()) {
			return nil, err
		}

		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, err
			case <-t.C:
			}
		}
		if !c.Retry() {
			return nil, err
		}

		c.metrics.RecordRetry(ctx, aerr.Kind)
		c.logger.Info("retrying analysis",
			zap.String("subject", in.Subject()),
			zap.Stringer("kind", aerr.Kind),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
		)
		wait *= 2
	}
}
