package turnloop

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/nexus/internal/retry"
	"github.com/haasonsaas/nexus/pkg/models"
)

// errInfraOutcome signals executeWithRetry's retry.Do callback that the tool
// returned a nil error but an INFRA_ERROR outcome, so the attempt must still
// count as retryable. It never escapes this function: a final attempt that
// ends in this state is reported back to the caller as (result, nil), same
// as a tool that failed indefinitely without ever returning a Go error.
var errInfraOutcome = errors.New("tool outcome was INFRA_ERROR")

// executeWithRetry runs tool.Execute once, retrying exactly once (two
// attempts total) on an infra-style failure (a returned error, or an
// INFRA_ERROR outcome), with a short bounded backoff between attempts.
func executeWithRetry(ctx context.Context, tool *Tool, business string, args map[string]any, timeout time.Duration, backoff time.Duration) (*models.ToolOutcomeResult, error) {
	var lastErr error

	cfg := retry.Linear(2, backoff)
	result, _ := retry.DoWithValue(ctx, cfg, func() (*models.ToolOutcomeResult, error) {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		result, err := tool.Execute(attemptCtx, business, args)
		if cancel != nil {
			cancel()
		}

		lastErr = err
		if err != nil {
			return result, err
		}
		if result != nil && result.Outcome == models.OutcomeInfraError {
			return result, errInfraOutcome
		}
		return result, nil
	})

	if lastErr != nil {
		return result, lastErr
	}
	return result, nil
}
