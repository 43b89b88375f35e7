package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StatementTimeout bounds every store call so a stalled database surfaces as
// ErrUnavailable instead of hanging the request.
var StatementTimeout = 5 * time.Second

const retryBackoff = 100 * time.Millisecond

// withRetry runs fn under the statement timeout, retrying once after a short
// backoff when the deadline was hit and the caller's own context is still live.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	run := func() error {
		callCtx, cancel := context.WithTimeout(ctx, StatementTimeout)
		defer cancel()
		return fn(callCtx)
	}

	err := run()
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		timer := time.NewTimer(retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
		err = run()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
