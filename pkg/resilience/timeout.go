package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs fn under a context cancelled after timeout. A timeout of
// zero or less means no limit. When the limit expires the result wraps both
// context.DeadlineExceeded and onExpiry (if non-nil), so callers can match
// the domain error they care about.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, onExpiry error, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		if onExpiry != nil {
			return fmt.Errorf("%s: %w after %v: %w", name, onExpiry, timeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
	return err
}
