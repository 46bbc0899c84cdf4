// Package retry runs an operation repeatedly with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/mcoot/playerwatch/internal/dependencies/clock"
)

// Policy configures how an operation is retried.
//
// MaxAttempts counts every attempt including the first. After failed attempt
// k (1-based) the policy waits BaseDelay * 2^(k-1) before the next one; no
// wait follows the final attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Clock       clock.Clock

	// OnRetry is called before each wait (optional)
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay returns the wait that follows the given failed attempt
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseDelay * time.Duration(1<<(attempt-1))
}

// Do calls op until it succeeds or the attempts are exhausted, returning the
// last error. Waiting is abandoned if ctx is cancelled.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(p.MaxAttempts, 1)
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-clk.After(delay):
		}
	}

	return zero, lastErr
}
