// Package resilience provides the retry loop used around outbound HTTP calls.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy controls a fixed-backoff retry loop.
type Policy struct {
	// Attempts is the total number of tries including the first. Default: 3.
	Attempts int

	// Backoff is the pause between attempts. It does not grow. Default: 2s.
	Backoff time.Duration

	// ShouldRetry optionally filters which errors are retried.
	// If nil, every error is retried.
	ShouldRetry func(err error) bool

	// OnRetry is called before each pause with the failed attempt number (1-based).
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns three attempts two seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  2 * time.Second,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// The last error is returned on failure.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return zero, lastErr
		}
		if attempt == p.Attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if err := Sleep(ctx, p.Backoff); err != nil {
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Sleep pauses for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	return p
}

// RetryLogger returns an OnRetry callback that logs each failed attempt to log.
func RetryLogger(log *zap.Logger, operation, target string, attempts int) func(int, error) {
	return func(attempt int, err error) {
		log.Warn("retrying operation",
			zap.String("operation", operation),
			zap.String("target", target),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}
}
