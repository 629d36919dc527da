// Package retry re-invokes a fallible operation with a fixed delay between
// attempts. Call sites opt in explicitly; nothing is retried implicitly.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/grounding/internal/logger"
)

// Policy controls how many times an operation runs and how long to wait
// between attempts.
type Policy struct {
	// Attempts is the total number of tries, including the first (min 1).
	Attempts int

	// Delay is the fixed pause between attempts.
	Delay time.Duration
}

// DefaultPolicy mirrors the configuration defaults: three attempts one
// second apart.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: time.Second}
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
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

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted, or ctx is cancelled. The last error is returned unwrapped from
// any Permanent marker.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		lastErr = err
		logger.Warn("attempt failed", "attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}
		logger.Info("retrying", "delay", p.Delay)
		if err := sleep(ctx, p.Delay); err != nil {
			return zero, err
		}
	}

	if attempts > 1 {
		logger.Error("all attempts failed", "attempts", attempts)
		return zero, fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
	}
	return zero, lastErr
}
