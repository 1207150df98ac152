// Package retry provides a small retry-with-backoff helper shared by the
// booking and intent paths, replacing per-call-site retry loops.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy controls how an operation is retried. MaxAttempts counts the first
// try, so MaxAttempts=3 means up to two retries.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable reports whether the error is worth another attempt.
	// A nil predicate retries every error.
	Retryable func(error) bool
}

// ErrNoAttempts indicates a policy that permits zero attempts.
var ErrNoAttempts = errors.New("retry: policy permits no attempts")

// Do runs op until it succeeds, the policy is exhausted, or the context is
// done. Delay doubles after each failed attempt. The last error is returned
// when all attempts fail.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) error) error {
	if policy.MaxAttempts <= 0 {
		return ErrNoAttempts
	}

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if policy.Retryable != nil && !policy.Retryable(err) {
			return err
		}
		if attempt == policy.MaxAttempts-1 {
			break
		}
		if err := sleep(ctx, backoffDelay(policy.BaseDelay, attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	return base * time.Duration(1<<attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
