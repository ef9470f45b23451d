package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes a bounded retry regime. Two regimes exist in the pipeline:
// the generic stage retry (bounded attempts, exponential backoff) and the
// long-horizon annotation overload retry (fixed interval). Both are plain
// Policy values so they can be compared and tested independently.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries everything.
	Retryable func(error) bool
}

// Fixed returns a policy with a constant interval between attempts.
func Fixed(attempts int, interval time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: interval,
		MaxBackoff:     interval,
		Multiplier:     1,
		Retryable:      retryable,
	}
}

// Exponential returns a doubling-backoff policy capped at maxBackoff.
func Exponential(attempts int, initial, maxBackoff time.Duration, retryable func(error) bool) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: initial,
		MaxBackoff:     maxBackoff,
		Multiplier:     2,
		Retryable:      retryable,
	}
}

// Sleeper performs backoff waits; injectable for tests.
type Sleeper func(context.Context, time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
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

// Do runs fn under the policy, sleeping between attempts. The last error is
// returned once attempts are exhausted or the error is classified terminal.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error) error {
	return DoWithSleeper(ctx, policy, defaultSleep, fn)
}

// DoWithSleeper is Do with an explicit sleeper, used by tests to avoid real waits.
func DoWithSleeper(ctx context.Context, policy Policy, sleep Sleeper, fn func(context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	if sleep == nil {
		sleep = defaultSleep
	}

	backoff := policy.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		// A context error is only terminal when the caller's own context is
		// done; an attempt-scoped deadline is an ordinary failure for the
		// policy to judge.
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			if ctx.Err() != nil {
				return lastErr
			}
		}
		if policy.Retryable != nil && !policy.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, policy)
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func nextBackoff(current time.Duration, policy Policy) time.Duration {
	multiplier := policy.Multiplier
	if multiplier <= 1 {
		return clamp(current, policy)
	}
	next := time.Duration(float64(current) * multiplier)
	return clamp(next, policy)
}

func clamp(d time.Duration, policy Policy) time.Duration {
	if policy.MaxBackoff > 0 && d > policy.MaxBackoff {
		return policy.MaxBackoff
	}
	return d
}
