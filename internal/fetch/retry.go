package fetch

import (
	"context"
	"time"
)

// Backoff strategies
const (
	BackoffFixed       = "fixed"
	BackoffExponential = "exponential"
)

// RetryPolicy configures retry of transient failures
type RetryPolicy struct {
	Attempts int           // Total attempts including the first
	Backoff  string        // BackoffFixed or BackoffExponential
	Base     time.Duration // Fixed delay, or the first exponential delay
	Max      time.Duration // Upper bound for exponential delays
}

// DefaultRetryPolicy returns three attempts with a fixed 2s delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff:  BackoffFixed,
		Base:     2 * time.Second,
		Max:      60 * time.Second,
	}
}

// ExponentialRetryPolicy returns a 1s delay doubling up to 60s
func ExponentialRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		Attempts: attempts,
		Backoff:  BackoffExponential,
		Base:     time.Second,
		Max:      60 * time.Second,
	}
}

// delay returns the wait before retry number attempt (0-based)
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Backoff != BackoffExponential {
		return p.Base
	}
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Retry executes fn until it succeeds, fails permanently or the policy's
// attempts are used up. Only errors classified by IsRetryable are retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T

	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !IsRetryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			timer := time.NewTimer(policy.delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}
