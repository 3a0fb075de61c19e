package embedder

import (
	"time"

	"github.com/dshills/lexcite/internal/fetch"
)

// Retry configuration
const (
	MaxRetries       = 3
	InitialBackoffMs = 100
	MaxBackoffMs     = 5000
)

// DefaultRetryPolicy returns exponential backoff for embedding API calls.
// Only transient failures (timeouts, 429, 5xx) are retried.
func DefaultRetryPolicy() fetch.RetryPolicy {
	return fetch.RetryPolicy{
		Attempts: MaxRetries,
		Backoff:  fetch.BackoffExponential,
		Base:     time.Duration(InitialBackoffMs) * time.Millisecond,
		Max:      time.Duration(MaxBackoffMs) * time.Millisecond,
	}
}
