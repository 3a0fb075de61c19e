package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// StatusError reports a non-2xx upstream response
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// PayloadError reports a response body that could not be decoded
type PayloadError struct {
	URL string
	Err error
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("malformed payload from %s: %v", e.URL, e.Err)
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 response
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err is a 429 response
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests
}

// IsPayload reports whether err is a PayloadError
func IsPayload(err error) bool {
	var pe *PayloadError
	return errors.As(err, &pe)
}

// IsRetryable reports whether err is transient: a timeout, a connection
// reset, a 5xx or a 429. Cancellation of the caller's context is not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if IsPayload(err) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 500 || se.StatusCode == http.StatusTooManyRequests
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
