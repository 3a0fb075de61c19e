package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dshills/lexcite/internal/logger"
)

const (
	// DefaultTimeout bounds a single upstream request
	DefaultTimeout = 25 * time.Second

	// maxErrorBody caps how much of an error response is kept
	maxErrorBody = 512

	// minRate is the floor the limiter is slowed to after repeated 429s
	minRate = rate.Limit(0.5)
)

// Session decorates outgoing requests with credentials
type Session interface {
	Apply(req *http.Request)
}

// Options configures a Fetcher
type Options struct {
	Timeout            time.Duration
	RequestsPerSecond  float64 // <= 0 disables rate limiting
	Burst              int
	InsecureSkipVerify bool
	Retry              RetryPolicy
	Session            Session
	Client             *http.Client // Optional: overrides Timeout and InsecureSkipVerify
}

// Fetcher issues rate-limited, retrying JSON requests
type Fetcher struct {
	client  *http.Client
	session Session
	limiter *rate.Limiter
	retry   RetryPolicy
}

// New creates a Fetcher from opts
func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.InsecureSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // portal certificates are not always valid
		}
		client = &http.Client{Timeout: timeout, Transport: transport}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	retry := opts.Retry
	if retry.Attempts == 0 {
		retry = DefaultRetryPolicy()
	}

	return &Fetcher{
		client:  client,
		session: opts.Session,
		limiter: limiter,
		retry:   retry,
	}
}

// GetJSON issues a GET and decodes the JSON response into out
func (f *Fetcher) GetJSON(ctx context.Context, url string, out any) error {
	_, err := Retry(ctx, f.retry, func() (struct{}, error) {
		return struct{}{}, f.do(ctx, http.MethodGet, url, nil, out)
	})
	return err
}

// PostJSON marshals body, issues a POST and decodes the JSON response into out
func (f *Fetcher) PostJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", url, err)
	}
	_, err = Retry(ctx, f.retry, func() (struct{}, error) {
		return struct{}{}, f.do(ctx, http.MethodPost, url, payload, out)
	})
	return err
}

// PutJSON marshals body, issues a PUT and decodes the JSON response into out
func (f *Fetcher) PutJSON(ctx context.Context, url string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", url, err)
	}
	_, err = Retry(ctx, f.retry, func() (struct{}, error) {
		return struct{}{}, f.do(ctx, http.MethodPut, url, payload, out)
	})
	return err
}

// GetText issues a GET and returns the raw response body
func (f *Fetcher) GetText(ctx context.Context, url string) (string, error) {
	return Retry(ctx, f.retry, func() (string, error) {
		var buf bytes.Buffer
		if err := f.do(ctx, http.MethodGet, url, nil, &buf); err != nil {
			return "", err
		}
		return buf.String(), nil
	})
}

func (f *Fetcher) do(ctx context.Context, method, url string, payload []byte, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.session != nil {
		f.session.Apply(req)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: url, Body: string(bodyBytes)}
		if resp.StatusCode == http.StatusTooManyRequests {
			f.slowDown()
		}
		return statusErr
	}

	if buf, ok := out.(*bytes.Buffer); ok {
		if _, err := io.Copy(buf, resp.Body); err != nil {
			return err
		}
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &PayloadError{URL: url, Err: err}
	}
	return nil
}

// slowDown halves the request rate after a 429
func (f *Fetcher) slowDown() {
	current := f.limiter.Limit()
	if current == rate.Inf {
		return
	}
	next := current / 2
	if next < minRate {
		next = minRate
	}
	f.limiter.SetLimit(next)
	logger.Warn("rate limited by upstream, slowing to %.2f req/s", float64(next))
}

// Close releases idle connections
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
