package resilience

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// Transport is an http.RoundTripper guarded by a Breaker. Safe methods are
// retried on transport errors and gateway statuses; anything else is sent
// exactly once since an upstream insert cannot be replayed blindly.
type Transport struct {
	Base    http.RoundTripper
	Breaker *Breaker
	// Attempts caps tries for safe methods. Values below one mean one.
	Attempts int
	// Backoff is the delay before the second attempt; it doubles after.
	Backoff time.Duration
	// Jitter spreads each delay by up to this fraction either way.
	Jitter float64
	// Timeout bounds each attempt, including reading the body.
	Timeout time.Duration
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempts := 1
	if retryable(req) && t.Attempts > 1 {
		attempts = t.Attempts
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if t.Breaker != nil {
				RetriesTotal.WithLabelValues(t.Breaker.Target(), req.Method).Inc()
			}
			if werr := sleep(ctx, Backoff(t.Backoff, attempt-1, t.Jitter)); werr != nil {
				return nil, werr
			}
		}
		if t.Breaker != nil && !t.Breaker.Allow(ctx) {
			return nil, ErrOpenCircuit
		}
		resp, err = t.once(req)
		failed := err != nil || resp.StatusCode >= http.StatusInternalServerError
		if t.Breaker != nil && ctx.Err() == nil {
			t.Breaker.Report(ctx, !failed)
		}
		if !failed || attempt == attempts || !transient(resp, err) {
			break
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}
	return resp, err
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) once(req *http.Request) (*http.Response, error) {
	if req.GetBody != nil && req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	if t.Timeout <= 0 {
		return t.base().RoundTrip(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), t.Timeout)
	resp, err := t.base().RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the attempt context once the caller is done with
// the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func retryable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func transient(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Backoff is base doubled per attempt, spread by jitter (0.2 means ±20%).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
