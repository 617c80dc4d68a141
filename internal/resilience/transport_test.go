package resilience_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/resilience"
)

func flakyServer(t *testing.T, failures int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if calls.Add(1) <= failures {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func client(tr *resilience.Transport) *http.Client {
	return &http.Client{Transport: tr}
}

func TestTransportRetriesSafeMethods(t *testing.T) {
	srv, calls := flakyServer(t, 2, http.StatusBadGateway)
	cl := client(&resilience.Transport{
		Breaker:  resilience.NewBreaker(10, 0.9, time.Second).WithTarget("retry-get"),
		Attempts: 3,
		Backoff:  time.Millisecond,
	})

	resp, err := cl.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 3, calls.Load())
}

func TestTransportSendsInsertsOnce(t *testing.T) {
	srv, calls := flakyServer(t, 1, http.StatusServiceUnavailable)
	cl := client(&resilience.Transport{Attempts: 3, Backoff: time.Millisecond})

	resp, err := cl.Post(srv.URL, "application/json", strings.NewReader(`{"no":"S-1"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.EqualValues(t, 1, calls.Load())
}

func TestTransportDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := flakyServer(t, 5, http.StatusBadRequest)
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	cl := client(&resilience.Transport{Breaker: breaker, Attempts: 3, Backoff: time.Millisecond})

	resp, err := cl.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.EqualValues(t, 1, calls.Load())
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestTransportOpenBreakerShedsCalls(t *testing.T) {
	srv, calls := flakyServer(t, 0, http.StatusOK)
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	breaker.Report(t.Context(), false)
	cl := client(&resilience.Transport{Breaker: breaker})

	_, err := cl.Get(srv.URL)
	require.True(t, errors.Is(err, resilience.ErrOpenCircuit))
	require.Zero(t, calls.Load())
}

func TestTransportAttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	cl := client(&resilience.Transport{Attempts: 2, Backoff: time.Millisecond, Timeout: 20 * time.Millisecond})

	started := time.Now()
	_, err := cl.Get(srv.URL)
	require.Error(t, err)
	require.Less(t, time.Since(started), 500*time.Millisecond)
}
