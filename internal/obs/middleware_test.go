package obs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-desk/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("orderdesk", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Delete("/sessions/{sid}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/sessions/abc", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodDelete, "/sessions/{sid}", "204")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	require.NotZero(t, testutil.CollectAndCount(metrics.Latency))
	require.Zero(t, testutil.ToFloat64(metrics.InFlight))
}

func TestHTTPMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("orderdesk", nil, registry)
	second := obs.NewHTTPMetrics("orderdesk", nil, registry)
	require.Same(t, first.Requests, second.Requests)
	require.Same(t, first.Latency, second.Latency)
}

func TestRequestLoggerTagsSessionAndScopesLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	r := chi.NewRouter()
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Get("/sessions/{sid}/orders/{ok}", func(w http.ResponseWriter, r *http.Request) {
		require.NotEqual(t, zerolog.Disabled, zerolog.Ctx(r.Context()).GetLevel())
		w.WriteHeader(http.StatusConflict)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/abc/orders/SO-1", nil))
	require.Equal(t, http.StatusConflict, rr.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "abc", entry["session_id"])
	require.Equal(t, "SO-1", entry["order_key"])
	require.Equal(t, "/sessions/{sid}/orders/{ok}", entry["route"])
	require.EqualValues(t, http.StatusConflict, entry["status"])
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLogger(&buf, "json", "warn")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["message"])
	require.Contains(t, entry, "time")

	buf.Reset()
	bogus := obs.NewLogger(&buf, "json", "bogus")
	bogus.Debug().Msg("hidden")
	require.Zero(t, buf.Len())
}

func TestTracerNoneExporter(t *testing.T) {
	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = obs.InitTracer(context.Background(), obs.TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported")
}

func TestDomainMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("orderdesk_test", registry)

	obs.ObserveSubmission("order", nil)
	obs.ObserveSubmission("order", errors.New("rejected"))
	obs.ObserveLotMutation("add", nil)
	obs.ObserveERPCall("search_items", time.Now(), nil)
	obs.SessionOpened()
	obs.SessionOpened()
	obs.SessionClosed()

	require.Equal(t, 1.0, testutil.ToFloat64(obs.SubmissionsTotal.WithLabelValues("order", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.SubmissionsTotal.WithLabelValues("order", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.LotMutationsTotal.WithLabelValues("add", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.ERPCallsTotal.WithLabelValues("search_items", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.SessionsActive))
}
