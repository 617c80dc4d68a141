package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/order-desk/internal/app"
	"github.com/noah-isme/order-desk/internal/config"
	"github.com/noah-isme/order-desk/internal/health"
	"github.com/noah-isme/order-desk/internal/obs"
	"github.com/noah-isme/order-desk/internal/security"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(os.Stdout, cfg.Obs.LogFormat, cfg.Obs.LogLevel).
		With().Str("service", "order-desk").Str("env", cfg.AppEnv).Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("order desk stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
	}
	tracing := cfg.Obs.TracingEnabled
	if tracing {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "order-desk",
			Environment:   cfg.AppEnv,
			Exporter:      cfg.Obs.TracingExporter,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			SamplingRatio: cfg.Obs.SamplingRatio,
		})
		if err != nil {
			logger.Error().Err(err).Msg("tracing disabled")
			tracing = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("flush traces")
				}
			}()
		}
	}

	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.New(initCtx, cfg, logger, app.Options{RedisMetrics: cfg.Obs.MetricsEnabled})
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if deps.Redis == nil {
		logger.Warn().Msg("REDIS_URL not set; caches, submit locks and idempotency keys are process local")
	}
	logger.Info().Str("erp_mode", cfg.ERPMode).Msg("erp gateway configured")

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, deps, logger, tracing),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger, tracing bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(security.Headers{
		Enable:     cfg.Security.HeadersEnabled,
		EnableHSTS: cfg.Security.HSTSEnabled,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	if tracing {
		r.Use(obs.TracingMiddleware)
	}
	if cfg.Obs.MetricsEnabled {
		metrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, cfg.Obs.MetricsBuckets, nil)
		r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-Id"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "Idempotent-Replay"},
		MaxAge:         300,
	}))

	if cfg.Obs.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.Mount("/debug", basicAuth(middleware.Profiler(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	hh := health.Handler{Checker: deps.Probes(), RedisTimeout: cfg.HealthRedisTimeout}
	r.Get("/health/live", hh.Live)
	r.Get("/health/ready", hh.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Mount("/sessions", deps.SessionHandler().Routes())
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// basicAuth guards next when user is set.
func basicAuth(next http.Handler, user, pass string) http.Handler {
	if user == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="pprof"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
