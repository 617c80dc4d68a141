package app

import (
	"context"
	"errors"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/order-desk/internal/cache"
	"github.com/noah-isme/order-desk/internal/common"
	"github.com/noah-isme/order-desk/internal/config"
	"github.com/noah-isme/order-desk/internal/desk"
	"github.com/noah-isme/order-desk/internal/erp"
	"github.com/noah-isme/order-desk/internal/events"
	"github.com/noah-isme/order-desk/internal/health"
	"github.com/noah-isme/order-desk/internal/lock"
	"github.com/noah-isme/order-desk/internal/ratelimit"
	"github.com/noah-isme/order-desk/internal/resilience"
	"github.com/noah-isme/order-desk/internal/shipping"
)

// Dependencies enumerates the collaborators shared by the HTTP surface.
type Dependencies struct {
	// Redis is nil when REDIS_URL is unset; caches, locks and idempotency
	// then degrade to in-process behaviour or no-ops.
	Redis     *redis.Client
	Breaker   *resilience.Breaker
	Gateway   erp.Gateway
	Events    *events.MemoryStore
	Limiter   *limiter.Limiter
	Validator *validator.Validate
	Manager   *desk.Manager
	Idem      common.Idem
}

// Options toggles optional instrumentation.
type Options struct {
	RedisMetrics bool
}

// New wires every dependency from cfg.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	d := &Dependencies{Validator: validator.New(validator.WithRequiredStructEnabled())}

	if cfg.RedisURL != "" {
		rdb, err := NewRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
		if err != nil {
			return nil, err
		}
		d.Redis = rdb
	}

	d.Breaker = resilience.NewBreaker(cfg.CircuitMinRequests, cfg.CircuitFailureRatio, cfg.CircuitOpenFor).
		WithTarget("erp").
		WithLogger(logger)

	gateway, err := newGateway(cfg, d.Redis, d.Breaker)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.Gateway = gateway

	store, err := ratelimit.NewStore(d.Redis)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("rate limit store: %w", err)
	}
	d.Limiter, err = ratelimit.New(store, cfg.LookupRateLimit)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("rate limit %q: %w", cfg.LookupRateLimit, err)
	}

	d.Events = &events.MemoryStore{}
	bus := &events.Bus{Sinks: []events.Sink{d.Events, events.LogNotifier{Logger: logger}}}
	if d.Redis != nil {
		bus.Sinks = append(bus.Sinks, events.StreamSink{R: d.Redis})
	}
	d.Idem = common.Idem{R: d.Redis}

	d.Manager = desk.NewManager(desk.Deps{
		ERP:             d.Gateway,
		Events:          bus,
		Locker:          &lock.Locker{R: d.Redis},
		LockTTL:         cfg.SubmitLockTTL,
		CourierItemName: cfg.CourierItemName,
		CourierFee:      cfg.CourierFee,
	}, cfg.SessionTTL)
	d.Manager.Events = d.Events
	return d, nil
}

// NewRedis connects and instruments a Redis client.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(rdb); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// cachedGateway serves shipping metadata through the Redis cache.
type cachedGateway struct {
	erp.Gateway
	shipping shipping.Cached
}

func (g cachedGateway) Metadata(ctx context.Context, company string) (shipping.Metadata, error) {
	return g.shipping.Metadata(ctx, company)
}

func newGateway(cfg *config.Config, rdb *redis.Client, breaker *resilience.Breaker) (erp.Gateway, error) {
	var inner erp.Gateway
	switch cfg.ERPMode {
	case config.ERPModeHTTP:
		inner = erp.NewHTTPClient(cfg.ERPBaseURL, cfg.ERPTimeout, cfg.ERPMaxAttempts, cfg.ERPBackoff, breaker, cache.New(rdb, cfg.PricingCacheTTL))
	case config.ERPModeSandbox:
		inner = erp.NewSandbox()
	default:
		return nil, fmt.Errorf("unknown ERP mode %q", cfg.ERPMode)
	}
	return cachedGateway{
		Gateway:  inner,
		shipping: shipping.Cached{Provider: inner, Cache: cache.New(rdb, cfg.ShippingCacheTTL)},
	}, nil
}

// SessionHandler returns the order desk HTTP handler.
func (d *Dependencies) SessionHandler() *desk.Handler {
	return &desk.Handler{
		Manager:     d.Manager,
		Validate:    d.Validator,
		Events:      d.Events,
		LookupLimit: ratelimit.Handler{Limiter: d.Limiter, Key: ratelimit.SessionKey}.Middleware,
		Idempotency: d.Idem.Middleware,
	}
}

// Probes returns the readiness checks for the wired dependencies.
func (d *Dependencies) Probes() health.Probes {
	return health.Probes{Redis: d.Redis, Breaker: d.Breaker}
}

// Close releases the Redis connection.
func (d *Dependencies) Close() error {
	if d == nil || d.Redis == nil {
		return nil
	}
	if err := d.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
