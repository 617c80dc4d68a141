package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// ERP modes.
const (
	ERPModeHTTP    = "http"
	ERPModeSandbox = "sandbox"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string
	MaxBodyBytes       int64

	ERPMode        string
	ERPBaseURL     string
	ERPTimeout     time.Duration
	ERPMaxAttempts int
	ERPBackoff     time.Duration

	CircuitMinRequests  int
	CircuitFailureRatio float64
	CircuitOpenFor      time.Duration

	CourierItemName string
	// CourierFee overrides the unit price reported by the courier lookup.
	CourierFee *decimal.Decimal

	PricingCacheTTL  time.Duration
	ShippingCacheTTL time.Duration
	SessionTTL       time.Duration
	SubmitLockTTL    time.Duration
	LookupRateLimit  string

	HealthRedisTimeout time.Duration
	ShutdownTimeout    time.Duration

	Obs      Obs
	Security Security
}

// Obs toggles logging, metrics, tracing and profiling.
type Obs struct {
	LogFormat string
	LogLevel  string

	MetricsEnabled   bool
	MetricsNamespace string
	// MetricsBuckets are request latency buckets in milliseconds.
	MetricsBuckets []float64

	TracingEnabled  bool
	TracingExporter string
	OTLPEndpoint    string
	SamplingRatio   float64

	PprofEnabled bool
	PprofUser    string
	PprofPass    string
}

// Security holds response header settings.
type Security struct {
	HeadersEnabled bool
	HSTSEnabled    bool
	HSTSMaxAge     int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:              valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:            strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins:  splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		MaxBodyBytes:        int64(parseInt(k.String("MAX_BODY_BYTES"), 1<<20)),
		ERPMode:             strings.ToLower(valueOrDefault(k.String("ERP_MODE"), ERPModeSandbox)),
		ERPBaseURL:          strings.TrimRight(strings.TrimSpace(k.String("ERP_BASE_URL")), "/"),
		ERPTimeout:          parseDuration(k.String("ERP_TIMEOUT"), "15s"),
		ERPMaxAttempts:      parseInt(k.String("ERP_MAX_ATTEMPTS"), 3),
		ERPBackoff:          parseDuration(k.String("ERP_BACKOFF"), "200ms"),
		CircuitMinRequests:  parseInt(k.String("CIRCUIT_ERP_MIN_REQUESTS"), 10),
		CircuitFailureRatio: parseFloat(k.String("CIRCUIT_ERP_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:      parseDuration(k.String("CIRCUIT_ERP_OPEN_FOR"), "30s"),
		CourierItemName:     valueOrDefault(k.String("COURIER_ITEM_NAME"), "COURIER/FREIGHT/TRANSPORT CHARGES"),
		PricingCacheTTL:     parseDuration(k.String("PRICING_CACHE_TTL"), "10m"),
		ShippingCacheTTL:    parseDuration(k.String("SHIPPING_CACHE_TTL"), "30m"),
		SessionTTL:          parseDuration(k.String("SESSION_TTL"), "12h"),
		SubmitLockTTL:       parseDuration(k.String("SUBMIT_LOCK_TTL"), "60s"),
		LookupRateLimit:     valueOrDefault(k.String("LOOKUP_RATE_LIMIT"), "60-M"),
		HealthRedisTimeout:  parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		ShutdownTimeout:     parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		Obs: Obs{
			LogFormat:        strings.ToLower(valueOrDefault(k.String("OBS_LOG_FORMAT"), "json")),
			LogLevel:         strings.ToLower(valueOrDefault(k.String("OBS_LOG_LEVEL"), "info")),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "orderdesk"),
			MetricsBuckets:   parseBuckets(k.String("OBS_METRICS_BUCKETS_MS")),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  strings.ToLower(valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp")),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
		Security: Security{
			HeadersEnabled: parseBool(k.String("SECURE_HEADERS_ENABLED"), true),
			HSTSEnabled:    parseBool(k.String("SECURE_HSTS_ENABLED"), false),
			HSTSMaxAge:     parseInt(k.String("SECURE_HSTS_MAX_AGE"), 15552000),
		},
	}

	if raw := strings.TrimSpace(k.String("COURIER_FEE")); raw != "" {
		fee, err := decimal.NewFromString(raw)
		if err != nil || fee.IsNegative() {
			return nil, fmt.Errorf("COURIER_FEE must be a non-negative decimal, got %q", raw)
		}
		cfg.CourierFee = &fee
	}

	switch cfg.ERPMode {
	case ERPModeSandbox:
	case ERPModeHTTP:
		if cfg.ERPBaseURL == "" {
			return nil, errors.New("ERP_BASE_URL is required when ERP_MODE=http")
		}
	default:
		return nil, fmt.Errorf("unknown ERP_MODE %q", cfg.ERPMode)
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return f
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}

// parseBuckets reads a comma separated list, dropping entries that are not
// positive numbers.
func parseBuckets(value string) []float64 {
	var out []float64
	for _, part := range splitAndTrim(value) {
		if v := parseFloat(part, 0); v > 0 {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}

// MustLoad behaves like Load but panics on error. Useful for command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
