package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	RedisURL    string
	DatabaseURL string

	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	HTTPBucketsMS    string
	TracingExporter  string
	OTLPEndpoint     string
	TraceSampleRatio float64
	PprofUser        string
	PprofPassword    string

	CORSAllowedOrigins []string
	BodyLimitBytes     int64
	EnableHSTS         bool

	Currency               string
	CartStore              string
	CartTTL                time.Duration
	CartTokenSecret        string
	CartTokenTTL           time.Duration
	PromoRecomputeOnChange bool
	PromoCodes             map[string]string

	CheckoutSessionURL  string
	CheckoutAPIKey      string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	CheckoutMaxAttempts int
	CheckoutTimeout     time.Duration
	CheckoutBackoff     time.Duration
	CheckoutLockWait    time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	IdempotencyTTL      time.Duration

	RateLimitIP         string
	PromoAttemptsMax    int
	PromoAttemptsWindow time.Duration
	AuditQueue          string
	AuditMaxRetry       int
	WorkerConcurrency   int
	ShutdownGracePeriod time.Duration
}

// AuditEnabled reports whether checkout audit records are produced.
func (c *Config) AuditEnabled() bool {
	return strings.TrimSpace(c.DatabaseURL) != ""
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	promoCodes, err := parsePairs(k.String("PROMO_CODES"))
	if err != nil {
		return nil, fmt.Errorf("PROMO_CODES: %w", err)
	}

	cfg := &Config{
		AppEnv:      valueOrDefault(k.String("APP_ENV"), "development"),
		Port:        valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:    k.String("REDIS_URL"),
		DatabaseURL: k.String("DATABASE_URL"),

		LogFormat:        valueOrDefault(k.String("LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("LOG_LEVEL"), "info"),
		MetricsNamespace: valueOrDefault(k.String("METRICS_NAMESPACE"), "storefront"),
		HTTPBucketsMS:    k.String("HTTP_BUCKETS_MS"),
		TracingExporter:  valueOrDefault(k.String("TRACING_EXPORTER"), "none"),
		OTLPEndpoint:     k.String("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TraceSampleRatio: parseFloat(k.String("TRACE_SAMPLE_RATIO"), 1),
		PprofUser:        k.String("PPROF_USER"),
		PprofPassword:    k.String("PPROF_PASSWORD"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		BodyLimitBytes:     int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		EnableHSTS:         parseBool(k.String("ENABLE_HSTS")),

		Currency:               strings.ToUpper(valueOrDefault(k.String("CURRENCY"), "EUR")),
		CartStore:              strings.ToLower(valueOrDefault(k.String("CART_STORE"), "redis")),
		CartTTL:                parseDuration(k.String("CART_TTL"), "720h"),
		CartTokenSecret:        k.String("CART_TOKEN_SECRET"),
		CartTokenTTL:           parseDuration(k.String("CART_TOKEN_TTL"), "168h"),
		PromoRecomputeOnChange: parseBool(k.String("PROMO_RECOMPUTE_ON_CHANGE")),
		PromoCodes:             promoCodes,

		CheckoutSessionURL:  k.String("CHECKOUT_SESSION_URL"),
		CheckoutAPIKey:      k.String("CHECKOUT_API_KEY"),
		CheckoutSuccessURL:  k.String("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   k.String("CHECKOUT_CANCEL_URL"),
		CheckoutMaxAttempts: parseInt(k.String("CHECKOUT_MAX_ATTEMPTS"), 1),
		CheckoutTimeout:     parseDuration(k.String("CHECKOUT_TIMEOUT"), "0s"),
		CheckoutBackoff:     parseDuration(k.String("CHECKOUT_BACKOFF"), "200ms"),
		CheckoutLockWait:    parseDuration(k.String("CHECKOUT_LOCK_WAIT"), "5s"),
		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 5),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitIP:         valueOrDefault(k.String("RATE_LIMIT_IP"), "300-M"),
		PromoAttemptsMax:    parseInt(k.String("PROMO_ATTEMPTS_MAX"), 10),
		PromoAttemptsWindow: parseDuration(k.String("PROMO_ATTEMPTS_WINDOW"), "10m"),
		AuditQueue:          valueOrDefault(k.String("AUDIT_QUEUE"), "audit"),
		AuditMaxRetry:       parseInt(k.String("AUDIT_MAX_RETRY"), 10),
		WorkerConcurrency:   parseInt(k.String("WORKER_CONCURRENCY"), 5),
		ShutdownGracePeriod: parseDuration(k.String("SHUTDOWN_GRACE_PERIOD"), "15s"),
	}

	if cfg.CartStore != "redis" && cfg.CartStore != "memory" {
		return nil, fmt.Errorf("CART_STORE must be redis or memory, got %q", cfg.CartStore)
	}
	if cfg.CheckoutMaxAttempts < 1 {
		cfg.CheckoutMaxAttempts = 1
	}

	return cfg, nil
}

// ValidateAPI checks the settings the HTTP API cannot start without.
func (c *Config) ValidateAPI() error {
	if c.RedisURL == "" && c.CartStore != "memory" {
		return errors.New("REDIS_URL is required")
	}
	if c.CartTokenSecret == "" {
		return errors.New("CART_TOKEN_SECRET is required")
	}
	if len(c.CartTokenSecret) < 32 {
		return errors.New("CART_TOKEN_SECRET must be at least 32 bytes")
	}
	if c.CheckoutSessionURL == "" {
		return errors.New("CHECKOUT_SESSION_URL is required")
	}
	return nil
}

// ValidateWorker checks the settings the audit worker cannot start without.
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	return nil
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

// parsePairs reads "CODE:rate,CODE:rate". An empty value yields nil.
func parsePairs(value string) (map[string]string, error) {
	items := splitAndTrim(value)
	if len(items) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(items))
	for _, item := range items {
		code, rate, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(code) == "" || strings.TrimSpace(rate) == "" {
			return nil, fmt.Errorf("malformed entry %q", item)
		}
		out[strings.TrimSpace(code)] = strings.TrimSpace(rate)
	}
	return out, nil
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
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
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
