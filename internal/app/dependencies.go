package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/eoafashion/storefront-api/internal/cart"
	"github.com/eoafashion/storefront-api/internal/config"
	"github.com/eoafashion/storefront-api/internal/obs"
	"github.com/eoafashion/storefront-api/internal/pricing"
	"github.com/eoafashion/storefront-api/internal/ratelimit"
	"github.com/eoafashion/storefront-api/internal/resilience"
)

// CheckoutTarget labels the checkout session collaborator in metrics and logs.
const CheckoutTarget = "checkout_session"

const outboundJitter = 0.2

// NewRedis connects to Redis and instruments the client with OpenTelemetry.
func NewRedis(ctx context.Context, redisURL string, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewDB opens a pgx pool traced under component.
func NewDB(ctx context.Context, databaseURL, appName, component string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{Component: component}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = appName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// TaskRedisOpt converts a redis URL into asynq connection options.
func TaskRedisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}
	return opt, nil
}

// NewTaskClient returns an asynq client used to publish audit records.
func NewTaskClient(redisURL string) (*asynq.Client, error) {
	opt, err := TaskRedisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return asynq.NewClient(opt), nil
}

// NewCartStore selects the cart backend named by CART_STORE.
func NewCartStore(cfg *config.Config, rdb *redis.Client) (cart.Store, error) {
	switch cfg.CartStore {
	case "memory":
		return cart.NewMemoryStore(cfg.CartTTL), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis cart store requires a redis client")
		}
		return cart.RedisStore{R: rdb, TTL: cfg.CartTTL}, nil
	default:
		return nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
	}
}

// NewPromoTable builds the promo table from PROMO_CODES, falling back to the
// built-in codes when none are configured.
func NewPromoTable(cfg *config.Config) (pricing.PromoTable, error) {
	if len(cfg.PromoCodes) == 0 {
		return pricing.DefaultPromoTable, nil
	}
	return pricing.NewPromoTable(cfg.PromoCodes)
}

// NewCheckoutHTTP builds the outbound client for the checkout session endpoint.
// The returned breaker is also exposed on the readiness report.
func NewCheckoutHTTP(cfg *config.Config, logger zerolog.Logger) (*resilience.HTTPClient, *resilience.Breaker) {
	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget(CheckoutTarget).
		WithLogger(logger)
	client := &resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Breaker:     breaker,
		Target:      CheckoutTarget,
		Logger:      logger,
		BaseBackoff: cfg.CheckoutBackoff,
		MaxAttempts: cfg.CheckoutMaxAttempts,
		Jitter:      outboundJitter,
		Timeout:     cfg.CheckoutTimeout,
	}
	return client, breaker
}

// NewIPLimiter limits requests per client address. Counters live in Redis when
// a client is available so replicas share them.
func NewIPLimiter(cfg *config.Config, rdb *redis.Client) (ratelimit.Limiter, error) {
	var store limiter.Store
	if rdb != nil {
		s, err := ratelimit.NewRedisStore(rdb, "ratelimit:ip")
		if err != nil {
			return nil, fmt.Errorf("ratelimit store: %w", err)
		}
		store = s
	} else {
		store = ratelimit.NewMemoryStore()
	}
	return ratelimit.NewRate(store, cfg.RateLimitIP)
}

// NewPromoLimiter limits promo code attempts per cart.
func NewPromoLimiter(cfg *config.Config, rdb *redis.Client) ratelimit.Limiter {
	if rdb != nil {
		return ratelimit.Sliding{
			Client: rdb,
			Prefix: "ratelimit:promo",
			Window: cfg.PromoAttemptsWindow,
			Max:    cfg.PromoAttemptsMax,
		}
	}
	rate := limiter.Rate{Period: cfg.PromoAttemptsWindow, Limit: int64(cfg.PromoAttemptsMax)}
	return ratelimit.Rate{L: limiter.New(ratelimit.NewMemoryStore(), rate)}
}

// Meter returns the global meter for name.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}
