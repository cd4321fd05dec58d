package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Rate adapts a fixed-window ulule limiter to Limiter.
type Rate struct {
	L *limiter.Limiter
}

// NewRedisStore keeps counters in Redis so all API replicas share them.
func NewRedisStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	if prefix == "" {
		prefix = "ratelimit:ip"
	}
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: prefix})
}

// NewMemoryStore keeps counters in process memory.
func NewMemoryStore() limiter.Store {
	return memory.NewStore()
}

// NewRate parses a formatted rate such as "120-M" and binds it to store.
func NewRate(store limiter.Store, formatted string) (Rate, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return Rate{}, fmt.Errorf("ratelimit: parse rate %q: %w", formatted, err)
	}
	return Rate{L: limiter.New(store, rate)}, nil
}

// Allow increments the counter for key.
func (r Rate) Allow(ctx context.Context, key string) (Decision, error) {
	if r.L == nil {
		return Decision{Allowed: true}, nil
	}
	lctx, err := r.L.Get(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
