// Package ratelimit throttles storefront traffic. Promo code attempts use a
// strict sliding window per cart; general traffic uses fixed-rate buckets per
// client IP.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
