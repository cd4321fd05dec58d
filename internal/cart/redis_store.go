package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "cart:"

// RedisStore persists carts as JSON documents with a sliding TTL.
type RedisStore struct {
	R          *redis.Client
	TTL        time.Duration
	Prefix     string
	MaxRetries int
}

func (s RedisStore) key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return prefix + id
}

func (s RedisStore) retries() int {
	if s.MaxRetries <= 0 {
		return 5
	}
	return s.MaxRetries
}

// Create implements Store.
func (s RedisStore) Create(ctx context.Context, c Cart) error {
	if s.R == nil {
		return errors.New("cart: redis client not configured")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.R.Set(ctx, s.key(c.ID), payload, s.TTL).Err()
}

// Get implements Store.
func (s RedisStore) Get(ctx context.Context, id string) (Cart, error) {
	if s.R == nil {
		return Cart{}, errors.New("cart: redis client not configured")
	}
	return s.read(ctx, s.R, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s RedisStore) read(ctx context.Context, g getter, id string) (Cart, error) {
	raw, err := g.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, err
	}
	var c Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return c, nil
}

// Update implements Store using an optimistic WATCH/MULTI transaction.
func (s RedisStore) Update(ctx context.Context, id string, fn func(*Cart) error) (Cart, error) {
	if s.R == nil {
		return Cart{}, errors.New("cart: redis client not configured")
	}
	key := s.key(id)
	var updated Cart
	txf := func(tx *redis.Tx) error {
		c, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.TTL)
			return nil
		})
		if err == nil {
			updated = c
		}
		return err
	}
	for i := 0; i < s.retries(); i++ {
		err := s.R.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Cart{}, err
		}
		return updated, nil
	}
	return Cart{}, fmt.Errorf("cart %s: concurrent update retries exhausted", id)
}

// Delete implements Store.
func (s RedisStore) Delete(ctx context.Context, id string) error {
	if s.R == nil {
		return errors.New("cart: redis client not configured")
	}
	return s.R.Del(ctx, s.key(id)).Err()
}
