package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

// ResultCache implements domain.ResultCache with plain string keys.
//
// Key schema:
//
//	pricing:result:{hash} - serialized response, expires after the TTL
type ResultCache struct {
	rdb *redis.Client
}

// NewResultCache creates a ResultCache backed by the given Client.
func NewResultCache(c *Client) *ResultCache {
	return &ResultCache{rdb: c.Underlying()}
}

func resultKey(key string) string { return "pricing:result:" + key }

// Get returns the cached payload for key, or domain.ErrNotFound.
func (rc *ResultCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.rdb.Get(ctx, resultKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get result %s: %w", key, err)
	}
	return data, nil
}

// Set stores payload under key. A zero ttl keeps the entry until evicted.
func (rc *ResultCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := rc.rdb.Set(ctx, resultKey(key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultCache = (*ResultCache)(nil)
