package cache

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "marketplace:"

// DefaultTTL bounds how stale a cached marketplace page may be.
const DefaultTTL = 5 * time.Minute

// MarketplaceCache stores rendered marketplace query results in Redis.
// Invalidation is coarse: any vehicle write clears every cached page.
type MarketplaceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMarketplaceCache builds a cache with the given TTL (DefaultTTL if zero).
func NewMarketplaceCache(client *redis.Client, ttl time.Duration) *MarketplaceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MarketplaceCache{client: client, ttl: ttl}
}

// CanonicalKey derives a cache key from query parameters. Parameter order in
// the URL does not matter: identical filters always share one key.
func CanonicalKey(params url.Values) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		values := append([]string(nil), params[name]...)
		sort.Strings(values)
		for _, value := range values {
			parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(value))
		}
	}
	return keyPrefix + strings.Join(parts, "&")
}

// Get returns the cached payload for a key, if present.
func (c *MarketplaceCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Set stores a payload under a key with the cache TTL.
func (c *MarketplaceCache) Set(ctx context.Context, key string, payload []byte) error {
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate removes every cached marketplace page.
func (c *MarketplaceCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
