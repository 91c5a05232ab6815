// Package cache keeps exchange network support in Redis between scans.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"arbscan/internal/exchange"
	"arbscan/internal/model"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "arbscan:networks:"

// DefaultTTL is used when no expiry is configured.
const DefaultTTL = 6 * time.Hour

// RedisNetworkCache implements exchange.NetworkStore on top of Redis string keys.
type RedisNetworkCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisNetworkCache connects to Redis and verifies the connection with a ping.
func NewRedisNetworkCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisNetworkCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return NewRedisNetworkCacheFromClient(rdb, ttl), nil
}

// NewRedisNetworkCacheFromClient wraps an existing client.
func NewRedisNetworkCacheFromClient(rdb *redis.Client, ttl time.Duration) *RedisNetworkCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisNetworkCache{rdb: rdb, ttl: ttl}
}

func networkKey(exchange, asset string) string {
	return keyPrefix + strings.ToLower(exchange) + ":" + strings.ToUpper(asset)
}

// Get returns the cached set, reporting false on a miss.
func (c *RedisNetworkCache) Get(ctx context.Context, exchange, asset string) (model.NetworkSet, bool, error) {
	raw, err := c.rdb.Get(ctx, networkKey(exchange, asset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s/%s: %w", exchange, asset, err)
	}

	var networks []model.Network
	if err := json.Unmarshal(raw, &networks); err != nil {
		return nil, false, fmt.Errorf("cache: decode %s/%s: %w", exchange, asset, err)
	}
	return model.NewNetworkSet(networks...), true, nil
}

// Set stores the set under the configured TTL.
func (c *RedisNetworkCache) Set(ctx context.Context, exchange, asset string, set model.NetworkSet) error {
	networks := make([]model.Network, 0, len(set))
	for _, id := range set.IDs() {
		networks = append(networks, set[id])
	}
	raw, err := json.Marshal(networks)
	if err != nil {
		return fmt.Errorf("cache: encode %s/%s: %w", exchange, asset, err)
	}
	if err := c.rdb.Set(ctx, networkKey(exchange, asset), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s/%s: %w", exchange, asset, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisNetworkCache) Close() error {
	return c.rdb.Close()
}

var _ exchange.NetworkStore = (*RedisNetworkCache)(nil)
