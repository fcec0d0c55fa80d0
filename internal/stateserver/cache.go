// internal/stateserver/cache.go
package stateserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrefix  = "application_state"
	defaultCacheKey = "default"
)

// Cache holds retrieve results in Redis, keyed by user and channel.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(user, channel string) string {
	if channel == "" {
		channel = defaultCacheKey
	}
	return fmt.Sprintf("%s:%s:%s", cacheKeyPrefix, user, channel)
}

// Get returns the cached state for the lookup. A nil cache always misses.
func (c *Cache) Get(ctx context.Context, user, channel string) (*State, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}

	raw, err := c.client.Get(ctx, cacheKey(user, channel)).Bytes()
	if err == redis.Nil {
		metrics.StateCacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.StateCacheLookups.WithLabelValues("error").Inc()
		return nil, false, errors.NewCacheFailedError("get", err)
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		metrics.StateCacheLookups.WithLabelValues("error").Inc()
		return nil, false, errors.NewCacheFailedError("decode", err)
	}
	metrics.StateCacheLookups.WithLabelValues("hit").Inc()
	return &st, true, nil
}

func (c *Cache) Set(ctx context.Context, user, channel string, st *State) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return errors.NewCacheFailedError("encode", err)
	}
	if err := c.client.Set(ctx, cacheKey(user, channel), raw, c.ttl).Err(); err != nil {
		return errors.NewCacheFailedError("set", err)
	}
	return nil
}

// Invalidate drops the channel-specific and the any-channel entry for user.
func (c *Cache) Invalidate(ctx context.Context, user, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	keys := []string{cacheKey(user, "")}
	if channel != "" {
		keys = append(keys, cacheKey(user, channel))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.NewCacheFailedError("invalidate", err)
	}
	return nil
}
