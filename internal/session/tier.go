// internal/session/tier.go
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	TierScoped  = "scoped"
	TierDurable = "durable"
)

// Tier is one key/value storage level for session snapshots.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryTier lives as long as the process, the scoped level.
type MemoryTier struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{data: make(map[string]string)}
}

func (m *MemoryTier) Name() string { return TierScoped }

func (m *MemoryTier) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryTier) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryTier) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// RedisTier survives restarts, the durable level. Keys carry a Redis TTL so
// abandoned sessions are evicted even if nobody loads them again.
type RedisTier struct {
	client *redis.Client
	keyTTL time.Duration
}

func NewRedisTier(client *redis.Client, keyTTL time.Duration) *RedisTier {
	return &RedisTier{client: client, keyTTL: keyTTL}
}

func (r *RedisTier) Name() string { return TierDurable }

func (r *RedisTier) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisTier) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, r.keyTTL).Err()
}

func (r *RedisTier) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}
