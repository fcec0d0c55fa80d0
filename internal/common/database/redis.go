// internal/common/database/redis.go
package database

import (
	"context"
	"errors"
	"fmt"

	"application-wizard/internal/common/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var errNoRedisAddress = errors.New("redis address is required")

// RedisClient holds the connection shared by the state cache and the save
// lock.
type RedisClient struct {
	Client *redis.Client
	locker *redislock.Client
}

// redisOptions maps the config onto go-redis options. Zero values fall back
// to the go-redis defaults.
func redisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.Address == "" {
		return nil, errNoRedisAddress
	}
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  config.GetDuration(cfg.DialTimeout),
		ReadTimeout:  config.GetDuration(cfg.IOTimeout),
		WriteTimeout: config.GetDuration(cfg.IOTimeout),
	}
	if opts.MinIdleConns > opts.PoolSize && opts.PoolSize > 0 {
		opts.MinIdleConns = opts.PoolSize
	}
	return opts, nil
}

func NewRedis(cfg config.RedisConfig) (*RedisClient, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	return &RedisClient{Client: rdb, locker: redislock.New(rdb)}, nil
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.Client.Options().Addr, err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// Locker returns the distributed lock client bound to this connection.
func (c *RedisClient) Locker() *redislock.Client {
	return c.locker
}

func (c *RedisClient) GetClient() *redis.Client {
	return c.Client
}
