/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package redisstore provides a Redis-backed implementation of store.Store.
// All admission instances pointed at the same Redis share window logs and batch markers.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/acronis/go-admitgate/log"
	"github.com/acronis/go-admitgate/netutil"
	"github.com/acronis/go-admitgate/retry"
	"github.com/acronis/go-admitgate/store"
)

// RedisStore implements store.Store on top of Redis GET and SET with expiration.
type RedisStore struct {
	client redis.UniversalClient
}

var _ store.Store = (*RedisStore)(nil)

// New creates a new RedisStore that uses already configured client.
func New(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// NewClient creates a new Redis client from the configuration.
func NewClient(cfg *Config) *redis.Client {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  time.Duration(cfg.Timeouts.Dial),
		ReadTimeout:  time.Duration(cfg.Timeouts.Read),
		WriteTimeout: time.Duration(cfg.Timeouts.Write),
	}
	if len(cfg.DNSServers) != 0 {
		resolver := netutil.NewCustomDNSResolver(cfg.DNSServers, time.Duration(cfg.Timeouts.Dial))
		dialer := &net.Dialer{Timeout: time.Duration(cfg.Timeouts.Dial), Resolver: &resolver}
		opts.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		}
	}
	return redis.NewClient(opts)
}

// Connect creates a new Redis client from the configuration and checks the connection with PING.
// PING is retried with exponential backoff according to cfg.Ping.
func Connect(ctx context.Context, cfg *Config, logger log.FieldLogger) (*RedisStore, error) {
	client := NewClient(cfg)
	policy := retry.NewExponentialBackoffPolicy(time.Duration(cfg.Ping.RetryInitialInterval), cfg.Ping.RetryAttempts)
	notify := func(err error, delay time.Duration) {
		logger.Warn("redis ping failed, will retry",
			log.String("address", cfg.Address), log.Error(err), log.Duration("delay", delay))
	}
	if err := retry.DoWithRetry(ctx, policy, nil, backoff.Notify(notify), func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w: %w", cfg.Address, store.ErrUnavailable, err)
	}
	return New(client), nil
}

// Get returns the value stored by the key.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get %q: %w: %w", key, store.ErrUnavailable, err)
	}
	return val, true, nil
}

// Put stores the value by the key with expiration. Zero ttl means no expiration.
func (s *RedisStore) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("ttl should be >= 0, got %s", ttl)
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w: %w", key, store.ErrUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
