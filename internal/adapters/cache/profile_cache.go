package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/xenwatch/identity-notify-service/internal/core/domain"
	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// RedisClient is the subset of *redis.Client the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type ProfileCache struct {
	client RedisClient
	ttl    time.Duration
	cb     *gobreaker.CircuitBreaker
}

var _ ports.ProfileCache = (*ProfileCache)(nil)

// NewProfileCache wraps client. cb may be nil.
func NewProfileCache(client RedisClient, ttl time.Duration, cb *gobreaker.CircuitBreaker) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl, cb: cb}
}

// execute runs fn behind the breaker. A cache miss is not a failure.
func (c *ProfileCache) execute(fn func() error) error {
	if c.cb == nil {
		return fn()
	}
	var miss bool
	_, err := c.cb.Execute(func() (interface{}, error) {
		err := fn()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil, nil
		}
		return nil, err
	})
	if miss {
		return redis.Nil
	}
	return err
}

func profileKey(userID string) string {
	return "profile:" + userID
}

func (c *ProfileCache) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var raw []byte
	err := c.execute(func() (err error) {
		raw, err = c.client.Get(ctx, profileKey(userID)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var p domain.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode cached profile: %w", err)
	}
	return &p, nil
}

// Set stores profile unless it is a degraded view.
func (c *ProfileCache) Set(ctx context.Context, userID string, profile *domain.Profile) error {
	if profile == nil || profile.Minimal {
		return nil
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	err = c.execute(func() error {
		return c.client.Set(ctx, profileKey(userID), raw, c.ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	err := c.execute(func() error {
		return c.client.Del(ctx, profileKey(userID)).Err()
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
