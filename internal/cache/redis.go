package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

const redisKeyPrefix = "ngs:cache:"

// RedisCache stores results in Redis behind a circuit breaker. While the breaker
// is open, calls fail fast with gobreaker.ErrOpenState.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *logrus.Logger
	stats   counters
}

// NewRedisCache creates a Redis-backed cache and checks connectivity.
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	c := newRedisCache(redis.NewClient(opts), config.DefaultTTL, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		c.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return c, nil
}

func newRedisCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})
	return &RedisCache{client: client, breaker: breaker, ttl: ttl, logger: logger}
}

// Get returns the cached value. A Redis miss is not a breaker failure.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.breaker.Execute(func() (interface{}, error) {
		data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return data, err
	})
	if err != nil {
		r.stats.errors.Add(1)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	data, _ := v.([]byte)
	r.stats.record(data != nil)
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// Set stores a value with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err()
	})
	if err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.client.Del(ctx, redisKeyPrefix+key).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Ping checks if Redis connection is alive
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// State reports the breaker state.
func (r *RedisCache) State() gobreaker.State {
	return r.breaker.State()
}

// Stats returns hit/miss/error counters. Items is not tracked for Redis.
func (r *RedisCache) Stats() Stats {
	return r.stats.snapshot(0)
}

// Close closes the Redis connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
