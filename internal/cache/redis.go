package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ascvd-risk-server/internal/config"
	"github.com/ascvd-risk-server/internal/domain"
)

// RedisCache is a shared result cache backed by Redis. All operations fail
// open: when Redis is down or the circuit breaker is tripped, Get reports a
// miss and Set is a no-op, so risk computation is never blocked on cache
// availability.
type RedisCache struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	log     *logrus.Logger
}

// NewRedisCache creates a Redis-backed result cache.
func NewRedisCache(cfg *config.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})

	return &RedisCache{
		client:  client,
		breaker: breaker,
		ttl:     cfg.DefaultTTL,
		log:     logger,
	}, nil
}

type cachedResult struct {
	Result   *domain.RiskResult `json:"result"`
	CachedAt time.Time          `json:"cached_at"`
}

// Get returns the cached result for a profile, if present.
func (c *RedisCache) Get(ctx context.Context, profile *domain.PatientProfile) (*domain.RiskResult, bool) {
	key := ProfileKey(profile)

	val, err := c.breaker.Execute(func() (interface{}, error) {
		return c.client.Get(ctx, key).Result()
	})
	if err != nil {
		if err != redis.Nil && err != gobreaker.ErrOpenState {
			c.log.WithError(err).Debug("Redis cache get failed")
		}
		return nil, false
	}

	var cached cachedResult
	if err := json.Unmarshal([]byte(val.(string)), &cached); err != nil {
		// corrupt entry
		c.client.Del(ctx, key)
		return nil, false
	}

	return cached.Result, true
}

// Set stores a result for a profile.
func (c *RedisCache) Set(ctx context.Context, profile *domain.PatientProfile, result *domain.RiskResult) {
	key := ProfileKey(profile)

	data, err := json.Marshal(cachedResult{
		Result:   result,
		CachedAt: time.Now().UTC(),
	})
	if err != nil {
		return
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil && err != gobreaker.ErrOpenState {
		c.log.WithError(err).Debug("Redis cache set failed")
	}
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Tiered checks the memory cache first, then Redis, backfilling the memory
// cache on a Redis hit. Writes go to both layers.
type Tiered struct {
	memory *MemoryCache
	redis  *RedisCache
}

// NewTiered combines a memory cache with an optional Redis cache.
// redisCache may be nil.
func NewTiered(memory *MemoryCache, redisCache *RedisCache) *Tiered {
	return &Tiered{memory: memory, redis: redisCache}
}

// Get returns the cached result for a profile, if present in either layer.
func (t *Tiered) Get(ctx context.Context, profile *domain.PatientProfile) (*domain.RiskResult, bool) {
	if result, ok := t.memory.Get(ctx, profile); ok {
		return result, true
	}
	if t.redis != nil {
		if result, ok := t.redis.Get(ctx, profile); ok {
			t.memory.Set(ctx, profile, result)
			return result, true
		}
	}
	return nil, false
}

// Set stores a result for a profile in all layers.
func (t *Tiered) Set(ctx context.Context, profile *domain.PatientProfile, result *domain.RiskResult) {
	t.memory.Set(ctx, profile, result)
	if t.redis != nil {
		t.redis.Set(ctx, profile, result)
	}
}
