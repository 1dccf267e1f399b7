package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// RedisCache shares cached reports between replicas.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

var _ domain.ReportCache = (*RedisCache)(nil)

// cachedReport is the stored envelope.
type cachedReport struct {
	Report    *domain.AssessmentReport `json:"report"`
	CachedAt  time.Time                `json:"cached_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// NewRedisCache connects to the Redis server in config.RedisURL.
func NewRedisCache(ctx context.Context, config domain.CacheConfig) (*RedisCache, error) {
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

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheFromClient(client, config.DefaultTTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{redis: client, defaultTTL: ttl}
}

// Get retrieves a cached report. Corrupt or expired entries are deleted and reported as misses.
func (c *RedisCache) Get(ctx context.Context, key string) (*domain.AssessmentReport, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached report: %w", err)
	}

	var cached cachedReport
	if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Report == nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	return cached.Report, true, nil
}

// Set stores report under key for the default TTL.
func (c *RedisCache) Set(ctx context.Context, key string, report *domain.AssessmentReport) error {
	now := time.Now()
	data, err := json.Marshal(cachedReport{
		Report:    report,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cached report: %w", err)
	}

	return c.redis.Set(ctx, key, data, c.defaultTTL).Err()
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
