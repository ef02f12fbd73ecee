// Package cache provides a read-through cache over the profile store. The
// store is always the source of truth: writes go to the store first and the
// cached copy is invalidated, never updated in place.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Config holds Redis connection configuration
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

// ProfileCache caches profiles by public id in Redis.
type ProfileCache struct {
	rdb    *redis.Client
	logger ectologger.Logger
	ttl    time.Duration
}

// NewProfileCache creates a new cache, verifying the connection.
func NewProfileCache(cfg Config, logger ectologger.Logger) (*ProfileCache, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Infof("Connected to Redis at %s", addr)

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &ProfileCache{
		rdb:    rdb,
		logger: logger,
		ttl:    ttl,
	}, nil
}

// Close closes the Redis connection
func (c *ProfileCache) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *ProfileCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func cacheKey(publicID string) string {
	return "fern:profile:" + publicID
}

// Get returns the cached profile for a public id, or (nil, nil) on a miss.
// Cache errors degrade to a miss; the store remains authoritative.
func (c *ProfileCache) Get(ctx context.Context, publicID string) (*models.Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "cache.ProfileCache.Get")
	defer span.End()

	raw, err := c.rdb.Get(ctx, cacheKey(publicID)).Result()
	if err == redis.Nil {
		metrics.RecordCacheOperation("miss")
		return nil, nil
	}
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Warn("Profile cache read failed")
		metrics.RecordCacheOperation("error")
		return nil, nil
	}

	var profile models.Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		// stale or corrupt entry; drop it and fall through to the store
		_ = c.rdb.Del(ctx, cacheKey(publicID)).Err()
		metrics.RecordCacheOperation("miss")
		return nil, nil
	}

	metrics.RecordCacheOperation("hit")
	return &profile, nil
}

// Set stores a profile read from the store.
func (c *ProfileCache) Set(ctx context.Context, profile *models.Profile) error {
	ctx, span := tracing.StartSpan(ctx, "cache.ProfileCache.Set")
	defer span.End()

	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	if err := c.rdb.Set(ctx, cacheKey(profile.PublicID), data, c.ttl).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": profile.PublicID}).Warn("Profile cache write failed")
		return err
	}
	return nil
}

// Invalidate drops the cached copy after a store write.
func (c *ProfileCache) Invalidate(ctx context.Context, publicID string) {
	ctx, span := tracing.StartSpan(ctx, "cache.ProfileCache.Invalidate")
	defer span.End()

	if err := c.rdb.Del(ctx, cacheKey(publicID)).Err(); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"public_id": publicID}).Warn("Profile cache invalidation failed")
		return
	}
	metrics.RecordCacheOperation("invalidate")
}
