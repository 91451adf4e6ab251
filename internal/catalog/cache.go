package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/gamevault-api/internal/metrics"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const gameKeyPrefix = "gamevault:game:"

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Lookup resolves one game id to card metadata.
type Lookup interface {
	GameByID(ctx context.Context, id string) (*models.Game, error)
}

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedLookup is a read-through cache in front of a Lookup. Cache failures
// fall back to the wrapped lookup.
type CachedLookup struct {
	next   Lookup
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func Cached(next Lookup, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedLookup {
	return &CachedLookup{next: next, cache: cache, ttl: ttl, logger: logger.Named("catalog_cache")}
}

func (c *CachedLookup) GameByID(ctx context.Context, id string) (*models.Game, error) {
	key := gameKeyPrefix + id

	data, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var game models.Game
		if err := json.Unmarshal(data, &game); err == nil {
			metrics.CatalogLookups.WithLabelValues(metrics.ResultCacheHit).Inc()
			return &game, nil
		}
		c.logger.Warn("discarding undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	game, err := c.next.GameByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(game); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return game, nil
}
