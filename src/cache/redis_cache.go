package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/models"
)

// RedisCache is the exact-match cache store. Expiry is delegated to
// Redis TTLs, so expired entries are never visible to readers.
type RedisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client:     client,
		defaultTTL: cfg.CacheTTL,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.CachedAnswer, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCacheUnavailable, err)
	}

	var answer models.CachedAnswer
	if err := json.Unmarshal([]byte(val), &answer); err != nil {
		return nil, err
	}

	return &answer, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, answer *models.CachedAnswer, ttl time.Duration) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrCacheUnavailable, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying Redis client for direct access
func (c *RedisCache) GetClient() *redis.Client {
	return c.client
}
