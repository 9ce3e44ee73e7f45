package existence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"redmig/internal/domain"
)

// existenceTTL bounds how long a cached fact is trusted. Destination data can
// change between runs; a day is long enough to cover a resumed migration.
const existenceTTL = 24 * time.Hour

// RedisCache shares existence facts across processes, useful when a long
// migration is resumed on a different host.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a Redis-backed existence cache. prefix namespaces keys
// per project so two migrations can share one Redis.
func NewRedis(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) Lookup(ctx context.Context, key domain.Key) (bool, bool, error) {
	val, err := c.client.Get(ctx, c.prefix+":"+cacheKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("existence cache lookup: %w", err)
	}
	return val == "1", true, nil
}

func (c *RedisCache) Store(ctx context.Context, key domain.Key, exists bool) error {
	val := "0"
	if exists {
		val = "1"
	}
	if err := c.client.Set(ctx, c.prefix+":"+cacheKey(key), val, existenceTTL).Err(); err != nil {
		return fmt.Errorf("existence cache store: %w", err)
	}
	return nil
}
