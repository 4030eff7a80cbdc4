package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
)

const metadataKeyPrefix = "receipt:meta:"

// RedisMetadataCache shares rendered metadata across instances. This is the
// production-recommended cache for multi-instance deployments; a miss just
// falls back to regeneration from the deposit snapshot.
type RedisMetadataCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMetadataCache(client *redis.Client, ttl time.Duration) *RedisMetadataCache {
	return &RedisMetadataCache{client: client, ttl: ttl}
}

func (c *RedisMetadataCache) Put(ctx context.Context, tokenID id.TokenID, doc []byte) error {
	key := metadataKeyPrefix + tokenID.String()
	if err := c.client.Set(ctx, key, doc, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache metadata: %w", err)
	}
	return nil
}

func (c *RedisMetadataCache) Get(ctx context.Context, tokenID id.TokenID) ([]byte, error) {
	key := metadataKeyPrefix + tokenID.String()
	doc, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata cache: %w", err)
	}
	return doc, nil
}

func (c *RedisMetadataCache) Delete(ctx context.Context, tokenID id.TokenID) error {
	key := metadataKeyPrefix + tokenID.String()
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete metadata cache: %w", err)
	}
	return nil
}
