package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// DedupCache — TTL-кэш ключей идемпотентности вебхуков. Быстрый путь перед
// уникальным индексом БД; при недоступности Redis вызывающий обязан
// провалиться на путь через БД.
type DedupCache struct {
	client *redis.Client
	prefix string
}

// NewDedupCache создает кэш с заданным префиксом ключей.
func NewDedupCache(client *redis.Client, prefix string) *DedupCache {
	return &DedupCache{client: client, prefix: prefix}
}

// Seen атомарно отмечает ключ. true — ключ уже встречался.
func (c *DedupCache) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+":"+key, 1, dedupTTL).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
