package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScanLock — распределенный лок скана критических поездок: при нескольких
// инстансах скан выполняет только захвативший ключ.
type ScanLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewScanLock создает лок с TTL, покрывающим длительность одного скана.
func NewScanLock(client *redis.Client, key string, ttl time.Duration) *ScanLock {
	return &ScanLock{client: client, key: key, ttl: ttl}
}

// TryAcquire пытается захватить лок. false — лок держит другой инстанс.
func (l *ScanLock) TryAcquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, 1, l.ttl).Result()
}

// Release освобождает лок.
func (l *ScanLock) Release(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}
