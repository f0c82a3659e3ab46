package service

import (
	"context"
	"time"

	"giftbox-checkout/internal/cache"
)

// memKV backs the cache service in tests; TTLs are accepted and ignored.
type memKV struct {
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}}
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	val, ok := m.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return val, nil
}

func (m *memKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memKV) Del(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memKV) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.data[key]
	return ok, nil
}

func newTestCache() *cache.Service {
	return cache.NewService(newMemKV(), 15*time.Minute, time.Hour, 30*time.Minute)
}
