package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by KV.Get when the key does not exist.
var ErrCacheMiss = errors.New("cache miss")

// KV is the narrow contract the backing cache service offers: single-key
// operations only, no enumeration and no prefix deletion.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
