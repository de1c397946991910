package db

import (
	"context"
	"time"
)

// KV is the key-value store contract. Missing keys are reported as
// ErrKeyNotFound.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close()
}
