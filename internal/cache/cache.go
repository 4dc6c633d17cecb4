package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("key not found in cache")
	ErrClosed   = errors.New("cache is closed")
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Close() error
}

const DefaultTTL = 7 * 24 * time.Hour
