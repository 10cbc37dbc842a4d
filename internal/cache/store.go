package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned by a Store when the backend cannot serve the call.
var ErrUnavailable = errors.New("cache unavailable")

// Store is a key/value cache with per-entry TTL.
//
// Get reports found=false with a nil error on a miss. Keys returns every live key
// starting with prefix.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
	Available() bool
}
