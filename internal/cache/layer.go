package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Hooks observe cache outcomes. Nil fields are ignored.
type Hooks struct {
	Hit   func()
	Miss  func()
	Error func()
}

// Layer is the best-effort JSON view over a Store.
//
// Reads and writes never fail from the caller's point of view: any error is logged
// at Warn, counted, and reported as a miss. A Layer with a nil Store is disabled and
// every read misses.
type Layer struct {
	store  Store
	logger *zap.Logger
	hooks  Hooks
}

// NewLayer wraps store. store and logger may be nil.
func NewLayer(store Store, logger *zap.Logger, hooks Hooks) *Layer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layer{store: store, logger: logger.Named("cache"), hooks: hooks}
}

// Enabled reports whether a Store is configured.
func (l *Layer) Enabled() bool {
	return l != nil && l.store != nil
}

// Available reports whether the Store is configured and currently reachable.
func (l *Layer) Available() bool {
	return l.Enabled() && l.store.Available()
}

// GetJSON decodes the entry at key into dst and reports whether it was found.
// Undecodable entries are evicted and treated as misses.
func (l *Layer) GetJSON(ctx context.Context, key string, dst any) bool {
	if !l.Enabled() {
		return false
	}
	if !l.store.Available() {
		l.fire(l.hooks.Error)
		return false
	}

	data, found, err := l.store.Get(ctx, key)
	if err != nil {
		l.fire(l.hooks.Error)
		l.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		l.fire(l.hooks.Miss)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		l.fire(l.hooks.Error)
		l.logger.Warn("cache entry undecodable, evicting", zap.String("key", key), zap.Error(err))
		_ = l.store.Delete(ctx, key)
		return false
	}

	l.fire(l.hooks.Hit)
	return true
}

// SetJSON stores v at key with ttl. Failures are logged only.
func (l *Layer) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	if !l.Available() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		l.logger.Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.store.Set(ctx, key, data, ttl); err != nil {
		l.fire(l.hooks.Error)
		l.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys. Unlike reads, the error is returned so invalidation can
// account for it.
func (l *Layer) Delete(ctx context.Context, keys ...string) error {
	if !l.Enabled() || len(keys) == 0 {
		return nil
	}
	if !l.store.Available() {
		return ErrUnavailable
	}
	return l.store.Delete(ctx, keys...)
}

// DeletePrefix removes every key under prefix and returns how many were removed.
func (l *Layer) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := l.Keys(ctx, prefix)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Keys lists keys under prefix.
func (l *Layer) Keys(ctx context.Context, prefix string) ([]string, error) {
	if !l.Enabled() {
		return nil, nil
	}
	if !l.store.Available() {
		return nil, ErrUnavailable
	}
	return l.store.Keys(ctx, prefix)
}

func (l *Layer) fire(fn func()) {
	if fn != nil {
		fn()
	}
}
