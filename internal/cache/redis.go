package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultRedisTimeout   = 250 * time.Millisecond
	defaultProbeInterval  = 5 * time.Second
	defaultScanCount      = 256
	defaultRedisNamespace = "gid"
)

// RedisConfig tunes a RedisStore.
type RedisConfig struct {
	// Namespace is prepended to every key as "<namespace>:".
	Namespace     string
	Timeout       time.Duration
	ProbeInterval time.Duration
	ScanCount     int64
}

// RedisStore is a Store backed by go-redis.
//
// Any call failure marks the store unavailable; a background PING probe (see
// [RedisStore.StartProbe]) or the next successful call marks it available again.
type RedisStore struct {
	client    redis.UniversalClient
	cfg       RedisConfig
	logger    *zap.Logger
	available atomic.Bool

	probeOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewRedisStore wraps client. The store starts available.
func NewRedisStore(client redis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *RedisStore {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultRedisNamespace
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRedisTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = defaultScanCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &RedisStore{
		client: client,
		cfg:    cfg,
		logger: logger.Named("cache.redis"),
		stop:   make(chan struct{}),
	}
	s.available.Store(client != nil)
	return s
}

func (s *RedisStore) key(k string) string {
	return s.cfg.Namespace + ":" + k
}

func (s *RedisStore) unkey(k string) string {
	return strings.TrimPrefix(k, s.cfg.Namespace+":")
}

func (s *RedisStore) observe(err error) error {
	if err == nil {
		if !s.available.Swap(true) {
			s.logger.Info("redis cache recovered")
		}
		return nil
	}
	if s.available.Swap(false) {
		s.logger.Warn("redis cache marked unavailable", zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.client == nil {
		return nil, false, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, s.observe(nil)
	}
	if err != nil {
		return nil, false, s.observe(err)
	}
	return data, true, s.observe(nil)
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.client == nil {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	return s.observe(s.client.Set(ctx, s.key(key), value, ttl).Err())
}

// Delete implements Store. Keys are removed one command per key inside a pipeline
// so the call stays valid on Redis Cluster.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if s.client == nil {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, s.key(k))
		}
		return nil
	})
	return s.observe(err)
}

// Keys implements Store using SCAN with an escaped MATCH pattern.
func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if s.client == nil {
		return nil, ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	match := escapeMatch(s.key(prefix)) + "*"
	var (
		cursor uint64
		out    []string
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, match, s.cfg.ScanCount).Result()
		if err != nil {
			return nil, s.observe(err)
		}
		for _, k := range batch {
			out = append(out, s.unkey(k))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, s.observe(nil)
}

// Available implements Store.
func (s *RedisStore) Available() bool {
	return s.available.Load()
}

// Ping runs one availability probe and updates the flag.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.observe(s.client.Ping(ctx).Err())
}

// StartProbe launches the background PING loop. Calling it more than once is a no-op.
func (s *RedisStore) StartProbe() {
	s.probeOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(s.cfg.ProbeInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_ = s.Ping(context.Background())
				case <-s.stop:
					return
				}
			}
		}()
	})
}

// Close stops the probe. It does not close the underlying client.
func (s *RedisStore) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.wg.Wait()
}

func escapeMatch(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(p[i])
	}
	return b.String()
}
