package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "gid"
	defaultTimeout   = 250 * time.Millisecond
	otpRequestPrefix = "otpq:"
)

// Config holds limiter tuning parameters.
type Config struct {
	// Namespace is prepended to every key as "<namespace>:".
	Namespace string
	// MaxRequests per Window. Zero disables the limiter.
	MaxRequests int
	Window      time.Duration
	Timeout     time.Duration
}

// Limiter bounds how often one address may ask for a fresh one-time code,
// using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client. A nil client or a
// non-positive MaxRequests yields a limiter that allows everything.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Namespace == "" {
		cfg.Namespace = defaultNamespace
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Enabled reports whether Allow can ever refuse.
func (l *Limiter) Enabled() bool {
	return l != nil && l.redis != nil && l.config.MaxRequests > 0 && l.config.Window > 0
}

// Allow records one code request for email. It returns ErrRateLimited once the
// window budget is spent and ErrRedisUnavailable when the counter cannot be read.
func (l *Limiter) Allow(ctx context.Context, email string) error {
	if !l.Enabled() {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.key(email), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRequests) {
		return ErrRateLimited
	}
	return nil
}

// Requests returns the current request count for email.
// Missing keys return zero.
func (l *Limiter) Requests(ctx context.Context, email string) (int, error) {
	if !l.Enabled() {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	count, err := l.redis.Get(ctx, l.key(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) key(email string) string {
	return l.config.Namespace + ":" + otpRequestPrefix + strings.ToLower(email)
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
