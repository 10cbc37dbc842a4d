package goIdentity

import (
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheStore is the raw key/value contract behind the read-model cache. Most callers
// use [Builder.WithRedis]; tests may plug an in-memory store.
type CacheStore = cache.Store

// Builder collects collaborators and configuration for an [Engine].
//
// Builder instances are intended to be configured during initialization and used once.
type Builder struct {
	config Config
	logger *zap.Logger

	accounts  CredentialStore
	content   ContentStore
	redis     redis.UniversalClient
	cache     CacheStore
	deliverer OTPDeliverer
	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCredentialStore sets the durable account store. Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.accounts = store
	return b
}

// WithContentStore sets the post and follow-graph store. Without it the read-model
// methods return ErrEngineNotReady.
func (b *Builder) WithContentStore(store ContentStore) *Builder {
	b.content = store
	return b
}

// WithRedis caches read models in Redis. The engine owns the availability probe but
// not the client; close the client after [Engine.Close].
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCacheStore caches read models in an arbitrary store. It takes precedence over
// WithRedis.
func (b *Builder) WithCacheStore(store CacheStore) *Builder {
	b.cache = store
	return b
}

// WithDeliverer sets the OTP deliverer. Without one, codes are rendered and dropped
// with a Warn log.
func (b *Builder) WithDeliverer(d OTPDeliverer) *Builder {
	b.deliverer = d
	return b
}

// WithAuditSink sets the audit destination. Audit.Enabled must be true for events to
// flow.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Login and VerifyToken latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for tokens, codes and flows.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("credential store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.clock
	if now == nil {
		now = time.Now
	}

	engine, err := newEngine(cfg, engineParts{
		logger:    logger,
		now:       now,
		accounts:  b.accounts,
		content:   b.content,
		redis:     b.redis,
		cache:     b.cache,
		deliverer: b.deliverer,
		auditSink: b.auditSink,
	})
	if err != nil {
		return nil, err
	}

	b.built = true
	return engine, nil
}
