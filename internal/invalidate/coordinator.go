package invalidate

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cache is the subset of the cache layer used for invalidation.
type Cache interface {
	Enabled() bool
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Scheduler runs fn detached from the request. It reports false when the work was
// not accepted.
type Scheduler func(name string, fn func(ctx context.Context) error) bool

// Coordinator executes invalidation families.
type Coordinator struct {
	cache    Cache
	logger   *zap.Logger
	schedule Scheduler
	sync     bool

	deleted atomic.Uint64
	failed  atomic.Uint64
	onFail  func()
}

// Config selects execution mode.
type Config struct {
	// Synchronous runs invalidation on the caller's goroutine before returning.
	Synchronous bool
	// OnFailure is called once per failed family.
	OnFailure func()
}

// New returns a coordinator. schedule may be nil, which forces synchronous mode.
func New(c Cache, schedule Scheduler, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cache:    c,
		logger:   logger.Named("invalidate"),
		schedule: schedule,
		sync:     cfg.Synchronous || schedule == nil,
		onFail:   cfg.OnFailure,
	}
}

// Invalidate deletes families, detached unless the coordinator is synchronous.
// Call it only after the durable write has succeeded.
func (c *Coordinator) Invalidate(ctx context.Context, reason string, families ...Family) {
	if c == nil || c.cache == nil || !c.cache.Enabled() || len(families) == 0 {
		return
	}
	if c.sync {
		_ = c.Run(context.WithoutCancel(ctx), reason, families...)
		return
	}

	fams := append([]Family(nil), families...)
	accepted := c.schedule("invalidate:"+reason, func(ctx context.Context) error {
		return c.Run(ctx, reason, fams...)
	})
	if !accepted {
		c.logger.Warn("invalidation not scheduled, falling back to TTL", zap.String("reason", reason), zap.Int("families", len(fams)))
		c.failed.Add(uint64(len(fams)))
		if c.onFail != nil {
			for range fams {
				c.onFail()
			}
		}
	}
}

// Evict deletes families on the caller's goroutine in either mode. Entries that
// grant access go through Evict so they are gone when the mutation returns.
func (c *Coordinator) Evict(ctx context.Context, reason string, families ...Family) {
	if c == nil || c.cache == nil || !c.cache.Enabled() || len(families) == 0 {
		return
	}
	_ = c.Run(context.WithoutCancel(ctx), reason, families...)
}

// Run deletes families concurrently and returns the number that failed as an error
// for the executor's bookkeeping; every failure is already logged.
func (c *Coordinator) Run(ctx context.Context, reason string, families ...Family) error {
	g, gctx := errgroup.WithContext(ctx)
	var failures atomic.Int64

	exact := make([]string, 0, len(families))
	for _, f := range families {
		if !f.Prefix {
			exact = append(exact, f.Key)
			continue
		}
		f := f
		g.Go(func() error {
			n, err := c.cache.DeletePrefix(gctx, f.Key)
			if err != nil {
				c.fail(reason, f, err)
				failures.Add(1)
				return nil
			}
			c.deleted.Add(uint64(n))
			return nil
		})
	}
	if len(exact) > 0 {
		g.Go(func() error {
			if err := c.cache.Delete(gctx, exact...); err != nil {
				for _, k := range exact {
					c.fail(reason, Exact(k), err)
				}
				failures.Add(int64(len(exact)))
				return nil
			}
			c.deleted.Add(uint64(len(exact)))
			return nil
		})
	}
	_ = g.Wait()

	if n := failures.Load(); n > 0 {
		return &PartialError{Reason: reason, Failed: int(n)}
	}
	return nil
}

func (c *Coordinator) fail(reason string, f Family, err error) {
	c.failed.Add(1)
	if c.onFail != nil {
		c.onFail()
	}
	c.logger.Warn("cache invalidation failed",
		zap.String("reason", reason),
		zap.String("family", f.String()),
		zap.Error(err),
	)
}

// Deleted returns how many keys have been removed so far.
func (c *Coordinator) Deleted() uint64 {
	if c == nil {
		return 0
	}
	return c.deleted.Load()
}

// Failed returns how many families could not be invalidated.
func (c *Coordinator) Failed() uint64 {
	if c == nil {
		return 0
	}
	return c.failed.Load()
}
