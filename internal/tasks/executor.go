package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a named unit of detached work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Config sizes the executor.
//
// Workers == 0 selects inline mode: Submit runs the task on the caller's goroutine
// with a detached context. Inline mode exists for tests and single-shot tools.
type Config struct {
	Workers     int
	BufferSize  int
	TaskTimeout time.Duration
}

// Executor drains a bounded queue with a fixed worker pool.
type Executor struct {
	cfg       Config
	logger    *zap.Logger
	ch        chan Task
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	completed atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
	onFailure func(Task, error)
}

// New starts an executor. logger may be nil.
func New(cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers < 0 {
		cfg.Workers = 0
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	e := &Executor{
		cfg:    cfg,
		logger: logger.Named("tasks"),
		done:   make(chan struct{}),
	}
	if cfg.Workers == 0 {
		return e
	}

	e.ch = make(chan Task, cfg.BufferSize)
	e.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go e.worker()
	}
	return e
}

// OnFailure registers a hook invoked after a task returns an error. Set before Submit.
func (e *Executor) OnFailure(fn func(Task, error)) {
	if e == nil {
		return
	}
	e.onFailure = fn
}

func (e *Executor) worker() {
	defer e.wg.Done()

	for {
		select {
		case task := <-e.ch:
			e.run(task)
		case <-e.done:
			for {
				select {
				case task := <-e.ch:
					e.run(task)
				default:
					return
				}
			}
		}
	}
}

func (e *Executor) run(task Task) {
	ctx := context.Background()
	if e.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TaskTimeout)
		defer cancel()
	}

	err := e.safeRun(ctx, task)
	if err == nil {
		e.completed.Add(1)
		return
	}

	e.failed.Add(1)
	e.logger.Error("background task failed", zap.String("task", task.Name), zap.Error(err))
	if e.onFailure != nil {
		e.onFailure(task, err)
	}
}

func (e *Executor) safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	if task.Run == nil {
		return nil
	}
	return task.Run(ctx)
}

// Submit queues task and reports whether it was accepted. A full queue drops the
// task and counts it; a closed executor rejects it.
func (e *Executor) Submit(task Task) bool {
	if e == nil || e.closed.Load() {
		return false
	}
	if e.ch == nil {
		e.run(task)
		return true
	}

	select {
	case e.ch <- task:
		return true
	case <-e.done:
		return false
	default:
		e.dropped.Add(1)
		e.logger.Warn("background queue full, task dropped", zap.String("task", task.Name))
		return false
	}
}

// Close stops intake and waits for queued tasks to finish or ctx to end.
func (e *Executor) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}

	finished := make(chan struct{})
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		close(e.done)
	})
	go func() {
		e.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats is a point-in-time view of executor counters.
type Stats struct {
	Completed uint64
	Failed    uint64
	Dropped   uint64
	Queued    int
}

// Stats returns current counters.
func (e *Executor) Stats() Stats {
	if e == nil {
		return Stats{}
	}
	return Stats{
		Completed: e.completed.Load(),
		Failed:    e.failed.Load(),
		Dropped:   e.dropped.Load(),
		Queued:    len(e.ch),
	}
}
