package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds exponential backoff.
type RetryPolicy struct {
	Attempts uint64
	Base     time.Duration
	Max      time.Duration
}

// Retry runs fn until it succeeds, returns a permanent error, or the policy is spent.
// Errors wrapped with [Permanent] stop immediately.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.Base <= 0 {
		policy.Base = 100 * time.Millisecond
	}
	if policy.Attempts == 0 {
		policy.Attempts = 1
	}

	backoff := retry.NewExponential(policy.Base)
	backoff = retry.WithJitterPercent(10, backoff)
	if policy.Max > 0 {
		backoff = retry.WithCappedDuration(policy.Max, backoff)
	}
	// WithMaxRetries counts retries, not attempts.
	backoff = retry.WithMaxRetries(policy.Attempts-1, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", p.Value)
}
