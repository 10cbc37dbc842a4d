package rate

import "errors"

var (
	// ErrRateLimited is returned once an address has spent its request budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read and write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
