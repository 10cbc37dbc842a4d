// Package rate provides the Redis-backed fixed-window counter that bounds how often
// one address may request a fresh one-time code.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys live under the
// cache namespace as "<namespace>:otpq:<email>".
//
// # What this package must NOT do
//
//   - Decide what a refusal means to the caller (the engine maps ErrRateLimited).
//   - Be imported outside the goIdentity module.
package rate
