// Package internal contains helper utilities that are intentionally private to goIdentity,
// including one-time-code generation and secure random helpers.
//
// # Sub-packages
//
//   - audit: audit event model and Sink implementations
//   - cache: degrade-safe read-through cache layer (Redis + in-memory stores)
//   - config: koanf-backed settings loader for the goidentity CLI
//   - flows: pure-function flow orchestrators for the verification state machine
//   - invalidate: cache-key family invalidation coordinator
//   - logging: zap logger construction
//   - metrics: lock-free counters and latency histograms
//   - rate: Redis-backed per-address budget for code requests
//   - tasks: background executor for fire-and-forget work
//   - username: username normalization and collision-avoidance generation
//
// # What this package must NOT do
//
//   - Export types that appear in the public goIdentity API.
//   - Be imported by any package outside the goIdentity module.
package internal
