// Package cache holds disposable read-model projections in front of the durable stores.
//
// # Components
//
//   - [Store]: key/value contract with TTL, prefix enumeration and an availability flag.
//   - [RedisStore]: go-redis implementation with short per-call timeouts and a PING probe.
//   - [MemoryStore]: in-process implementation with glob enumeration and fault injection.
//   - [Layer]: JSON wrapper that logs and swallows read/write failures.
//   - Key builders: deterministic keys per projection kind.
//
// # Architecture boundaries
//
// Callers treat every cache failure as a miss. Stores are the sources of truth; this
// package never writes to them.
//
// # What this package must NOT do
//
//   - Return cache errors to request handlers.
//   - Import goIdentity or flow packages.
package cache
