// Package goIdentity is the identity core of a social backend: OTP-gated email
// verification, purpose-scoped bearer tokens, password reset, and cached read models
// for profiles, posts and the follow graph.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// goIdentity is the public surface. It exposes [Engine], [Builder], [Config], the
// store interfaces ([CredentialStore], [ContentStore], [OTPDeliverer]) and value
// types. Flow orchestration, caching, invalidation, background execution and audit
// dispatch live under internal/ and are never exported.
//
// # Cache contract
//
// The cache holds projections only. Every read falls back to the stores when the
// cache misses, errors or is unreachable, and every mutation writes the store first
// and then schedules invalidation of the affected key families. Turning the cache
// off never changes an operation's outcome.
//
// # What this package must NOT do
//
//   - Return a session token to an unverified account.
//   - Surface cache errors to callers.
//   - Store plaintext one-time codes.
//   - Import any sub-package that re-imports goIdentity.
package goIdentity
