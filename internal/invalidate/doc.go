// Package invalidate deletes stale cache projections after durable writes.
//
// A mutation declares the key families it makes stale; the Coordinator deletes
// exact keys directly and enumerates prefix families before bulk deletion.
// Independent families run concurrently. Failures are logged, never returned:
// projections either disappear or expire on their TTL.
package invalidate
