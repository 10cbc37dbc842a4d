// Package tasks runs detached work (OTP delivery, cache invalidation) off the request path.
//
// # Components
//
//   - [Executor]: bounded queue drained by a fixed worker pool, drop-if-full counter,
//     drained on Close.
//   - [Retry]: exponential backoff wrapper for transient failures.
//
// Task errors are logged and counted, never returned to the submitter.
//
// # What this package must NOT do
//
//   - Import goIdentity or any sibling internal package.
//   - Decide what work to schedule.
package tasks
