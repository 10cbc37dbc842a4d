// Package model defines the durable records shared by the engine and the store adapters.
//
// # Architecture boundaries
//
// Records here are plain values. The root package re-exports them as type aliases so
// callers never import model directly; store adapters import it to avoid an import
// cycle with the engine.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Import goIdentity or any internal package.
package model
