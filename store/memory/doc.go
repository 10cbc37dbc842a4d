// Package memory is an in-process CredentialStore and ContentStore.
//
// A single RWMutex provides the per-record atomicity the engine expects from a
// durable store. It is meant for tests, the load generator and local development.
package memory
