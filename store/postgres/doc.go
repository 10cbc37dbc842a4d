// Package postgres implements the engine's CredentialStore and ContentStore on
// PostgreSQL through pgx.
//
// Every mutation is a single statement, so per-record atomicity comes from the
// database: UPDATE ... WHERE id for account saves and INSERT ... ON CONFLICT DO
// NOTHING for follow edges. Unique violations map to model.ErrConflict and missing
// rows to model.ErrNotFound; every other failure is wrapped with an oops code.
//
// Schema migrations are embedded and applied with goose (see [Migrate]).
package postgres
