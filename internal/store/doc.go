// Package store keeps a SQLite history of harness runs.
//
// Each run row records when and where the harness ran, which scenarios it
// executed, the case counts, and a digest of the request trace. Failures
// are stored one row per recorded mismatch, in the order they occurred.
//
// Connections are opened in WAL mode with foreign keys enforced. The
// schema version lives in PRAGMA user_version.
//
// Listing order is newest first: ORDER BY started_at DESC, id DESC.
package store
