// Package store records administrative actions in an append-only audit log.
//
// # Implementations
//
//   - SQLiteStore: durable log backed by modernc.org/sqlite
//   - MemoryStore: bounded in-memory log, used when no database path is
//     configured and in tests
//
// Both satisfy AuditLog. Entries are listed newest first.
//
// # SQLite Configuration
//
// The database runs in WAL mode with a single connection:
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:", nil) for throwaway databases.
package store
