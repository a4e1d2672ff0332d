// Package store provides persistence for conversations, customer memory and jobs.
//
// # Architecture
//
// Three narrow interfaces are combined into Store:
//
//   - ConversationStore: whole-document ConversationState keyed by conversation id
//   - MemoryStore: CustomerMemory keyed by (project id, customer id)
//   - JobStore: JobRecord keyed by job id, with conditional status transitions
//
// SQLiteStore implements all of them. DynamoConversationStore implements only
// ConversationStore and is combined with a SQLiteStore for memory and jobs.
//
// # Customer Memory
//
// Memory values are plain strings. Every key carries its own update time;
// rewriting a key with the same value keeps the old time. The keys in
// ExpiringMemoryKeys disappear from GetMemory results once older than the
// configured TTL (DefaultMemoryTTL unless WithMemoryTTL is given). Keys
// without a usable timestamp count as expired.
//
// # Jobs
//
// Status only moves forward:
//
//	pending -> running -> succeeded
//	                   -> failed
//	pending -> failed            (rejected before running)
//
// TransitionJob applies an update only when the stored status still equals
// the expected one, so a lost race returns ErrInvalidTransition.
//
// # SQLite Configuration
//
// The store uses one connection with WAL mode:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// The default driver is modernc.org/sqlite ("sqlite"); OpenSQLiteStore also
// accepts mattn/go-sqlite3 ("sqlite3").
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore on a t.TempDir() path
// for integration tests.
package store
