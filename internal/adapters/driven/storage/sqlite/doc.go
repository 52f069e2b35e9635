// Package sqlite provides a SQLite-based implementation of the storage ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements several store interfaces
// through a single database connection:
//
//   - RequestStore: Estimation requests and their results
//   - CalculationStore: Previous estimates reused by the stored layer
//   - SchedulerStore: Scheduled task state and history
//
// Requests and results are kept as JSON documents. Parameter set content is
// stored once per checksum and joined back in when a request is loaded.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.propest/data/propest.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
