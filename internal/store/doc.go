// Package store executes query plans against a relational database.
//
// Three database/sql drivers are registered:
//
//	sqlite3  github.com/mattn/go-sqlite3 (cgo, default)
//	sqlite   modernc.org/sqlite (pure Go)
//	pgx      github.com/jackc/pgx/v5/stdlib (PostgreSQL)
//
// A Store owns the connection pool and is shared by every unit of work. An
// Executor is created per unit of work: it carries that unit's transaction
// and query log, so two units of work never observe each other's state.
//
// Execution failures are reported as ormerr.CodeQueryExecutionFailed with
// the driver error attached. Nothing is retried.
package store
