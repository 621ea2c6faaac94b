package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/entrepo/internal/planner"
)

// Supported driver names.
const (
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Store wraps a connection pool and the dialect plans are rendered in.
type Store struct {
	db      *sql.DB
	driver  string
	dialect planner.Dialect
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open connects to a database.
//
// SQLite databases (either driver) are configured with:
//   - a single connection, so ":memory:" databases are shared and writes
//     never contend for the lock
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Because the connection is shared, an open transaction holds it until
// commit or rollback. Every other query on the same Store waits for it, up
// to the deadline of its context; queries without a deadline wait
// indefinitely.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	var (
		db      *sql.DB
		dialect planner.Dialect
		err     error
	)

	switch driver {
	case DriverSQLite3, DriverSQLite:
		dialect = planner.SQLite{}
		db, err = sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
	case DriverPostgres:
		dialect = planner.Postgres{}
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres dsn: %w", err)
		}
		db = stdlib.OpenDB(*cfg)
	default:
		return nil, fmt.Errorf("unsupported driver %q (expected %s, %s or %s)",
			driver, DriverSQLite3, DriverSQLite, DriverPostgres)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect.Name() == "sqlite" {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return New(db, driver, dialect, opts...), nil
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory(opts ...Option) (*Store, error) {
	return Open(DriverSQLite3, ":memory:", opts...)
}

// New wraps an existing pool. Used with sqlmock in tests and by callers
// that manage their own *sql.DB.
func New(db *sql.DB, driver string, dialect planner.Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		driver:  driver,
		dialect: dialect,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Dialect returns the SQL dialect matching the driver.
func (s *Store) Dialect() planner.Dialect {
	return s.dialect
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// TableCount returns the number of rows in table. The name must be a table
// from validated metadata; it is interpolated.
func (s *Store) TableCount(ctx context.Context, table string) (int64, error) {
	if !validIdentifier.MatchString(table) {
		return 0, fmt.Errorf("invalid table name %q", table)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}
