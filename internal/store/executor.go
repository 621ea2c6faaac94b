package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/planner"
)

// ErrNoTransaction is returned by Commit and Rollback without Begin.
var ErrNoTransaction = errors.New("no active transaction")

// ErrTransactionActive is returned by Begin inside a transaction.
var ErrTransactionActive = errors.New("transaction already active")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor runs plans for one unit of work.
//
// Not safe for concurrent use: a unit of work runs its operations
// sequentially, and the executor's transaction belongs to it alone.
type Executor struct {
	store  *Store
	tx     *sql.Tx
	logger *slog.Logger
	log    QueryLogger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the executor's logger (default: the store's).
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithQueryLogger records every executed plan.
func WithQueryLogger(l QueryLogger) ExecutorOption {
	return func(e *Executor) {
		e.log = l
	}
}

// NewExecutor creates an executor on s.
func NewExecutor(s *Store, opts ...ExecutorOption) *Executor {
	e := &Executor{store: s, logger: s.logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin opens a transaction. Subsequent plans run inside it.
func (e *Executor) Begin(ctx context.Context) error {
	if e.tx != nil {
		return ErrTransactionActive
	}
	tx, err := e.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	e.tx = tx
	e.logger.Debug("transaction started")
	return nil
}

// Commit commits the active transaction.
func (e *Executor) Commit() error {
	if e.tx == nil {
		return ErrNoTransaction
	}
	tx := e.tx
	e.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	e.logger.Debug("transaction committed")
	return nil
}

// Rollback aborts the active transaction.
func (e *Executor) Rollback() error {
	if e.tx == nil {
		return ErrNoTransaction
	}
	tx := e.tx
	e.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	e.logger.Debug("transaction rolled back")
	return nil
}

// InTransaction reports whether a transaction is active.
func (e *Executor) InTransaction() bool {
	return e.tx != nil
}

func (e *Executor) querier() querier {
	if e.tx != nil {
		return e.tx
	}
	return e.store.db
}

// Execute runs a select plan and returns its rows. The caller must Close
// the rows.
func (e *Executor) Execute(ctx context.Context, plan *planner.Plan) (*Rows, error) {
	if plan.Kind != planner.KindSelect {
		return nil, fmt.Errorf("execute: %s plan is not a select", plan.Kind)
	}
	query, args := e.prepare(plan)

	rows, err := e.querier().QueryContext(ctx, query, args...)
	if err != nil {
		e.logger.Debug("query failed", "entity", plan.Root, "error", err)
		return nil, ormerr.QueryExecutionFailed(plan.Root, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, ormerr.QueryExecutionFailed(plan.Root, err)
	}
	return &Rows{rows: rows, entity: plan.Root, width: len(cols)}, nil
}

// ExecuteScalar runs a count plan and returns the single integer it yields.
func (e *Executor) ExecuteScalar(ctx context.Context, plan *planner.Plan) (int64, error) {
	query, args := e.prepare(plan)

	var n int64
	if err := e.querier().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		e.logger.Debug("query failed", "entity", plan.Root, "error", err)
		return 0, ormerr.QueryExecutionFailed(plan.Root, err)
	}
	return n, nil
}

// prepare binds the plan and records it before execution, so failed
// queries still appear in the query log.
func (e *Executor) prepare(plan *planner.Plan) (string, []any) {
	query, args := plan.Bind()

	e.logger.Debug("execute query",
		"entity", plan.Root,
		"kind", string(plan.Kind),
		"sql", plan.SQL,
		"params", formatParams(plan.ParamValues()),
		"tx", e.tx != nil,
	)

	if e.log != nil {
		fingerprint, err := plan.Fingerprint()
		if err != nil {
			e.logger.Warn("plan fingerprint failed", "error", err)
		}
		e.log.LogQuery(QueryEntry{
			Entity:      plan.Root,
			Kind:        string(plan.Kind),
			SQL:         plan.SQL,
			Params:      plan.ParamValues(),
			Types:       plan.ParamTypes(),
			Fingerprint: fingerprint,
		})
	}
	return query, args
}

func formatParams(values []ir.IRValue) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = ir.Format(v)
	}
	return out
}

// Rows is a forward-only row sequence.
type Rows struct {
	rows   *sql.Rows
	entity string
	width  int
	err    error
}

// Next advances to the next row.
func (r *Rows) Next() bool {
	if r.err != nil {
		return false
	}
	return r.rows.Next()
}

// Values scans the current row into driver values, one per column.
func (r *Rows) Values() ([]any, error) {
	vals := make([]any, r.width)
	ptrs := make([]any, r.width)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = ormerr.QueryExecutionFailed(r.entity, err)
		return nil, r.err
	}
	return vals, nil
}

// Err returns the first error met while iterating.
func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	if err := r.rows.Err(); err != nil {
		return ormerr.QueryExecutionFailed(r.entity, err)
	}
	return nil
}

// Close releases the underlying result set.
func (r *Rows) Close() error {
	return r.rows.Close()
}
