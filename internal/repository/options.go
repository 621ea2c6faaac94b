package repository

import (
	"log/slog"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/planner"
)

// LockMode selects the locking applied by Find.
type LockMode = planner.LockMode

const (
	LockNone             = planner.LockNone
	LockOptimistic       = planner.LockOptimistic
	LockPessimisticRead  = planner.LockPessimisticRead
	LockPessimisticWrite = planner.LockPessimisticWrite
)

// Option configures a Repository.
type Option func(*Repository)

// WithPlanner sets the planner (default: SQLite dialect over the
// repository's metadata source).
func WithPlanner(p *planner.Planner) Option {
	return func(r *Repository) {
		r.planner = p
	}
}

// WithLogger sets the repository's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// FindOption configures Find.
type FindOption func(*findConfig)

type findConfig struct {
	lock    LockMode
	version *int64
}

// WithLockMode locks the row. Optimistic locking needs a versioned type;
// pessimistic locking needs an active transaction.
func WithLockMode(mode LockMode) FindOption {
	return func(c *findConfig) {
		c.lock = mode
	}
}

// WithLockVersion requests an optimistic lock and fails with
// OptimisticLockMismatch unless the loaded version equals v.
func WithLockVersion(v int64) FindOption {
	return func(c *findConfig) {
		c.lock = LockOptimistic
		c.version = &v
	}
}

// QueryOption configures FindBy, FindOneBy and FindAll.
type QueryOption func(*queryConfig)

type queryConfig struct {
	order criteria.Order
	page  criteria.Page
}

// OrderBy appends one ORDER BY term. direction is ASC or DESC, any case.
func OrderBy(field, direction string) QueryOption {
	return func(c *queryConfig) {
		c.order = append(c.order, criteria.OrderTerm{Field: field, Direction: direction})
	}
}

// WithOrder appends a whole ordering.
func WithOrder(order criteria.Order) QueryOption {
	return func(c *queryConfig) {
		c.order = append(c.order, order...)
	}
}

// Limit bounds the number of results.
func Limit(n int) QueryOption {
	return func(c *queryConfig) {
		c.page.Limit = &n
	}
}

// Offset skips the first n results.
func Offset(n int) QueryOption {
	return func(c *queryConfig) {
		c.page.Offset = &n
	}
}

func buildQueryConfig(opts []QueryOption) queryConfig {
	var c queryConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
