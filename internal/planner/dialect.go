package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect renders the database-specific parts of a plan.
type Dialect interface {
	// Name identifies the dialect in configuration and logs.
	Name() string

	// Placeholder returns the n-th (1-based) bind placeholder.
	Placeholder(n int) string

	// LimitOffset renders the bounded-result clause, with a leading space,
	// or "" when both bounds are nil.
	LimitOffset(limit, offset *int) string

	// LockClause renders a row-lock suffix, with a leading space, or "".
	LockClause(mode LockMode) string
}

// SQLite renders "?" placeholders and ignores row locks: SQLite locks the
// whole database for the duration of a write transaction.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) LimitOffset(limit, offset *int) string {
	var b strings.Builder
	switch {
	case limit != nil:
		b.WriteString(" LIMIT " + strconv.Itoa(*limit))
	case offset != nil:
		// SQLite requires LIMIT before OFFSET; -1 means unbounded.
		b.WriteString(" LIMIT -1")
	}
	if offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*offset))
	}
	return b.String()
}

func (SQLite) LockClause(LockMode) string { return "" }

// Postgres renders "$n" placeholders and FOR UPDATE / FOR SHARE locks.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) LimitOffset(limit, offset *int) string {
	var b strings.Builder
	if limit != nil {
		b.WriteString(" LIMIT " + strconv.Itoa(*limit))
	}
	if offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*offset))
	}
	return b.String()
}

func (Postgres) LockClause(mode LockMode) string {
	switch mode {
	case LockPessimisticWrite:
		return " FOR UPDATE"
	case LockPessimisticRead:
		return " FOR SHARE"
	default:
		return ""
	}
}

// DialectByName returns the dialect for a configuration name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3", "":
		return SQLite{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (expected sqlite or postgres)", name)
	}
}

// LockMode selects the locking applied to a single-row lookup.
type LockMode int

const (
	LockNone LockMode = iota
	LockOptimistic
	LockPessimisticRead
	LockPessimisticWrite
)

// String returns a human-readable lock mode name.
func (m LockMode) String() string {
	switch m {
	case LockNone:
		return "none"
	case LockOptimistic:
		return "optimistic"
	case LockPessimisticRead:
		return "pessimistic_read"
	case LockPessimisticWrite:
		return "pessimistic_write"
	default:
		return fmt.Sprintf("LockMode(%d)", int(m))
	}
}

// IsPessimistic reports whether the mode takes a row lock.
func (m LockMode) IsPessimistic() bool {
	return m == LockPessimisticRead || m == LockPessimisticWrite
}

// ParseLockMode parses a lock mode name as printed by String.
func ParseLockMode(s string) (LockMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return LockNone, nil
	case "optimistic":
		return LockOptimistic, nil
	case "pessimistic_read":
		return LockPessimisticRead, nil
	case "pessimistic_write":
		return LockPessimisticWrite, nil
	default:
		return LockNone, fmt.Errorf("unknown lock mode %q", s)
	}
}
