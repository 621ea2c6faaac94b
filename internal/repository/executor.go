package repository

import (
	"context"

	"github.com/roach88/entrepo/internal/planner"
	"github.com/roach88/entrepo/internal/store"
)

// RowIterator is a forward-only sequence of driver rows.
type RowIterator interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// Executor runs plans. *store.Executor satisfies it through FromStore.
type Executor interface {
	Execute(ctx context.Context, plan *planner.Plan) (RowIterator, error)
	ExecuteScalar(ctx context.Context, plan *planner.Plan) (int64, error)
	InTransaction() bool
}

// FromStore adapts a store executor.
func FromStore(e *store.Executor) Executor {
	return storeExecutor{e}
}

type storeExecutor struct {
	*store.Executor
}

func (s storeExecutor) Execute(ctx context.Context, plan *planner.Plan) (RowIterator, error) {
	rows, err := s.Executor.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
