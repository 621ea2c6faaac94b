package repository

import (
	"context"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/planner"
	"github.com/roach88/entrepo/internal/queryir"
	"github.com/roach88/entrepo/internal/uow"
)

// Collection is the lazy result of Matching. It starts unevaluated; the
// first Items, Len, First or Each call runs the query and memoizes the
// hydrated entities, and later calls return the memoized slice without a
// query. A failed execution leaves the collection unevaluated, so the next
// call retries.
type Collection struct {
	repo     *Repository
	criteria queryir.Criteria
	query    *criteria.Query
	plan     *planner.Plan

	// parent is set for collections narrowed in memory; evaluating one
	// evaluates the parent and filters its items.
	parent *Collection

	evaluated bool
	items     []*uow.Entity
}

// Evaluated reports whether the query has run.
func (c *Collection) Evaluated() bool {
	return c.evaluated
}

// Plan returns the planned query. Nil for collections filtered in memory.
func (c *Collection) Plan() *planner.Plan {
	return c.plan
}

// Criteria returns the criteria the collection was built from.
func (c *Collection) Criteria() queryir.Criteria {
	return c.criteria
}

// Items returns the entities, running the query on first use. The
// returned slice is a copy.
func (c *Collection) Items(ctx context.Context) ([]*uow.Entity, error) {
	if err := c.evaluate(ctx); err != nil {
		return nil, err
	}
	return append([]*uow.Entity(nil), c.items...), nil
}

// Len returns the number of entities.
func (c *Collection) Len(ctx context.Context) (int, error) {
	if err := c.evaluate(ctx); err != nil {
		return 0, err
	}
	return len(c.items), nil
}

// First returns the first entity, or nil when the collection is empty.
func (c *Collection) First(ctx context.Context) (*uow.Entity, error) {
	if err := c.evaluate(ctx); err != nil {
		return nil, err
	}
	if len(c.items) == 0 {
		return nil, nil
	}
	return c.items[0], nil
}

// Each calls fn for every entity in order, stopping at the first error.
func (c *Collection) Each(ctx context.Context, fn func(*uow.Entity) error) error {
	if err := c.evaluate(ctx); err != nil {
		return err
	}
	for _, e := range c.items {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Matching narrows the collection. The result is always the subset of this
// collection's own entities that also satisfy more, ordered and bounded by
// more when it sets ordering or bounds.
//
// An evaluated collection is filtered in memory without a query. An
// unevaluated collection without ordering or bounds yields a new lazy
// collection whose predicate is the conjunction of both. An unevaluated
// collection with ordering or bounds yields a lazy collection that
// evaluates this one first and filters its entities in memory, since its
// bounds apply before the narrower predicate.
func (c *Collection) Matching(more queryir.Criteria) (*Collection, error) {
	if !c.evaluated && !bounded(c.criteria) {
		return c.repo.Matching(merge(c.criteria, more))
	}

	q, err := c.repo.norm.Resolve(c.repo.et, more)
	if err != nil {
		return nil, err
	}
	if !c.evaluated {
		return &Collection{repo: c.repo, criteria: more, query: q, parent: c}, nil
	}
	items, err := filter(c.items, q)
	if err != nil {
		return nil, err
	}
	return &Collection{repo: c.repo, criteria: more, query: q, evaluated: true, items: items}, nil
}

func (c *Collection) evaluate(ctx context.Context) error {
	if c.evaluated {
		return nil
	}
	var (
		items []*uow.Entity
		err   error
	)
	if c.parent != nil {
		if err = c.parent.evaluate(ctx); err != nil {
			return err
		}
		items, err = filter(c.parent.items, c.query)
	} else {
		items, err = c.repo.fetch(ctx, c.plan)
	}
	if err != nil {
		return err
	}
	c.items = items
	c.evaluated = true
	return nil
}

// bounded reports whether c orders or bounds its result, which makes the
// result depend on rows a narrower predicate would drop.
func bounded(c queryir.Criteria) bool {
	return len(c.Orderings) > 0 || c.FirstResult != nil || c.MaxResults != nil
}

func merge(base, more queryir.Criteria) queryir.Criteria {
	out := base
	if more.Where != nil {
		out = out.AndWhere(more.Where)
	}
	if len(more.Orderings) > 0 {
		out.Orderings = more.Orderings
	}
	if more.FirstResult != nil {
		out.FirstResult = more.FirstResult
	}
	if more.MaxResults != nil {
		out.MaxResults = more.MaxResults
	}
	return out
}
