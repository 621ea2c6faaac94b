package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/planner"
	"github.com/roach88/entrepo/internal/queryir"
	"github.com/roach88/entrepo/internal/uow"
)

// Repository finds entities of one type within one unit of work.
//
// Not safe for concurrent use: it shares its unit of work's identity map.
type Repository struct {
	et       *ir.EntityType
	source   metadata.Source
	norm     *criteria.Normalizer
	planner  *planner.Planner
	exec     Executor
	unit     *uow.UnitOfWork
	hydrator *uow.Hydrator
	mapping  *planner.ResultMapping
	logger   *slog.Logger
}

// EntityRepository is what a Manager hands out for an entity type. Custom
// repositories embed *Repository and add their own finders.
type EntityRepository interface {
	EntityType() *ir.EntityType
	Find(ctx context.Context, id any, opts ...FindOption) (*uow.Entity, error)
	FindAll(ctx context.Context, opts ...QueryOption) ([]*uow.Entity, error)
	FindBy(ctx context.Context, m criteria.Map, opts ...QueryOption) ([]*uow.Entity, error)
	FindOneBy(ctx context.Context, m criteria.Map, opts ...QueryOption) (*uow.Entity, error)
	Count(ctx context.Context, m criteria.Map) (int64, error)
	Matching(c queryir.Criteria) (*Collection, error)
}

var _ EntityRepository = (*Repository)(nil)

// RepositoryFactory builds a custom repository around the base repository
// of one entity type.
type RepositoryFactory func(base *Repository) (EntityRepository, error)

// New creates a repository for et. Most callers get repositories from a
// Manager instead.
func New(et *ir.EntityType, source metadata.Source, exec Executor, unit *uow.UnitOfWork, opts ...Option) (*Repository, error) {
	mapping, err := planner.NewResultMapping(source, et, planner.RootAlias)
	if err != nil {
		return nil, err
	}
	r := &Repository{
		et:       et,
		source:   source,
		norm:     criteria.NewNormalizer(source),
		exec:     exec,
		unit:     unit,
		hydrator: uow.NewHydrator(unit, source),
		mapping:  mapping,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.planner == nil {
		r.planner = planner.New(source)
	}
	return r, nil
}

// EntityType returns the repository's entity type.
func (r *Repository) EntityType() *ir.EntityType {
	return r.et
}

// ClassName returns the entity type name.
func (r *Repository) ClassName() string {
	return r.et.Name
}

// Find loads one entity by identifier. id is a scalar for single-column
// keys or a map of identifier field to value.
//
// A managed, loaded entity is returned without a query unless a
// pessimistic lock is requested. Returns nil, nil when no row matches.
func (r *Repository) Find(ctx context.Context, id any, opts ...FindOption) (*uow.Entity, error) {
	var cfg findConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ids, err := r.norm.ResolveIdentifier(r.et, id)
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.lock == LockOptimistic && !r.et.IsVersioned():
		return nil, ormerr.MissingVersionField(r.et.Name)
	case cfg.lock.IsPessimistic() && !r.exec.InTransaction():
		return nil, ormerr.TransactionRequired(r.et.Name)
	}

	key, err := uow.NewIdentityKey(r.et.Name, ids)
	if err != nil {
		return nil, err
	}
	if e, ok := r.unit.Lookup(key); ok && e.Loaded() && !cfg.lock.IsPessimistic() {
		r.logger.Debug("identity map hit", "uow", r.unit.ID(), "identity", key.String())
		if err := checkVersion(e, cfg); err != nil {
			return nil, err
		}
		return e, nil
	}

	e, err := r.load(ctx, ids, cfg.lock)
	if err != nil || e == nil {
		return nil, err
	}
	if err := checkVersion(e, cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// load runs a primary-key lookup and hydrates the row, if any.
func (r *Repository) load(ctx context.Context, ids []ir.IRValue, lock LockMode) (*uow.Entity, error) {
	plan, err := r.planner.Lookup(r.et, ids, lock)
	if err != nil {
		return nil, err
	}
	entities, err := r.fetch(ctx, plan)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0], nil
}

func checkVersion(e *uow.Entity, cfg findConfig) error {
	if cfg.lock != LockOptimistic || cfg.version == nil {
		return nil
	}
	actual, _ := e.Version()
	if actual != *cfg.version {
		return ormerr.OptimisticLockMismatch(e.EntityTypeName(), *cfg.version, actual)
	}
	return nil
}

// FindAll returns every entity of the type.
func (r *Repository) FindAll(ctx context.Context, opts ...QueryOption) ([]*uow.Entity, error) {
	return r.FindBy(ctx, nil, opts...)
}

// FindBy returns the entities matching every entry of m.
//
// A list value matches any of its elements; a nil value or a nil element
// matches NULL. Keys may be field names, owning association names or one
// association hop ("user.username").
func (r *Repository) FindBy(ctx context.Context, m criteria.Map, opts ...QueryOption) ([]*uow.Entity, error) {
	cfg := buildQueryConfig(opts)
	q, err := r.norm.Normalize(r.et, m, cfg.order, cfg.page)
	if err != nil {
		return nil, err
	}
	plan, err := r.planner.Select(q)
	if err != nil {
		return nil, err
	}
	return r.fetch(ctx, plan)
}

// FindOneBy returns the first entity matching m, or nil, nil when none
// does. The query is limited to one row; Limit options are overridden.
func (r *Repository) FindOneBy(ctx context.Context, m criteria.Map, opts ...QueryOption) (*uow.Entity, error) {
	entities, err := r.FindBy(ctx, m, append(slices.Clip(opts), Limit(1))...)
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	return entities[0], nil
}

// Count returns the number of rows FindBy(m) would return. Nothing is
// hydrated.
func (r *Repository) Count(ctx context.Context, m criteria.Map) (int64, error) {
	q, err := r.norm.Normalize(r.et, m, nil, criteria.Page{})
	if err != nil {
		return 0, err
	}
	plan, err := r.planner.Count(q)
	if err != nil {
		return 0, err
	}
	return r.exec.ExecuteScalar(ctx, plan)
}

// Matching resolves and plans c immediately, so invalid criteria fail
// here, and returns a collection that runs the query on first use.
func (r *Repository) Matching(c queryir.Criteria) (*Collection, error) {
	q, err := r.norm.Resolve(r.et, c)
	if err != nil {
		return nil, err
	}
	plan, err := r.planner.Select(q)
	if err != nil {
		return nil, err
	}
	return &Collection{repo: r, criteria: c, query: q, plan: plan}, nil
}

// ResultMapping returns the column mapping for native queries selecting
// the type under alias. Columns are the repository's select list.
func (r *Repository) ResultMapping(alias string) *planner.ResultMapping {
	m := *r.mapping
	m.Alias = alias
	m.Columns = append([]planner.ColumnMapping(nil), r.mapping.Columns...)
	return &m
}

// AliasMap returns alias -> entity type name for ResultMapping(alias).
func (r *Repository) AliasMap(alias string) map[string]string {
	return map[string]string{alias: r.et.Name}
}

// fetch executes a select plan and hydrates every row in row order.
func (r *Repository) fetch(ctx context.Context, plan *planner.Plan) ([]*uow.Entity, error) {
	if plan.Mapping == nil {
		return nil, fmt.Errorf("fetch %s: plan has no result mapping", r.et.Name)
	}
	rows, err := r.exec.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*uow.Entity
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		e, err := r.hydrator.Hydrate(plan.Mapping, vals)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
