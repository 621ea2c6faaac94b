package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/ormerr"
	"github.com/roach88/entrepo/internal/planner"
	"github.com/roach88/entrepo/internal/store"
	"github.com/roach88/entrepo/internal/uow"
)

// ErrEntityNotFound is returned by Initialize when a reference's row no
// longer exists.
var ErrEntityNotFound = errors.New("entity not found")

// Manager binds repositories to one unit of work and one executor.
//
// A Manager is the unit-of-work boundary: create one per logical request
// and discard it (or Clear it) afterwards. Not safe for concurrent use.
type Manager struct {
	source  metadata.Source
	unit    *uow.UnitOfWork
	exec    *store.Executor
	planner *planner.Planner
	repos   map[string]*Repository
	logger  *slog.Logger

	factories   map[string]RepositoryFactory
	defaultRepo string
	custom      map[string]EntityRepository
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	idGen     uow.IDGenerator
	queryLog  store.QueryLogger
	logger    *slog.Logger
	factories map[string]RepositoryFactory
}

// WithIDGenerator sets the unit-of-work id generator.
func WithIDGenerator(gen uow.IDGenerator) ManagerOption {
	return func(c *managerConfig) {
		c.idGen = gen
	}
}

// WithQueryLog records every executed plan.
func WithQueryLog(l store.QueryLogger) ManagerOption {
	return func(c *managerConfig) {
		c.queryLog = l
	}
}

// WithManagerLogger sets the logger. Every record carries the unit-of-work
// id under "uow".
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = logger
	}
}

// WithRepository registers a custom repository under name. Entity types
// select it through their Repository metadata, or every type does once it
// is made the default with SetDefaultRepository. A nil factory removes the
// registration.
func WithRepository(name string, f RepositoryFactory) ManagerOption {
	return func(c *managerConfig) {
		if f == nil {
			delete(c.factories, name)
			return
		}
		c.factories[name] = f
	}
}

// NewManager creates a manager with a fresh unit of work on s.
func NewManager(source metadata.Source, s *store.Store, opts ...ManagerOption) *Manager {
	cfg := managerConfig{logger: slog.Default(), factories: make(map[string]RepositoryFactory)}
	for _, opt := range opts {
		opt(&cfg)
	}

	uowOpts := []uow.Option{uow.WithLogger(cfg.logger)}
	if cfg.idGen != nil {
		uowOpts = append(uowOpts, uow.WithIDGenerator(cfg.idGen))
	}
	unit := uow.New(uowOpts...)
	logger := cfg.logger.With("uow", unit.ID())

	execOpts := []store.ExecutorOption{store.WithExecutorLogger(logger)}
	if cfg.queryLog != nil {
		execOpts = append(execOpts, store.WithQueryLogger(cfg.queryLog))
	}

	return &Manager{
		source:  source,
		unit:    unit,
		exec:    store.NewExecutor(s, execOpts...),
		planner: planner.New(source, planner.WithDialect(s.Dialect())),
		repos:   make(map[string]*Repository),
		logger:  logger,

		factories: cfg.factories,
		custom:    make(map[string]EntityRepository),
	}
}

// Repository returns the repository for an entity type. A leading
// backslash is ignored, so "\CmsUser" and "CmsUser" share one instance.
func (m *Manager) Repository(name string) (*Repository, error) {
	name = strings.TrimPrefix(name, `\`)
	if r, ok := m.repos[name]; ok {
		return r, nil
	}
	et, err := m.source.EntityType(name)
	if err != nil {
		return nil, err
	}
	r, err := New(et, m.source, FromStore(m.exec), m.unit,
		WithPlanner(m.planner),
		WithLogger(m.logger),
	)
	if err != nil {
		return nil, err
	}
	m.repos[name] = r
	return r, nil
}

// EntityRepository returns the repository configured for an entity type:
// the custom repository its metadata names, else the manager's default,
// else the base Repository. Built repositories are cached per type.
//
// A name without a registered factory, a factory returning nil, or a
// repository serving another type fails with ormerr.ErrInvalidRepository.
func (m *Manager) EntityRepository(name string) (EntityRepository, error) {
	base, err := m.Repository(name)
	if err != nil {
		return nil, err
	}
	et := base.EntityType()
	if r, ok := m.custom[et.Name]; ok {
		return r, nil
	}

	repoName := et.Repository
	if repoName == "" {
		repoName = m.defaultRepo
	}
	if repoName == "" {
		m.custom[et.Name] = base
		return base, nil
	}

	factory, ok := m.factories[repoName]
	if !ok {
		return nil, ormerr.InvalidRepository(et.Name, repoName, "not registered")
	}
	r, err := factory(base)
	if err != nil {
		return nil, fmt.Errorf("build repository %q for %s: %w", repoName, et.Name, err)
	}
	if r == nil {
		return nil, ormerr.InvalidRepository(et.Name, repoName, "factory returned nil")
	}
	if served := r.EntityType(); served == nil || served.Name != et.Name {
		return nil, ormerr.InvalidRepository(et.Name, repoName, "serves another entity type")
	}

	m.custom[et.Name] = r
	m.logger.Debug("custom repository", "entity", et.Name, "repository", repoName)
	return r, nil
}

// SetDefaultRepository makes the named repository the default for entity
// types whose metadata names none. An empty name restores the base
// Repository. Repositories already returned keep their type.
func (m *Manager) SetDefaultRepository(name string) error {
	if name != "" {
		if _, ok := m.factories[name]; !ok {
			return ormerr.InvalidRepository("", name, "not registered")
		}
	}
	m.defaultRepo = name
	return nil
}

// DefaultRepository returns the default repository name; empty means the
// base Repository.
func (m *Manager) DefaultRepository() string {
	return m.defaultRepo
}

// Find is shorthand for Repository(name).Find(ctx, id, opts...).
func (m *Manager) Find(ctx context.Context, name string, id any, opts ...FindOption) (*uow.Entity, error) {
	r, err := m.Repository(name)
	if err != nil {
		return nil, err
	}
	return r.Find(ctx, id, opts...)
}

// Initialize loads an uninitialized reference in place. Loaded entities
// are left untouched.
func (m *Manager) Initialize(ctx context.Context, e *uow.Entity) error {
	if e == nil || e.Loaded() {
		return nil
	}
	if !m.unit.Contains(e) {
		return fmt.Errorf("initialize %s: entity is not managed by this unit of work", e)
	}
	r, err := m.Repository(e.EntityTypeName())
	if err != nil {
		return err
	}
	loaded, err := r.load(ctx, e.IdentifierValues(), LockNone)
	if err != nil {
		return err
	}
	if loaded == nil {
		return fmt.Errorf("initialize %s: %w", e, ErrEntityNotFound)
	}
	return nil
}

// Begin opens a transaction for pessimistic locking.
//
// On SQLite the transaction holds the store's single connection, so
// queries from other managers on the same store block until Commit or
// Rollback. Give them a context deadline when that wait must be bounded.
func (m *Manager) Begin(ctx context.Context) error {
	return m.exec.Begin(ctx)
}

// Commit commits the open transaction.
func (m *Manager) Commit() error {
	return m.exec.Commit()
}

// Rollback aborts the open transaction.
func (m *Manager) Rollback() error {
	return m.exec.Rollback()
}

// InTransaction reports whether a transaction is open.
func (m *Manager) InTransaction() bool {
	return m.exec.InTransaction()
}

// Clear detaches every managed entity. Repositories stay valid.
func (m *Manager) Clear() {
	m.unit.Clear()
}

// UnitOfWork returns the manager's unit of work.
func (m *Manager) UnitOfWork() *uow.UnitOfWork {
	return m.unit
}

// Planner returns the planner shared by the manager's repositories.
func (m *Manager) Planner() *planner.Planner {
	return m.planner
}
