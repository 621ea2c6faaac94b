package uow

import (
	"fmt"
	"log/slog"

	"github.com/roach88/entrepo/internal/ir"
)

// UnitOfWork is the identity map for one logical session.
//
// Not safe for concurrent use; see the package documentation.
type UnitOfWork struct {
	id       string
	identity map[IdentityKey]*Entity
	logger   *slog.Logger
}

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithIDGenerator sets the id generator (default UUIDv7Generator).
func WithIDGenerator(gen IDGenerator) Option {
	return func(u *UnitOfWork) {
		u.id = gen.Generate()
	}
}

// WithLogger sets the logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(u *UnitOfWork) {
		u.logger = logger
	}
}

// New creates an empty unit of work.
func New(opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		identity: make(map[IdentityKey]*Entity),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.id == "" {
		u.id = UUIDv7Generator{}.Generate()
	}
	return u
}

// ID returns the unit of work's id.
func (u *UnitOfWork) ID() string {
	return u.id
}

// Lookup returns the managed entity for key.
func (u *UnitOfWork) Lookup(key IdentityKey) (*Entity, bool) {
	e, ok := u.identity[key]
	return e, ok
}

// Register adds e to the identity map. Registering the managed instance
// again is a no-op; registering a different instance under a managed key is
// an error.
func (u *UnitOfWork) Register(e *Entity) error {
	if existing, ok := u.identity[e.key]; ok {
		if existing == e {
			return nil
		}
		return fmt.Errorf("identity %s is already managed by another instance", e.key)
	}
	u.identity[e.key] = e
	return nil
}

// Reference returns the managed entity for (et, id), or registers and
// returns an uninitialized reference.
func (u *UnitOfWork) Reference(et *ir.EntityType, id []ir.IRValue) (*Entity, error) {
	if len(id) != len(et.Identifier) {
		return nil, fmt.Errorf("reference %s: identifier has %d values, want %d", et.Name, len(id), len(et.Identifier))
	}
	key, err := NewIdentityKey(et.Name, id)
	if err != nil {
		return nil, err
	}
	if e, ok := u.identity[key]; ok {
		return e, nil
	}
	e := newEntity(et, key, id)
	u.identity[key] = e
	return e, nil
}

// Contains reports whether e is the managed instance for its key.
func (u *UnitOfWork) Contains(e *Entity) bool {
	if e == nil {
		return false
	}
	return u.identity[e.key] == e
}

// Detach removes e from the identity map. Later fetches of the same row
// produce a new instance.
func (u *UnitOfWork) Detach(e *Entity) {
	if u.Contains(e) {
		delete(u.identity, e.key)
	}
}

// Clear detaches every entity.
func (u *UnitOfWork) Clear() {
	n := len(u.identity)
	u.identity = make(map[IdentityKey]*Entity)
	u.logger.Debug("unit of work cleared", "uow", u.id, "detached", n)
}

// Size returns the number of managed entities, references included.
func (u *UnitOfWork) Size() int {
	return len(u.identity)
}
