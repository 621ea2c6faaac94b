package uow

import (
	"fmt"

	"github.com/roach88/entrepo/internal/ir"
)

// Entity is a managed object: one row of one entity type, owned by a single
// UnitOfWork.
//
// An entity is either loaded (every scalar field and owning reference
// populated) or an uninitialized reference that only knows its identifier.
type Entity struct {
	et     *ir.EntityType
	key    IdentityKey
	id     []ir.IRValue
	values map[string]ir.IRValue
	refs   map[string]*Entity
	loaded bool
}

func newEntity(et *ir.EntityType, key IdentityKey, id []ir.IRValue) *Entity {
	e := &Entity{
		et:     et,
		key:    key,
		id:     append([]ir.IRValue(nil), id...),
		values: make(map[string]ir.IRValue, len(et.Fields)),
		refs:   make(map[string]*Entity),
	}
	for i, name := range et.Identifier {
		e.values[name] = id[i]
	}
	return e
}

// Type returns the entity's metadata.
func (e *Entity) Type() *ir.EntityType {
	return e.et
}

// Key returns the identity-map key.
func (e *Entity) Key() IdentityKey {
	return e.key
}

// EntityTypeName implements ir.Identifiable.
func (e *Entity) EntityTypeName() string {
	return e.et.Name
}

// IdentifierValues implements ir.Identifiable. Values are in key order.
func (e *Entity) IdentifierValues() []ir.IRValue {
	return append([]ir.IRValue(nil), e.id...)
}

// Loaded reports whether the entity's state has been fetched.
func (e *Entity) Loaded() bool {
	return e.loaded
}

// Get returns a scalar field's value. An uninitialized reference only knows
// its identifier fields; other fields report false until it is loaded.
func (e *Entity) Get(field string) (ir.IRValue, bool) {
	v, ok := e.values[field]
	return v, ok
}

// GetString returns a string field, or "" when NULL or not loaded.
func (e *Entity) GetString(field string) string {
	v, _ := e.values[field].(ir.IRString)
	return string(v)
}

// GetInt returns an int field, or 0 when NULL or not loaded.
func (e *Entity) GetInt(field string) int64 {
	v, _ := e.values[field].(ir.IRInt)
	return int64(v)
}

// GetBool returns a bool field, or false when NULL or not loaded.
func (e *Entity) GetBool(field string) bool {
	v, _ := e.values[field].(ir.IRBool)
	return bool(v)
}

// IsNull reports whether a loaded field holds NULL.
func (e *Entity) IsNull(field string) bool {
	v, ok := e.values[field]
	return ok && ir.IsNull(v)
}

// Ref returns the entity referenced by an owning association, or nil when
// the join column is NULL or the entity is not loaded.
func (e *Entity) Ref(association string) *Entity {
	return e.refs[association]
}

// Version returns the optimistic-lock version of a loaded, versioned entity.
func (e *Entity) Version() (int64, bool) {
	if !e.et.IsVersioned() {
		return 0, false
	}
	v, ok := e.values[e.et.Version].(ir.IRInt)
	return int64(v), ok
}

// Set changes a scalar field in memory. Identifier fields are immutable.
// Set never writes to the database; the value only survives for the life of
// the unit of work.
func (e *Entity) Set(field string, value any) error {
	f, ok := e.et.Field(field)
	if !ok {
		return fmt.Errorf("%s has no field %q", e.et.Name, field)
	}
	if e.et.IsIdentifier(field) {
		return fmt.Errorf("%s.%s is an identifier field", e.et.Name, field)
	}
	v, err := ir.FromGo(value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", e.et.Name, field, err)
	}
	if ir.IsNull(v) {
		if !f.Nullable {
			return fmt.Errorf("%s.%s is not nullable", e.et.Name, field)
		}
		e.values[field] = ir.IRNull{}
		return nil
	}
	if !matchesType(v, f.Type) {
		return fmt.Errorf("%s.%s: expected %s, got %T", e.et.Name, field, f.Type, value)
	}
	e.values[field] = v
	return nil
}

// String renders the entity as its identity key.
func (e *Entity) String() string {
	return e.key.String()
}

func matchesType(v ir.IRValue, t ir.ScalarType) bool {
	switch v.(type) {
	case ir.IRString:
		return t == ir.TypeString
	case ir.IRInt:
		return t == ir.TypeInt
	case ir.IRBool:
		return t == ir.TypeBool
	}
	return false
}
