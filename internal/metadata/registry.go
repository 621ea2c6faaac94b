package metadata

import (
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/ormerr"
)

// Source answers metadata questions for the rest of the repository stack.
// Registry is the only production implementation.
type Source interface {
	// EntityType returns the registered type with the given name.
	EntityType(name string) (*ir.EntityType, error)

	// ResolveField classifies name on et as a scalar field, an owning-side
	// association or an inverse-side association.
	ResolveField(et *ir.EntityType, name string) (FieldRef, error)
}

// Kind classifies a resolved field name.
type Kind int

const (
	KindScalar Kind = iota + 1
	KindOwningAssociation
	KindInverseAssociation
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindOwningAssociation:
		return "owning_association"
	case KindInverseAssociation:
		return "inverse_association"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// FieldRef is the result of resolving a field name against an entity type.
type FieldRef struct {
	Kind Kind

	// Field is set for KindScalar.
	Field *ir.Field

	// Association and Target are set for both association kinds.
	Association *ir.Association
	Target      *ir.EntityType
}

// Name returns the mapped name of the field or association.
func (f FieldRef) Name() string {
	if f.Field != nil {
		return f.Field.Name
	}
	if f.Association != nil {
		return f.Association.Name
	}
	return ""
}

// Column returns the column compared or ordered on: the field's column for
// scalars, the join column for owning associations, "" for inverse sides.
func (f FieldRef) Column() string {
	switch f.Kind {
	case KindScalar:
		return f.Field.Column
	case KindOwningAssociation:
		return f.Association.JoinColumn
	default:
		return ""
	}
}

// ValueType returns the type of the column's values: the field type for
// scalars, the target's identifier type for owning associations.
func (f FieldRef) ValueType() ir.ScalarType {
	switch f.Kind {
	case KindScalar:
		return f.Field.Type
	case KindOwningAssociation:
		ids := f.Target.IdentifierFields()
		if len(ids) == 1 {
			return ids[0].Type
		}
	}
	return ""
}

// Registry holds immutable entity types keyed by name.
// Safe for concurrent reads once populated.
type Registry struct {
	types map[string]*ir.EntityType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*ir.EntityType)}
}

// Build registers every type and runs cross-type validation.
// All validation errors are joined into the returned error.
func Build(types ...*ir.EntityType) (*Registry, error) {
	r := NewRegistry()
	for _, et := range types {
		if err := r.Register(et); err != nil {
			return nil, err
		}
	}
	if errs := r.Validate(); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, errors.Join(joined...)
	}
	return r, nil
}

// Register adds a deep copy of et. Registering a name twice is an error.
func (r *Registry) Register(et *ir.EntityType) error {
	if et == nil || et.Name == "" {
		return fmt.Errorf("entity type must have a name")
	}
	if _, exists := r.types[et.Name]; exists {
		return fmt.Errorf("entity type %q already registered", et.Name)
	}
	r.types[et.Name] = cloneEntityType(et)
	return nil
}

// EntityType implements Source.
func (r *Registry) EntityType(name string) (*ir.EntityType, error) {
	et, ok := r.types[name]
	if !ok {
		return nil, ormerr.UnknownEntityType(name)
	}
	return et, nil
}

// Names returns registered type names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	return len(r.types)
}

// ResolveField implements Source.
//
// Unknown names yield ormerr.CodeUnrecognizedField. The name is matched
// exactly; no trimming or case folding happens, so nothing that is not a
// mapped name can ever reach generated SQL.
func (r *Registry) ResolveField(et *ir.EntityType, name string) (FieldRef, error) {
	if f, ok := et.Field(name); ok {
		return FieldRef{Kind: KindScalar, Field: f}, nil
	}

	a, ok := et.Association(name)
	if !ok {
		return FieldRef{}, ormerr.UnrecognizedField(et.Name, name)
	}

	target, err := r.EntityType(a.Target)
	if err != nil {
		return FieldRef{}, err
	}

	kind := KindInverseAssociation
	if a.IsOwningSide() {
		kind = KindOwningAssociation
	}
	return FieldRef{Kind: kind, Association: a, Target: target}, nil
}

func cloneEntityType(et *ir.EntityType) *ir.EntityType {
	c := *et
	c.Fields = append([]ir.Field(nil), et.Fields...)
	c.Associations = append([]ir.Association(nil), et.Associations...)
	c.Identifier = append([]string(nil), et.Identifier...)
	return &c
}
