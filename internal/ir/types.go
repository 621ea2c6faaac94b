package ir

// ScalarType is the storage type of a mapped field.
type ScalarType string

const (
	TypeString ScalarType = "string"
	TypeInt    ScalarType = "int"
	TypeBool   ScalarType = "bool"
)

// ValidScalarTypes lists the field types an entity may declare.
var ValidScalarTypes = map[ScalarType]bool{
	TypeString: true,
	TypeInt:    true,
	TypeBool:   true,
}

// AssociationKind describes the cardinality of an association.
type AssociationKind string

const (
	OneToOne  AssociationKind = "one_to_one"
	ManyToOne AssociationKind = "many_to_one"
	OneToMany AssociationKind = "one_to_many"
)

// EntityType describes one persistent entity: its table, scalar fields,
// associations, identifier and optional version field.
//
// An EntityType is immutable once registered with a metadata registry and is
// shared read-only between every unit of work.
type EntityType struct {
	Name         string        `json:"name"`
	Table        string        `json:"table"`
	Fields       []Field       `json:"fields"`
	Associations []Association `json:"associations,omitempty"`

	// Identifier lists the field names forming the primary key, in key order.
	Identifier []string `json:"identifier"`

	// Version names the integer field used for optimistic locking.
	// Empty means the type is unversioned.
	Version string `json:"version,omitempty"`

	// Repository names a custom repository registered with the manager.
	// Empty means the manager's default repository.
	Repository string `json:"repository,omitempty"`
}

// Field is a scalar column mapping.
type Field struct {
	Name     string     `json:"name"`
	Column   string     `json:"column"`
	Type     ScalarType `json:"type"`
	Nullable bool       `json:"nullable,omitempty"`
}

// Association is a reference to another entity type.
//
// The owning side stores the join column (JoinColumn set). The inverse side
// only names the owning association on the target (MappedBy set) and has no
// column of its own.
type Association struct {
	Name       string          `json:"name"`
	Target     string          `json:"target"`
	Kind       AssociationKind `json:"kind"`
	JoinColumn string          `json:"join_column,omitempty"`
	MappedBy   string          `json:"mapped_by,omitempty"`
}

// IsOwningSide reports whether the association stores the join column.
func (a Association) IsOwningSide() bool {
	return a.JoinColumn != ""
}

// Field returns the scalar field with the given name.
func (e *EntityType) Field(name string) (*Field, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// Association returns the association with the given name.
func (e *EntityType) Association(name string) (*Association, bool) {
	for i := range e.Associations {
		if e.Associations[i].Name == name {
			return &e.Associations[i], true
		}
	}
	return nil, false
}

// IdentifierFields returns the identifier fields in key order.
func (e *EntityType) IdentifierFields() []*Field {
	out := make([]*Field, 0, len(e.Identifier))
	for _, name := range e.Identifier {
		if f, ok := e.Field(name); ok {
			out = append(out, f)
		}
	}
	return out
}

// IsIdentifier reports whether name is part of the primary key.
func (e *EntityType) IsIdentifier(name string) bool {
	for _, id := range e.Identifier {
		if id == name {
			return true
		}
	}
	return false
}

// IsVersioned reports whether the type carries an optimistic-lock version.
func (e *EntityType) IsVersioned() bool {
	return e.Version != ""
}

// Identifiable is implemented by managed objects so they can be used as
// criteria operands for association fields.
type Identifiable interface {
	EntityTypeName() string
	IdentifierValues() []IRValue
}
