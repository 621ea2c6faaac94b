package metadata

import (
	"fmt"
	"regexp"

	"github.com/roach88/entrepo/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrInvalidIdentifier    = "E201" // table or column name is not a plain SQL identifier
	ErrInvalidPrimaryKey    = "E202" // identifier missing or naming an unknown field
	ErrInvalidVersionField  = "E203" // version field missing or not an int
	ErrUnknownTarget        = "E204" // association target not registered
	ErrInvalidAssociation   = "E205" // association must set exactly one of joinColumn/mappedBy
	ErrInvalidMappedBy      = "E206" // mappedBy must name an owning association back to this type
	ErrCompositeJoin        = "E207" // join target must have a single-column identifier
	ErrDuplicateColumn      = "E208" // two mappings share a column
	ErrInvalidFieldType     = "E209" // unsupported scalar type
	ErrDuplicateMappingName = "E210" // field and association share a name
)

// validIdentifier matches plain SQL identifiers. Table and column names are
// interpolated into generated SQL, so nothing else is accepted.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a metadata validation error.
type ValidationError struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s.%s: %s", e.Code, e.Entity, e.Field, e.Message)
}

// Validate checks every registered type and the references between them.
// Returns all errors found (does not fail-fast), in type-name order.
func (r *Registry) Validate() []ValidationError {
	var errs []ValidationError
	for _, name := range r.Names() {
		errs = append(errs, r.validateEntity(r.types[name])...)
	}
	return errs
}

func (r *Registry) validateEntity(et *ir.EntityType) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Entity:  et.Name,
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if !validIdentifier.MatchString(et.Table) {
		add("table", ErrInvalidIdentifier, "table name %q is not a valid identifier", et.Table)
	}

	columns := make(map[string]string)
	claim := func(column, owner string) {
		if prev, dup := columns[column]; dup {
			add(owner, ErrDuplicateColumn, "column %q already mapped by %q", column, prev)
			return
		}
		columns[column] = owner
	}

	for _, f := range et.Fields {
		if !validIdentifier.MatchString(f.Column) {
			add(f.Name, ErrInvalidIdentifier, "column name %q is not a valid identifier", f.Column)
		}
		if !ir.ValidScalarTypes[f.Type] {
			add(f.Name, ErrInvalidFieldType, "unsupported field type %q", f.Type)
		}
		claim(f.Column, f.Name)
	}

	if len(et.Identifier) == 0 {
		add("id", ErrInvalidPrimaryKey, "at least one identifier field is required")
	}
	for _, id := range et.Identifier {
		f, ok := et.Field(id)
		if !ok {
			add("id", ErrInvalidPrimaryKey, "identifier %q is not a scalar field", id)
			continue
		}
		if f.Nullable {
			add("id", ErrInvalidPrimaryKey, "identifier %q cannot be nullable", id)
		}
	}

	if et.Version != "" {
		f, ok := et.Field(et.Version)
		if !ok || f.Type != ir.TypeInt {
			add("version", ErrInvalidVersionField, "version field %q must be an int field", et.Version)
		}
	}

	for _, a := range et.Associations {
		if _, clash := et.Field(a.Name); clash {
			add(a.Name, ErrDuplicateMappingName, "association %q shadows a field", a.Name)
		}
		if (a.JoinColumn == "") == (a.MappedBy == "") {
			add(a.Name, ErrInvalidAssociation, "exactly one of joinColumn or mappedBy must be set")
			continue
		}

		target, ok := r.types[a.Target]
		if !ok {
			add(a.Name, ErrUnknownTarget, "target entity %q is not registered", a.Target)
			continue
		}

		if a.IsOwningSide() {
			if !validIdentifier.MatchString(a.JoinColumn) {
				add(a.Name, ErrInvalidIdentifier, "join column %q is not a valid identifier", a.JoinColumn)
			}
			claim(a.JoinColumn, a.Name)
			if len(target.Identifier) != 1 {
				add(a.Name, ErrCompositeJoin, "target %q must have a single-column identifier", a.Target)
			}
			continue
		}

		back, ok := target.Association(a.MappedBy)
		if !ok || !back.IsOwningSide() || back.Target != et.Name {
			add(a.Name, ErrInvalidMappedBy, "mappedBy %q must name an owning association on %q targeting %q",
				a.MappedBy, a.Target, et.Name)
		}
	}

	return errs
}
