package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/entrepo/internal/ir"
)

// CompileError reports a problem in a CUE entity definition.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileEntity parses one CUE entity definition into an EntityType.
// Uses the CUE SDK's Go API directly.
//
// The value is the entity struct itself, e.g. the value at entity.CmsUser in:
//
//	entity: CmsUser: {
//		table: "cms_users"
//		id:    ["id"]
//		fields: {
//			id:       int
//			status:   string | null
//			username: {type: string, column: "user_name"}
//		}
//		associations: {
//			address: {target: "CmsAddress", kind: "one_to_one", mappedBy: "user"}
//			email:   {target: "CmsEmail", kind: "one_to_one", joinColumn: "email_id"}
//		}
//	}
//
// A field is either a bare type (column defaults to the field name) or a
// struct with type, column and nullable. "T | null" marks a field nullable.
func CompileEntity(v cue.Value) (*ir.EntityType, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	et := &ir.EntityType{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		et.Name = labels[len(labels)-1].String()
	}

	table, err := optionalString(v, "table")
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = strings.ToLower(et.Name)
	}
	et.Table = table

	et.Identifier, err = parseIdentifier(v)
	if err != nil {
		return nil, err
	}

	et.Version, err = optionalString(v, "version")
	if err != nil {
		return nil, err
	}

	et.Repository, err = optionalString(v, "repository")
	if err != nil {
		return nil, err
	}

	et.Fields, err = parseFields(v)
	if err != nil {
		return nil, err
	}
	if len(et.Fields) == 0 {
		return nil, &CompileError{
			Field:   "fields",
			Message: "at least one field is required",
			Pos:     v.Pos(),
		}
	}

	et.Associations, err = parseAssociations(v)
	if err != nil {
		return nil, err
	}

	return et, nil
}

// parseIdentifier accepts `id: "id"` or `id: ["a", "b"]`; defaults to ["id"].
func parseIdentifier(v cue.Value) ([]string, error) {
	idVal := v.LookupPath(cue.ParsePath("id"))
	if !idVal.Exists() {
		return []string{"id"}, nil
	}

	if s, err := idVal.String(); err == nil {
		return []string{s}, nil
	}

	iter, err := idVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "id",
			Message: "id must be a string or a list of strings",
			Pos:     idVal.Pos(),
		}
	}

	var ids []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ids = append(ids, s)
	}
	return ids, nil
}

// parseFields extracts scalar field mappings in declaration order.
func parseFields(v cue.Value) ([]ir.Field, error) {
	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, nil
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []ir.Field
	for iter.Next() {
		name := iter.Label()
		f := ir.Field{Name: name, Column: name}

		typeVal := iter.Value()
		if typeVal.IncompleteKind() == cue.StructKind {
			column, err := optionalString(typeVal, "column")
			if err != nil {
				return nil, err
			}
			if column != "" {
				f.Column = column
			}
			nullable := typeVal.LookupPath(cue.ParsePath("nullable"))
			if nullable.Exists() {
				b, err := nullable.Bool()
				if err != nil {
					return nil, formatCUEError(err)
				}
				f.Nullable = b
			}
			typeVal = typeVal.LookupPath(cue.ParsePath("type"))
			if !typeVal.Exists() {
				return nil, &CompileError{
					Field:   "fields." + name,
					Message: "field struct must declare a type",
					Pos:     iter.Value().Pos(),
				}
			}
		}

		st, nullable, err := extractScalarType(typeVal)
		if err != nil {
			return nil, err
		}
		f.Type = st
		f.Nullable = f.Nullable || nullable
		fields = append(fields, f)
	}
	return fields, nil
}

// extractScalarType converts a CUE kind into a scalar type.
// Floats are rejected; a null disjunct marks the field nullable.
func extractScalarType(v cue.Value) (ir.ScalarType, bool, error) {
	kind := v.IncompleteKind()
	nullable := kind&cue.NullKind != 0
	kind &^= cue.NullKind

	switch kind {
	case cue.StringKind:
		return ir.TypeString, nullable, nil
	case cue.IntKind:
		return ir.TypeInt, nullable, nil
	case cue.BoolKind:
		return ir.TypeBool, nullable, nil
	case cue.FloatKind, cue.NumberKind:
		return "", false, &CompileError{
			Field:   "type",
			Message: "float types are not supported - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", false, &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", kind),
			Pos:     v.Pos(),
		}
	}
}

// parseAssociations extracts association mappings in declaration order.
func parseAssociations(v cue.Value) ([]ir.Association, error) {
	assocVal := v.LookupPath(cue.ParsePath("associations"))
	if !assocVal.Exists() {
		return nil, nil
	}

	iter, err := assocVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var assocs []ir.Association
	for iter.Next() {
		name := iter.Label()
		av := iter.Value()

		a := ir.Association{Name: name}
		if a.Target, err = optionalString(av, "target"); err != nil {
			return nil, err
		}
		if a.Target == "" {
			return nil, &CompileError{
				Field:   "associations." + name,
				Message: "target is required",
				Pos:     av.Pos(),
			}
		}
		if a.JoinColumn, err = optionalString(av, "joinColumn"); err != nil {
			return nil, err
		}
		if a.MappedBy, err = optionalString(av, "mappedBy"); err != nil {
			return nil, err
		}

		kind, err := optionalString(av, "kind")
		if err != nil {
			return nil, err
		}
		switch ir.AssociationKind(kind) {
		case ir.OneToOne, ir.ManyToOne, ir.OneToMany:
			a.Kind = ir.AssociationKind(kind)
		case "":
			a.Kind = ir.ManyToOne
			if a.MappedBy != "" {
				a.Kind = ir.OneToMany
			}
		default:
			return nil, &CompileError{
				Field:   "associations." + name + ".kind",
				Message: fmt.Sprintf("unknown association kind %q", kind),
				Pos:     av.Pos(),
			}
		}

		assocs = append(assocs, a)
	}
	return assocs, nil
}

// optionalString returns the string at path, or "" when absent.
func optionalString(v cue.Value, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileValue compiles every entity under the top-level "entity" field and
// builds a validated registry.
func CompileValue(value cue.Value) (*Registry, error) {
	entitiesVal := value.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil, &CompileError{Field: "entity", Message: "no entity definitions found"}
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var types []*ir.EntityType
	for iter.Next() {
		et, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", iter.Label(), err)
		}
		types = append(types, et)
	}
	return Build(types...)
}

// CompileSource compiles CUE source text into a registry.
func CompileSource(src string) (*Registry, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(v)
}

// LoadDir loads the CUE package in dir and compiles its entities.
func LoadDir(dir string) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(value)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
