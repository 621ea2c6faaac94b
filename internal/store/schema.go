package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
)

// validIdentifier guards names interpolated into DDL and utility queries.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// columnTypes maps scalar types to portable SQL column types.
var columnTypes = map[ir.ScalarType]string{
	ir.TypeInt:    "INTEGER",
	ir.TypeString: "TEXT",
	ir.TypeBool:   "BOOLEAN",
}

// CreateTables creates one table per registered type. Referenced tables are
// created before the tables whose join columns point at them.
//
// The schema is derived from metadata only; it exists so tests and the CLI
// can stand up a database for the mapped model without migrations.
func (s *Store) CreateTables(ctx context.Context, reg *metadata.Registry) error {
	for _, name := range creationOrder(reg) {
		et, err := reg.EntityType(name)
		if err != nil {
			return err
		}
		ddl, err := createTableSQL(reg, et)
		if err != nil {
			return err
		}
		s.logger.Debug("create table", "entity", et.Name, "table", et.Table)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", et.Table, err)
		}
	}
	return nil
}

// creationOrder returns type names so that join targets precede their
// referrers. Reference cycles fall back to name order.
func creationOrder(reg *metadata.Registry) []string {
	var (
		order   []string
		visited = make(map[string]bool)
	)
	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		et, err := reg.EntityType(name)
		if err != nil {
			return
		}
		for _, a := range et.Associations {
			if a.IsOwningSide() && a.Target != name {
				visit(a.Target)
			}
		}
		order = append(order, name)
	}
	for _, name := range reg.Names() {
		visit(name)
	}
	return order
}

func createTableSQL(reg *metadata.Registry, et *ir.EntityType) (string, error) {
	var cols []string

	singleIntKey := false
	if ids := et.IdentifierFields(); len(ids) == 1 && ids[0].Type == ir.TypeInt {
		singleIntKey = true
	}

	for _, f := range et.Fields {
		def := f.Column + " " + columnTypes[f.Type]
		switch {
		case singleIntKey && et.IsIdentifier(f.Name):
			def += " PRIMARY KEY"
		case !f.Nullable:
			def += " NOT NULL"
		}
		cols = append(cols, def)
	}

	for _, a := range et.Associations {
		if !a.IsOwningSide() {
			continue
		}
		target, err := reg.EntityType(a.Target)
		if err != nil {
			return "", err
		}
		ids := target.IdentifierFields()
		if len(ids) != 1 {
			return "", fmt.Errorf("%s.%s: join target %s needs a single-column identifier", et.Name, a.Name, a.Target)
		}
		cols = append(cols, fmt.Sprintf("%s %s REFERENCES %s(%s)",
			a.JoinColumn, columnTypes[ids[0].Type], target.Table, ids[0].Column))
	}

	if !singleIntKey {
		keys := make([]string, 0, len(et.Identifier))
		for _, f := range et.IdentifierFields() {
			keys = append(keys, f.Column)
		}
		cols = append(cols, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", et.Table, strings.Join(cols, ",\n  ")), nil
}

// Insert writes one row for et. values is keyed by field or association
// name; association values may be identifiers or Identifiable objects.
// Missing fields are written as NULL.
func (s *Store) Insert(ctx context.Context, et *ir.EntityType, values map[string]any) error {
	for name := range values {
		if _, ok := et.Field(name); ok {
			continue
		}
		if a, ok := et.Association(name); ok && a.IsOwningSide() {
			continue
		}
		return fmt.Errorf("insert %s: %q is not a mapped field or owning association", et.Name, name)
	}

	var (
		cols []string
		args []any
	)
	add := func(column string, v any) error {
		irv, err := toIR(v)
		if err != nil {
			return fmt.Errorf("insert %s.%s: %w", et.Name, column, err)
		}
		cols = append(cols, column)
		args = append(args, ir.Native(irv))
		return nil
	}

	for _, f := range et.Fields {
		if err := add(f.Column, values[f.Name]); err != nil {
			return err
		}
	}
	for _, a := range et.Associations {
		if !a.IsOwningSide() {
			continue
		}
		if err := add(a.JoinColumn, values[a.Name]); err != nil {
			return err
		}
	}

	marks := make([]string, len(cols))
	for i := range marks {
		marks[i] = s.dialect.Placeholder(i + 1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		et.Table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", et.Name, err)
	}
	return nil
}

// toIR converts an insert value. Identifiable objects contribute their
// single identifier value.
func toIR(v any) (ir.IRValue, error) {
	if obj, ok := v.(ir.Identifiable); ok {
		ids := obj.IdentifierValues()
		if len(ids) != 1 {
			return nil, fmt.Errorf("%s reference needs a single identifier value, got %d", obj.EntityTypeName(), len(ids))
		}
		return ids[0], nil
	}
	return ir.FromGo(v)
}
