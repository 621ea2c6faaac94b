package planner

import (
	"fmt"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
)

// ColumnKind tells the hydrator what a selected column holds.
type ColumnKind int

const (
	// ColumnField holds a scalar field value.
	ColumnField ColumnKind = iota + 1

	// ColumnJoin holds an owning association's foreign key.
	ColumnJoin
)

// ColumnMapping describes one selected column.
type ColumnMapping struct {
	Column string
	Kind   ColumnKind
	Name   string        // field or association name
	Type   ir.ScalarType // value type of the column
	Target string        // target entity for ColumnJoin
}

// ResultMapping maps the columns of a row onto one entity type, in
// selection order.
type ResultMapping struct {
	Entity  string
	Alias   string
	Columns []ColumnMapping
}

// Names returns the field and association names in column order.
func (m *ResultMapping) Names() []string {
	out := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		out[i] = c.Name
	}
	return out
}

// NewResultMapping builds the column mapping for et: scalar fields in
// declaration order, then owning-side join columns.
func NewResultMapping(source metadata.Source, et *ir.EntityType, alias string) (*ResultMapping, error) {
	m := &ResultMapping{Entity: et.Name, Alias: alias}
	for _, f := range et.Fields {
		m.Columns = append(m.Columns, ColumnMapping{
			Column: f.Column,
			Kind:   ColumnField,
			Name:   f.Name,
			Type:   f.Type,
		})
	}
	for _, a := range et.Associations {
		if !a.IsOwningSide() {
			continue
		}
		target, err := source.EntityType(a.Target)
		if err != nil {
			return nil, err
		}
		ids := target.IdentifierFields()
		if len(ids) != 1 {
			return nil, fmt.Errorf("association %s.%s: target %s has a composite identifier", et.Name, a.Name, a.Target)
		}
		m.Columns = append(m.Columns, ColumnMapping{
			Column: a.JoinColumn,
			Kind:   ColumnJoin,
			Name:   a.Name,
			Type:   ids[0].Type,
			Target: a.Target,
		})
	}
	return m, nil
}
