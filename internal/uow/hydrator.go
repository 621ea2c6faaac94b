package uow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/planner"
)

// Hydrator materializes rows into managed entities of one unit of work.
type Hydrator struct {
	uow    *UnitOfWork
	source metadata.Source
}

// NewHydrator creates a hydrator registering into u.
func NewHydrator(u *UnitOfWork, source metadata.Source) *Hydrator {
	return &Hydrator{uow: u, source: source}
}

// Hydrate converts one row laid out by m. row holds driver values, one per
// mapped column.
//
// A loaded entity already managed under the row's identity is returned
// unchanged. A managed uninitialized reference is populated in place.
// Otherwise a new entity is built and registered.
func (h *Hydrator) Hydrate(m *planner.ResultMapping, row []any) (*Entity, error) {
	if len(row) != len(m.Columns) {
		return nil, fmt.Errorf("hydrate %s: row has %d columns, mapping has %d", m.Entity, len(row), len(m.Columns))
	}
	et, err := h.source.EntityType(m.Entity)
	if err != nil {
		return nil, err
	}

	values := make([]ir.IRValue, len(row))
	for i, col := range m.Columns {
		v, err := FromDriver(row[i], col.Type)
		if err != nil {
			return nil, fmt.Errorf("hydrate %s.%s: %w", m.Entity, col.Name, err)
		}
		values[i] = v
	}

	id, err := identifier(et, m, values)
	if err != nil {
		return nil, err
	}
	e, err := h.uow.Reference(et, id)
	if err != nil {
		return nil, err
	}
	if e.loaded {
		return e, nil
	}

	if err := h.populate(e, m, values); err != nil {
		return nil, err
	}
	return e, nil
}

func (h *Hydrator) populate(e *Entity, m *planner.ResultMapping, values []ir.IRValue) error {
	for i, col := range m.Columns {
		switch col.Kind {
		case planner.ColumnField:
			e.values[col.Name] = values[i]
		case planner.ColumnJoin:
			if ir.IsNull(values[i]) {
				e.refs[col.Name] = nil
				continue
			}
			target, err := h.source.EntityType(col.Target)
			if err != nil {
				return err
			}
			ref, err := h.uow.Reference(target, []ir.IRValue{values[i]})
			if err != nil {
				return fmt.Errorf("hydrate %s.%s: %w", m.Entity, col.Name, err)
			}
			e.refs[col.Name] = ref
		}
	}
	e.loaded = true
	return nil
}

// identifier extracts the identifier tuple, in key order, from a row.
func identifier(et *ir.EntityType, m *planner.ResultMapping, values []ir.IRValue) ([]ir.IRValue, error) {
	id := make([]ir.IRValue, 0, len(et.Identifier))
	for _, name := range et.Identifier {
		found := false
		for i, col := range m.Columns {
			if col.Kind == planner.ColumnField && col.Name == name {
				id = append(id, values[i])
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("hydrate %s: identifier field %q not selected", et.Name, name)
		}
	}
	return id, nil
}

// FromDriver converts a value scanned by database/sql into the IR type of a
// column. Drivers disagree on representations (SQLite may return TEXT as
// []byte and BOOLEAN as int64), so every plausible form is accepted.
func FromDriver(v any, t ir.ScalarType) (ir.IRValue, error) {
	if v == nil {
		return ir.IRNull{}, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch t {
	case ir.TypeString:
		switch val := v.(type) {
		case string:
			return ir.IRString(val), nil
		case int64:
			return ir.IRString(strconv.FormatInt(val, 10)), nil
		}
	case ir.TypeInt:
		switch val := v.(type) {
		case int64:
			return ir.IRInt(val), nil
		case int32:
			return ir.IRInt(val), nil
		case int:
			return ir.IRInt(val), nil
		case string:
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("cannot read %q as int", val)
			}
			return ir.IRInt(n), nil
		}
	case ir.TypeBool:
		switch val := v.(type) {
		case bool:
			return ir.IRBool(val), nil
		case int64:
			return ir.IRBool(val != 0), nil
		case string:
			switch strings.ToLower(val) {
			case "1", "t", "true":
				return ir.IRBool(true), nil
			case "0", "f", "false":
				return ir.IRBool(false), nil
			}
			return nil, fmt.Errorf("cannot read %q as bool", val)
		}
	default:
		return nil, fmt.Errorf("unsupported column type %q", t)
	}
	return nil, fmt.Errorf("cannot read %T as %s", v, t)
}
