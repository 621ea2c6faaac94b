package planner

import (
	"fmt"
	"strings"

	"github.com/roach88/entrepo/internal/ir"
)

// Kind distinguishes row plans from count plans.
type Kind string

const (
	KindSelect Kind = "select"
	KindCount  Kind = "count"
)

// ParamType is the database-level tag of a parameter: a scalar type, or an
// array of that type for IN lists.
type ParamType struct {
	Scalar ir.ScalarType
	Array  bool
}

// String renders "int", "string[]", ...
func (t ParamType) String() string {
	if t.Array {
		return string(t.Scalar) + "[]"
	}
	return string(t.Scalar)
}

// Param is one positional parameter. Value is an ir.IRArray when
// Type.Array is set.
type Param struct {
	Type  ParamType
	Value ir.IRValue
}

// String renders "type value" for logs.
func (p Param) String() string {
	return p.Type.String() + " " + formatValue(p.Value)
}

func formatValue(v ir.IRValue) string {
	if s, ok := v.(ir.IRString); ok {
		return fmt.Sprintf("%q", string(s))
	}
	return ir.Format(v)
}

// Join is one LEFT JOIN required by an association hop.
type Join struct {
	Alias       string
	Table       string
	Target      string
	Association string
	On          string
}

// SQL renders the join clause without a leading space.
func (j Join) SQL() string {
	return fmt.Sprintf("LEFT JOIN %s %s ON %s", j.Table, j.Alias, j.On)
}

// Plan is a compiled, immutable query.
//
// SQL is the display form with one placeholder per Param. Segments holds
// the same text split around those placeholders (len(Segments) ==
// len(Params)+1) so Bind can expand array parameters without re-planning.
type Plan struct {
	Kind     Kind
	Root     string
	SQL      string
	Segments []string
	Params   []Param
	Joins    []Join
	Mapping  *ResultMapping // nil for count plans
	Limit    *int
	Offset   *int
	Lock     LockMode

	dialect Dialect
}

// Dialect returns the dialect the plan was rendered for.
func (p *Plan) Dialect() Dialect {
	if p.dialect == nil {
		return SQLite{}
	}
	return p.dialect
}

// ParamTypes returns the type tag of every parameter, in order.
func (p *Plan) ParamTypes() []string {
	out := make([]string, len(p.Params))
	for i, prm := range p.Params {
		out[i] = prm.Type.String()
	}
	return out
}

// ParamValues returns every parameter value, in order.
func (p *Plan) ParamValues() []ir.IRValue {
	out := make([]ir.IRValue, len(p.Params))
	for i, prm := range p.Params {
		out[i] = prm.Value
	}
	return out
}

// Bind renders driver SQL and arguments. Array parameters expand into one
// placeholder per element; placeholders are numbered after expansion.
func (p *Plan) Bind() (string, []any) {
	d := p.Dialect()
	var b strings.Builder
	args := make([]any, 0, len(p.Params))
	n := 0
	next := func(v ir.IRValue) {
		n++
		b.WriteString(d.Placeholder(n))
		args = append(args, ir.Native(v))
	}

	for i, seg := range p.Segments {
		b.WriteString(seg)
		if i >= len(p.Params) {
			break
		}
		prm := p.Params[i]
		if !prm.Type.Array {
			next(prm.Value)
			continue
		}
		arr, _ := prm.Value.(ir.IRArray)
		for j, elem := range arr {
			if j > 0 {
				b.WriteString(", ")
			}
			next(elem)
		}
	}
	return b.String(), args
}

// Fingerprint returns a content hash of the plan's SQL, dialect and typed
// parameters. Equal plans have equal fingerprints.
func (p *Plan) Fingerprint() (string, error) {
	params := make(ir.IRArray, len(p.Params))
	for i, prm := range p.Params {
		params[i] = ir.IRObject{
			"type":  ir.IRString(prm.Type.String()),
			"value": prm.Value,
		}
	}
	return ir.Digest(ir.DomainPlan, ir.IRObject{
		"dialect": ir.IRString(p.Dialect().Name()),
		"sql":     ir.IRString(p.SQL),
		"params":  params,
	})
}

// writer accumulates SQL text split around parameter placeholders.
type writer struct {
	segments []string
	params   []Param
	cur      strings.Builder
}

func (w *writer) text(s string) {
	w.cur.WriteString(s)
}

func (w *writer) param(p Param) {
	w.segments = append(w.segments, w.cur.String())
	w.cur.Reset()
	w.params = append(w.params, p)
}

// append copies another writer's output onto w.
func (w *writer) append(other *writer) {
	for i, seg := range other.segments {
		w.text(seg)
		w.param(other.params[i])
	}
	w.text(other.cur.String())
}

// finish returns the segments, including the trailing one.
func (w *writer) finish() ([]string, []Param) {
	return append(w.segments, w.cur.String()), w.params
}

// render joins segments with dialect placeholders, one per parameter.
func render(d Dialect, segments []string) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString(d.Placeholder(i))
		}
		b.WriteString(seg)
	}
	return b.String()
}
