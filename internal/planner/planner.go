package planner

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/queryir"
)

// RootAlias is the table alias of the queried entity.
const RootAlias = "t0"

// likeEscape is the escape character declared in every LIKE clause.
const likeEscape = `\`

// Planner compiles normalized queries. It holds no mutable state and is
// safe for concurrent use.
type Planner struct {
	source  metadata.Source
	dialect Dialect
}

// Option configures a Planner.
type Option func(*Planner)

// WithDialect sets the SQL dialect (default SQLite).
func WithDialect(d Dialect) Option {
	return func(p *Planner) {
		p.dialect = d
	}
}

// New creates a planner backed by source.
func New(source metadata.Source, opts ...Option) *Planner {
	p := &Planner{source: source, dialect: SQLite{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dialect returns the planner's dialect.
func (p *Planner) Dialect() Dialect {
	return p.dialect
}

// Select plans a row query.
func (p *Planner) Select(q *criteria.Query) (*Plan, error) {
	return p.plan(q, KindSelect, LockNone)
}

// Count plans a COUNT(*) over the same rows Select would return, ignoring
// ordering and bounds.
func (p *Planner) Count(q *criteria.Query) (*Plan, error) {
	return p.plan(q, KindCount, LockNone)
}

// Lookup plans a primary-key lookup. id is in identifier order.
func (p *Planner) Lookup(et *ir.EntityType, id []ir.IRValue, lock LockMode) (*Plan, error) {
	fields := et.IdentifierFields()
	if len(id) != len(fields) {
		return nil, fmt.Errorf("lookup %s: identifier has %d values, want %d", et.Name, len(id), len(fields))
	}

	items := make([]criteria.Predicate, len(fields))
	for i, f := range fields {
		items[i] = criteria.Compare{
			Path:  criteria.Path{Ref: metadata.FieldRef{Kind: metadata.KindScalar, Field: f}},
			Op:    queryir.OpEq,
			Value: id[i],
		}
	}
	var where criteria.Predicate = criteria.Conj{Items: items}
	if len(items) == 1 {
		where = items[0]
	}
	return p.plan(&criteria.Query{Root: et, Where: where}, KindSelect, lock)
}

func (p *Planner) plan(q *criteria.Query, kind Kind, lock LockMode) (*Plan, error) {
	if q == nil || q.Root == nil {
		return nil, fmt.Errorf("cannot plan nil query")
	}

	b := &builder{root: q.Root, joinIndex: make(map[string]string)}

	where := &writer{}
	if q.Where != nil {
		if err := b.predicate(where, q.Where, false); err != nil {
			return nil, err
		}
	}

	var orderBy string
	if kind == KindSelect && len(q.Order) > 0 {
		terms := make([]string, len(q.Order))
		for i, s := range q.Order {
			col, err := b.column(s.Path)
			if err != nil {
				return nil, err
			}
			terms[i] = col + " " + s.Direction()
		}
		orderBy = " ORDER BY " + strings.Join(terms, ", ")
	}

	plan := &Plan{
		Kind:    kind,
		Root:    q.Root.Name,
		Joins:   b.joins,
		Lock:    lock,
		dialect: p.dialect,
	}

	out := &writer{}
	switch kind {
	case KindCount:
		out.text("SELECT COUNT(*)")
	default:
		mapping, err := NewResultMapping(p.source, q.Root, RootAlias)
		if err != nil {
			return nil, err
		}
		plan.Mapping = mapping
		cols := make([]string, len(mapping.Columns))
		for i, c := range mapping.Columns {
			cols[i] = RootAlias + "." + c.Column
		}
		out.text("SELECT " + strings.Join(cols, ", "))
	}

	out.text(" FROM " + q.Root.Table + " " + RootAlias)
	for _, j := range b.joins {
		out.text(" " + j.SQL())
	}
	if q.Where != nil {
		out.text(" WHERE ")
		out.append(where)
	}
	if kind == KindSelect {
		out.text(orderBy)
		out.text(p.dialect.LimitOffset(q.Limit, q.Offset))
		out.text(p.dialect.LockClause(lock))
		plan.Limit = q.Limit
		plan.Offset = q.Offset
	}

	plan.Segments, plan.Params = out.finish()
	plan.SQL = render(p.dialect, plan.Segments)
	return plan, nil
}

// builder tracks joins while a plan is compiled.
type builder struct {
	root      *ir.EntityType
	joins     []Join
	joinIndex map[string]string
}

// join returns the alias for an owning association hop, adding the join on
// first use.
func (b *builder) join(ref metadata.FieldRef) (string, error) {
	key := ref.Association.JoinColumn + "->" + ref.Target.Name
	if alias, ok := b.joinIndex[key]; ok {
		return alias, nil
	}

	ids := ref.Target.IdentifierFields()
	if len(ids) != 1 {
		return "", fmt.Errorf("join %s: target %s has a composite identifier", ref.Name(), ref.Target.Name)
	}

	alias := fmt.Sprintf("t%d", len(b.joins)+1)
	b.joinIndex[key] = alias
	b.joins = append(b.joins, Join{
		Alias:       alias,
		Table:       ref.Target.Table,
		Target:      ref.Target.Name,
		Association: ref.Name(),
		On:          fmt.Sprintf("%s.%s = %s.%s", alias, ids[0].Column, RootAlias, ref.Association.JoinColumn),
	})
	return alias, nil
}

// column returns the qualified column a path compares or orders on.
func (b *builder) column(path criteria.Path) (string, error) {
	if path.Nested == nil {
		col := path.Ref.Column()
		if col == "" {
			return "", fmt.Errorf("path %s has no column", path)
		}
		return RootAlias + "." + col, nil
	}
	if path.Ref.Kind != metadata.KindOwningAssociation {
		return "", fmt.Errorf("path %s does not traverse an owning association", path)
	}
	alias, err := b.join(path.Ref)
	if err != nil {
		return "", err
	}
	col := path.Nested.Column()
	if col == "" {
		return "", fmt.Errorf("path %s has no column", path)
	}
	return alias + "." + col, nil
}

// predicate compiles one node. nested is true inside a group, where
// multi-item groups need parentheses.
func (b *builder) predicate(w *writer, p criteria.Predicate, nested bool) error {
	switch n := p.(type) {
	case criteria.Compare:
		return b.compare(w, n)
	case criteria.Conj:
		return b.group(w, n.Items, " AND ", "1 = 1", nested)
	case criteria.Disj:
		return b.group(w, n.Items, " OR ", "1 = 0", nested)
	default:
		return fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) group(w *writer, items []criteria.Predicate, sep, empty string, nested bool) error {
	switch len(items) {
	case 0:
		w.text(empty)
		return nil
	case 1:
		return b.predicate(w, items[0], nested)
	}

	if nested {
		w.text("(")
	}
	for i, item := range items {
		if i > 0 {
			w.text(sep)
		}
		if err := b.predicate(w, item, true); err != nil {
			return err
		}
	}
	if nested {
		w.text(")")
	}
	return nil
}

var comparisonSQL = map[queryir.Operator]string{
	queryir.OpEq:  "=",
	queryir.OpNeq: "<>",
	queryir.OpLt:  "<",
	queryir.OpLte: "<=",
	queryir.OpGt:  ">",
	queryir.OpGte: ">=",
}

// compare compiles a leaf. Values are always parameters.
func (b *builder) compare(w *writer, c criteria.Compare) error {
	col, err := b.column(c.Path)
	if err != nil {
		return err
	}
	scalar := ParamType{Scalar: c.Path.ValueType()}

	switch {
	case c.Op == queryir.OpIsNull:
		w.text(col + " IS NULL")

	case c.Op == queryir.OpEq && ir.IsNull(c.Value):
		w.text(col + " IS NULL")

	case c.Op == queryir.OpNeq && ir.IsNull(c.Value):
		w.text(col + " IS NOT NULL")

	case c.Op.IsList():
		arr, ok := c.Value.(ir.IRArray)
		if !ok {
			return fmt.Errorf("%s %s: list operand required", c.Path, c.Op)
		}
		if len(arr) == 0 {
			if c.Op == queryir.OpIn {
				w.text("1 = 0")
			} else {
				w.text("1 = 1")
			}
			return nil
		}
		if c.Op == queryir.OpIn {
			w.text(col + " IN (")
		} else {
			w.text(col + " NOT IN (")
		}
		w.param(Param{Type: ParamType{Scalar: scalar.Scalar, Array: true}, Value: arr})
		w.text(")")

	case c.Op.IsPattern():
		s, ok := c.Value.(ir.IRString)
		if !ok {
			return fmt.Errorf("%s %s: string operand required", c.Path, c.Op)
		}
		pattern := likePattern(c.Op, string(s))
		if c.Op.CaseInsensitive() {
			w.text("LOWER(" + col + ") LIKE ")
			pattern = cases.Lower(language.Und).String(pattern)
		} else {
			w.text(col + " LIKE ")
		}
		w.param(Param{Type: ParamType{Scalar: ir.TypeString}, Value: ir.IRString(pattern)})
		w.text(` ESCAPE '` + likeEscape + `'`)

	default:
		op, ok := comparisonSQL[c.Op]
		if !ok {
			return fmt.Errorf("unsupported operator %q", c.Op)
		}
		w.text(col + " " + op + " ")
		w.param(Param{Type: scalar, Value: c.Value})
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern escapes LIKE metacharacters in value and wraps it in
// wildcards for the operator.
func likePattern(op queryir.Operator, value string) string {
	escaped := likeEscaper.Replace(value)
	switch op {
	case queryir.OpStartsWith, queryir.OpIStartsWith:
		return escaped + "%"
	case queryir.OpEndsWith, queryir.OpIEndsWith:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}
