package criteria

import (
	"sort"
	"strings"

	"github.com/roach88/entrepo/internal/ir"
	"github.com/roach88/entrepo/internal/metadata"
	"github.com/roach88/entrepo/internal/queryir"
)

// Map is a raw field/value criteria mapping. Keys are processed in sorted
// order so that identical maps always normalize to identical trees.
type Map map[string]any

// OrderTerm is one raw ORDER BY entry.
type OrderTerm = queryir.Ordering

// Order is a raw ordering, applied in slice order.
type Order []OrderTerm

// OrderFromMap converts a field/direction mapping into an Order, sorted by
// field name since Go maps carry no order.
func OrderFromMap(m map[string]string) Order {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	out := make(Order, len(fields))
	for i, f := range fields {
		out[i] = OrderTerm{Field: f, Direction: m[f]}
	}
	return out
}

// Page bounds a result. Nil means unbounded.
type Page struct {
	Limit  *int
	Offset *int
}

// Path is a resolved field reference: one segment, or one owning hop plus a
// field on the target.
type Path struct {
	// Ref is the first segment, resolved against the root type.
	Ref metadata.FieldRef

	// Nested is the second segment, resolved against Ref.Target.
	// Nil for single-segment paths.
	Nested *metadata.FieldRef
}

// String returns the dotted path as the caller wrote it.
func (p Path) String() string {
	if p.Nested == nil {
		return p.Ref.Name()
	}
	return p.Ref.Name() + "." + p.Nested.Name()
}

// Leaf returns the segment whose column is compared or ordered on.
func (p Path) Leaf() metadata.FieldRef {
	if p.Nested != nil {
		return *p.Nested
	}
	return p.Ref
}

// ValueType returns the scalar type of the compared column.
func (p Path) ValueType() ir.ScalarType {
	return p.Leaf().ValueType()
}

// Predicate is a node of the resolved tree.
//
// This is a sealed interface - only Compare, Conj and Disj implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Compare is a resolved comparison.
//
// Value is IRNull for eq/neq NULL, an IRArray of non-null values for
// in/notIn, and a non-null scalar of the path's ValueType otherwise.
// It is unused for isNull.
type Compare struct {
	Path  Path
	Op    queryir.Operator
	Value ir.IRValue
}

func (Compare) predicateNode() {}

// Conj is a resolved conjunction.
type Conj struct {
	Items []Predicate
}

func (Conj) predicateNode() {}

// Disj is a resolved disjunction.
type Disj struct {
	Items []Predicate
}

func (Disj) predicateNode() {}

// Sort is one resolved ORDER BY term.
type Sort struct {
	Path       Path
	Descending bool
}

// Direction returns "ASC" or "DESC".
func (s Sort) Direction() string {
	if s.Descending {
		return "DESC"
	}
	return "ASC"
}

// Query is the normalized form of a search: everything the planner needs,
// and nothing that still has to be checked.
type Query struct {
	Root   *ir.EntityType
	Where  Predicate // nil = no filter
	Order  []Sort
	Limit  *int
	Offset *int
}

// Describe renders the predicate tree for logs and tests.
func Describe(p Predicate) string {
	var b strings.Builder
	describe(&b, p)
	return b.String()
}

func describe(b *strings.Builder, p Predicate) {
	switch n := p.(type) {
	case nil:
		b.WriteString("TRUE")
	case Compare:
		b.WriteString(n.Path.String())
		b.WriteByte(' ')
		b.WriteString(string(n.Op))
		if n.Op != queryir.OpIsNull {
			b.WriteByte(' ')
			b.WriteString(ir.Format(n.Value))
		}
	case Conj:
		writeGroup(b, n.Items, " AND ")
	case Disj:
		writeGroup(b, n.Items, " OR ")
	}
}

func writeGroup(b *strings.Builder, items []Predicate, sep string) {
	b.WriteByte('(')
	for i, item := range items {
		if i > 0 {
			b.WriteString(sep)
		}
		describe(b, item)
	}
	b.WriteByte(')')
}
