package queryir

import "fmt"

// Expression is a node of a WHERE predicate tree.
//
// This is a sealed interface - only types in this package implement it.
type Expression interface {
	expressionNode() // Marker method - seals interface to this package
}

// Operator is the closed set of comparison operators.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNeq         Operator = "neq"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "notIn"
	OpIsNull      Operator = "isNull"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpIContains   Operator = "iContains"
	OpIStartsWith Operator = "iStartsWith"
	OpIEndsWith   Operator = "iEndsWith"
)

var operators = map[Operator]bool{
	OpEq: true, OpNeq: true, OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpIn: true, OpNotIn: true, OpIsNull: true,
	OpContains: true, OpStartsWith: true, OpEndsWith: true,
	OpIContains: true, OpIStartsWith: true, OpIEndsWith: true,
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	return operators[op]
}

// IsList reports whether op takes a list operand.
func (op Operator) IsList() bool {
	return op == OpIn || op == OpNotIn
}

// IsOrdering reports whether op is one of lt, lte, gt, gte.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpLt, OpLte, OpGt, OpGte:
		return true
	}
	return false
}

// IsPattern reports whether op compiles to a LIKE match.
func (op Operator) IsPattern() bool {
	switch op {
	case OpContains, OpStartsWith, OpEndsWith, OpIContains, OpIStartsWith, OpIEndsWith:
		return true
	}
	return false
}

// CaseInsensitive reports whether op is one of the i-prefixed pattern operators.
func (op Operator) CaseInsensitive() bool {
	switch op {
	case OpIContains, OpIStartsWith, OpIEndsWith:
		return true
	}
	return false
}

// Comparison compares one field path with an operand.
//
// Field is a mapped name or "association.field" (one hop, owning side only).
// Value is ignored for OpIsNull.
type Comparison struct {
	Field string
	Op    Operator
	Value any
}

func (Comparison) expressionNode() {}

// String renders the comparison for logs and error messages.
func (c Comparison) String() string {
	if c.Op == OpIsNull {
		return fmt.Sprintf("%s isNull", c.Field)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
}

// And is a conjunction. An empty And is always true.
type And struct {
	Expressions []Expression
}

func (And) expressionNode() {}

// Or is a disjunction. An empty Or is always false.
type Or struct {
	Expressions []Expression
}

func (Or) expressionNode() {}

// Eq builds field = value. A nil value matches NULL.
func Eq(field string, value any) Comparison {
	return Comparison{Field: field, Op: OpEq, Value: value}
}

// Neq builds field <> value. A nil value matches NOT NULL.
func Neq(field string, value any) Comparison {
	return Comparison{Field: field, Op: OpNeq, Value: value}
}

func Lt(field string, value any) Comparison {
	return Comparison{Field: field, Op: OpLt, Value: value}
}

func Lte(field string, value any) Comparison {
	return Comparison{Field: field, Op: OpLte, Value: value}
}

func Gt(field string, value any) Comparison {
	return Comparison{Field: field, Op: OpGt, Value: value}
}

func Gte(field string, value any) Comparison {
	return Comparison{Field: field, Op: OpGte, Value: value}
}

// In builds field IN (values...). A nil entry also matches NULL.
func In(field string, values ...any) Comparison {
	return Comparison{Field: field, Op: OpIn, Value: values}
}

// NotIn builds field NOT IN (values...). A nil entry also excludes NULL.
func NotIn(field string, values ...any) Comparison {
	return Comparison{Field: field, Op: OpNotIn, Value: values}
}

// IsNull builds field IS NULL.
func IsNull(field string) Comparison {
	return Comparison{Field: field, Op: OpIsNull}
}

func Contains(field, value string) Comparison {
	return Comparison{Field: field, Op: OpContains, Value: value}
}

func StartsWith(field, value string) Comparison {
	return Comparison{Field: field, Op: OpStartsWith, Value: value}
}

func EndsWith(field, value string) Comparison {
	return Comparison{Field: field, Op: OpEndsWith, Value: value}
}

func IContains(field, value string) Comparison {
	return Comparison{Field: field, Op: OpIContains, Value: value}
}

func IStartsWith(field, value string) Comparison {
	return Comparison{Field: field, Op: OpIStartsWith, Value: value}
}

func IEndsWith(field, value string) Comparison {
	return Comparison{Field: field, Op: OpIEndsWith, Value: value}
}

// AllOf builds a conjunction.
func AllOf(exprs ...Expression) And {
	return And{Expressions: exprs}
}

// AnyOf builds a disjunction.
func AnyOf(exprs ...Expression) Or {
	return Or{Expressions: exprs}
}

// Ordering is one ORDER BY term. Direction is "ASC" or "DESC", any case.
type Ordering struct {
	Field     string
	Direction string
}

// Criteria is a complete query description: predicate, ordering and bounds.
//
// Criteria values are immutable; every builder method returns a copy.
//
//	c := queryir.NewCriteria().
//		WithWhere(queryir.Eq("status", "dev")).
//		OrderBy("username", "ASC").
//		SetMaxResults(10)
type Criteria struct {
	// Where is the predicate (nil = no filter).
	Where Expression

	// Orderings are applied in slice order.
	Orderings []Ordering

	// FirstResult and MaxResults bound the result (nil = unbounded).
	FirstResult *int
	MaxResults  *int
}

// NewCriteria returns an empty criteria matching every row.
func NewCriteria() Criteria {
	return Criteria{}
}

// WithWhere replaces the predicate.
func (c Criteria) WithWhere(e Expression) Criteria {
	c.Where = e
	return c
}

// AndWhere conjoins e with the current predicate.
func (c Criteria) AndWhere(e Expression) Criteria {
	switch cur := c.Where.(type) {
	case nil:
		c.Where = e
	case And:
		c.Where = And{Expressions: append(append([]Expression(nil), cur.Expressions...), e)}
	default:
		c.Where = AllOf(cur, e)
	}
	return c
}

// OrWhere disjoins e with the current predicate.
func (c Criteria) OrWhere(e Expression) Criteria {
	switch cur := c.Where.(type) {
	case nil:
		c.Where = e
	case Or:
		c.Where = Or{Expressions: append(append([]Expression(nil), cur.Expressions...), e)}
	default:
		c.Where = AnyOf(cur, e)
	}
	return c
}

// OrderBy appends an ordering term.
func (c Criteria) OrderBy(field, direction string) Criteria {
	c.Orderings = append(append([]Ordering(nil), c.Orderings...), Ordering{Field: field, Direction: direction})
	return c
}

// SetFirstResult sets the offset.
func (c Criteria) SetFirstResult(n int) Criteria {
	c.FirstResult = &n
	return c
}

// SetMaxResults sets the limit.
func (c Criteria) SetMaxResults(n int) Criteria {
	c.MaxResults = &n
	return c
}
