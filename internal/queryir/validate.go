package queryir

import (
	"fmt"
	"reflect"

	"github.com/roach88/entrepo/internal/ir"
)

// ProblemKind classifies a structural problem.
type ProblemKind string

const (
	// ProblemOperand marks an operand the operator cannot take.
	ProblemOperand ProblemKind = "operand"

	// ProblemArgument marks a malformed node or bound.
	ProblemArgument ProblemKind = "argument"
)

// Problem is one structural defect found by Validate.
type Problem struct {
	Kind    ProblemKind
	Field   string
	Message string
}

func (p Problem) String() string {
	if p.Field == "" {
		return p.Message
	}
	return fmt.Sprintf("%s: %s", p.Field, p.Message)
}

// Validate checks the shape of a criteria without consulting metadata:
// known operators, non-empty field names, operand shapes, non-negative
// bounds. Field resolution and type checks happen later, in the criteria
// package.
//
// Validate is a pure function with no side effects. Problems are reported
// in tree order.
func Validate(c Criteria) []Problem {
	v := &validator{}
	if c.Where != nil {
		v.validateExpression(c.Where)
	}
	if c.FirstResult != nil && *c.FirstResult < 0 {
		v.add(ProblemArgument, "", "first result must be non-negative, got %d", *c.FirstResult)
	}
	if c.MaxResults != nil && *c.MaxResults < 0 {
		v.add(ProblemArgument, "", "max results must be non-negative, got %d", *c.MaxResults)
	}
	for _, o := range c.Orderings {
		if o.Field == "" {
			v.add(ProblemArgument, "", "ordering with empty field name")
		}
	}
	return v.problems
}

// validator accumulates problems during traversal.
type validator struct {
	problems []Problem
}

func (v *validator) add(kind ProblemKind, field, format string, args ...any) {
	v.problems = append(v.problems, Problem{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) validateExpression(e Expression) {
	switch expr := e.(type) {
	case Comparison:
		v.validateComparison(expr)
	case *Comparison:
		v.validateComparison(*expr)
	case And:
		v.validateChildren(expr.Expressions)
	case *And:
		v.validateChildren(expr.Expressions)
	case Or:
		v.validateChildren(expr.Expressions)
	case *Or:
		v.validateChildren(expr.Expressions)
	case nil:
		v.add(ProblemArgument, "", "nil expression")
	default:
		v.add(ProblemArgument, "", "unknown expression type: %T", e)
	}
}

func (v *validator) validateChildren(exprs []Expression) {
	for _, child := range exprs {
		v.validateExpression(child)
	}
}

func (v *validator) validateComparison(c Comparison) {
	if c.Field == "" {
		v.add(ProblemArgument, "", "comparison with empty field name")
		return
	}
	if !c.Op.Valid() {
		v.add(ProblemArgument, c.Field, "unknown operator %q", c.Op)
		return
	}
	if c.Op == OpIsNull {
		return
	}

	list := IsList(c.Value)
	switch {
	case c.Op.IsList():
		if !list {
			v.add(ProblemOperand, c.Field, "%s requires a list operand", c.Op)
		}
	case list:
		v.add(ProblemOperand, c.Field, "%s does not accept a list operand; use in", c.Op)
	case (c.Op.IsOrdering() || c.Op.IsPattern()) && isNil(c.Value):
		v.add(ProblemOperand, c.Field, "%s does not accept NULL", c.Op)
	case c.Op.IsPattern():
		if _, ok := c.Value.(string); !ok {
			if _, ok := c.Value.(ir.IRString); !ok {
				v.add(ProblemOperand, c.Field, "%s requires a string operand", c.Op)
			}
		}
	}
}

// IsList reports whether v is a list operand: any slice or array except
// []byte, including ir.IRArray.
func IsList(v any) bool {
	switch v.(type) {
	case nil, []byte:
		return false
	case ir.IRArray:
		return true
	case ir.IRValue:
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	if irv, ok := v.(ir.IRValue); ok {
		return ir.IsNull(irv)
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
