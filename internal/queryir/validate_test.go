package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/ir"
)

func TestValidateAccepts(t *testing.T) {
	c := NewCriteria().
		WithWhere(AllOf(
			Eq("status", "dev"),
			Eq("status", nil),
			Neq("status", nil),
			In("id", 1, 2, nil),
			NotIn("id", ir.IRArray{ir.IRInt(1)}),
			IsNull("status"),
			Gt("id", 1),
			AnyOf(StartsWith("username", "b"), IEndsWith("name", "IN")),
			&Comparison{Field: "name", Op: OpContains, Value: ir.IRString("x")},
		)).
		OrderBy("username", "desc").
		SetFirstResult(0).
		SetMaxResults(0)

	assert.Empty(t, Validate(c))
}

func TestValidateProblems(t *testing.T) {
	var nilPtr *int

	tests := []struct {
		name string
		expr Expression
		kind ProblemKind
		msg  string
	}{
		{"empty field", Eq("", 1), ProblemArgument, "empty field name"},
		{"unknown operator", Comparison{Field: "id", Op: "like", Value: 1}, ProblemArgument, "unknown operator"},
		{"eq with list", Eq("id", []int{1, 2}), ProblemOperand, "does not accept a list"},
		{"in without list", Comparison{Field: "id", Op: OpIn, Value: 1}, ProblemOperand, "requires a list"},
		{"lt null", Lt("id", nil), ProblemOperand, "does not accept NULL"},
		{"gte nil pointer", Gte("id", nilPtr), ProblemOperand, "does not accept NULL"},
		{"contains null", Comparison{Field: "name", Op: OpContains, Value: ir.IRNull{}}, ProblemOperand, "does not accept NULL"},
		{"contains int", Comparison{Field: "name", Op: OpContains, Value: 5}, ProblemOperand, "requires a string"},
		{"nil child", AllOf(Eq("id", 1), nil), ProblemArgument, "nil expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := Validate(NewCriteria().WithWhere(tt.expr))
			require.Len(t, problems, 1)
			assert.Equal(t, tt.kind, problems[0].Kind)
			assert.Contains(t, problems[0].Message, tt.msg)
		})
	}
}

func TestValidateBounds(t *testing.T) {
	problems := Validate(NewCriteria().SetFirstResult(-1).SetMaxResults(-2))
	require.Len(t, problems, 2)
	assert.Equal(t, ProblemArgument, problems[0].Kind)
	assert.Contains(t, problems[0].String(), "first result")
	assert.Contains(t, problems[1].String(), "max results")
}

func TestValidateOrderingField(t *testing.T) {
	problems := Validate(NewCriteria().OrderBy("", "ASC"))
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0].Message, "empty field")
}

func TestIsList(t *testing.T) {
	assert.True(t, IsList([]any{1}))
	assert.True(t, IsList([]string{}))
	assert.True(t, IsList([2]int{1, 2}))
	assert.True(t, IsList(ir.IRArray{}))
	assert.False(t, IsList([]byte("x")))
	assert.False(t, IsList("x"))
	assert.False(t, IsList(nil))
	assert.False(t, IsList(ir.IRString("x")))
}
