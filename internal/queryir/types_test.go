package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperatorClassification(t *testing.T) {
	tests := []struct {
		op       Operator
		list     bool
		ordering bool
		pattern  bool
		ci       bool
	}{
		{OpEq, false, false, false, false},
		{OpNeq, false, false, false, false},
		{OpLt, false, true, false, false},
		{OpGte, false, true, false, false},
		{OpIn, true, false, false, false},
		{OpNotIn, true, false, false, false},
		{OpIsNull, false, false, false, false},
		{OpContains, false, false, true, false},
		{OpEndsWith, false, false, true, false},
		{OpIStartsWith, false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.True(t, tt.op.Valid())
			assert.Equal(t, tt.list, tt.op.IsList())
			assert.Equal(t, tt.ordering, tt.op.IsOrdering())
			assert.Equal(t, tt.pattern, tt.op.IsPattern())
			assert.Equal(t, tt.ci, tt.op.CaseInsensitive())
		})
	}

	assert.False(t, Operator("like").Valid())
}

func TestBuilders(t *testing.T) {
	assert.Equal(t, Comparison{Field: "status", Op: OpEq, Value: "dev"}, Eq("status", "dev"))
	assert.Equal(t, Comparison{Field: "status", Op: OpIsNull}, IsNull("status"))
	assert.Equal(t, Comparison{Field: "id", Op: OpIn, Value: []any{1, 2}}, In("id", 1, 2))
	assert.Equal(t, Comparison{Field: "name", Op: OpIContains, Value: "ben"}, IContains("name", "ben"))
}

func TestCriteriaBuildersAreImmutable(t *testing.T) {
	base := NewCriteria().WithWhere(Eq("status", "dev"))
	narrowed := base.AndWhere(Eq("username", "asm89"))

	assert.Equal(t, Eq("status", "dev"), base.Where)
	assert.Equal(t, AllOf(Eq("status", "dev"), Eq("username", "asm89")), narrowed.Where)

	ordered := base.OrderBy("username", "ASC")
	assert.Empty(t, base.Orderings)
	assert.Equal(t, []Ordering{{Field: "username", Direction: "ASC"}}, ordered.Orderings)
}

func TestAndWhereFlattens(t *testing.T) {
	c := NewCriteria().
		AndWhere(Eq("a", 1)).
		AndWhere(Eq("b", 2)).
		AndWhere(Eq("c", 3))

	and, ok := c.Where.(And)
	require.True(t, ok)
	assert.Len(t, and.Expressions, 3)
}

func TestOrWhere(t *testing.T) {
	c := NewCriteria().
		WithWhere(Eq("status", "dev")).
		OrWhere(IsNull("status")).
		OrWhere(Eq("status", "freak"))

	or, ok := c.Where.(Or)
	require.True(t, ok)
	assert.Len(t, or.Expressions, 3)

	c = c.AndWhere(Eq("name", "Roman"))
	and, ok := c.Where.(And)
	require.True(t, ok)
	assert.Equal(t, or, and.Expressions[0])
}

func TestBounds(t *testing.T) {
	c := NewCriteria().SetFirstResult(2).SetMaxResults(5)
	require.NotNil(t, c.FirstResult)
	require.NotNil(t, c.MaxResults)
	assert.Equal(t, 2, *c.FirstResult)
	assert.Equal(t, 5, *c.MaxResults)
}

func TestComparisonString(t *testing.T) {
	assert.Equal(t, "status eq dev", Eq("status", "dev").String())
	assert.Equal(t, "status isNull", IsNull("status").String())
}
