package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func articleType() *EntityType {
	return &EntityType{
		Name:  "Article",
		Table: "articles",
		Fields: []Field{
			{Name: "id", Column: "id", Type: TypeInt},
			{Name: "topic", Column: "topic", Type: TypeString},
			{Name: "version", Column: "version", Type: TypeInt},
		},
		Associations: []Association{
			{Name: "user", Target: "User", Kind: ManyToOne, JoinColumn: "user_id"},
			{Name: "comments", Target: "Comment", Kind: OneToMany, MappedBy: "article"},
		},
		Identifier: []string{"id"},
		Version:    "version",
	}
}

func TestEntityTypeLookups(t *testing.T) {
	et := articleType()

	f, ok := et.Field("topic")
	require.True(t, ok)
	assert.Equal(t, TypeString, f.Type)

	_, ok = et.Field("user")
	assert.False(t, ok, "associations are not scalar fields")

	a, ok := et.Association("user")
	require.True(t, ok)
	assert.True(t, a.IsOwningSide())

	inv, ok := et.Association("comments")
	require.True(t, ok)
	assert.False(t, inv.IsOwningSide())

	assert.True(t, et.IsIdentifier("id"))
	assert.False(t, et.IsIdentifier("topic"))
	assert.True(t, et.IsVersioned())

	ids := et.IdentifierFields()
	require.Len(t, ids, 1)
	assert.Equal(t, "id", ids[0].Name)
}
