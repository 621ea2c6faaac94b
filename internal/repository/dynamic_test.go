package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/criteria"
	"github.com/roach88/entrepo/internal/ormerr"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		method string
		verb   Verb
		field  string
		ok     bool
	}{
		{"findByStatus", VerbFindBy, "status", true},
		{"findOneByUsername", VerbFindOneBy, "username", true},
		{"countByStatus", VerbCountBy, "status", true},
		{"findByUser", VerbFindBy, "user", true},
		{"findBy", "", "", false},
		{"foo", "", "", false},
		{"deleteByStatus", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			verb, field, ok := ParseMethod(tt.method)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.verb, verb)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestFindFieldByMagicCall(t *testing.T) {
	f := newFixture(t)

	res, err := f.repo(t, "CmsUser").Call(context.Background(), "findByStatus", "dev")
	require.NoError(t, err)
	assert.Equal(t, VerbFindBy, res.Verb)
	assert.Len(t, res.Entities, 2)
}

func TestFindMagicCallByNullValue(t *testing.T) {
	f := newFixture(t)

	res, err := f.repo(t, "CmsUser").Call(context.Background(), "findByStatus", nil)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "beberlei", res.Entities[0].GetString("username"))
}

func TestCountByMagicCall(t *testing.T) {
	f := newFixture(t)

	res, err := f.repo(t, "CmsUser").Call(context.Background(), "countByStatus", "dev")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Count)
}

func TestFindAssociationByMagicCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.find(t, "CmsUser", 1)
	addresses := f.repo(t, "CmsAddress")

	res, err := addresses.Call(ctx, "findByUser", user)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Same(t, user, res.Entities[0].Ref("user"))

	one, err := addresses.Call(ctx, "findOneByUser", user)
	require.NoError(t, err)
	require.NotNil(t, one.Entity)
	assert.Same(t, res.Entities[0], one.Entity)
}

func TestFindFieldByMagicCallOrderBy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.repo(t, "CmsUser")

	asc, err := users.Call(ctx, "findByStatus", "dev", map[string]string{"username": "ASC"})
	require.NoError(t, err)
	desc, err := users.Call(ctx, "findByStatus", "dev", criteria.Order{{Field: "username", Direction: "DESC"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"asm89", "gblanco"}, usernames(asc.Entities))
	assert.Equal(t, reversed(asc.Entities), desc.Entities)
}

func TestFindFieldByMagicCallLimitOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.repo(t, "CmsUser")
	order := map[string]string{"id": "ASC"}

	first, err := users.Call(ctx, "findByStatus", "dev", order, 1, 0)
	require.NoError(t, err)
	second, err := users.Call(ctx, "findByStatus", "dev", order, 1, 1)
	require.NoError(t, err)

	require.Len(t, first.Entities, 1)
	require.Len(t, second.Entities, 1)
	assert.NotSame(t, first.Entities[0], second.Entities[0])

	unbounded, err := users.Call(ctx, "findByStatus", "dev", nil, nil, 1)
	require.NoError(t, err)
	assert.Len(t, unbounded.Entities, 1)
}

func TestMagicCallErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.repo(t, "CmsUser")

	tests := []struct {
		name   string
		method string
		args   []any
		want   error
	}{
		{"missing argument", "findByStatus", nil, ormerr.ErrMissingArgument},
		{"unknown field", "findByThisFieldDoesNotExist", []any{"testvalue"}, ormerr.ErrUnrecognizedField},
		{"unknown method", "foo", nil, ormerr.ErrUnknownDynamicMethod},
		{"bare verb", "findBy", []any{"x"}, ormerr.ErrUnknownDynamicMethod},
		{"inverse side", "findByAddress", []any{1}, ormerr.ErrSearchByInverseSide},
		{"bad order", "findByStatus", []any{"dev", "username"}, ormerr.ErrInvalidArgument},
		{"bad limit", "findByStatus", []any{"dev", nil, "1"}, ormerr.ErrInvalidArgument},
		{"too many for countBy", "countByStatus", []any{"dev", nil}, ormerr.ErrInvalidArgument},
		{"too many for findOneBy", "findOneByStatus", []any{"dev", nil, 1}, ormerr.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Call(ctx, tt.method, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, 0, f.log.Len())
}

func TestMissingArgumentMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.repo(t, "CmsUser").Call(context.Background(), "findByStatus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "You need to pass a parameter to 'findByStatus'")
}
