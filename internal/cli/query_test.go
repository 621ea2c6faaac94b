package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/entrepo/internal/criteria"
)

func TestParseWhere(t *testing.T) {
	tests := []struct {
		name  string
		pairs []string
		want  criteria.Map
	}{
		{"empty", nil, criteria.Map{}},
		{"single", []string{"status=dev"}, criteria.Map{"status": "dev"}},
		{"null", []string{"status=null"}, criteria.Map{"status": nil}},
		{"value_with_equals", []string{"name=a=b"}, criteria.Map{"name": "a=b"}},
		{"empty_value", []string{"name="}, criteria.Map{"name": ""}},
		{"repeated", []string{"id=1", "id=2", "id=3"}, criteria.Map{"id": []any{"1", "2", "3"}}},
		{"repeated_with_null", []string{"status=null", "status=dev"}, criteria.Map{"status": []any{nil, "dev"}}},
		{"path", []string{"user.username=romanb"}, criteria.Map{"user.username": "romanb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseWhere(tt.pairs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseWhereErrors(t *testing.T) {
	for _, pair := range []string{"status", "=dev", " =dev"} {
		_, err := parseWhere([]string{pair})
		assert.Error(t, err, pair)
	}
}

func TestParseOrder(t *testing.T) {
	got, err := parseOrder([]string{"username", "id:desc", "name:SIDEWAYS"})
	require.NoError(t, err)
	assert.Equal(t, criteria.Order{
		{Field: "username", Direction: "ASC"},
		{Field: "id", Direction: "desc"},
		{Field: "name", Direction: "SIDEWAYS"},
	}, got)

	_, err = parseOrder([]string{":ASC"})
	assert.Error(t, err)
}
