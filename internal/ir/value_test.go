package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected IRValue
	}{
		{"nil", nil, IRNull{}},
		{"string", "dev", IRString("dev")},
		{"bytes", []byte("raw"), IRString("raw")},
		{"bool", true, IRBool(true)},
		{"int", 7, IRInt(7)},
		{"int32", int32(-3), IRInt(-3)},
		{"uint16", uint16(9), IRInt(9)},
		{"passthrough", IRString("x"), IRString("x")},
		{"any slice", []any{1, "a", nil}, IRArray{IRInt(1), IRString("a"), IRNull{}}},
		{"typed slice", []int{1, 2, 3}, IRArray{IRInt(1), IRInt(2), IRInt(3)}},
		{"string array", [2]string{"a", "b"}, IRArray{IRString("a"), IRString("b")}},
		{"map", map[string]any{"k": 1}, IRObject{"k": IRInt(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromGoRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"float64", 1.5},
		{"float32", float32(2)},
		{"nested float", []any{1, 2.5}},
		{"uint64 overflow", uint64(math.MaxUint64)},
		{"struct", struct{}{}},
		{"channel", make(chan int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGo(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestFromGoNilPointer(t *testing.T) {
	var p *int
	got, err := FromGo(p)
	require.NoError(t, err)
	assert.Equal(t, IRNull{}, got)

	n := 5
	got, err = FromGo(&n)
	require.NoError(t, err)
	assert.Equal(t, IRInt(5), got)
}

func TestNative(t *testing.T) {
	assert.Nil(t, Native(IRNull{}))
	assert.Nil(t, Native(nil))
	assert.Equal(t, "a", Native(IRString("a")))
	assert.Equal(t, int64(3), Native(IRInt(3)))
	assert.Equal(t, false, Native(IRBool(false)))
	assert.Equal(t, []any{int64(1), "b"}, Native(IRArray{IRInt(1), IRString("b")}))
	assert.Equal(t, map[string]any{"k": true}, Native(IRObject{"k": IRBool(true)}))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRNull{}, nil))
	assert.True(t, Equal(IRInt(1), IRInt(1)))
	assert.False(t, Equal(IRInt(1), IRString("1")))
	assert.True(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1)}))
	assert.False(t, Equal(IRArray{IRInt(1)}, IRArray{IRInt(1), IRInt(2)}))
	assert.True(t, Equal(IRObject{"a": IRBool(true)}, IRObject{"a": IRBool(true)}))
	assert.False(t, Equal(IRObject{"a": IRBool(true)}, IRObject{"b": IRBool(true)}))
	assert.False(t, Equal(IRString("x"), IRNull{}))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "NULL", Format(IRNull{}))
	assert.Equal(t, "romanb", Format(IRString("romanb")))
	assert.Equal(t, "42", Format(IRInt(42)))
	assert.Equal(t, "true", Format(IRBool(true)))
	assert.Equal(t, `[1,"a"]`, Format(IRArray{IRInt(1), IRString("a")}))
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
		"A":      IRInt(1),
	}

	assert.Equal(t, []string{"A", "apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIsNull(t *testing.T) {
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(IRNull{}))
	assert.False(t, IsNull(IRString("")))
	assert.False(t, IsNull(IRInt(0)))
}
