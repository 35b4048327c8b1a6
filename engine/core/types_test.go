package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsString(t *testing.T) {
	t.Run("Should render scalars as strings", func(t *testing.T) {
		cases := []struct {
			in   any
			want string
		}{
			{"hello", "hello"},
			{true, "true"},
			{false, "false"},
			{int64(42), "42"},
			{3.0, "3"},
		}
		for _, tc := range cases {
			got, ok := AsString(tc.in)
			require.True(t, ok, "input %v", tc.in)
			assert.Equal(t, tc.want, got)
		}
	})

	t.Run("Should report non-scalars as not convertible", func(t *testing.T) {
		for _, in := range []any{nil, []any{"a"}, map[string]any{"k": "v"}} {
			_, ok := AsString(in)
			assert.False(t, ok, "input %v", in)
		}
	})
}

func TestIsEmptyValue(t *testing.T) {
	t.Run("Should treat nil, blank strings and empty collections as empty", func(t *testing.T) {
		assert.True(t, IsEmptyValue(nil))
		assert.True(t, IsEmptyValue(""))
		assert.True(t, IsEmptyValue("   \t"))
		assert.True(t, IsEmptyValue([]any{}))
		assert.True(t, IsEmptyValue(map[string]any{}))
	})

	t.Run("Should never treat numbers or booleans as empty", func(t *testing.T) {
		assert.False(t, IsEmptyValue(0))
		assert.False(t, IsEmptyValue(int64(0)))
		assert.False(t, IsEmptyValue(false))
	})

	t.Run("Should treat populated values as non-empty", func(t *testing.T) {
		assert.False(t, IsEmptyValue("x"))
		assert.False(t, IsEmptyValue([]any{"a"}))
	})
}

func TestDeepCopyRow(t *testing.T) {
	t.Run("Should copy without sharing nested state", func(t *testing.T) {
		orig := Row{"Role": "C+A", "nested": map[string]any{"k": "v"}}

		copied, err := DeepCopyRow(orig)

		require.NoError(t, err)
		copied["Role"] = "C"
		copied["nested"].(map[string]any)["k"] = "changed"
		assert.Equal(t, "C+A", orig["Role"])
		assert.Equal(t, "v", orig["nested"].(map[string]any)["k"])
	})

	t.Run("Should pass nil through", func(t *testing.T) {
		copied, err := DeepCopyRow(nil)
		require.NoError(t, err)
		assert.Nil(t, copied)
	})
}
