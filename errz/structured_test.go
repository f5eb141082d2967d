package errz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileErrorMessage(t *testing.T) {
	err := New(ErrType, "expected %s, got %s", "Number", "Boolean")
	require.Equal(t, "type error: expected Number, got Boolean", err.Error())

	err.WithNode("abc", "math_arithmetic")
	require.Equal(t, "type error: expected Number, got Boolean (block math_arithmetic abc)", err.Error())
}

func TestWithNodeKeepsInnermost(t *testing.T) {
	err := New(ErrStructural, "unknown block kind").
		WithNode("inner", "foo").
		WithNode("outer", "controls_if")
	require.Equal(t, "inner", err.NodeID)
	require.Equal(t, "foo", err.NodeKind)
}

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", New(ErrEncoding, "parameter out of range").WithCause(cause))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, ErrEncoding, kind)
	require.True(t, Is(err, ErrEncoding))
	require.False(t, Is(err, ErrAnalysis))
	require.ErrorIs(t, err, cause)

	_, ok = KindOf(cause)
	require.False(t, ok)
}

func TestKindStrings(t *testing.T) {
	kinds := map[ErrorKind]string{
		ErrStructural: "structural error",
		ErrType:       "type error",
		ErrEncoding:   "encoding error",
		ErrConvention: "convention error",
		ErrBuilder:    "builder error",
		ErrAnalysis:   "analysis error",
		ErrLayout:     "layout error",
		ErrorKind(42): "error",
	}
	for kind, want := range kinds {
		require.Equal(t, want, kind.String())
	}
}
