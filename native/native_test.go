package native

import (
	"go/format"
	"os"
	"testing"

	"github.com/micro-blocks/mbc/errz"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	fn, ok := Lookup("pinSet")
	require.True(t, ok)
	require.Equal(t, PinSet, fn)
	require.Equal(t, "pinSet", fn.String())

	_, ok = Lookup("nope")
	require.False(t, ok)
	require.Equal(t, "fn999", Function(999).String())
}

func TestFunctionNumbersAreStable(t *testing.T) {
	require.Equal(t, Function(0), BasicYield)
	require.Equal(t, Function(3), PinSet)
	require.Equal(t, Function(10), ControlsRepeatExtDone)
	require.Equal(t, Function(11), BasicEndThread)
	require.Equal(t, Function(23), TextLoad)
	require.Equal(t, Function(30), GuiShowButton)
	require.Equal(t, Function(50), RgbLedShow)
}

func TestAllIsOrderedAndNamed(t *testing.T) {
	fns := All()
	require.NotEmpty(t, fns)
	seen := map[string]bool{}
	for i, fn := range fns {
		if i > 0 {
			require.True(t, fns[i-1] < fn)
		}
		sig, ok := fn.Signature()
		require.True(t, ok)
		require.False(t, seen[sig.Name], "duplicate name %s", sig.Name)
		seen[sig.Name] = true
	}
}

func TestSignatureDelta(t *testing.T) {
	tests := []struct {
		fn    Function
		delta int
	}{
		{BasicYield, 0},
		{PinSet, -2},
		{VariablesSetVar32, -6},
		{VariablesGetVar32, 2},
		{MathArithmetic, -5},
		{LogicCompare, -8},
		{ControlsRepeatExtDone, 1},
		{BasicPop32, -4},
		{ColourGetChannel, -9},
		{ColourBlend, -16},
		{GuiShowButton, -14},
	}
	for _, tt := range tests {
		sig, ok := tt.fn.Signature()
		require.True(t, ok)
		require.Equal(t, tt.delta, sig.Delta(), tt.fn.String())
	}
}

func TestSignatureString(t *testing.T) {
	sig, _ := LogicCompare.Signature()
	require.Equal(t, "logicCompare(a number, b number, op u8) bool", sig.String())
	sig, _ = BasicYield.Signature()
	require.Equal(t, "basicYield()", sig.String())
}

func TestDeltasObserve(t *testing.T) {
	d := NewDeltas()
	require.NoError(t, d.Observe(PinSet, -2))
	require.NoError(t, d.Observe(PinSet, -2))

	err := d.Observe(PinSet, -1)
	require.Error(t, err)
	require.True(t, errz.Is(err, errz.ErrConvention))

	delta, ok := d.Delta(PinSet)
	require.True(t, ok)
	require.Equal(t, -2, delta)
	require.Equal(t, 1, d.Len())
	require.Equal(t, []Function{PinSet}, d.Functions())
}

func TestFromSignatures(t *testing.T) {
	d := FromSignatures()
	delta, ok := d.Delta(ControlsRepeatExtDone)
	require.True(t, ok)
	require.Equal(t, 1, delta)
	require.Equal(t, len(All()), d.Len())
}

func TestTableIsFormatted(t *testing.T) {
	src, err := os.ReadFile("native.go")
	require.NoError(t, err)
	formatted, err := format.Source(src)
	require.NoError(t, err)
	require.Equal(t, string(formatted), string(src))
}
