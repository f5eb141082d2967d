package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(JumpIfZero)
	require.Equal(t, "JUMP_IF_ZERO", info.Name)
	require.True(t, info.Signed)
	require.Equal(t, JumpIfZero, info.Class)
}

func TestGetInfoAllClasses(t *testing.T) {
	tests := []struct {
		class  Class
		name   string
		signed bool
	}{
		{Push, "PUSH", false},
		{Jump, "JUMP", true},
		{JumpIfZero, "JUMP_IF_ZERO", true},
		{Call, "CALL", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetInfo(tt.class)
			require.Equal(t, tt.name, info.Name)
			require.Equal(t, tt.signed, info.Signed)
			require.Equal(t, tt.name, tt.class.String())
		})
	}
}

func TestOpcodeSplit(t *testing.T) {
	b := Opcode(Call, Medium, 0xa)
	require.Equal(t, byte(0xda), b)
	c, s, n := Split(b)
	require.Equal(t, Call, c)
	require.Equal(t, Medium, s)
	require.Equal(t, uint8(0xa), n)
}

func TestSizeClassBits(t *testing.T) {
	require.Equal(t, 4, Short.Bits())
	require.Equal(t, 12, Medium.Bits())
	require.Equal(t, 20, Long.Bits())
	require.Equal(t, 2, Long.ExtraBytes())
}

func TestOperatorStrings(t *testing.T) {
	require.Equal(t, "%", Modulo.String())
	require.Equal(t, ">=", GreaterThanOrEqual.String())
	require.Equal(t, "||", Or.String())
	require.Equal(t, "pow10", Pow10.String())
	require.Equal(t, "", UnaryOp(99).String())
	require.Equal(t, "prime", Prime.String())
	require.Equal(t, "hue", Hue.String())
}
