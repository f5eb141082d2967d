package bytecode

import (
	"testing"

	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/op"
	"github.com/stretchr/testify/require"
)

func TestEncodeRoundTrip(t *testing.T) {
	unsigned := []int{0, 1, 15, 16, 255, 4095, 4096, 65535, 1<<20 - 1}
	signed := []int{0, 7, -8, 8, -9, 2047, -2048, 2048, -2049, 1<<19 - 1, -(1 << 19)}

	for _, c := range []op.Class{op.Call} {
		for _, p := range unsigned {
			roundTrip(t, c, p)
		}
	}
	for _, c := range []op.Class{op.Jump, op.JumpIfZero} {
		for _, p := range signed {
			roundTrip(t, c, p)
		}
	}
}

func roundTrip(t *testing.T, c op.Class, param int) {
	t.Helper()
	code, err := AppendInstruction(nil, c, param)
	require.NoError(t, err)
	instr, err := Decode(code, 0)
	require.NoError(t, err, "%s %d", c, param)
	require.Equal(t, c, instr.Class)
	require.Equal(t, param, instr.Param)
	require.Equal(t, len(code), instr.Size)
}

func TestEncodedSizeTiers(t *testing.T) {
	tests := []struct {
		class op.Class
		param int
		size  int
	}{
		{op.Call, 15, 1},
		{op.Call, 16, 2},
		{op.Call, 4095, 2},
		{op.Call, 4096, 3},
		{op.Jump, 7, 1},
		{op.Jump, -8, 1},
		{op.Jump, 8, 2},
		{op.Jump, -2048, 2},
		{op.Jump, -2049, 3},
		{op.JumpIfZero, 1<<19 - 1, 3},
	}
	for _, tt := range tests {
		size, err := EncodedSize(tt.class, tt.param)
		require.NoError(t, err)
		require.Equal(t, tt.size, size, "%s %d", tt.class, tt.param)
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	tests := []struct {
		class op.Class
		param int
	}{
		{op.Call, 1 << 20},
		{op.Call, -1},
		{op.Push, 1 << 20},
		{op.Jump, 1 << 19},
		{op.JumpIfZero, -(1 << 19) - 1},
	}
	for _, tt := range tests {
		_, err := AppendInstruction(nil, tt.class, tt.param)
		require.Error(t, err)
		require.True(t, errz.Is(err, errz.ErrEncoding))
	}
}

func TestEncodeKnownBytes(t *testing.T) {
	code, err := AppendInstruction(nil, op.Call, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{0xc3}, code)

	code, err = AppendInstruction(nil, op.Jump, -3)
	require.NoError(t, err)
	require.Equal(t, []byte{0x4d}, code)

	code, err = AppendInstruction(nil, op.JumpIfZero, 0x123)
	require.NoError(t, err)
	require.Equal(t, []byte{0x91, 0x23}, code)

	code, err = AppendInstruction(nil, op.Call, 0x12345)
	require.NoError(t, err)
	require.Equal(t, []byte{0xe1, 0x45, 0x23}, code)
}

func TestDecodePush(t *testing.T) {
	code := []byte{0x02, 0xaa, 0xbb, 0xc1}
	instr, err := Decode(code, 0)
	require.NoError(t, err)
	require.Equal(t, op.Push, instr.Class)
	require.Equal(t, []byte{0xaa, 0xbb}, instr.Data)
	require.Equal(t, 3, instr.Size)

	_, err = Decode([]byte{0x03, 0x01}, 0)
	require.Error(t, err)
	_, err = Decode([]byte{0x30}, 0)
	require.Error(t, err)
	_, err = Decode([]byte{0xd1}, 0)
	require.Error(t, err)
}

func TestTarget(t *testing.T) {
	forward := Instruction{Offset: 10, Class: op.Jump, Param: 4, Size: 1}
	require.Equal(t, 15, forward.Target())
	backward := Instruction{Offset: 10, Class: op.Jump, Param: -6, Size: 2}
	require.Equal(t, 4, backward.Target())
}

func TestInstructionIter(t *testing.T) {
	var code []byte
	code, _ = AppendInstruction(code, op.Push, 1)
	code = append(code, 1)
	code, _ = AppendInstruction(code, op.Call, 3)
	code, _ = AppendInstruction(code, op.Jump, -3)

	instrs, err := NewInstructionIter(code).All()
	require.NoError(t, err)
	require.Len(t, instrs, 3)
	require.Equal(t, 0, instrs[0].Offset)
	require.Equal(t, 2, instrs[1].Offset)
	require.Equal(t, 3, instrs[2].Offset)
	require.Equal(t, 0, instrs[2].Target())

	iter := NewInstructionIter([]byte{0x05})
	_, ok := iter.Next()
	require.False(t, ok)
	require.Error(t, iter.Err())
}
