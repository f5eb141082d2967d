package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildImage(t *testing.T) []byte {
	t.Helper()
	a := NewArena()
	b := a.Start()
	WriteHeader(b, Header{ThreadCount: 2, MemorySize: 10}, []ThreadEntry{
		{CodeOffset: 18, StackOffset: 4},
		{CodeOffset: 20, StackOffset: 7},
	})
	b.Bytes([]byte{'h', 'i', 0})
	b.Call(11)
	b.Jump(-1)
	b.Call(0)
	b.Jump(-1)
	seg, err := b.End()
	require.NoError(t, err)
	return a.Bytes(seg)
}

func TestParseImage(t *testing.T) {
	img, err := ParseImage(buildImage(t))
	require.NoError(t, err)
	require.Equal(t, uint16(2), img.ThreadCount)
	require.Equal(t, uint16(10), img.MemorySize)
	require.Equal(t, 15, img.PoolOffset())
	require.Equal(t, []byte{'h', 'i', 0}, img.Pool)
	require.Len(t, img.Threads, 2)
	require.Equal(t, []byte{0xcb, 0x4f}, img.ThreadCode(0))
	require.Equal(t, []byte{0xc0, 0x4f}, img.ThreadCode(1))
	require.Equal(t, 3, img.StackSize(0))
	require.Equal(t, 3, img.StackSize(1))
}

func TestParseImageErrors(t *testing.T) {
	good := buildImage(t)

	_, err := ParseImage(good[:5])
	require.ErrorIs(t, err, ErrInvalidImage)

	bad := append([]byte(nil), good...)
	bad[0] = 'X'
	_, err = ParseImage(bad)
	require.ErrorIs(t, err, ErrInvalidImage)

	bad = append([]byte(nil), good...)
	bad[2] = 9
	_, err = ParseImage(bad)
	require.ErrorIs(t, err, ErrInvalidImage)

	bad = append([]byte(nil), good...)
	bad[7] = 200
	_, err = ParseImage(bad)
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = ParseImage(good[:10])
	require.ErrorIs(t, err, ErrInvalidImage)
}
