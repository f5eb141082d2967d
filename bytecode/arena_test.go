package bytecode

import (
	"testing"

	"github.com/micro-blocks/mbc/errz"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, a *Arena, data ...byte) Segment {
	t.Helper()
	b := a.Start()
	b.Bytes(data)
	seg, err := b.End()
	require.NoError(t, err)
	return seg
}

func TestSegmentSizeAdditivity(t *testing.T) {
	a := NewArena()
	l1 := leaf(t, a, 1, 2, 3)
	l2 := leaf(t, a, 4)
	l3 := leaf(t, a, 5, 6)

	inner := a.Compose(l2, l3)
	require.Equal(t, 3, a.Size(inner))

	b := a.Start()
	b.Segment(l1)
	b.Uint8(9)
	b.Segment(inner, l1)
	outer, err := b.End()
	require.NoError(t, err)

	require.Equal(t, 3+1+3+3, a.Size(outer))
	require.Equal(t, []byte{1, 2, 3, 9, 4, 5, 6, 1, 2, 3}, a.Bytes(outer))
}

func TestSegmentsAreNotCopied(t *testing.T) {
	a := NewArena()
	l1 := leaf(t, a, 1, 2, 3, 4)
	before := a.Len()
	composed := a.Compose(l1, l1, l1)
	require.Equal(t, before, a.Len())
	require.Equal(t, 12, a.Size(composed))
}

func TestEmptySegment(t *testing.T) {
	a := NewArena()
	b := a.Start()
	seg, err := b.End()
	require.NoError(t, err)
	require.Equal(t, Empty, seg)
	require.Equal(t, 0, a.Size(seg))
	require.Empty(t, a.Bytes(seg))

	l := leaf(t, a, 7)
	require.Equal(t, l, a.Compose(Empty, l, Empty))
}

func TestBuilderInstructions(t *testing.T) {
	a := NewArena()
	b := a.Start()
	b.PushBool(true)
	b.PushUint16(0x0102)
	b.PushFloat32(1)
	b.Call(3)
	b.JumpIfZero(2)
	b.Jump(-4)
	seg, err := b.End()
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x01, 0x01,
		0x02, 0x02, 0x01,
		0x04, 0x00, 0x00, 0x80, 0x3f,
		0xc3,
		0x82,
		0x4c,
	}, a.Bytes(seg))
}

func TestBuilderStickyError(t *testing.T) {
	a := NewArena()
	b := a.Start()
	b.Call(1 << 20)
	b.Call(1)
	require.Error(t, b.Err())
	_, err := b.End()
	require.True(t, errz.Is(err, errz.ErrEncoding))
	require.False(t, a.Open())

	// The arena is usable again after a failed segment.
	require.Equal(t, []byte{0xc1}, a.Bytes(a.Compose(leaf(t, a, 0xc1))))
}

func TestBuilderDiscipline(t *testing.T) {
	a := NewArena()
	b := a.Start()
	require.True(t, a.Open())
	requireBuilderPanic(t, func() { a.Start() })

	_, err := b.End()
	require.NoError(t, err)
	requireBuilderPanic(t, func() { b.Uint8(1) })
	requireBuilderPanic(t, func() { b.Call(1) })
	requireBuilderPanic(t, func() { b.End() })
	requireBuilderPanic(t, func() { a.Size(Segment(99)) })
}

func requireBuilderPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(*errz.CompileError)
		require.True(t, ok)
		require.Equal(t, errz.ErrBuilder, err.Kind)
	}()
	fn()
}
