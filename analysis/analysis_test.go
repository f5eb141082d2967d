package analysis

import (
	"testing"

	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, fn func(a *bytecode.Arena, b *bytecode.Builder)) []byte {
	t.Helper()
	a := bytecode.NewArena()
	b := a.Start()
	fn(a, b)
	seg, err := b.End()
	require.NoError(t, err)
	return a.Bytes(seg)
}

func deltas(t *testing.T, pairs map[native.Function]int) *native.Deltas {
	t.Helper()
	d := native.NewDeltas()
	for fn, delta := range pairs {
		require.NoError(t, d.Observe(fn, delta))
	}
	return d
}

func TestPushThenCall(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.PushBool(true)
		b.Call(int(native.PinSet))
	})

	instrs, err := bytecode.NewInstructionIter(code).All()
	require.NoError(t, err)
	require.Len(t, instrs, 2)
	require.Equal(t, op.Push, instrs[0].Class)
	require.Equal(t, []byte{1}, instrs[0].Data)
	require.Equal(t, op.Call, instrs[1].Class)
	require.Equal(t, int(native.PinSet), instrs[1].Param)

	res, err := Analyze(code, deltas(t, map[native.Function]int{native.PinSet: -1}))
	require.NoError(t, err)
	require.Equal(t, 1, res.MaxDepth)
	require.True(t, res.Exits)
	require.Equal(t, 0, res.ExitDepth)
}

func TestCountedLoopOverheadStacksOnBody(t *testing.T) {
	// times; loop: body(peak 2); done; jz loop; pop32
	d := deltas(t, map[native.Function]int{
		native.PinSet:                -2,
		native.ControlsRepeatExtDone: 1,
		native.BasicPop32:            -4,
	})
	a := bytecode.NewArena()
	body := func() bytecode.Segment {
		b := a.Start()
		b.PushUint8(5)
		b.PushBool(true)
		b.Call(int(native.PinSet))
		seg, err := b.End()
		require.NoError(t, err)
		return seg
	}()
	bodyDepth, err := MaxDepth(a.Bytes(body), d)
	require.NoError(t, err)
	require.Equal(t, 2, bodyDepth)

	b := a.Start()
	b.Segment(body)
	b.Call(int(native.ControlsRepeatExtDone))
	main, err := b.End()
	require.NoError(t, err)

	b = a.Start()
	b.PushFloat32(3)
	b.Segment(main)
	b.JumpIfZero(-a.Size(main))
	b.Call(int(native.BasicPop32))
	loop, err := b.End()
	require.NoError(t, err)

	res, err := Analyze(a.Bytes(loop), d)
	require.NoError(t, err)
	require.Equal(t, 6, res.MaxDepth)
	require.Equal(t, 0, res.ExitDepth)
}

func TestBranchesReconverge(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.PushBool(false)
		b.JumpIfZero(5)
		b.PushFloat32(1)
	})
	_, err := Analyze(code, native.NewDeltas())
	require.Error(t, err)
	require.True(t, errz.Is(err, errz.ErrAnalysis))
}

func TestIfElseReconverges(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.PushBool(false)
		b.JumpIfZero(6) // over then and its jump
		b.PushFloat32(1)
		b.Jump(5) // over else
		b.PushFloat32(2)
		b.Call(int(native.BasicPop32))
	})
	res, err := Analyze(code, deltas(t, map[native.Function]int{native.BasicPop32: -4}))
	require.NoError(t, err)
	require.Equal(t, 4, res.MaxDepth)
	require.Equal(t, 0, res.ExitDepth)
}

func TestReconvergenceMismatch(t *testing.T) {
	// A loop whose body leaves one byte behind each iteration.
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.PushUint8(1)
		b.Jump(-2)
	})
	_, err := Analyze(code, native.NewDeltas())
	require.Error(t, err)
	require.True(t, errz.Is(err, errz.ErrAnalysis))
	require.Contains(t, err.Error(), "offset 0 reached with stack depth 0 and 1")
}

func TestUnderflow(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.JumpIfZero(0)
	})
	_, err := Analyze(code, native.NewDeltas())
	require.True(t, errz.Is(err, errz.ErrAnalysis))
	require.Contains(t, err.Error(), "underflow")
}

func TestUnknownFunction(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.Call(int(native.BasicDelay))
	})
	_, err := Analyze(code, native.NewDeltas())
	require.True(t, errz.Is(err, errz.ErrAnalysis))
}

func TestTargetOutOfRange(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.Jump(-5)
	})
	_, err := Analyze(code, native.NewDeltas())
	require.True(t, errz.Is(err, errz.ErrAnalysis))

	code = build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.Jump(3)
	})
	_, err = Analyze(code, native.NewDeltas())
	require.True(t, errz.Is(err, errz.ErrAnalysis))
}

func TestInfiniteLoopDoesNotExit(t *testing.T) {
	code := build(t, func(a *bytecode.Arena, b *bytecode.Builder) {
		b.Call(int(native.BasicYield))
		b.Jump(-1)
	})
	res, err := Analyze(code, deltas(t, map[native.Function]int{native.BasicYield: 0}))
	require.NoError(t, err)
	require.False(t, res.Exits)
	require.Equal(t, 0, res.MaxDepth)
	require.Equal(t, map[int]int{0: 0, 1: 0}, res.Depths)
}

func TestEmptyCode(t *testing.T) {
	res, err := Analyze(nil, native.NewDeltas())
	require.NoError(t, err)
	require.True(t, res.Exits)
	require.Equal(t, 0, res.MaxDepth)
}
