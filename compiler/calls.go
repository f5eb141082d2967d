package compiler

import (
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
)

// Arg is one argument of a native call. Arguments are pushed in the order
// they are passed, so the last one ends up on top of the stack.
type Arg struct {
	size int
	emit func(b *bytecode.Builder)
}

// Size returns the number of stack bytes the argument occupies.
func (a Arg) Size() int {
	return a.size
}

// U8 is a one byte immediate argument.
func U8(v uint8) Arg {
	return Arg{size: 1, emit: func(b *bytecode.Builder) { b.PushUint8(v) }}
}

// U16 is a two byte immediate argument, used for offsets, ids and thread
// indexes.
func U16(v uint16) Arg {
	return Arg{size: 2, emit: func(b *bytecode.Builder) { b.PushUint16(v) }}
}

// Bool is a boolean immediate argument.
func Bool(v bool) Arg {
	return Arg{size: 1, emit: func(b *bytecode.Builder) { b.PushBool(v) }}
}

// Float is a number immediate argument.
func Float(v float32) Arg {
	return Arg{size: 4, emit: func(b *bytecode.Builder) { b.PushFloat32(v) }}
}

// Value passes previously generated code as an argument.
func Value(tc TypedCode) Arg {
	return Arg{size: tc.Type.Size(), emit: func(b *bytecode.Builder) { b.Segment(tc.Code) }}
}

// Call emits the arguments followed by a call of fn. The stack delta of the
// call site is the size of ret minus the size of the arguments. It must
// agree with every other call site of fn in the compilation.
func (c *Context) Call(fn native.Function, ret Type, args ...Arg) (TypedCode, error) {
	delta := ret.Size()
	b := c.Start()
	for _, a := range args {
		delta -= a.size
		a.emit(b)
	}
	b.Call(int(fn))
	seg, err := b.End()
	if err != nil {
		return TypedCode{}, err
	}
	if err := c.deltas.Observe(fn, delta); err != nil {
		return TypedCode{}, err
	}
	return TypedCode{Code: seg, Type: ret}, nil
}

// CallRaw emits a bare call of fn whose operands are managed by the
// surrounding code, recording delta as the stack change of the call itself.
func (c *Context) CallRaw(fn native.Function, delta int) (bytecode.Segment, error) {
	b := c.Start()
	b.Call(int(fn))
	seg, err := b.End()
	if err != nil {
		return bytecode.Empty, err
	}
	if err := c.deltas.Observe(fn, delta); err != nil {
		return bytecode.Empty, err
	}
	return seg, nil
}

// Statement emits a call of fn that produces no value.
func (c *Context) Statement(fn native.Function, args ...Arg) (TypedCode, error) {
	return c.Call(fn, Void, args...)
}
