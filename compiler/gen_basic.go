package compiler

import (
	"fmt"

	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
)

var basicBlocks = []Registration{
	{
		Kind:    "basic_on_start",
		Doc:     "Runs its body once in a thread of its own when the program starts.",
		Returns: Void,
		Extract: extractOnStart,
	},
	{
		Kind:    "basic_forever",
		Doc:     "Runs its body in a loop in a thread of its own.",
		Returns: Void,
		Extract: extractForever,
	},
	{
		Kind:     "basic_delay",
		Doc:      "Suspends the current thread for DELAY milliseconds.",
		Returns:  Void,
		Generate: genDelay,
	},
}

func extractOnStart(n *block.Node, ctx *Context) error {
	_, err := ctx.AddThread(n, func(ctx *Context) (bytecode.Segment, error) {
		body, err := ctx.Statements(n, "BODY")
		if err != nil {
			return bytecode.Empty, err
		}
		return endThread(ctx, body)
	})
	return err
}

func extractForever(n *block.Node, ctx *Context) error {
	_, err := ctx.AddThread(n, func(ctx *Context) (bytecode.Segment, error) {
		body, err := ctx.Statements(n, "BODY")
		if err != nil {
			return bytecode.Empty, err
		}
		if ctx.Size(body) == 0 {
			return endThread(ctx, bytecode.Empty)
		}
		return loopBack(ctx, body)
	})
	return err
}

func genDelay(n *block.Node, ctx *Context) (TypedCode, error) {
	delay, err := ctx.Input(n, "DELAY", Number)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.BasicDelay, Value(delay))
}

// endThread appends the call that terminates the running thread.
func endThread(ctx *Context, body bytecode.Segment) (bytecode.Segment, error) {
	end, err := ctx.Statement(native.BasicEndThread)
	if err != nil {
		return bytecode.Empty, err
	}
	return ctx.Compose(body, end.Code), nil
}

// loopBack returns body followed by a jump to its start.
func loopBack(ctx *Context, body bytecode.Segment) (bytecode.Segment, error) {
	b := ctx.Start()
	b.Segment(body)
	b.Jump(-ctx.Size(body))
	return b.End()
}

// fieldU8 reads a numeric field that must fit in a byte.
func fieldU8(n *block.Node, name string) (uint8, error) {
	v, err := n.FieldUint(name, 0xff)
	return uint8(v), err
}

// fieldU16 reads a numeric field that must fit in two bytes.
func fieldU16(n *block.Node, name string) (uint16, error) {
	v, err := n.FieldUint(name, 0xffff)
	return uint16(v), err
}

// choice maps a dropdown field to the operand the device expects.
func choice[T ~uint8](n *block.Node, name string, options map[string]T) (T, error) {
	v := n.FieldString(name)
	if op, ok := options[v]; ok {
		return op, nil
	}
	return 0, fmt.Errorf("field %s has unknown value %q", name, v)
}
