package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
)

var pinBlocks = []Registration{
	{
		Kind:    "pin_on_change",
		Doc:     "Runs BODY in a thread of its own each time PIN changes.",
		Returns: Void,
		Extract: extractPinOnChange,
	},
	{Kind: "pin_set", Doc: "Drives PIN high or low.", Returns: Void, Generate: genPinSet},
	{Kind: "pin_set_analog", Doc: "Writes an analog level between 0 and 1 to PIN.", Returns: Void, Generate: genPinSetAnalog},
	{Kind: "pin_read_digital", Doc: "Reads the level of PIN.", Returns: Boolean, Generate: genPinRead(native.PinReadDigital, Boolean)},
	{Kind: "pin_read_analog", Doc: "Reads the analog level of PIN.", Returns: Number, Generate: genPinRead(native.PinReadAnalog, Number)},
}

var pullModes = map[string]uint8{"NONE": 0, "UP": 1, "DOWN": 2}

// RAISIN is what older editor versions wrote for a rising edge.
var edges = map[string]uint8{"BOTH": 0, "RAISING": 1, "RAISIN": 1, "FALLING": 2}

func extractPinOnChange(n *block.Node, ctx *Context) error {
	_, err := ctx.AddThread(n, func(ctx *Context) (bytecode.Segment, error) {
		pin, err := fieldU8(n, "PIN")
		if err != nil {
			return bytecode.Empty, err
		}
		pull, err := choice(n, "PULL", pullModes)
		if err != nil {
			return bytecode.Empty, err
		}
		edge, err := choice(n, "EDGE", edges)
		if err != nil {
			return bytecode.Empty, err
		}
		debounce, err := ctx.Input(n, "DEBOUNCE", Number)
		if err != nil {
			return bytecode.Empty, err
		}
		setup, err := ctx.Statement(native.PinSetupOnChange, U8(pin), U8(pull), U8(edge), Value(debounce))
		if err != nil {
			return bytecode.Empty, err
		}
		return waitLoop(ctx, n, setup.Code, native.PinWaitForChange)
	})
	return err
}

// waitLoop returns setup followed by a loop that waits for the event and
// runs the node's BODY.
func waitLoop(ctx *Context, n *block.Node, setup bytecode.Segment, wait native.Function) (bytecode.Segment, error) {
	waitCall, err := ctx.Statement(wait)
	if err != nil {
		return bytecode.Empty, err
	}
	body, err := ctx.Statements(n, "BODY")
	if err != nil {
		return bytecode.Empty, err
	}
	main, err := loopBack(ctx, ctx.Compose(waitCall.Code, body))
	if err != nil {
		return bytecode.Empty, err
	}
	return ctx.Compose(setup, main), nil
}

func genPinSet(n *block.Node, ctx *Context) (TypedCode, error) {
	pin, err := fieldU8(n, "PIN")
	if err != nil {
		return TypedCode{}, err
	}
	v, err := ctx.Input(n, "VALUE", Boolean)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.PinSet, U8(pin), Value(v))
}

func genPinSetAnalog(n *block.Node, ctx *Context) (TypedCode, error) {
	pin, err := fieldU8(n, "PIN")
	if err != nil {
		return TypedCode{}, err
	}
	v, err := ctx.Input(n, "VALUE", Number)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.PinSetAnalog, U8(pin), Value(v))
}

func genPinRead(fn native.Function, t Type) Generator {
	return func(n *block.Node, ctx *Context) (TypedCode, error) {
		pin, err := fieldU8(n, "PIN")
		if err != nil {
			return TypedCode{}, err
		}
		return ctx.Call(fn, t, U8(pin))
	}
}
