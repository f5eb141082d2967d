package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
)

var rgbLedBlocks = []Registration{
	{
		Kind:    "rgbLed_config",
		Doc:     "Declares a strip of COUNT RGB LEDs attached to PIN.",
		Returns: Void,
		Extract: assignResourceID,
		Init:    initRgbLed,
	},
	{Kind: "rgbLed_set_colour", Doc: "Sets LED number INDEX of a strip to VALUE.", Returns: Void, Generate: genRgbLedSetColour},
	{Kind: "rgbLed_show", Doc: "Sends the colours of a strip to the LEDs.", Returns: Void, Generate: genRgbLedShow},
}

// assignResourceID gives a configuration block the device id that
// referencing blocks look up by the block's id.
func assignResourceID(n *block.Node, ctx *Context) error {
	ctx.SetData(n, ctx.NextID())
	return nil
}

// resourceID resolves a field that refers to a configuration block.
func resourceID(n *block.Node, ctx *Context, field string) (uint16, error) {
	ref := n.FieldString(field)
	v, ok := ctx.DataByID(ref)
	id, isID := v.(uint16)
	if !ok || !isID {
		return 0, errz.New(errz.ErrStructural, "field %s refers to %q, which is not a configured device", field, ref)
	}
	return id, nil
}

func initRgbLed(n *block.Node, ctx *Context) (bytecode.Segment, error) {
	id, ok := ctx.Data(n).(uint16)
	if !ok {
		return bytecode.Empty, errz.New(errz.ErrStructural, "RGB LED configuration has no device id")
	}
	count, err := fieldU16(n, "COUNT")
	if err != nil {
		return bytecode.Empty, err
	}
	pin, err := fieldU8(n, "PIN")
	if err != nil {
		return bytecode.Empty, err
	}
	tc, err := ctx.Statement(native.RgbLedSetup, U16(id), U16(count), U8(pin))
	return tc.Code, err
}

func genRgbLedSetColour(n *block.Node, ctx *Context) (TypedCode, error) {
	id, err := resourceID(n, ctx, "LED")
	if err != nil {
		return TypedCode{}, err
	}
	index, err := ctx.Input(n, "INDEX", Number)
	if err != nil {
		return TypedCode{}, err
	}
	colour, err := ctx.Input(n, "VALUE", Colour)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.RgbLedSetColour, U16(id), Value(index), Value(colour))
}

func genRgbLedShow(n *block.Node, ctx *Context) (TypedCode, error) {
	id, err := resourceID(n, ctx, "LED")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.RgbLedShow, U16(id))
}
