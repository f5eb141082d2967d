package compiler

import (
	"fmt"
	"strconv"

	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

// Colours are three Numbers on the stack, red first, each between 0 and 1.

var colourBlocks = []Registration{
	{Kind: "colour_picker", Doc: "A colour constant written as #rrggbb.", Returns: Colour, Generate: genColourPicker},
	{Kind: "colour_random", Doc: "A random colour.", Returns: Colour, Generate: genColourRandom},
	{Kind: "colour_rgb", Doc: "A colour from RED, GREEN and BLUE components.", Returns: Colour, Generate: genColourRGB},
	{Kind: "colour_blend", Doc: "Mixes COLOUR1 and COLOUR2 by RATIO.", Returns: Colour, Generate: genColourBlend},
	{Kind: "colour_get_channel", Doc: "One channel of a colour in RGB or HSV space.", Returns: Number, Generate: genColourChannel},
	{Kind: "colour_from_hsv", Doc: "A colour from hue, saturation and value.", Returns: Colour, Generate: genColourHSV},
}

var colourChannels = map[string]op.ColourChannel{
	"R": op.Red,
	"G": op.Green,
	"B": op.Blue,
	"H": op.Hue,
	"S": op.Saturation,
	"V": op.Value,
}

// parseHexColour parses "#rrggbb" into components scaled to [0, 1].
func parseHexColour(s string) ([3]float32, error) {
	var c [3]float32
	if len(s) != 7 || s[0] != '#' {
		return c, fmt.Errorf("colour %q is not of the form #rrggbb", s)
	}
	for i := range c {
		v, err := strconv.ParseUint(s[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return c, fmt.Errorf("colour %q is not of the form #rrggbb", s)
		}
		c[i] = float32(v) / 255
	}
	return c, nil
}

func genColourPicker(n *block.Node, ctx *Context) (TypedCode, error) {
	c, err := parseHexColour(n.FieldString("COLOUR"))
	if err != nil {
		return TypedCode{}, err
	}
	b := ctx.Start()
	for _, v := range c {
		b.PushFloat32(v)
	}
	return ctx.Typed(b, Colour)
}

func genColourRandom(n *block.Node, ctx *Context) (TypedCode, error) {
	var parts [3]TypedCode
	for i := range parts {
		tc, err := ctx.Call(native.MathRandomFloat, Number)
		if err != nil {
			return TypedCode{}, err
		}
		parts[i] = tc
	}
	return TypedCode{Code: ctx.Compose(parts[0].Code, parts[1].Code, parts[2].Code), Type: Colour}, nil
}

func genColourRGB(n *block.Node, ctx *Context) (TypedCode, error) {
	var parts [3]TypedCode
	for i, name := range []string{"RED", "GREEN", "BLUE"} {
		tc, err := ctx.Input(n, name, Number)
		if err != nil {
			return TypedCode{}, err
		}
		parts[i] = tc
	}
	return TypedCode{Code: ctx.Compose(parts[0].Code, parts[1].Code, parts[2].Code), Type: Colour}, nil
}

func genColourBlend(n *block.Node, ctx *Context) (TypedCode, error) {
	a, err := ctx.Input(n, "COLOUR1", Colour)
	if err != nil {
		return TypedCode{}, err
	}
	b, err := ctx.Input(n, "COLOUR2", Colour)
	if err != nil {
		return TypedCode{}, err
	}
	ratio, err := ctx.Input(n, "RATIO", Number)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.ColourBlend, Colour, Value(a), Value(b), Value(ratio))
}

func genColourChannel(n *block.Node, ctx *Context) (TypedCode, error) {
	ch, err := choice(n, "CHANNEL", colourChannels)
	if err != nil {
		return TypedCode{}, err
	}
	v, err := ctx.Input(n, "VALUE", Colour)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.ColourGetChannel, Number, Value(v), U8(uint8(ch)))
}

func genColourHSV(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := numbers(n, ctx, "H", "S", "V")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.ColourFromHSV, Colour, args...)
}
