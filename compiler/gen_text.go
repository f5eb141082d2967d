package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
)

var textBlocks = []Registration{
	{Kind: "text", Doc: "A text constant.", Returns: String, Generate: genText},
	{Kind: "text_join", Doc: "Joins the text of every ADDn input.", Returns: String, Generate: genTextJoin},
	{Kind: "text_print", Doc: "Prints TEXT to the device console.", Returns: Void, Generate: genTextPrint},
}

func genText(n *block.Node, ctx *Context) (TypedCode, error) {
	return ctx.LoadString(n.FieldString("TEXT"))
}

// toString converts a value of any printable type to a String.
func toString(ctx *Context, tc TypedCode) (TypedCode, error) {
	switch tc.Type {
	case String:
		return tc, nil
	case Number:
		return ctx.Call(native.TextNumToString, String, Value(tc))
	case Boolean:
		return ctx.Call(native.TextBoolToString, String, Value(tc))
	}
	return TypedCode{}, errz.New(errz.ErrType, "a %s value cannot be converted to text", tc.Type)
}

// inputString generates a named input of any printable type as a String.
func inputString(n *block.Node, ctx *Context, name string) (TypedCode, error) {
	tc, err := ctx.Infer(n, name, String)
	if err != nil {
		return TypedCode{}, err
	}
	return toString(ctx, tc)
}

func genTextJoin(n *block.Node, ctx *Context) (TypedCode, error) {
	count := n.ExtraInt("itemCount")
	for n.HasInput(ifInput("ADD", count)) {
		count++
	}
	if count == 0 {
		return ctx.LoadString("")
	}
	result, err := inputString(n, ctx, "ADD0")
	if err != nil {
		return TypedCode{}, err
	}
	for i := 1; i < count; i++ {
		next, err := inputString(n, ctx, ifInput("ADD", i))
		if err != nil {
			return TypedCode{}, err
		}
		if result, err = ctx.Call(native.TextJoinString, String, Value(result), Value(next)); err != nil {
			return TypedCode{}, err
		}
	}
	return result, nil
}

func genTextPrint(n *block.Node, ctx *Context) (TypedCode, error) {
	text, err := inputString(n, ctx, "TEXT")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Statement(native.TextPrintString, Value(text))
}
