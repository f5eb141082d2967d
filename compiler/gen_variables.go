package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

var variableBlocks = []Registration{
	{Kind: "variables_get_dynamic", Doc: "Reads a variable.", Returns: Any, Generate: genGetVariable},
	{Kind: "variables_set_dynamic", Doc: "Assigns VALUE to a variable.", Returns: Void, Generate: genSetVariable},
	{Kind: "math_change", Doc: "Adds DELTA to a number variable.", Returns: Void, Generate: genChangeVariable},
}

// variableAccess names the natives used to read and write a variable of
// some type.
type variableAccess struct {
	get native.Function
	set native.Function
}

var variableAccessors = map[Type]variableAccess{
	Number:  {get: native.VariablesGetVar32, set: native.VariablesSetVar32},
	String:  {get: native.VariablesGetResourceHandle, set: native.VariablesSetResourceHandle},
	Boolean: {get: native.VariablesGetVar8, set: native.VariablesSetVar8},
	Colour:  {get: native.ColourGetVar, set: native.ColourSetVar},
}

func getVariable(ctx *Context, v Variable) (TypedCode, error) {
	acc, ok := variableAccessors[v.Type]
	if !ok {
		return TypedCode{}, errz.New(errz.ErrType, "variables of type %s cannot be read", v.Type)
	}
	return ctx.Call(acc.get, v.Type, U16(uint16(v.Offset)))
}

func setVariable(ctx *Context, v Variable, value TypedCode) (TypedCode, error) {
	acc, ok := variableAccessors[v.Type]
	if !ok {
		return TypedCode{}, errz.New(errz.ErrType, "variables of type %s cannot be assigned", v.Type)
	}
	if value.Type != v.Type {
		return TypedCode{}, errz.New(errz.ErrType, "cannot assign a %s value to %s variable %q", value.Type, v.Type, v.Name)
	}
	return ctx.Statement(acc.set, U16(uint16(v.Offset)), Value(value))
}

func genGetVariable(n *block.Node, ctx *Context) (TypedCode, error) {
	v, err := ctx.Variable(n.FieldString("VAR"))
	if err != nil {
		return TypedCode{}, err
	}
	return getVariable(ctx, v)
}

func genSetVariable(n *block.Node, ctx *Context) (TypedCode, error) {
	v, err := ctx.Variable(n.FieldString("VAR"))
	if err != nil {
		return TypedCode{}, err
	}
	value, err := ctx.Input(n, "VALUE", v.Type)
	if err != nil {
		return TypedCode{}, err
	}
	return setVariable(ctx, v, value)
}

func genChangeVariable(n *block.Node, ctx *Context) (TypedCode, error) {
	v, err := ctx.Variable(n.FieldString("VAR"))
	if err != nil {
		return TypedCode{}, err
	}
	if v.Type != Number {
		return TypedCode{}, errz.New(errz.ErrType, "cannot change %s variable %q by a number", v.Type, v.Name)
	}
	delta, err := ctx.Input(n, "DELTA", Number)
	if err != nil {
		return TypedCode{}, err
	}
	cur, err := getVariable(ctx, v)
	if err != nil {
		return TypedCode{}, err
	}
	sum, err := ctx.Call(native.MathArithmetic, Number, Value(cur), Value(delta), U8(uint8(op.Add)))
	if err != nil {
		return TypedCode{}, err
	}
	return setVariable(ctx, v, sum)
}
