package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

var logicBlocks = []Registration{
	{Kind: "logic_boolean", Doc: "The constant true or false.", Returns: Boolean, Generate: genBoolean},
	{Kind: "logic_compare", Doc: "Compares two numbers.", Returns: Boolean, Generate: genCompare},
	{Kind: "logic_operation", Doc: "Logical and/or of two booleans.", Returns: Boolean, Generate: genLogicOperation},
	{Kind: "logic_negate", Doc: "Logical not.", Returns: Boolean, Generate: genNegate},
	{Kind: "logic_ternary", Doc: "Picks THEN or ELSE depending on IF.", Returns: Any, Generate: genTernary},
}

var compareOps = map[string]op.CompareOp{
	"EQ":  op.Equal,
	"NEQ": op.NotEqual,
	"LT":  op.LessThan,
	"LTE": op.LessThanOrEqual,
	"GT":  op.GreaterThan,
	"GTE": op.GreaterThanOrEqual,
}

var logicOps = map[string]op.LogicOp{
	"AND": op.And,
	"OR":  op.Or,
}

func genBoolean(n *block.Node, ctx *Context) (TypedCode, error) {
	b := ctx.Start()
	b.PushBool(n.FieldBool("BOOL"))
	return ctx.Typed(b, Boolean)
}

func genCompare(n *block.Node, ctx *Context) (TypedCode, error) {
	cmp, err := choice(n, "OP", compareOps)
	if err != nil {
		return TypedCode{}, err
	}
	a, err := ctx.Input(n, "A", Number)
	if err != nil {
		return TypedCode{}, err
	}
	b, err := ctx.Input(n, "B", Number)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.LogicCompare, Boolean, Value(a), Value(b), U8(uint8(cmp)))
}

func genLogicOperation(n *block.Node, ctx *Context) (TypedCode, error) {
	lop, err := choice(n, "OP", logicOps)
	if err != nil {
		return TypedCode{}, err
	}
	a, err := ctx.Input(n, "A", Boolean)
	if err != nil {
		return TypedCode{}, err
	}
	b, err := ctx.Input(n, "B", Boolean)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.LogicOperation, Boolean, Value(a), Value(b), U8(uint8(lop)))
}

func genNegate(n *block.Node, ctx *Context) (TypedCode, error) {
	v, err := ctx.Input(n, "BOOL", Boolean)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.LogicNegate, Boolean, Value(v))
}

// genTernary takes its type from whichever branch is connected. With both
// branches empty it falls back to the type the enclosing socket expects.
func genTernary(n *block.Node, ctx *Context) (TypedCode, error) {
	thenNode, elseNode := n.Input("THEN"), n.Input("ELSE")
	want := ctx.Expected()
	if thenNode == nil && elseNode == nil {
		if want == Any || want == Void {
			return TypedCode{}, errz.New(errz.ErrType, "cannot determine the type of a conditional with no branches")
		}
		return ctx.Zero(want)
	}

	var thenCode, elseCode TypedCode
	var err error
	if thenNode != nil {
		if thenCode, err = ctx.Expr(thenNode, Any); err != nil {
			return TypedCode{}, err
		}
	}
	if elseNode != nil {
		if elseCode, err = ctx.Expr(elseNode, Any); err != nil {
			return TypedCode{}, err
		}
	}
	switch {
	case thenNode == nil:
		thenCode, err = ctx.Zero(elseCode.Type)
	case elseNode == nil:
		elseCode, err = ctx.Zero(thenCode.Type)
	case thenCode.Type != elseCode.Type:
		err = errz.New(errz.ErrType, "conditional branches have different types: %s and %s", thenCode.Type, elseCode.Type)
	}
	if err != nil {
		return TypedCode{}, err
	}
	if thenCode.Type == Void {
		return TypedCode{}, errz.New(errz.ErrType, "conditional branches must produce a value")
	}
	cond, err := ctx.Input(n, "IF", Boolean)
	if err != nil {
		return TypedCode{}, err
	}

	b := ctx.Start()
	b.Segment(thenCode.Code)
	b.Jump(ctx.Size(elseCode.Code))
	thenJump, err := b.End()
	if err != nil {
		return TypedCode{}, err
	}
	b = ctx.Start()
	b.Segment(cond.Code)
	b.JumpIfZero(ctx.Size(thenJump))
	b.Segment(thenJump, elseCode.Code)
	return ctx.Typed(b, thenCode.Type)
}
