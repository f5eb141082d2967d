package compiler

import (
	"strconv"

	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

var controlBlocks = []Registration{
	{
		Kind:     "controls_repeat_ext",
		Doc:      "Runs DO a number of times given by TIMES.",
		Returns:  Void,
		Generate: genRepeat,
	},
	{
		Kind:     "controls_if",
		Doc:      "Runs the first DOn whose IFn is true, or ELSE.",
		Returns:  Void,
		Generate: genIf,
	},
	{
		Kind:     "controls_whileUntil",
		Doc:      "Runs DO while (or until) BOOL is true.",
		Returns:  Void,
		Generate: genWhileUntil,
	},
	{
		Kind:     "controls_for",
		Doc:      "Counts VAR from FROM to TO in steps of BY, running DO each time.",
		Returns:  Void,
		Generate: genFor,
	},
}

// genRepeat keeps the loop counter on the stack while the body runs. The
// done native updates the counter and pushes 1 once it has run out, so the
// body runs at least once.
func genRepeat(n *block.Node, ctx *Context) (TypedCode, error) {
	times, err := ctx.Input(n, "TIMES", Number)
	if err != nil {
		return TypedCode{}, err
	}
	body, err := ctx.Statements(n, "DO")
	if err != nil {
		return TypedCode{}, err
	}
	done, err := ctx.CallRaw(native.ControlsRepeatExtDone, 1)
	if err != nil {
		return TypedCode{}, err
	}
	pop, err := ctx.CallRaw(native.BasicPop32, -4)
	if err != nil {
		return TypedCode{}, err
	}
	main := ctx.Compose(body, done)

	b := ctx.Start()
	b.Segment(times.Code, main)
	b.JumpIfZero(-ctx.Size(main))
	b.Segment(pop)
	return ctx.Typed(b, Void)
}

// genIf builds the chain from the last branch backwards so every branch
// knows the size of the code it has to skip.
func genIf(n *block.Node, ctx *Context) (TypedCode, error) {
	branches := n.ExtraInt("elseIfCount") + 1
	for n.HasInput(ifInput("IF", branches)) || n.HasInput(ifInput("DO", branches)) {
		branches++
	}
	rest := bytecode.Empty
	if n.HasInput("ELSE") || n.ExtraBool("hasElse") {
		var err error
		if rest, err = ctx.Statements(n, "ELSE"); err != nil {
			return TypedCode{}, err
		}
	}
	for i := branches - 1; i >= 0; i-- {
		cond, err := ctx.Input(n, ifInput("IF", i), Boolean)
		if err != nil {
			return TypedCode{}, err
		}
		do, err := ctx.Statements(n, ifInput("DO", i))
		if err != nil {
			return TypedCode{}, err
		}
		doJump := do
		if ctx.Size(rest) > 0 {
			b := ctx.Start()
			b.Segment(do)
			b.Jump(ctx.Size(rest))
			if doJump, err = b.End(); err != nil {
				return TypedCode{}, err
			}
		}
		b := ctx.Start()
		b.Segment(cond.Code)
		b.JumpIfZero(ctx.Size(doJump))
		b.Segment(doJump, rest)
		if rest, err = b.End(); err != nil {
			return TypedCode{}, err
		}
	}
	return TypedCode{Code: rest, Type: Void}, nil
}

func ifInput(prefix string, i int) string {
	return prefix + strconv.Itoa(i)
}

// genWhileUntil jumps over the body to the test first, so the body may run
// zero times. The test is negated for WHILE because the loop continues on
// a zero condition.
func genWhileUntil(n *block.Node, ctx *Context) (TypedCode, error) {
	mode := n.FieldString("MODE")
	if mode != "WHILE" && mode != "UNTIL" {
		return TypedCode{}, errz.New(errz.ErrStructural, "field MODE has unknown value %q", mode)
	}
	cond, err := ctx.Input(n, "BOOL", Boolean)
	if err != nil {
		return TypedCode{}, err
	}
	if mode == "WHILE" {
		if cond, err = ctx.Call(native.LogicNegate, Boolean, Value(cond)); err != nil {
			return TypedCode{}, err
		}
	}
	body, err := ctx.Statements(n, "DO")
	if err != nil {
		return TypedCode{}, err
	}
	b := ctx.Start()
	if size := ctx.Size(body); size > 0 {
		b.Jump(size)
	}
	b.Segment(body, cond.Code)
	b.JumpIfZero(-(ctx.Size(body) + ctx.Size(cond.Code)))
	return ctx.Typed(b, Void)
}

// genFor assigns FROM, then runs the body and increments until the
// variable passes TO. The body runs at least once.
func genFor(n *block.Node, ctx *Context) (TypedCode, error) {
	v, err := ctx.Variable(n.FieldString("VAR"))
	if err != nil {
		return TypedCode{}, err
	}
	if v.Type != Number {
		return TypedCode{}, errz.New(errz.ErrType, "loop variable %q has type %s, want Number", v.Name, v.Type)
	}
	from, err := ctx.Input(n, "FROM", Number)
	if err != nil {
		return TypedCode{}, err
	}
	to, err := ctx.Input(n, "TO", Number)
	if err != nil {
		return TypedCode{}, err
	}
	by, err := ctx.Input(n, "BY", Number)
	if err != nil {
		return TypedCode{}, err
	}
	body, err := ctx.Statements(n, "DO")
	if err != nil {
		return TypedCode{}, err
	}

	init, err := setVariable(ctx, v, from)
	if err != nil {
		return TypedCode{}, err
	}
	cur, err := getVariable(ctx, v)
	if err != nil {
		return TypedCode{}, err
	}
	next, err := ctx.Call(native.MathArithmetic, Number, Value(cur), Value(by), U8(uint8(op.Add)))
	if err != nil {
		return TypedCode{}, err
	}
	step, err := setVariable(ctx, v, next)
	if err != nil {
		return TypedCode{}, err
	}
	if cur, err = getVariable(ctx, v); err != nil {
		return TypedCode{}, err
	}
	cmp := op.GreaterThan
	if countsDown(n.Input("BY")) {
		cmp = op.LessThan
	}
	test, err := ctx.Call(native.LogicCompare, Boolean, Value(cur), Value(to), U8(uint8(cmp)))
	if err != nil {
		return TypedCode{}, err
	}

	loop := ctx.Compose(body, step.Code)
	b := ctx.Start()
	b.Segment(init.Code, loop, test.Code)
	b.JumpIfZero(-(ctx.Size(loop) + ctx.Size(test.Code)))
	return ctx.Typed(b, Void)
}

// countsDown reports whether the step is a negative literal.
func countsDown(by *block.Node) bool {
	if by == nil || by.Kind != "math_number" {
		return false
	}
	f, err := by.FieldNumber("NUM")
	return err == nil && f < 0
}
