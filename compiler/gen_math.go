package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

var mathBlocks = []Registration{
	{Kind: "math_number", Doc: "A number constant.", Returns: Number, Generate: genNumber},
	{Kind: "math_arithmetic", Doc: "Adds, subtracts, multiplies, divides or raises A to B.", Returns: Number, Generate: genArithmetic},
	{Kind: "math_modulo", Doc: "Remainder of DIVIDEND divided by DIVISOR.", Returns: Number, Generate: genModulo},
	{Kind: "math_single", Doc: "Square root, absolute value, negation, logarithms and exponentials.", Returns: Number, Generate: genUnary("NUM", singleOps)},
	{Kind: "math_trig", Doc: "Trigonometric functions.", Returns: Number, Generate: genUnary("NUM", trigOps)},
	{Kind: "math_round", Doc: "Rounds a number.", Returns: Number, Generate: genUnary("NUM", roundOps)},
	{Kind: "math_number_property", Doc: "Tests whether a number is even, odd, prime, whole, positive or negative.", Returns: Boolean, Generate: genNumberProperty},
	{Kind: "math_random_int", Doc: "A random integer between FROM and TO.", Returns: Number, Generate: genRandomInt},
	{Kind: "math_random_float", Doc: "A random number between 0 and 1.", Returns: Number, Generate: genRandomFloat},
	{Kind: "math_constrain", Doc: "Clamps VALUE between LOW and HIGH.", Returns: Number, Generate: genConstrain},
	{Kind: "math_atan2", Doc: "The angle of the point (X, Y).", Returns: Number, Generate: genAtan2},
	{Kind: "math_map", Doc: "Maps VALUE linearly through the points (X1, Y1) and (X2, Y2).", Returns: Number, Generate: genMap},
	{Kind: "math_map_temperature", Doc: "Converts a thermistor reading to degrees using coefficients A and B.", Returns: Number, Generate: genMapTemperature},
}

var arithmeticOps = map[string]op.ArithmeticOp{
	"ADD":      op.Add,
	"MINUS":    op.Subtract,
	"MULTIPLY": op.Multiply,
	"DIVIDE":   op.Divide,
	"POWER":    op.Power,
}

var singleOps = map[string]op.UnaryOp{
	"ROOT":  op.Sqrt,
	"ABS":   op.Abs,
	"NEG":   op.Neg,
	"LN":    op.Ln,
	"LOG10": op.Log10,
	"EXP":   op.Exp,
	"POW10": op.Pow10,
}

var trigOps = map[string]op.UnaryOp{
	"SIN":  op.Sin,
	"COS":  op.Cos,
	"TAN":  op.Tan,
	"ASIN": op.Asin,
	"ACOS": op.Acos,
	"ATAN": op.Atan,
}

var roundOps = map[string]op.UnaryOp{
	"ROUND":     op.Round,
	"ROUNDUP":   op.Ceil,
	"ROUNDDOWN": op.Floor,
}

var numberProperties = map[string]op.NumberProperty{
	"EVEN":     op.Even,
	"ODD":      op.Odd,
	"PRIME":    op.Prime,
	"WHOLE":    op.Whole,
	"POSITIVE": op.Positive,
	"NEGATIVE": op.Negative,
}

func genNumber(n *block.Node, ctx *Context) (TypedCode, error) {
	f, err := n.FieldNumber("NUM")
	if err != nil {
		return TypedCode{}, err
	}
	b := ctx.Start()
	b.PushFloat32(float32(f))
	return ctx.Typed(b, Number)
}

// numbers generates the named inputs as Number arguments.
func numbers(n *block.Node, ctx *Context, names ...string) ([]Arg, error) {
	args := make([]Arg, 0, len(names))
	for _, name := range names {
		tc, err := ctx.Input(n, name, Number)
		if err != nil {
			return nil, err
		}
		args = append(args, Value(tc))
	}
	return args, nil
}

func arithmetic(n *block.Node, ctx *Context, a, b string, aop op.ArithmeticOp) (TypedCode, error) {
	args, err := numbers(n, ctx, a, b)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.MathArithmetic, Number, append(args, U8(uint8(aop)))...)
}

func genArithmetic(n *block.Node, ctx *Context) (TypedCode, error) {
	aop, err := choice(n, "OP", arithmeticOps)
	if err != nil {
		return TypedCode{}, err
	}
	return arithmetic(n, ctx, "A", "B", aop)
}

func genModulo(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := numbers(n, ctx, "DIVIDEND", "DIVISOR")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.MathModulo, Number, args...)
}

func genUnary(input string, ops map[string]op.UnaryOp) Generator {
	return func(n *block.Node, ctx *Context) (TypedCode, error) {
		uop, err := choice(n, "OP", ops)
		if err != nil {
			return TypedCode{}, err
		}
		v, err := ctx.Input(n, input, Number)
		if err != nil {
			return TypedCode{}, err
		}
		return ctx.Call(native.MathUnary, Number, Value(v), U8(uint8(uop)))
	}
}

func genNumberProperty(n *block.Node, ctx *Context) (TypedCode, error) {
	prop, err := choice(n, "PROPERTY", numberProperties)
	if err != nil {
		return TypedCode{}, err
	}
	v, err := ctx.Input(n, "NUMBER_TO_CHECK", Number)
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.MathNumberProperty, Boolean, Value(v), U8(uint8(prop)))
}

func genRandomInt(n *block.Node, ctx *Context) (TypedCode, error) {
	return arithmetic(n, ctx, "FROM", "TO", op.RandomInt)
}

func genRandomFloat(n *block.Node, ctx *Context) (TypedCode, error) {
	return ctx.Call(native.MathRandomFloat, Number)
}

func genConstrain(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := numbers(n, ctx, "VALUE", "LOW", "HIGH")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.MathConstrain, Number, args...)
}

func genAtan2(n *block.Node, ctx *Context) (TypedCode, error) {
	return arithmetic(n, ctx, "Y", "X", op.Atan2)
}

func genMap(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := numbers(n, ctx, "VALUE", "X1", "Y1", "X2", "Y2")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.MathMapLinear, Number, args...)
}

func genMapTemperature(n *block.Node, ctx *Context) (TypedCode, error) {
	args, err := numbers(n, ctx, "VALUE", "A", "B")
	if err != nil {
		return TypedCode{}, err
	}
	return ctx.Call(native.MathMapTemperature, Number, args...)
}
