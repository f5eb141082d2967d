// Package op defines the instruction classes of the block machine and the
// operator selectors that native functions take as their last argument.
//
// Every instruction starts with one opcode byte laid out as:
//
//	bit 7-6  instruction class (push, jump, jump-if-zero, call)
//	bit 5-4  size class (0: no extra bytes, 1: one extra byte, 2: two extra bytes)
//	bit 3-0  the high nibble of the parameter
//
// Extra parameter bytes follow the opcode byte. For size class 2 they are
// stored little-endian.
package op

// Class is the two bit instruction class stored in the top of an opcode byte.
type Class uint8

const (
	Push       Class = 0
	Jump       Class = 1
	JumpIfZero Class = 2
	Call       Class = 3
)

// SizeClass selects how many extra bytes extend the parameter nibble.
type SizeClass uint8

const (
	Short  SizeClass = 0
	Medium SizeClass = 1
	Long   SizeClass = 2
)

// Bits returns the number of parameter bits available in the size class.
func (s SizeClass) Bits() int {
	return 4 + 8*int(s)
}

// ExtraBytes returns the number of bytes following the opcode byte.
func (s SizeClass) ExtraBytes() int {
	return int(s)
}

// MaxSizeClass is the widest encoding; there is no tier above 20 bits.
const MaxSizeClass = Long

// Info contains information about an instruction class.
type Info struct {
	Class  Class
	Name   string
	Signed bool
}

var infos [4]Info

func init() {
	infos[Push] = Info{Class: Push, Name: "PUSH"}
	infos[Jump] = Info{Class: Jump, Name: "JUMP", Signed: true}
	infos[JumpIfZero] = Info{Class: JumpIfZero, Name: "JUMP_IF_ZERO", Signed: true}
	infos[Call] = Info{Class: Call, Name: "CALL"}
}

// GetInfo returns information about the given instruction class.
func GetInfo(c Class) Info {
	return infos[c&3]
}

func (c Class) String() string {
	return GetInfo(c).Name
}

// Opcode packs a class, size class and parameter nibble into an opcode byte.
func Opcode(c Class, s SizeClass, nibble uint8) byte {
	return byte(c&3)<<6 | byte(s&3)<<4 | nibble&0xf
}

// Split unpacks an opcode byte.
func Split(b byte) (Class, SizeClass, uint8) {
	return Class(b >> 6), SizeClass(b >> 4 & 3), b & 0xf
}

// ArithmeticOp selects the operation performed by the arithmetic native.
type ArithmeticOp uint8

const (
	Add      ArithmeticOp = 0
	Subtract ArithmeticOp = 1
	Multiply ArithmeticOp = 2
	Divide   ArithmeticOp = 3
	Power    ArithmeticOp = 4
	Modulo   ArithmeticOp = 5
	// RandomInt picks an integer between the two operands.
	RandomInt ArithmeticOp = 6
	Atan2     ArithmeticOp = 7
)

// String returns a string representation of the arithmetic operation.
// For example "+" for addition.
func (a ArithmeticOp) String() string {
	switch a {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Power:
		return "**"
	case Modulo:
		return "%"
	case RandomInt:
		return "random"
	case Atan2:
		return "atan2"
	default:
		return ""
	}
}

// CompareOp selects the comparison performed by the compare native.
type CompareOp uint8

const (
	Equal              CompareOp = 0
	NotEqual           CompareOp = 1
	LessThan           CompareOp = 2
	LessThanOrEqual    CompareOp = 3
	GreaterThan        CompareOp = 4
	GreaterThanOrEqual CompareOp = 5
)

// String returns a string representation of the comparison operation.
// For example "<" for less than.
func (c CompareOp) String() string {
	switch c {
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return ""
	}
}

// LogicOp selects the boolean operation of the logic native.
type LogicOp uint8

const (
	And LogicOp = 0
	Or  LogicOp = 1
)

func (l LogicOp) String() string {
	switch l {
	case And:
		return "&&"
	case Or:
		return "||"
	default:
		return ""
	}
}

// UnaryOp selects the single-operand math function.
type UnaryOp uint8

const (
	Sin   UnaryOp = 0
	Cos   UnaryOp = 1
	Tan   UnaryOp = 2
	Asin  UnaryOp = 3
	Acos  UnaryOp = 4
	Atan  UnaryOp = 5
	Round UnaryOp = 6
	Ceil  UnaryOp = 7
	Floor UnaryOp = 8
	Sqrt  UnaryOp = 9
	Abs   UnaryOp = 10
	Neg   UnaryOp = 11
	Ln    UnaryOp = 12
	Log10 UnaryOp = 13
	Exp   UnaryOp = 14
	Pow10 UnaryOp = 15
)

var unaryNames = [...]string{
	"sin", "cos", "tan", "asin", "acos", "atan",
	"round", "ceil", "floor",
	"sqrt", "abs", "neg", "ln", "log10", "exp", "pow10",
}

func (u UnaryOp) String() string {
	if int(u) < len(unaryNames) {
		return unaryNames[u]
	}
	return ""
}

// NumberProperty selects the predicate of the number property native.
type NumberProperty uint8

const (
	Even     NumberProperty = 0
	Odd      NumberProperty = 1
	Prime    NumberProperty = 2
	Whole    NumberProperty = 3
	Positive NumberProperty = 4
	Negative NumberProperty = 5
)

func (p NumberProperty) String() string {
	switch p {
	case Even:
		return "even"
	case Odd:
		return "odd"
	case Prime:
		return "prime"
	case Whole:
		return "whole"
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return ""
	}
}

// ColourChannel selects the component returned by the colour channel native.
type ColourChannel uint8

const (
	Red        ColourChannel = 0
	Green      ColourChannel = 1
	Blue       ColourChannel = 2
	Hue        ColourChannel = 3
	Saturation ColourChannel = 4
	Value      ColourChannel = 5
)

func (c ColourChannel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Hue:
		return "hue"
	case Saturation:
		return "saturation"
	case Value:
		return "value"
	default:
		return ""
	}
}
