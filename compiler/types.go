package compiler

import (
	"fmt"

	"github.com/micro-blocks/mbc/bytecode"
)

// Type is the static type of the value a generated fragment leaves on the
// operand stack.
type Type uint8

const (
	// Void is the type of statements. They leave nothing on the stack.
	Void Type = iota
	Boolean
	Number
	Colour
	String
	// Any is only used as a generation hint. No fragment has type Any.
	Any
)

var typeNames = [...]string{"Void", "Boolean", "Number", "Colour", "String", "Any"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Size returns the number of stack bytes a value of the type occupies.
// Strings are represented by a 4 byte handle.
func (t Type) Size() int {
	switch t {
	case Boolean:
		return 1
	case Number, String:
		return 4
	case Colour:
		return 12
	default:
		return 0
	}
}

// ParseType converts a type name as written in a variable declaration.
func ParseType(name string) (Type, error) {
	switch name {
	case "Boolean":
		return Boolean, nil
	case "Number", "":
		return Number, nil
	case "Colour":
		return Colour, nil
	case "String":
		return String, nil
	}
	return Void, fmt.Errorf("unknown type %q", name)
}

// TypedCode is a generated fragment together with the type of the value it
// produces.
type TypedCode struct {
	Code bytecode.Segment
	Type Type
}
