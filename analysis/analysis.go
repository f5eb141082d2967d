// Package analysis computes the operand stack requirements of thread code by
// abstract interpretation of its decoded instructions.
//
// Depths are measured in bytes, the unit of the device stack. A push adds its
// literal byte count, a call adds the delta recorded for the native function,
// a jump-if-zero consumes the one byte condition it tests. Every instruction
// must be reached with the same depth along every path; code that violates
// this would leave the stack in a path dependent shape and is rejected.
package analysis

import (
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

// DeltaTable provides the stack delta of native functions.
type DeltaTable interface {
	Delta(fn native.Function) (int, bool)
}

// Result is the outcome of analyzing one piece of code.
type Result struct {
	// MaxDepth is the peak depth over every reachable instruction.
	MaxDepth int
	// Exits reports whether some path runs off the end of the code.
	Exits bool
	// ExitDepth is the depth on leaving the code. Valid when Exits is true.
	ExitDepth int
	// Depths maps each reachable instruction offset to its entry depth.
	Depths map[int]int
}

type state struct {
	offset int
	depth  int
}

// Analyze walks every path through code starting at offset 0 with an empty
// stack.
func Analyze(code []byte, deltas DeltaTable) (*Result, error) {
	res := &Result{Depths: map[int]int{}}
	work := []state{{0, 0}}
	if len(code) == 0 {
		res.Exits = true
		return res, nil
	}
	for len(work) > 0 {
		s := work[len(work)-1]
		work = work[:len(work)-1]

		for {
			if s.offset == len(code) {
				if res.Exits && res.ExitDepth != s.depth {
					return nil, errz.New(errz.ErrAnalysis,
						"code exits with stack depth %d and %d on different paths", res.ExitDepth, s.depth)
				}
				res.Exits = true
				res.ExitDepth = s.depth
				break
			}
			if s.offset < 0 || s.offset > len(code) {
				return nil, errz.New(errz.ErrAnalysis, "branch target %d outside code of length %d", s.offset, len(code))
			}
			if prev, seen := res.Depths[s.offset]; seen {
				if prev != s.depth {
					return nil, errz.New(errz.ErrAnalysis,
						"offset %d reached with stack depth %d and %d", s.offset, prev, s.depth)
				}
				break
			}
			res.Depths[s.offset] = s.depth

			instr, err := bytecode.Decode(code, s.offset)
			if err != nil {
				return nil, errz.New(errz.ErrAnalysis, "cannot decode instruction at offset %d", s.offset).WithCause(err)
			}
			depth := s.depth
			switch instr.Class {
			case op.Push:
				depth += instr.Param
			case op.Call:
				fn := native.Function(instr.Param)
				delta, ok := deltas.Delta(fn)
				if !ok {
					return nil, errz.New(errz.ErrAnalysis, "call of %s at offset %d has no recorded stack delta", fn, s.offset)
				}
				depth += delta
			case op.JumpIfZero:
				depth--
			}
			if depth < 0 {
				return nil, errz.New(errz.ErrAnalysis, "stack underflow at offset %d (%s)", s.offset, instr)
			}
			if depth > res.MaxDepth {
				res.MaxDepth = depth
			}

			switch instr.Class {
			case op.Jump:
				s = state{instr.Target(), depth}
			case op.JumpIfZero:
				work = append(work, state{instr.End(), depth})
				s = state{instr.Target(), depth}
			default:
				s = state{instr.End(), depth}
			}
		}
	}
	return res, nil
}

// MaxDepth returns the peak stack depth of code.
func MaxDepth(code []byte, deltas DeltaTable) (int, error) {
	res, err := Analyze(code, deltas)
	if err != nil {
		return 0, err
	}
	return res.MaxDepth, nil
}
