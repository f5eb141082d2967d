// Package dis disassembles block machine code. It decodes instructions with
// the bytecode package and annotates them with native function names, jump
// targets and push literals.
package dis

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/fatih/color"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/internal/table"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
)

// Instruction is a decoded instruction with a human readable annotation.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     byte
	Param      int
	Operands   []byte
	Annotation string
	// Constant is the decoded literal of a push: uint8, uint16, float32,
	// [3]float32 for a colour, or a string resolved from the constant pool.
	Constant any
}

// Disassemble decodes all instructions of code.
func Disassemble(code []byte) ([]Instruction, error) {
	var instructions []Instruction
	iter := bytecode.NewInstructionIter(code)
	for {
		instr, ok := iter.Next()
		if !ok {
			break
		}
		d := Instruction{
			Offset:   instr.Offset,
			Name:     instr.Class.String(),
			Opcode:   code[instr.Offset],
			Param:    instr.Param,
			Operands: code[instr.Offset+1 : instr.End()],
		}
		switch instr.Class {
		case op.Push:
			d.Constant = literal(instr.Data)
		case op.Jump, op.JumpIfZero:
			d.Annotation = fmt.Sprintf("-> %d", instr.Target())
		case op.Call:
			d.Annotation = native.Function(instr.Param).String()
		}
		instructions = append(instructions, d)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return instructions, nil
}

func literal(data []byte) any {
	switch len(data) {
	case 0:
		return nil
	case 1:
		return data[0]
	case 2:
		return binary.LittleEndian.Uint16(data)
	case 4:
		return math.Float32frombits(binary.LittleEndian.Uint32(data))
	case 12:
		var c [3]float32
		for i := range c {
			c[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return c
	default:
		return data
	}
}

// Thread is the disassembly of one thread of an image.
type Thread struct {
	Index        int
	CodeOffset   int
	StackOffset  int
	StackSize    int
	Instructions []Instruction
}

// Program is the disassembly of a whole image.
type Program struct {
	bytecode.Header
	PoolOffset int
	PoolSize   int
	Threads    []Thread
}

// DisassembleImage disassembles every thread of img. Pool offsets loaded
// as text are resolved to the string they point at.
func DisassembleImage(img *bytecode.Image) (*Program, error) {
	prog := &Program{
		Header:     img.Header,
		PoolOffset: img.PoolOffset(),
		PoolSize:   len(img.Pool),
	}
	for i, entry := range img.Threads {
		instructions, err := Disassemble(img.ThreadCode(i))
		if err != nil {
			return nil, fmt.Errorf("thread %d: %w", i, err)
		}
		resolveStrings(img.Raw(), instructions)
		prog.Threads = append(prog.Threads, Thread{
			Index:        i,
			CodeOffset:   int(entry.CodeOffset),
			StackOffset:  int(entry.StackOffset),
			StackSize:    img.StackSize(i),
			Instructions: instructions,
		})
	}
	return prog, nil
}

// resolveStrings replaces the offset pushed ahead of a text load with the
// pool string.
func resolveStrings(raw []byte, instructions []Instruction) {
	for i := 1; i < len(instructions); i++ {
		call := instructions[i]
		if call.Name != op.Call.String() || native.Function(call.Param) != native.TextLoad {
			continue
		}
		off, ok := instructions[i-1].Constant.(uint16)
		if !ok || int(off) >= len(raw) {
			continue
		}
		end := int(off)
		for end < len(raw) && raw[end] != 0 {
			end++
		}
		instructions[i-1].Constant = string(raw[off:end])
	}
}

// Print writes a table of the instructions to w.
func Print(instructions []Instruction, w io.Writer) error {
	bold := color.New(color.Bold).SprintFunc()
	var rows [][]string
	for _, instr := range instructions {
		rows = append(rows, []string{
			fmt.Sprintf("%d", instr.Offset),
			bold(instr.Name),
			formatOperands(instr),
			formatInfo(instr),
		})
	}
	return table.NewTable(w).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(rows).
		Render()
}

// PrintProgram writes the header, then one instruction table per thread.
func PrintProgram(prog *Program, w io.Writer) error {
	fmt.Fprintf(w, "version %d, %d threads, memory %d bytes, pool %d bytes at %d\n",
		prog.Version, prog.ThreadCount, prog.MemorySize, prog.PoolSize, prog.PoolOffset)
	heading := color.New(color.FgCyan, color.Bold)
	for _, t := range prog.Threads {
		fmt.Fprintln(w)
		heading.Fprintf(w, "thread %d", t.Index)
		fmt.Fprintf(w, " code@%d stack@%d+%d\n", t.CodeOffset, t.StackOffset, t.StackSize)
		if err := Print(t.Instructions, w); err != nil {
			return err
		}
	}
	return nil
}

func formatOperands(instr Instruction) string {
	if instr.Name == op.Jump.String() || instr.Name == op.JumpIfZero.String() {
		return fmt.Sprintf("%+d", instr.Param)
	}
	return fmt.Sprintf("%d", instr.Param)
}

func formatInfo(instr Instruction) string {
	switch c := instr.Constant.(type) {
	case nil:
		if instr.Annotation == "" {
			return ""
		}
		return color.HiCyanString(instr.Annotation)
	case uint8:
		return color.YellowString("u8 %d", c)
	case uint16:
		return color.YellowString("u16 %d", c)
	case float32:
		return color.YellowString("%g", c)
	case [3]float32:
		return color.MagentaString("rgb(%g, %g, %g)", c[0], c[1], c[2])
	case string:
		if len(c) > 40 {
			c = c[:37] + "..."
		}
		return color.GreenString("%q", c)
	case []byte:
		var sb strings.Builder
		for i, b := range c {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02x", b)
		}
		return sb.String()
	default:
		return fmt.Sprint(c)
	}
}
