package bytecode

import (
	"fmt"

	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/op"
)

// Instruction is a single decoded instruction.
type Instruction struct {
	Offset int
	Class  op.Class
	Param  int
	// Size is the encoded length, including the literal bytes of a push.
	Size int
	// Data holds the literal bytes of a push.
	Data []byte
}

// End returns the offset of the byte following the instruction.
func (i Instruction) End() int {
	return i.Offset + i.Size
}

// Target returns the offset a jump or jump-if-zero transfers control to.
func (i Instruction) Target() int {
	if i.Param >= 0 {
		return i.End() + i.Param
	}
	return i.Offset + i.Param
}

// IsBranch reports whether the instruction is a jump or jump-if-zero.
func (i Instruction) IsBranch() bool {
	return i.Class == op.Jump || i.Class == op.JumpIfZero
}

func (i Instruction) String() string {
	switch i.Class {
	case op.Push:
		return fmt.Sprintf("%s %v", i.Class, i.Data)
	case op.Jump, op.JumpIfZero:
		return fmt.Sprintf("%s %d -> %d", i.Class, i.Param, i.Target())
	default:
		return fmt.Sprintf("%s %d", i.Class, i.Param)
	}
}

// sizeClassFor returns the smallest size class able to hold param.
func sizeClassFor(param int, signed bool) (op.SizeClass, bool) {
	for s := op.Short; s <= op.MaxSizeClass; s++ {
		bits := s.Bits()
		if signed {
			if param >= -(1<<(bits-1)) && param < 1<<(bits-1) {
				return s, true
			}
		} else if param >= 0 && param < 1<<bits {
			return s, true
		}
	}
	return 0, false
}

// EncodedSize returns the number of bytes AppendInstruction would write,
// not counting the literal bytes of a push.
func EncodedSize(c op.Class, param int) (int, error) {
	info := op.GetInfo(c)
	s, ok := sizeClassFor(param, info.Signed)
	if !ok {
		return 0, outOfRange(info, param)
	}
	return 1 + s.ExtraBytes(), nil
}

// AppendInstruction appends the encoding of an instruction to dst. For a push
// the caller appends the param literal bytes afterwards.
func AppendInstruction(dst []byte, c op.Class, param int) ([]byte, error) {
	info := op.GetInfo(c)
	s, ok := sizeClassFor(param, info.Signed)
	if !ok {
		return dst, outOfRange(info, param)
	}
	v := uint32(param)
	switch s {
	case op.Short:
		dst = append(dst, op.Opcode(c, s, uint8(v)))
	case op.Medium:
		dst = append(dst, op.Opcode(c, s, uint8(v>>8)), byte(v))
	case op.Long:
		dst = append(dst, op.Opcode(c, s, uint8(v>>16)), byte(v), byte(v>>8))
	}
	return dst, nil
}

func outOfRange(info op.Info, param int) error {
	bits := op.MaxSizeClass.Bits()
	if info.Signed {
		return errz.New(errz.ErrEncoding, "%s offset %d outside [%d, %d)",
			info.Name, param, -(1 << (bits - 1)), 1<<(bits-1))
	}
	return errz.New(errz.ErrEncoding, "%s parameter %d outside [0, %d)", info.Name, param, 1<<bits)
}

// Decode decodes the instruction starting at offset.
func Decode(code []byte, offset int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("offset %d outside code of length %d", offset, len(code))
	}
	c, s, nibble := op.Split(code[offset])
	info := op.GetInfo(c)
	param := int(nibble)
	if info.Signed && nibble&8 != 0 {
		param -= 16
	}
	pos := offset + 1
	if s > op.MaxSizeClass {
		return Instruction{}, fmt.Errorf("invalid size class %d at offset %d", s, offset)
	}
	if pos+s.ExtraBytes() > len(code) {
		return Instruction{}, fmt.Errorf("truncated %s at offset %d", info.Name, offset)
	}
	switch s {
	case op.Medium:
		param = param<<8 | int(code[pos])
	case op.Long:
		param = param<<16 | int(code[pos]) | int(code[pos+1])<<8
	}
	pos += s.ExtraBytes()
	instr := Instruction{Offset: offset, Class: c, Param: param}
	if c == op.Push {
		if pos+param > len(code) {
			return Instruction{}, fmt.Errorf("push of %d bytes at offset %d runs past the end", param, offset)
		}
		instr.Data = code[pos : pos+param]
		pos += param
	}
	instr.Size = pos - offset
	return instr, nil
}
