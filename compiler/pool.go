package compiler

import (
	"github.com/micro-blocks/mbc/errz"
)

// ConstantPool collects constant data placed between the thread table and
// the thread code. Identical constants are stored once.
type ConstantPool struct {
	base  int
	buf   []byte
	index map[string]int
}

// NewConstantPool returns a pool whose first byte sits at image offset base.
func NewConstantPool(base int) *ConstantPool {
	return &ConstantPool{base: base, index: map[string]int{}}
}

// Add stores data and returns its absolute image offset.
func (p *ConstantPool) Add(data []byte) (uint16, error) {
	if off, ok := p.index[string(data)]; ok {
		return uint16(off), nil
	}
	off := p.base + len(p.buf)
	if off+len(data) > 0xffff {
		return 0, errz.New(errz.ErrLayout, "constant pool exceeds the 64 KiB image limit")
	}
	p.buf = append(p.buf, data...)
	p.index[string(data)] = off
	return uint16(off), nil
}

// Base returns the image offset of the pool.
func (p *ConstantPool) Base() int {
	return p.base
}

// Len returns the number of bytes stored.
func (p *ConstantPool) Len() int {
	return len(p.buf)
}

// Bytes returns the pool contents.
func (p *ConstantPool) Bytes() []byte {
	return p.buf
}
