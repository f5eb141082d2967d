// Package compiler translates a block program into a binary image for the
// device runtime.
//
// # Two-Pass Compilation
//
// Blocks such as event handlers and buttons start threads of their own, and
// the code that refers to a thread needs its index. Compilation is therefore
// split in two passes.
//
// Pass 1: extraction
//
// Walks the block tree and asks every block with an extractor to register
// the threads it starts. Configuration blocks with init generators are
// collected into an init thread that always becomes thread 0. Extractors
// may attach data to their node, such as thread indexes or resource ids,
// for the generators to pick up later. No code is generated in this pass.
//
// Pass 2: generation
//
// Calls each thread's generator in index order. Generators build code
// bottom-up: a block generates its inputs first, then opens a segment and
// splices the finished child segments into it. Segments are never copied
// while composing; bytes are materialized only when the image is linked.
// After a thread is generated the analyzer computes its peak stack depth.
//
// # Types
//
// Every fragment carries a static type. A socket asks for the type it
// needs and an empty socket is filled with the zero value of that type.
// Statements have type Void and leave nothing on the stack.
//
// # Image
//
// The linked image holds a header, the thread table, the constant pool and
// the code of every thread. See package bytecode for the exact layout.
package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
)

// Result is the output of a successful compilation.
type Result struct {
	// Image is the binary image to upload to the device.
	Image []byte
	// Header is the image header as written.
	Header bytecode.Header
	// Threads describes every thread in index order.
	Threads []ThreadInfo
	// Variables lists the variable region layout.
	Variables []Variable
	// PoolSize is the size of the constant pool in bytes.
	PoolSize int
	// Deltas holds the stack delta of every native function called.
	Deltas *native.Deltas
}

// Compile compiles prog. Either a complete image is returned or an error;
// a failed compilation never yields a partial image.
func Compile(prog *block.Program, opts ...Option) (res *Result, err error) {
	cfg := newConfig(opts...)

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*errz.CompileError)
			if !ok {
				panic(r)
			}
			res, err = nil, ce
		}
	}()

	if err := Validate(prog, cfg.registry); err != nil {
		return nil, err
	}
	vars, err := AllocateVariables(prog.Variables)
	if err != nil {
		return nil, err
	}
	ctx := newContext(prog, vars, cfg)
	if err := ctx.extract(); err != nil {
		return nil, err
	}
	ctx.pool = NewConstantPool(bytecode.PoolOffset(len(ctx.threads)))
	if err := ctx.generate(); err != nil {
		return nil, err
	}
	image, header, err := ctx.link()
	if err != nil {
		return nil, err
	}

	res = &Result{
		Image:     image,
		Header:    header,
		Variables: vars.All(),
		PoolSize:  ctx.pool.Len(),
		Deltas:    ctx.deltas,
	}
	for _, t := range ctx.threads {
		res.Threads = append(res.Threads, t.info())
	}
	cfg.logger.Info().
		Int("threads", len(res.Threads)).
		Int("image_size", len(image)).
		Int("memory_size", int(header.MemorySize)).
		Msg("compiled program")
	return res, nil
}

// link assigns code and stack offsets to every thread and serializes the
// image.
func (c *Context) link() ([]byte, bytecode.Header, error) {
	codeOffset := c.pool.Base() + c.pool.Len()
	stackOffset := c.vars.Size()
	entries := make([]bytecode.ThreadEntry, len(c.threads))
	for i, t := range c.threads {
		if codeOffset > 0xffff {
			return nil, bytecode.Header{}, errz.New(errz.ErrLayout,
				"thread %d starts at image offset %d, beyond the 16 bit range", i, codeOffset)
		}
		t.codeOffset = codeOffset
		t.stackOffset = stackOffset
		entries[i] = bytecode.ThreadEntry{CodeOffset: uint16(codeOffset), StackOffset: uint16(stackOffset)}
		codeOffset += t.size
		stackOffset += t.maxDepth
	}
	if stackOffset > 0xffff {
		return nil, bytecode.Header{}, errz.New(errz.ErrLayout,
			"program needs %d bytes of device memory, beyond the 16 bit range", stackOffset)
	}
	header := bytecode.Header{
		Version:     bytecode.FormatVersion,
		ThreadCount: uint16(len(c.threads)),
		MemorySize:  uint16(stackOffset),
	}

	b := c.arena.Start()
	bytecode.WriteHeader(b, header, entries)
	b.Bytes(c.pool.Bytes())
	for _, t := range c.threads {
		b.Segment(t.code)
	}
	seg, err := b.End()
	if err != nil {
		return nil, bytecode.Header{}, err
	}
	return c.arena.Bytes(seg), header, nil
}
