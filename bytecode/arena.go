package bytecode

import (
	"encoding/binary"
	"math"

	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/op"
)

// Segment is a handle to code held by an Arena. The zero value is the empty
// segment. Segments are immutable once returned by Builder.End.
type Segment int32

// Empty is the segment of size zero.
const Empty Segment = 0

type segmentNode struct {
	start    int
	end      int
	children []Segment
	size     int
}

// Arena owns the bytes of every segment created during one compilation.
type Arena struct {
	buf   []byte
	nodes []segmentNode
	open  *Builder
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{nodes: []segmentNode{{}}}
}

// Start opens a builder. Only one builder may be open at a time.
func (a *Arena) Start() *Builder {
	if a.open != nil {
		panic(errz.New(errz.ErrBuilder, "segment started while another segment is open"))
	}
	b := &Builder{arena: a, mark: len(a.buf)}
	a.open = b
	return b
}

// Compose returns a segment that is the concatenation of segs.
func (a *Arena) Compose(segs ...Segment) Segment {
	b := a.Start()
	b.Segment(segs...)
	seg, _ := b.End()
	return seg
}

// Open reports whether a builder is currently open.
func (a *Arena) Open() bool {
	return a.open != nil
}

// Len returns the number of bytes held by the arena.
func (a *Arena) Len() int {
	return len(a.buf)
}

// Size returns the number of bytes the segment expands to.
func (a *Arena) Size(s Segment) int {
	return a.node(s).size
}

// Bytes linearizes the segment into a newly allocated slice.
func (a *Arena) Bytes(s Segment) []byte {
	return a.AppendBytes(make([]byte, 0, a.Size(s)), s)
}

// AppendBytes appends the linearized segment to dst.
func (a *Arena) AppendBytes(dst []byte, s Segment) []byte {
	n := a.node(s)
	if n.children == nil {
		return append(dst, a.buf[n.start:n.end]...)
	}
	for _, child := range n.children {
		dst = a.AppendBytes(dst, child)
	}
	return dst
}

func (a *Arena) node(s Segment) *segmentNode {
	if s < 0 || int(s) >= len(a.nodes) {
		panic(errz.New(errz.ErrBuilder, "segment %d does not belong to this arena", s))
	}
	return &a.nodes[s]
}

func (a *Arena) add(n segmentNode) Segment {
	a.nodes = append(a.nodes, n)
	return Segment(len(a.nodes) - 1)
}

// Builder appends bytes and spliced segments to the open scope of an arena.
// Encoding errors are sticky: once one occurs, later instructions are
// ignored and End reports the first error.
type Builder struct {
	arena  *Arena
	parts  []Segment
	mark   int
	size   int
	err    error
	closed bool
}

func (b *Builder) check() {
	if b.closed {
		panic(errz.New(errz.ErrBuilder, "write to a segment that has already been ended"))
	}
}

func (b *Builder) write(p ...byte) {
	b.check()
	b.arena.buf = append(b.arena.buf, p...)
	b.size += len(p)
}

// flush closes the current run of appended bytes as a leaf part.
func (b *Builder) flush() {
	a := b.arena
	if len(a.buf) > b.mark {
		leaf := a.add(segmentNode{start: b.mark, end: len(a.buf), size: len(a.buf) - b.mark})
		b.parts = append(b.parts, leaf)
	}
	b.mark = len(a.buf)
}

// Uint8 appends a raw byte.
func (b *Builder) Uint8(v uint8) {
	b.write(v)
}

// Uint16 appends a raw little-endian uint16.
func (b *Builder) Uint16(v uint16) {
	b.write(byte(v), byte(v>>8))
}

// Uint32 appends a raw little-endian uint32.
func (b *Builder) Uint32(v uint32) {
	b.write(binary.LittleEndian.AppendUint32(nil, v)...)
}

// Float32 appends a raw little-endian IEEE 754 float.
func (b *Builder) Float32(v float32) {
	b.Uint32(math.Float32bits(v))
}

// Bytes appends raw bytes.
func (b *Builder) Bytes(p []byte) {
	b.write(p...)
}

func (b *Builder) instruction(c op.Class, param int) bool {
	b.check()
	if b.err != nil {
		return false
	}
	a := b.arena
	buf, err := AppendInstruction(a.buf, c, param)
	if err != nil {
		b.err = err
		return false
	}
	b.size += len(buf) - len(a.buf)
	a.buf = buf
	return true
}

// Push appends a push instruction followed by its literal bytes.
func (b *Builder) Push(data []byte) {
	if b.instruction(op.Push, len(data)) {
		b.write(data...)
	}
}

// PushUint8 pushes one byte.
func (b *Builder) PushUint8(v uint8) {
	b.Push([]byte{v})
}

// PushBool pushes 1 for true and 0 for false.
func (b *Builder) PushBool(v bool) {
	if v {
		b.PushUint8(1)
	} else {
		b.PushUint8(0)
	}
}

// PushUint16 pushes a little-endian uint16.
func (b *Builder) PushUint16(v uint16) {
	b.Push([]byte{byte(v), byte(v >> 8)})
}

// PushFloat32 pushes a little-endian float.
func (b *Builder) PushFloat32(v float32) {
	b.Push(binary.LittleEndian.AppendUint32(nil, math.Float32bits(v)))
}

// Jump appends an unconditional jump.
func (b *Builder) Jump(offset int) {
	b.instruction(op.Jump, offset)
}

// JumpIfZero appends a jump taken when the popped byte is zero.
func (b *Builder) JumpIfZero(offset int) {
	b.instruction(op.JumpIfZero, offset)
}

// Call appends a call of the given native function number.
func (b *Builder) Call(fn int) {
	b.instruction(op.Call, fn)
}

// Segment splices previously ended segments by reference.
func (b *Builder) Segment(segs ...Segment) {
	b.check()
	b.flush()
	for _, s := range segs {
		size := b.arena.Size(s)
		if size == 0 {
			continue
		}
		b.parts = append(b.parts, s)
		b.size += size
	}
}

// Size returns the number of bytes added so far.
func (b *Builder) Size() int {
	return b.size
}

// Err returns the first encoding error, if any.
func (b *Builder) Err() error {
	return b.err
}

// End closes the builder and returns the composed segment. The arena is
// released even when an encoding error is returned.
func (b *Builder) End() (Segment, error) {
	b.check()
	b.flush()
	b.closed = true
	b.arena.open = nil
	if b.err != nil {
		return Empty, b.err
	}
	switch len(b.parts) {
	case 0:
		return Empty, nil
	case 1:
		return b.parts[0], nil
	default:
		return b.arena.add(segmentNode{children: b.parts, size: b.size}), nil
	}
}
