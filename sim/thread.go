package sim

import (
	"encoding/binary"
	"math"
	"time"
)

type waitReason uint8

const (
	waitNone waitReason = iota
	waitCallback
	waitPin
	waitGravity
)

// Thread is one cooperative thread. Its stack lives in the machine memory
// between its stack offset and the next thread's.
type Thread struct {
	m          *Machine
	index      int
	code       []byte
	pc         int
	sp         int
	stackBase  int
	stackEnd   int
	state      State
	suspended  bool
	wake       time.Duration
	waitingFor waitReason
	steps      int
	maxDepth   int
	err        error
}

// Index returns the thread's position in the thread table.
func (t *Thread) Index() int { return t.index }

// State returns the scheduling state.
func (t *Thread) State() State { return t.state }

// PC returns the offset of the next instruction within the thread code.
func (t *Thread) PC() int { return t.pc }

// Depth returns the number of bytes on the stack.
func (t *Thread) Depth() int { return t.sp - t.stackBase }

// MaxDepth returns the deepest the stack has been.
func (t *Thread) MaxDepth() int { return t.maxDepth }

// Steps returns the number of instructions the thread executed.
func (t *Thread) Steps() int { return t.steps }

// Machine returns the machine running the thread.
func (t *Thread) Machine() *Machine { return t.m }

// Yield moves the thread to the back of the run queue.
func (t *Thread) Yield() {
	t.suspended = true
}

// Sleep suspends the thread for d of virtual time.
func (t *Thread) Sleep(d time.Duration) {
	t.state = Sleeping
	t.wake = t.m.now + d
	t.suspended = true
}

// End terminates the thread.
func (t *Thread) End() {
	t.state = Ended
	t.suspended = true
}

func (t *Thread) wait(reason waitReason) {
	t.state = Waiting
	t.waitingFor = reason
	t.suspended = true
}

func (t *Thread) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

func (t *Thread) push(p ...byte) {
	if t.sp+len(p) > t.stackEnd {
		t.fail(ErrStackOverflow)
		return
	}
	copy(t.m.mem[t.sp:], p)
	t.sp += len(p)
	if d := t.Depth(); d > t.maxDepth {
		t.maxDepth = d
	}
}

func (t *Thread) pop(n int) []byte {
	if t.sp-n < t.stackBase {
		t.fail(ErrStackUnderflow)
		return make([]byte, n)
	}
	t.sp -= n
	return t.m.mem[t.sp : t.sp+n]
}

// PopUint8 pops one byte.
func (t *Thread) PopUint8() uint8 {
	return t.pop(1)[0]
}

// PopBool pops a boolean byte.
func (t *Thread) PopBool() bool {
	return t.PopUint8() != 0
}

// PopUint16 pops a little-endian uint16.
func (t *Thread) PopUint16() uint16 {
	return binary.LittleEndian.Uint16(t.pop(2))
}

// PopUint32 pops a little-endian uint32.
func (t *Thread) PopUint32() uint32 {
	return binary.LittleEndian.Uint32(t.pop(4))
}

// PopNumber pops a float.
func (t *Thread) PopNumber() float32 {
	return math.Float32frombits(t.PopUint32())
}

// PopString pops a string handle and returns its text.
func (t *Thread) PopString() string {
	return t.m.Text(t.PopUint32())
}

// PopColour pops the three components of a colour.
func (t *Thread) PopColour() Colour {
	var c Colour
	c.B = t.PopNumber()
	c.G = t.PopNumber()
	c.R = t.PopNumber()
	return c
}

// PushUint8 pushes one byte.
func (t *Thread) PushUint8(v uint8) {
	t.push(v)
}

// PushBool pushes 1 or 0.
func (t *Thread) PushBool(v bool) {
	if v {
		t.push(1)
	} else {
		t.push(0)
	}
}

// PushUint32 pushes a little-endian uint32.
func (t *Thread) PushUint32(v uint32) {
	t.push(binary.LittleEndian.AppendUint32(nil, v)...)
}

// PushNumber pushes a float.
func (t *Thread) PushNumber(v float32) {
	t.PushUint32(math.Float32bits(v))
}

// PushString stores s and pushes its handle.
func (t *Thread) PushString(s string) {
	t.PushUint32(t.m.newString(s))
}

// PushColour pushes red, green and blue.
func (t *Thread) PushColour(c Colour) {
	t.PushNumber(c.R)
	t.PushNumber(c.G)
	t.PushNumber(c.B)
}
