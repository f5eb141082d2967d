// Package sim executes compiled images on the host.
//
// A Machine behaves like the device runtime. All threads share one byte
// addressed memory holding the variables followed by every thread's stack
// region. Threads run cooperatively: a thread keeps the processor until a
// native function suspends it or its time slice runs out. Time is virtual;
// when no thread is runnable the clock jumps to the next delay that expires.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
	"github.com/micro-blocks/mbc/op"
	"github.com/rs/zerolog"
)

var (
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
	ErrUnknownFunction = errors.New("unknown native function")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrHalted          = errors.New("execution halted by observer")
)

// State is the scheduling state of a thread.
type State uint8

const (
	Runnable State = iota
	Sleeping
	Waiting
	Ended
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Sleeping:
		return "sleeping"
	case Waiting:
		return "waiting"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Handler implements a native function. It pops its arguments from the
// thread's stack and pushes its results.
type Handler func(t *Thread) error

// Machine runs the threads of one image.
type Machine struct {
	img      *bytecode.Image
	mem      []byte
	threads  []*Thread
	ready    []*Thread
	handlers map[native.Function]Handler
	observer Observer
	obsCfg   ObserverConfig
	log      zerolog.Logger
	out      io.Writer

	timeSlice int
	stepLimit int
	steps     int
	seed      int64
	rand      *rand.Rand
	now       time.Duration

	strings    map[uint32]string
	nextHandle uint32
	triggered  map[int]bool

	device
}

// New prepares the threads of img. Nothing runs until Run or RunFor is
// called.
func New(img *bytecode.Image, opts ...Option) *Machine {
	m := &Machine{
		img:        img,
		mem:        make([]byte, img.MemorySize),
		handlers:   defaultHandlers(),
		log:        zerolog.Nop(),
		timeSlice:  DefaultTimeSlice,
		stepLimit:  DefaultStepLimit,
		seed:       1,
		strings:    map[uint32]string{},
		nextHandle: 1,
		triggered:  map[int]bool{},
		device:     newDevice(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.observer != nil {
		m.obsCfg = NormalizeConfig(m.observer.Config())
	}
	m.rand = rand.New(rand.NewSource(m.seed))
	for i, entry := range img.Threads {
		t := &Thread{
			m:         m,
			index:     i,
			code:      img.ThreadCode(i),
			stackBase: int(entry.StackOffset),
			stackEnd:  int(entry.StackOffset) + img.StackSize(i),
		}
		t.sp = t.stackBase
		m.threads = append(m.threads, t)
		m.ready = append(m.ready, t)
	}
	return m
}

// Load parses and prepares a binary image.
func Load(image []byte, opts ...Option) (*Machine, error) {
	img, err := bytecode.ParseImage(image)
	if err != nil {
		return nil, err
	}
	return New(img, opts...), nil
}

// Now returns the virtual time elapsed since the machine started.
func (m *Machine) Now() time.Duration {
	return m.now
}

// Steps returns the number of instructions executed so far.
func (m *Machine) Steps() int {
	return m.steps
}

// Thread returns thread i.
func (m *Machine) Thread(i int) *Thread {
	return m.threads[i]
}

// Threads returns the number of threads.
func (m *Machine) Threads() int {
	return len(m.threads)
}

// Memory returns the device memory: variables followed by the stacks.
func (m *Machine) Memory() []byte {
	return m.mem
}

// Run executes until every thread has ended or waits for an event. Delays
// are skipped by advancing the clock. A program that never settles, like a
// forever loop, runs into the step limit; use RunFor for those.
func (m *Machine) Run(ctx context.Context) error {
	return m.run(ctx, 0, false)
}

// RunFor executes until the clock has advanced by d. The clock reaches the
// deadline even when every thread is waiting or has ended.
func (m *Machine) RunFor(ctx context.Context, d time.Duration) error {
	return m.run(ctx, m.now+d, true)
}

func (m *Machine) run(ctx context.Context, deadline time.Duration, bounded bool) error {
	start := m.steps
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(m.ready) == 0 {
			t := m.nextSleeper()
			if t == nil {
				if bounded {
					m.now = deadline
				}
				return nil
			}
			if bounded && t.wake > deadline {
				m.now = deadline
				return nil
			}
			m.now = t.wake
			m.wake(t)
			continue
		}
		t := m.ready[0]
		m.ready = m.ready[1:]
		if err := m.slice(t); err != nil {
			return fmt.Errorf("thread %d: %w", t.index, err)
		}
		if m.stepLimit > 0 && m.steps-start > m.stepLimit {
			return ErrStepLimit
		}
	}
}

func (m *Machine) nextSleeper() *Thread {
	var next *Thread
	for _, t := range m.threads {
		if t.state == Sleeping && (next == nil || t.wake < next.wake) {
			next = t
		}
	}
	return next
}

func (m *Machine) wake(t *Thread) {
	t.state = Runnable
	t.waitingFor = waitNone
	m.ready = append(m.ready, t)
}

// slice runs t until it suspends or its time slice is used up.
func (m *Machine) slice(t *Thread) error {
	t.suspended = false
	for n := 0; n < m.timeSlice && !t.suspended; n++ {
		if err := m.step(t); err != nil {
			return err
		}
	}
	if t.state == Runnable {
		m.ready = append(m.ready, t)
	}
	m.log.Debug().
		Int("thread", t.index).
		Stringer("state", t.state).
		Int("pc", t.pc).
		Dur("clock", m.now).
		Msg("thread suspended")
	return nil
}

func (m *Machine) step(t *Thread) error {
	if t.pc >= len(t.code) {
		return fmt.Errorf("ran past the end of its code at offset %d", t.pc)
	}
	instr, err := bytecode.Decode(t.code, t.pc)
	if err != nil {
		return err
	}
	if m.observer != nil && m.observeStep() {
		if !m.observer.OnStep(StepEvent{
			Thread:      t.index,
			Offset:      t.pc,
			Instruction: instr,
			StackDepth:  t.Depth(),
			Clock:       m.now,
		}) {
			return ErrHalted
		}
	}
	m.steps++
	t.steps++
	switch instr.Class {
	case op.Push:
		t.push(instr.Data...)
		t.pc = instr.End()
	case op.Jump:
		t.pc = instr.Target()
	case op.JumpIfZero:
		if t.PopUint8() == 0 {
			t.pc = instr.Target()
		} else {
			t.pc = instr.End()
		}
	case op.Call:
		fn := native.Function(instr.Param)
		if m.observer != nil && m.obsCfg.ObserveCalls {
			if !m.observer.OnCall(CallEvent{Thread: t.index, Offset: t.pc, Function: fn, StackDepth: t.Depth()}) {
				return ErrHalted
			}
		}
		h, ok := m.handlers[fn]
		if !ok {
			return fmt.Errorf("%w %d at offset %d", ErrUnknownFunction, instr.Param, t.pc)
		}
		t.pc = instr.End()
		if err := h(t); err != nil {
			return fmt.Errorf("%s: %w", fn, err)
		}
	}
	if t.err != nil {
		return fmt.Errorf("offset %d (%s): %w", instr.Offset, instr, t.err)
	}
	if t.pc < 0 || t.pc > len(t.code) {
		return fmt.Errorf("jump to %d outside code of length %d", t.pc, len(t.code))
	}
	return nil
}

func (m *Machine) observeStep() bool {
	switch m.obsCfg.StepMode {
	case StepAll:
		return true
	case StepSampled:
		return m.steps%m.obsCfg.SampleInterval == 0
	default:
		return false
	}
}

// Trigger signals the callback thread i. The thread resumes once it is
// ready for a callback; a trigger that arrives earlier is remembered.
func (m *Machine) Trigger(i int) error {
	if i < 0 || i >= len(m.threads) {
		return fmt.Errorf("no thread %d", i)
	}
	t := m.threads[i]
	if t.state == Waiting && t.waitingFor == waitCallback {
		m.wake(t)
		return nil
	}
	m.triggered[i] = true
	return nil
}

// String returns the text behind a string handle.
func (m *Machine) Text(handle uint32) string {
	return m.strings[handle]
}

func (m *Machine) newString(s string) uint32 {
	h := m.nextHandle
	m.nextHandle++
	m.strings[h] = s
	return h
}

// States returns the state of every thread, ordered by index.
func (m *Machine) States() []State {
	states := make([]State, len(m.threads))
	for i, t := range m.threads {
		states[i] = t.state
	}
	return states
}

// sortedKeys returns the keys of a map keyed by device id in order.
func sortedKeys[V any](m map[uint16]V) []uint16 {
	keys := make([]uint16, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
