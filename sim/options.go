package sim

import (
	"io"

	"github.com/micro-blocks/mbc/native"
	"github.com/rs/zerolog"
)

// DefaultTimeSlice is the number of instructions a thread runs before it
// is moved to the back of the run queue.
const DefaultTimeSlice = 1000

// DefaultStepLimit bounds the total number of instructions of one Run.
const DefaultStepLimit = 10_000_000

// Option is a configuration function for a Machine.
type Option func(*Machine)

// WithObserver sets an observer for execution events.
func WithObserver(observer Observer) Option {
	return func(m *Machine) {
		m.observer = observer
	}
}

// WithHandler replaces the implementation of a native function.
func WithHandler(fn native.Function, h Handler) Option {
	return func(m *Machine) {
		m.handlers[fn] = h
	}
}

// WithTimeSlice sets how many instructions a thread may run before another
// runnable thread gets its turn.
func WithTimeSlice(steps int) Option {
	return func(m *Machine) {
		if steps > 0 {
			m.timeSlice = steps
		}
	}
}

// WithStepLimit sets the number of instructions after which Run gives up
// with ErrStepLimit. Zero disables the limit.
func WithStepLimit(steps int) Option {
	return func(m *Machine) {
		m.stepLimit = steps
	}
}

// WithSeed seeds the random number generator used by the random natives.
func WithSeed(seed int64) Option {
	return func(m *Machine) {
		m.seed = seed
	}
}

// WithOutput copies every printed line to w.
func WithOutput(w io.Writer) Option {
	return func(m *Machine) {
		m.out = w
	}
}

// WithLogger sets the logger for scheduling events.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Machine) {
		m.log = log
	}
}
