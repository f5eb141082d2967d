package sim

import (
	"time"

	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/native"
)

// StepMode controls when OnStep callbacks are triggered.
type StepMode uint8

const (
	// StepAll calls OnStep for every instruction.
	StepAll StepMode = iota

	// StepNone never calls OnStep. Use for observers that only need calls.
	StepNone

	// StepSampled calls OnStep every N instructions.
	StepSampled
)

// ObserverConfig specifies what events an observer wants to receive.
type ObserverConfig struct {
	// StepMode controls OnStep callback frequency.
	StepMode StepMode

	// SampleInterval is the number of instructions between OnStep calls
	// when StepMode is StepSampled. Values <= 0 are treated as 1.
	SampleInterval int

	// ObserveCalls enables OnCall callbacks.
	ObserveCalls bool
}

// NewObserverConfig creates a config that observes calls.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: 1000,
		ObserveCalls:   true,
	}
}

// NormalizeConfig validates and clamps config values.
func NormalizeConfig(cfg ObserverConfig) ObserverConfig {
	if cfg.StepMode == StepSampled && cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 1
	}
	return cfg
}

// Observer receives execution events from a Machine. Methods are called
// synchronously; returning false halts the machine with ErrHalted.
type Observer interface {
	// Config is called once when the machine is created.
	Config() ObserverConfig

	// OnStep is called before an instruction executes.
	OnStep(event StepEvent) bool

	// OnCall is called before a native function runs.
	OnCall(event CallEvent) bool
}

// StepEvent describes an instruction about to execute.
type StepEvent struct {
	// Thread is the index of the running thread.
	Thread int

	// Offset is the instruction's offset from the start of the thread code.
	Offset int

	// Instruction is the decoded instruction.
	Instruction bytecode.Instruction

	// StackDepth is the number of bytes on the thread's stack.
	StackDepth int

	// Clock is the virtual time of the machine.
	Clock time.Duration
}

// CallEvent describes a native function call.
type CallEvent struct {
	Thread     int
	Offset     int
	Function   native.Function
	StackDepth int
}

// NoOpObserver is an Observer that does nothing. Embed it to implement only
// the methods you need.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig {
	return NewObserverConfig(StepAll)
}

func (NoOpObserver) OnStep(StepEvent) bool { return true }
func (NoOpObserver) OnCall(CallEvent) bool { return true }

var _ Observer = NoOpObserver{}
