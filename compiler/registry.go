package compiler

import (
	"sort"

	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
)

// Generator produces code for one node. Statement generators return a
// fragment of type Void.
type Generator func(n *block.Node, ctx *Context) (TypedCode, error)

// Extractor runs during the first pass and registers the threads a node
// starts, such as event handlers.
type Extractor func(n *block.Node, ctx *Context) error

// InitGenerator produces setup code that runs once in the init thread.
type InitGenerator func(n *block.Node, ctx *Context) (bytecode.Segment, error)

// Registration describes how one kind of block is compiled.
type Registration struct {
	// Kind is the block type name, e.g. "math_arithmetic".
	Kind string
	// Doc is a short description shown by the CLI.
	Doc string
	// Returns is the declared result type. Any disables the check, which
	// is needed by blocks whose type depends on their inputs.
	Returns Type
	// Generate is nil for blocks that only start threads.
	Generate Generator
	// Extract is optional.
	Extract Extractor
	// Init is optional.
	Init InitGenerator
}

// Registry maps block kinds to their registrations.
type Registry struct {
	entries map[string]Registration
}

// NewRegistry returns a registry holding the given registrations.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{entries: make(map[string]Registration, len(regs))}
	for _, reg := range regs {
		r.Register(reg)
	}
	return r
}

// Register adds or replaces the registration for reg.Kind.
func (r *Registry) Register(reg Registration) {
	r.entries[reg.Kind] = reg
}

// Lookup returns the registration for a block kind.
func (r *Registry) Lookup(kind string) (Registration, bool) {
	reg, ok := r.entries[kind]
	return reg, ok
}

// Kinds returns every registered kind in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.entries))
	for k := range r.entries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Clone returns a copy that can be extended without affecting r.
func (r *Registry) Clone() *Registry {
	c := &Registry{entries: make(map[string]Registration, len(r.entries))}
	for k, v := range r.entries {
		c.entries[k] = v
	}
	return c
}

func registrations(groups ...[]Registration) []Registration {
	var all []Registration
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

// DefaultRegistry returns a registry with every built-in block kind.
func DefaultRegistry() *Registry {
	return NewRegistry(registrations(
		basicBlocks,
		controlBlocks,
		logicBlocks,
		mathBlocks,
		variableBlocks,
		pinBlocks,
		sensorBlocks,
		textBlocks,
		colourBlocks,
		guiBlocks,
		rgbLedBlocks,
		rgbMatrixBlocks,
	)...)
}
