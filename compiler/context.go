package compiler

import (
	"errors"
	"strings"

	"github.com/micro-blocks/mbc/analysis"
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
	"github.com/rs/zerolog"
)

// Context is the state shared by every generator during one compilation.
// A Context is not safe for concurrent use.
type Context struct {
	arena      *bytecode.Arena
	registry   *Registry
	program    *block.Program
	vars       *Variables
	pool       *ConstantPool
	deltas     *native.Deltas
	data       map[string]any
	threads    []*thread
	extracting bool
	expected   Type
	nextID     uint16
	checks     bool
	log        zerolog.Logger
}

func newContext(prog *block.Program, vars *Variables, cfg *config) *Context {
	return &Context{
		arena:    bytecode.NewArena(),
		registry: cfg.registry,
		program:  prog,
		vars:     vars,
		deltas:   native.NewDeltas(),
		data:     map[string]any{},
		expected: Void,
		checks:   cfg.fragmentChecks,
		log:      cfg.logger,
	}
}

// Arena returns the arena holding all generated code.
func (c *Context) Arena() *bytecode.Arena {
	return c.arena
}

// Start opens a new segment builder.
func (c *Context) Start() *bytecode.Builder {
	return c.arena.Start()
}

// Compose concatenates segments.
func (c *Context) Compose(segs ...bytecode.Segment) bytecode.Segment {
	return c.arena.Compose(segs...)
}

// Size returns the byte size of a segment.
func (c *Context) Size(s bytecode.Segment) int {
	return c.arena.Size(s)
}

// Typed ends b and pairs the resulting segment with t.
func (c *Context) Typed(b *bytecode.Builder, t Type) (TypedCode, error) {
	seg, err := b.End()
	if err != nil {
		return TypedCode{}, err
	}
	return TypedCode{Code: seg, Type: t}, nil
}

// Deltas returns the stack deltas observed so far.
func (c *Context) Deltas() *native.Deltas {
	return c.deltas
}

// Logger returns the compilation logger.
func (c *Context) Logger() *zerolog.Logger {
	return &c.log
}

// Expected returns the type the enclosing socket asks for. It is Any when
// the parent accepts any type and Void in statement position.
func (c *Context) Expected() Type {
	return c.expected
}

// Generate dispatches n to its registered generator.
func (c *Context) Generate(n *block.Node) (TypedCode, error) {
	reg, ok := c.registry.Lookup(n.Kind)
	if !ok {
		return TypedCode{}, errz.New(errz.ErrStructural, "unknown block kind %q", n.Kind).WithNode(n.ID, n.Kind)
	}
	if reg.Generate == nil {
		return TypedCode{}, errz.New(errz.ErrStructural, "block %s cannot be placed inside another block", n.Kind).
			WithNode(n.ID, n.Kind)
	}
	if c.arena.Open() {
		panic(errz.New(errz.ErrBuilder, "generator for %s entered with a segment open", n.Kind).WithNode(n.ID, n.Kind))
	}
	tc, err := reg.Generate(n, c)
	if err != nil {
		return TypedCode{}, nodeError(n, err)
	}
	if c.arena.Open() {
		panic(errz.New(errz.ErrBuilder, "generator for %s returned with a segment open", n.Kind).WithNode(n.ID, n.Kind))
	}
	if reg.Returns != Any && tc.Type != reg.Returns {
		return TypedCode{}, errz.New(errz.ErrType, "block declared to produce %s produced %s", reg.Returns, tc.Type).
			WithNode(n.ID, n.Kind)
	}
	if c.checks {
		if err := c.checkFragment(tc); err != nil {
			return TypedCode{}, nodeError(n, err)
		}
	}
	return tc, nil
}

// checkFragment verifies that a fragment leaves exactly one value of its
// type on the stack.
func (c *Context) checkFragment(tc TypedCode) error {
	res, err := analysis.Analyze(c.arena.Bytes(tc.Code), c.deltas)
	if err != nil {
		return err
	}
	if res.Exits && res.ExitDepth != tc.Type.Size() {
		return errz.New(errz.ErrType, "fragment typed %s leaves %d bytes on the stack, want %d",
			tc.Type, res.ExitDepth, tc.Type.Size())
	}
	return nil
}

// Expr generates n as a value of type want. An empty socket (n == nil)
// produces the zero value of want. Passing Any accepts whatever n produces.
func (c *Context) Expr(n *block.Node, want Type) (TypedCode, error) {
	if n == nil {
		return c.Zero(want)
	}
	saved := c.expected
	c.expected = want
	defer func() { c.expected = saved }()

	tc, err := c.Generate(n)
	if err != nil {
		return TypedCode{}, err
	}
	if want != Any && tc.Type != want {
		return TypedCode{}, errz.New(errz.ErrType, "expected a %s value, got %s", want, tc.Type).WithNode(n.ID, n.Kind)
	}
	return tc, nil
}

// Input generates the block connected to a named input as a value of type want.
func (c *Context) Input(n *block.Node, name string, want Type) (TypedCode, error) {
	return c.Expr(n.Input(name), want)
}

// Infer generates the block connected to a named input with whatever type
// it produces. An empty socket yields the zero value of fallback.
func (c *Context) Infer(n *block.Node, name string, fallback Type) (TypedCode, error) {
	child := n.Input(name)
	if child == nil {
		return c.Zero(fallback)
	}
	return c.Expr(child, Any)
}

// Sequence generates a statement chain starting at first. Every node in the
// chain must be a statement. A nil chain yields the empty segment.
func (c *Context) Sequence(first *block.Node) (bytecode.Segment, error) {
	saved := c.expected
	c.expected = Void
	defer func() { c.expected = saved }()

	var segs []bytecode.Segment
	for _, n := range first.Chain() {
		tc, err := c.Generate(n)
		if err != nil {
			return bytecode.Empty, err
		}
		if tc.Type != Void {
			return bytecode.Empty, errz.New(errz.ErrType, "a %s value cannot be used as a statement", tc.Type).
				WithNode(n.ID, n.Kind)
		}
		segs = append(segs, tc.Code)
	}
	return c.arena.Compose(segs...), nil
}

// Statements generates the statement chain connected to a named input.
func (c *Context) Statements(n *block.Node, name string) (bytecode.Segment, error) {
	return c.Sequence(n.Input(name))
}

// Zero returns the code for the default value of t.
func (c *Context) Zero(t Type) (TypedCode, error) {
	switch t {
	case Void:
		return TypedCode{Type: Void}, nil
	case Boolean:
		b := c.Start()
		b.PushBool(false)
		return c.Typed(b, Boolean)
	case Number:
		b := c.Start()
		b.PushFloat32(0)
		return c.Typed(b, Number)
	case Colour:
		b := c.Start()
		b.PushFloat32(0)
		b.PushFloat32(0)
		b.PushFloat32(0)
		return c.Typed(b, Colour)
	case String:
		return c.LoadString("")
	}
	return TypedCode{}, errz.New(errz.ErrType, "cannot determine the type of an empty input")
}

// SetData attaches generator specific data to a node.
func (c *Context) SetData(n *block.Node, v any) {
	c.data[n.ID] = v
}

// Data returns the data attached to a node.
func (c *Context) Data(n *block.Node) any {
	return c.data[n.ID]
}

// DataByID returns the data attached to the node with the given id. It is
// used by blocks that refer to another block, e.g. a configuration block.
func (c *Context) DataByID(id string) (any, bool) {
	v, ok := c.data[id]
	return v, ok
}

// NextID hands out device resource ids in increasing order.
func (c *Context) NextID() uint16 {
	id := c.nextID
	c.nextID++
	return id
}

// AddConstant stores data in the constant pool and returns its image offset.
func (c *Context) AddConstant(data []byte) (uint16, error) {
	if c.pool == nil {
		return 0, errz.New(errz.ErrBuilder, "constant pool is not available during thread extraction")
	}
	return c.pool.Add(data)
}

// AddString stores a NUL terminated string in the constant pool.
func (c *Context) AddString(s string) (uint16, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return 0, errz.New(errz.ErrStructural, "text contains a NUL character")
	}
	return c.AddConstant(append([]byte(s), 0))
}

// LoadString returns code that loads a constant string.
func (c *Context) LoadString(s string) (TypedCode, error) {
	off, err := c.AddString(s)
	if err != nil {
		return TypedCode{}, err
	}
	return c.Call(native.TextLoad, String, U16(off))
}

// Variable resolves a variable reference by id or name.
func (c *Context) Variable(ref string) (Variable, error) {
	v, ok := c.vars.Lookup(ref)
	if !ok {
		return Variable{}, errz.New(errz.ErrStructural, "unknown variable %q", ref)
	}
	return v, nil
}

// nodeError attaches n to err, converting foreign errors into structural
// compile errors.
func nodeError(n *block.Node, err error) error {
	var ce *errz.CompileError
	if errors.As(err, &ce) {
		ce.WithNode(n.ID, n.Kind)
		return err
	}
	return errz.New(errz.ErrStructural, "%s", err.Error()).WithCause(err).WithNode(n.ID, n.Kind)
}
