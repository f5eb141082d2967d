package compiler

import (
	"github.com/micro-blocks/mbc/analysis"
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/bytecode"
	"github.com/micro-blocks/mbc/errz"
	"github.com/micro-blocks/mbc/native"
)

// ThreadFunc generates the complete code of a thread. It is registered
// during extraction and called during generation, after every thread index
// is known.
type ThreadFunc func(ctx *Context) (bytecode.Segment, error)

// InitKind names the thread holding the code of init generators.
const InitKind = "init"

type thread struct {
	index       int
	origin      *block.Node
	gen         ThreadFunc
	code        bytecode.Segment
	size        int
	maxDepth    int
	codeOffset  int
	stackOffset int
}

func (t *thread) info() ThreadInfo {
	ti := ThreadInfo{
		Index:       t.index,
		Kind:        InitKind,
		CodeOffset:  t.codeOffset,
		CodeSize:    t.size,
		StackOffset: t.stackOffset,
		StackSize:   t.maxDepth,
	}
	if t.origin != nil {
		ti.Kind = t.origin.Kind
		ti.NodeID = t.origin.ID
	}
	return ti
}

// ThreadInfo describes one compiled thread.
type ThreadInfo struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	NodeID string `json:"node_id,omitempty"`
	// CodeOffset is the image offset of the first instruction.
	CodeOffset int `json:"code_offset"`
	CodeSize   int `json:"code_size"`
	// StackOffset is the device memory offset of the stack region.
	StackOffset int `json:"stack_offset"`
	// StackSize is the peak stack depth found by the analyzer.
	StackSize int `json:"stack_size"`
}

// AddThread registers a thread started by origin and returns its index.
// It may only be called by extractors. Origin is nil for threads not
// started by a single block.
func (c *Context) AddThread(origin *block.Node, gen ThreadFunc) (uint16, error) {
	if !c.extracting {
		return 0, errz.New(errz.ErrBuilder, "threads can only be added during extraction")
	}
	if len(c.threads) >= bytecode.NoThread {
		return 0, errz.New(errz.ErrLayout, "more than %d threads", bytecode.NoThread-1)
	}
	t := &thread{index: len(c.threads), origin: origin, gen: gen}
	c.threads = append(c.threads, t)
	return uint16(t.index), nil
}

// extract runs the first pass. Configuration blocks are collected into the
// init thread, which becomes thread 0, then every extractor registers its
// threads in tree order.
func (c *Context) extract() error {
	c.extracting = true
	defer func() { c.extracting = false }()

	var inits []*block.Node
	c.program.Walk(func(n *block.Node) bool {
		if reg, ok := c.registry.Lookup(n.Kind); ok && reg.Init != nil {
			inits = append(inits, n)
		}
		return true
	})
	if len(inits) > 0 {
		if _, err := c.AddThread(nil, initThread(inits)); err != nil {
			return err
		}
	}

	var err error
	c.program.Walk(func(n *block.Node) bool {
		reg, ok := c.registry.Lookup(n.Kind)
		if !ok || reg.Extract == nil {
			return true
		}
		if e := reg.Extract(n, c); e != nil {
			err = nodeError(n, e)
			return false
		}
		return true
	})
	return err
}

func initThread(nodes []*block.Node) ThreadFunc {
	return func(ctx *Context) (bytecode.Segment, error) {
		segs := make([]bytecode.Segment, 0, len(nodes)+1)
		for _, n := range nodes {
			reg, _ := ctx.registry.Lookup(n.Kind)
			seg, err := reg.Init(n, ctx)
			if err != nil {
				return bytecode.Empty, nodeError(n, err)
			}
			segs = append(segs, seg)
		}
		end, err := ctx.Statement(native.BasicEndThread)
		if err != nil {
			return bytecode.Empty, err
		}
		segs = append(segs, end.Code)
		return ctx.Compose(segs...), nil
	}
}

// generate runs the second pass: each thread's code is generated and its
// stack requirement computed.
func (c *Context) generate() error {
	for _, t := range c.threads {
		seg, err := t.gen(c)
		if err != nil {
			if t.origin != nil {
				err = nodeError(t.origin, err)
			}
			return err
		}
		if c.arena.Open() {
			panic(errz.New(errz.ErrBuilder, "thread %d generator returned with a segment open", t.index))
		}
		t.code = seg
		t.size = c.arena.Size(seg)

		res, err := analysis.Analyze(c.arena.Bytes(seg), c.deltas)
		if err != nil {
			if t.origin != nil {
				err = nodeError(t.origin, err)
			}
			return err
		}
		if res.Exits && res.ExitDepth != 0 {
			return errz.New(errz.ErrAnalysis, "thread %d ends with %d bytes left on the stack", t.index, res.ExitDepth)
		}
		t.maxDepth = res.MaxDepth

		ti := t.info()
		c.log.Debug().
			Int("thread", ti.Index).
			Str("kind", ti.Kind).
			Int("code_size", ti.CodeSize).
			Int("stack_size", ti.StackSize).
			Msg("generated thread")
	}
	return nil
}
