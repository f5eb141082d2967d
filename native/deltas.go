package native

import (
	"sort"

	"github.com/micro-blocks/mbc/errz"
)

// Deltas records the net stack delta of each native function as observed at
// its first call site. Every later call site must agree.
type Deltas struct {
	m map[Function]int
}

// NewDeltas returns an empty delta table.
func NewDeltas() *Deltas {
	return &Deltas{m: map[Function]int{}}
}

// Observe records the delta of a call site. It returns a convention error
// when the function was previously called with a different delta.
func (d *Deltas) Observe(fn Function, delta int) error {
	prev, ok := d.m[fn]
	if !ok {
		d.m[fn] = delta
		return nil
	}
	if prev != delta {
		return errz.New(errz.ErrConvention,
			"native function %s called with stack delta %d, previously %d", fn, delta, prev)
	}
	return nil
}

// Delta returns the recorded delta of fn.
func (d *Deltas) Delta(fn Function) (int, bool) {
	delta, ok := d.m[fn]
	return delta, ok
}

// Len returns the number of functions recorded.
func (d *Deltas) Len() int {
	return len(d.m)
}

// Functions returns the recorded functions ordered by number.
func (d *Deltas) Functions() []Function {
	fns := make([]Function, 0, len(d.m))
	for fn := range d.m {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i] < fns[j] })
	return fns
}

// FromSignatures returns a table holding the declared delta of every known
// function. It is used when analyzing code whose call sites were not
// observed, such as a parsed image.
func FromSignatures() *Deltas {
	d := NewDeltas()
	for fn, sig := range signatures {
		d.m[fn] = sig.Delta()
	}
	return d
}
