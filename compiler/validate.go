package compiler

import (
	"github.com/hashicorp/go-multierror"
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/errz"
)

// Validate checks that every block kind in prog is registered and that no
// statement is chained after a block that only starts a thread, since such
// statements would never run. All problems are reported together.
func Validate(prog *block.Program, r *Registry) error {
	var result *multierror.Error
	prog.Walk(func(n *block.Node) bool {
		reg, ok := r.Lookup(n.Kind)
		if !ok {
			result = multierror.Append(result,
				errz.New(errz.ErrStructural, "unknown block kind %q", n.Kind).WithNode(n.ID, n.Kind))
			return true
		}
		if n.Next != nil && reg.Extract != nil && reg.Generate == nil {
			result = multierror.Append(result,
				errz.New(errz.ErrStructural, "%s cannot be followed by %q, put it inside the block instead",
					n.Kind, n.Next.Kind).WithNode(n.ID, n.Kind))
		}
		return true
	})
	return result.ErrorOrNil()
}
