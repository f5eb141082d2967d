// Package block models the program tree produced by the visual editor.
//
// A Program holds the top-level blocks of a workspace and the variables
// declared for it. Each Node has a kind, literal fields, named inputs that
// connect child nodes and an optional next node continuing a statement
// chain. The compiler only reads nodes.
package block

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Program is a workspace of top-level blocks.
type Program struct {
	Blocks    []*Node
	Variables []Variable
}

// Variable is a program-wide variable declaration.
type Variable struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Name string `json:"name" yaml:"name" toml:"name"`
	Type string `json:"type" yaml:"type" toml:"type"`
}

// Node is one block.
type Node struct {
	ID     string
	Kind   string
	Fields map[string]any
	Inputs map[string]*Input
	Next   *Node
	Extra  map[string]any
}

// Input is a named socket. Block is the connected node; Shadow is the
// placeholder the editor shows when nothing is connected.
type Input struct {
	Block  *Node
	Shadow *Node
}

// Input returns the node connected to the named input, falling back to its
// shadow. It returns nil for an empty socket.
func (n *Node) Input(name string) *Node {
	in, ok := n.Inputs[name]
	if !ok || in == nil {
		return nil
	}
	if in.Block != nil {
		return in.Block
	}
	return in.Shadow
}

// HasInput reports whether the node declares the named input, connected or not.
func (n *Node) HasInput(name string) bool {
	_, ok := n.Inputs[name]
	return ok
}

// Field returns the raw value of a field.
func (n *Node) Field(name string) (any, bool) {
	v, ok := n.Fields[name]
	return v, ok
}

// FieldString returns a field as a string. Missing fields yield "".
func (n *Node) FieldString(name string) string {
	v, ok := n.Fields[name]
	if !ok || v == nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return v
	case map[string]any:
		// variable and reference fields serialize as {"id": ...}
		if id, ok := v["id"].(string); ok {
			return id
		}
	}
	return fmt.Sprint(v)
}

// FieldNumber returns a numeric field.
func (n *Node) FieldNumber(name string) (float64, error) {
	v, ok := n.Fields[name]
	if !ok {
		return 0, fmt.Errorf("field %s is missing", name)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("field %s is not a number: %v", name, v)
	}
	return f, nil
}

// FieldUint returns a numeric field that must be a whole number in [0, max].
func (n *Node) FieldUint(name string, max int) (int, error) {
	f, err := n.FieldNumber(name)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < 0 || f > float64(max) {
		return 0, fmt.Errorf("field %s must be a whole number between 0 and %d, got %v", name, max, f)
	}
	return int(f), nil
}

// FieldBool returns a boolean field. Blockly serializes these as
// "TRUE"/"FALSE".
func (n *Node) FieldBool(name string) bool {
	switch v := n.Fields[name].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// ExtraInt returns an integer from the node's extra state, or 0.
func (n *Node) ExtraInt(name string) int {
	f, ok := toFloat(n.Extra[name])
	if !ok {
		return 0
	}
	return int(f)
}

// ExtraBool returns a boolean from the node's extra state.
func (n *Node) ExtraBool(name string) bool {
	b, _ := n.Extra[name].(bool)
	return b
}

func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// Chain returns the node followed by every node linked through Next.
func (n *Node) Chain() []*Node {
	var nodes []*Node
	for cur := n; cur != nil; cur = cur.Next {
		nodes = append(nodes, cur)
	}
	return nodes
}

// Walk calls fn for every node of the program in depth-first order: a node,
// then its inputs sorted by name, then its next node. Shadows are visited
// only where no block is connected. Walk stops early when fn returns false.
func (p *Program) Walk(fn func(*Node) bool) {
	for _, top := range p.Blocks {
		if !walk(top, fn) {
			return
		}
	}
}

func walk(n *Node, fn func(*Node) bool) bool {
	for cur := n; cur != nil; cur = cur.Next {
		if !fn(cur) {
			return false
		}
		for _, name := range cur.InputNames() {
			if !walk(cur.Input(name), fn) {
				return false
			}
		}
	}
	return true
}

// InputNames returns the names of the node's inputs in sorted order.
func (n *Node) InputNames() []string {
	names := make([]string, 0, len(n.Inputs))
	for name := range n.Inputs {
		names = append(names, name)
	}
	sortNames(names)
	return names
}

// Variable finds a declared variable by id, falling back to its name.
func (p *Program) Variable(ref string) (Variable, bool) {
	for _, v := range p.Variables {
		if v.ID == ref {
			return v, true
		}
	}
	for _, v := range p.Variables {
		if v.Name == ref {
			return v, true
		}
	}
	return Variable{}, false
}

// sortNames orders input names so numbered inputs such as IF2 and IF10 sort
// by their numeric suffix.
func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		pi, ni := splitNumber(names[i])
		pj, nj := splitNumber(names[j])
		if pi != pj {
			return pi < pj
		}
		return ni < nj
	})
}

func splitNumber(s string) (string, int) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return s, -1
	}
	n, _ := strconv.Atoi(s[i:])
	return s[:i], n
}
