package compiler

import (
	"github.com/micro-blocks/mbc/block"
	"github.com/micro-blocks/mbc/errz"
)

// Variable is a global variable with its location in the variable region
// at the start of device memory.
type Variable struct {
	ID     string
	Name   string
	Type   Type
	Offset int
}

// Variables is the variable region layout. Variables are packed in
// declaration order without alignment.
type Variables struct {
	ordered []*Variable
	byID    map[string]*Variable
	byName  map[string]*Variable
	size    int
}

// AllocateVariables lays out the declared variables.
func AllocateVariables(decls []block.Variable) (*Variables, error) {
	v := &Variables{byID: map[string]*Variable{}, byName: map[string]*Variable{}}
	for _, d := range decls {
		t, err := ParseType(d.Type)
		if err != nil {
			return nil, errz.New(errz.ErrStructural, "variable %q: %s", d.Name, err)
		}
		if _, dup := v.byID[d.ID]; dup {
			return nil, errz.New(errz.ErrStructural, "variable id %q declared twice", d.ID)
		}
		vr := &Variable{ID: d.ID, Name: d.Name, Type: t, Offset: v.size}
		v.size += t.Size()
		v.ordered = append(v.ordered, vr)
		v.byID[d.ID] = vr
		if _, ok := v.byName[d.Name]; !ok {
			v.byName[d.Name] = vr
		}
	}
	if v.size > 0xffff {
		return nil, errz.New(errz.ErrLayout, "variables need %d bytes, more than the 64 KiB memory limit", v.size)
	}
	return v, nil
}

// Lookup finds a variable by id, falling back to its name.
func (v *Variables) Lookup(ref string) (Variable, bool) {
	if vr, ok := v.byID[ref]; ok {
		return *vr, true
	}
	if vr, ok := v.byName[ref]; ok {
		return *vr, true
	}
	return Variable{}, false
}

// Size returns the size of the variable region in bytes.
func (v *Variables) Size() int {
	return v.size
}

// All returns the variables in layout order.
func (v *Variables) All() []Variable {
	out := make([]Variable, len(v.ordered))
	for i, vr := range v.ordered {
		out[i] = *vr
	}
	return out
}
