package bytecode

// InstructionIter iterates over the instructions of linearized code.
type InstructionIter struct {
	code []byte
	pos  int
	err  error
}

// Next returns the next instruction.
// Returns false when there are no more instructions or decoding failed.
func (i *InstructionIter) Next() (Instruction, bool) {
	if i.err != nil || i.pos >= len(i.code) {
		return Instruction{}, false
	}
	instr, err := Decode(i.code, i.pos)
	if err != nil {
		i.err = err
		return Instruction{}, false
	}
	i.pos = instr.End()
	return instr, true
}

// Err returns the decoding error that stopped the iteration, if any.
func (i *InstructionIter) Err() error {
	return i.err
}

// All returns all instructions as a newly allocated slice.
// This is a convenience method that collects all results from Next().
func (i *InstructionIter) All() ([]Instruction, error) {
	var results []Instruction
	for {
		instr, ok := i.Next()
		if !ok {
			break
		}
		results = append(results, instr)
	}
	return results, i.err
}

// NewInstructionIter creates a new instruction iterator for the given code.
func NewInstructionIter(code []byte) *InstructionIter {
	return &InstructionIter{code: code}
}
