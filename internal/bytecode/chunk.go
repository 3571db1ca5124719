package bytecode

import "github.com/xirelogy/go-tiney/internal/token"

// Instruction is a single operation with its (possibly empty) operand.
type Instruction struct {
	Op      Opcode         `json:"op"`
	Operand string         `json:"operand,omitempty"`
	Pos     token.Position `json:"-"`
}

// Chunk is a compiled instruction sequence in execution order.
type Chunk struct {
	Code []Instruction
}

// Emit appends an instruction.
func (c *Chunk) Emit(op Opcode, operand string, pos token.Position) {
	c.Code = append(c.Code, Instruction{Op: op, Operand: operand, Pos: pos})
}

// Len returns the number of instructions.
func (c *Chunk) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Code)
}

// Ops returns the opcodes in order.
func (c *Chunk) Ops() []Opcode {
	ops := make([]Opcode, len(c.Code))
	for i, ins := range c.Code {
		ops[i] = ins.Op
	}
	return ops
}

// Equal reports whether both chunks hold the same op/operand sequence.
// Positions are ignored.
func (c *Chunk) Equal(other *Chunk) bool {
	if c.Len() != other.Len() {
		return false
	}
	for i := range c.Code {
		if c.Code[i].Op != other.Code[i].Op || c.Code[i].Operand != other.Code[i].Operand {
			return false
		}
	}
	return true
}
