package bytecode

import "fmt"

// Opcode enumerates instruction operations.
type Opcode byte

const (
	OP_LOAD_CONST Opcode = iota
	OP_STORE_FAST
	OP_LOAD_GLOBAL
	OP_LOAD_FAST
	OP_BINARY_ADD
	// Members of the instruction set that the code generator does not emit.
	OP_CALL_FUNCTION
	OP_POP_TOP
	OP_RETURN_VALUE
)

var opNames = [...]string{
	OP_LOAD_CONST:    "LOAD_CONST",
	OP_STORE_FAST:    "STORE_FAST",
	OP_LOAD_GLOBAL:   "LOAD_GLOBAL",
	OP_LOAD_FAST:     "LOAD_FAST",
	OP_BINARY_ADD:    "BINARY_ADD",
	OP_CALL_FUNCTION: "CALL_FUNCTION",
	OP_POP_TOP:       "POP_TOP",
	OP_RETURN_VALUE:  "RETURN_VALUE",
}

// Valid reports whether op is a member of the instruction set.
func (op Opcode) Valid() bool {
	return int(op) < len(opNames)
}

func (op Opcode) String() string {
	if op.Valid() {
		return opNames[op]
	}
	return fmt.Sprintf("OP_0x%02X", byte(op))
}

// HasOperand reports whether instructions with this opcode carry an operand.
func (op Opcode) HasOperand() bool {
	switch op {
	case OP_BINARY_ADD, OP_POP_TOP, OP_RETURN_VALUE:
		return false
	default:
		return true
	}
}

// MarshalText encodes the mnemonic.
func (op Opcode) MarshalText() ([]byte, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("unknown opcode 0x%02X", byte(op))
	}
	return []byte(opNames[op]), nil
}

// UnmarshalText decodes a mnemonic produced by MarshalText.
func (op *Opcode) UnmarshalText(text []byte) error {
	parsed, ok := LookupOpcode(string(text))
	if !ok {
		return fmt.Errorf("unknown opcode %q", text)
	}
	*op = parsed
	return nil
}

// LookupOpcode maps a mnemonic back to its opcode.
func LookupOpcode(name string) (Opcode, bool) {
	for i, n := range opNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return 0, false
}
