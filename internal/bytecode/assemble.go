package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// HaveArgument is the first byte value whose instructions carry a 16-bit
// argument.
const HaveArgument = 90

var opBytes = [...]byte{
	OP_LOAD_CONST:    100,
	OP_STORE_FAST:    125,
	OP_LOAD_GLOBAL:   116,
	OP_LOAD_FAST:     124,
	OP_BINARY_ADD:    23,
	OP_CALL_FUNCTION: 131,
	OP_POP_TOP:       1,
	OP_RETURN_VALUE:  83,
}

// Byte returns the encoded opcode value.
func (op Opcode) Byte() byte {
	if !op.Valid() {
		return 0
	}
	return opBytes[op]
}

// CodeObject is the lowered form of a chunk: raw code plus the tables its
// arguments index into.
type CodeObject struct {
	Code     []byte
	Consts   []interface{} // Consts[0] is always nil (None)
	Names    []string
	VarNames []string
}

// Assemble lowers chunk to byte code.
func Assemble(chunk *Chunk) (*CodeObject, error) {
	if chunk == nil {
		return nil, fmt.Errorf("nil chunk")
	}
	a := &assembler{
		obj:      &CodeObject{Consts: []interface{}{nil}},
		consts:   map[int64]uint16{},
		names:    map[string]uint16{},
		varNames: map[string]uint16{},
	}
	for i, ins := range chunk.Code {
		if err := a.emit(ins); err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, ins.Op, err)
		}
	}
	return a.obj, nil
}

type assembler struct {
	obj      *CodeObject
	consts   map[int64]uint16
	names    map[string]uint16
	varNames map[string]uint16
}

func (a *assembler) emit(ins Instruction) error {
	if !ins.Op.Valid() {
		return fmt.Errorf("unknown opcode")
	}
	code := ins.Op.Byte()
	if code < HaveArgument {
		a.obj.Code = append(a.obj.Code, code)
		return nil
	}
	var arg uint16
	switch ins.Op {
	case OP_LOAD_CONST:
		n, err := strconv.ParseInt(ins.Operand, 10, 64)
		if err != nil {
			return fmt.Errorf("non-numeric constant %q", ins.Operand)
		}
		arg = a.constIndex(n)
	case OP_STORE_FAST, OP_LOAD_FAST:
		arg = intern(a.varNames, &a.obj.VarNames, ins.Operand)
	case OP_LOAD_GLOBAL:
		arg = intern(a.names, &a.obj.Names, ins.Operand)
	case OP_CALL_FUNCTION:
		argc, err := strconv.ParseUint(ins.Operand, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid argument count %q", ins.Operand)
		}
		arg = uint16(argc)
	}
	a.obj.Code = append(a.obj.Code, code, byte(arg), byte(arg>>8))
	return nil
}

func (a *assembler) constIndex(n int64) uint16 {
	if idx, ok := a.consts[n]; ok {
		return idx
	}
	idx := uint16(len(a.obj.Consts))
	a.obj.Consts = append(a.obj.Consts, n)
	a.consts[n] = idx
	return idx
}

func intern(index map[string]uint16, table *[]string, name string) uint16 {
	if idx, ok := index[name]; ok {
		return idx
	}
	idx := uint16(len(*table))
	*table = append(*table, name)
	index[name] = idx
	return idx
}

// Hex renders the code as a Python-style byte string literal body, printable
// ASCII verbatim and everything else as \xNN.
func (o *CodeObject) Hex() string {
	var sb strings.Builder
	for _, b := range o.Code {
		switch {
		case b == '\\' || b == '\'':
			fmt.Fprintf(&sb, "\\x%02x", b)
		case b >= 0x20 && b < 0x7f:
			sb.WriteByte(b)
		default:
			fmt.Fprintf(&sb, "\\x%02x", b)
		}
	}
	return sb.String()
}
