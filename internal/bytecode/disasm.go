package bytecode

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

// Disassembler formats instructions as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	printed bool

	offset  *color.Color
	op      *color.Color
	operand *color.Color
	header  *color.Color
}

// NewDisassembler constructs a disassembler that writes plain text to w.
func NewDisassembler(w io.Writer) *Disassembler {
	d := &Disassembler{
		w:       w,
		offset:  color.New(color.Faint),
		op:      color.New(color.FgCyan, color.Bold),
		operand: color.New(color.FgYellow),
		header:  color.New(color.FgGreen),
	}
	d.SetColor(false)
	return d
}

// SetColor toggles ANSI colouring regardless of the terminal detection done
// by the color package.
func (d *Disassembler) SetColor(enable bool) {
	for _, c := range []*color.Color{d.offset, d.op, d.operand, d.header} {
		if enable {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// DisassembleChunk emits a listing for one chunk under a header line.
func (d *Disassembler) DisassembleChunk(label string, chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("nil chunk")
	}
	d.startSection()
	if label == "" {
		label = "<anon>"
	}
	fmt.Fprintf(d.w, "%s\n", d.header.Sprintf("code %s (instructions=%d)", label, chunk.Len()))
	for offset, ins := range chunk.Code {
		lineStr := "-"
		if ins.Pos.Line > 0 {
			lineStr = strconv.Itoa(ins.Pos.Line)
		}
		fmt.Fprintf(d.w, "%s %4s ", d.offset.Sprintf("%04d", offset), lineStr)
		if ins.Op.HasOperand() {
			fmt.Fprintf(d.w, "%s %s", d.op.Sprintf("%-16s", ins.Op), d.operand.Sprint(formatOperand(ins)))
		} else {
			fmt.Fprint(d.w, d.op.Sprint(ins.Op))
		}
		fmt.Fprintln(d.w)
	}
	return nil
}

// DisassembleCode emits a listing of assembled byte code, resolving arguments
// through the code object's tables.
func (d *Disassembler) DisassembleCode(label string, obj *CodeObject) error {
	if obj == nil {
		return fmt.Errorf("nil code object")
	}
	d.startSection()
	if label == "" {
		label = "<anon>"
	}
	fmt.Fprintf(d.w, "%s\n", d.header.Sprintf("bytes %s (len=%d, consts=%d, names=%d, varnames=%d)",
		label, len(obj.Code), len(obj.Consts), len(obj.Names), len(obj.VarNames)))
	code := obj.Code
	for ip := 0; ip < len(code); {
		offset := ip
		op, ok := opcodeForByte(code[ip])
		ip++
		if !ok {
			fmt.Fprintf(d.w, "%s %s\n", d.offset.Sprintf("%04d", offset), d.op.Sprintf("OP_0x%02X", code[offset]))
			continue
		}
		if op.Byte() < HaveArgument {
			fmt.Fprintf(d.w, "%s %s\n", d.offset.Sprintf("%04d", offset), d.op.Sprint(op))
			continue
		}
		arg, err := readU16(code, &ip)
		if err != nil {
			return err
		}
		fmt.Fprintf(d.w, "%s %s %d %s\n", d.offset.Sprintf("%04d", offset), d.op.Sprintf("%-16s", op),
			arg, d.operand.Sprintf("(%s)", resolveArg(obj, op, arg)))
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

func formatOperand(ins Instruction) string {
	if ins.Operand == "" {
		return "<none>"
	}
	return ins.Operand
}

func opcodeForByte(b byte) (Opcode, bool) {
	for i, v := range opBytes {
		if v == b {
			return Opcode(i), true
		}
	}
	return 0, false
}

func resolveArg(obj *CodeObject, op Opcode, arg uint16) string {
	switch op {
	case OP_LOAD_CONST:
		if int(arg) >= len(obj.Consts) {
			return "<invalid>"
		}
		return formatConst(obj.Consts[arg])
	case OP_STORE_FAST, OP_LOAD_FAST:
		if int(arg) >= len(obj.VarNames) {
			return "<invalid>"
		}
		return obj.VarNames[arg]
	case OP_LOAD_GLOBAL:
		if int(arg) >= len(obj.Names) {
			return "<invalid>"
		}
		return obj.Names[arg]
	default:
		return strconv.Itoa(int(arg))
	}
}

func readU16(code []byte, ip *int) (uint16, error) {
	if *ip+1 >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	lo := code[*ip]
	hi := code[*ip+1]
	*ip += 2
	return uint16(hi)<<8 | uint16(lo), nil
}

func formatConst(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return "<unknown>"
	}
}
