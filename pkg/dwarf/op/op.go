// Package op evaluates the subset of DWARF location expressions that can
// be resolved without a running process: static addresses and constant
// offsets.
package op

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/dwarfdb/pkg/dwarf/leb128"
)

// Opcode represent a DWARF stack program instruction.
// See ./opcodes.go for the list of known opcodes.
type Opcode byte

// ErrNotStatic is returned for location expressions that depend on
// registers, the frame base, thread local storage or target memory.
var ErrNotStatic = errors.New("location expression can not be evaluated statically")

// ErrEmptyStack is returned when an expression leaves nothing on the stack.
var ErrEmptyStack = errors.New("empty OP stack")

// StaticContext holds the information needed to evaluate location
// expressions without a process.
type StaticContext struct {
	// StaticBase is added to every DW_OP_addr operand.
	StaticBase uint64
	// PtrSize is the size of an address, in bytes.
	PtrSize int
	// ByteOrder of the multi-byte operands, defaults to little endian.
	ByteOrder binary.ByteOrder
}

type stackfn func(Opcode, *context) error

type context struct {
	buf   *bytes.Buffer
	stack []int64
	value bool

	StaticContext
}

var oplut map[Opcode]stackfn

func init() {
	oplut = map[Opcode]stackfn{
		DW_OP_addr:        addr,
		DW_OP_const1u:     constn,
		DW_OP_const1s:     constn,
		DW_OP_const2u:     constn,
		DW_OP_const2s:     constn,
		DW_OP_const4u:     constn,
		DW_OP_const4s:     constn,
		DW_OP_const8u:     constn,
		DW_OP_const8s:     constn,
		DW_OP_constu:      constu,
		DW_OP_consts:      consts,
		DW_OP_dup:         dup,
		DW_OP_drop:        drop,
		DW_OP_minus:       minus,
		DW_OP_plus:        plus,
		DW_OP_plus_uconst: plusuconsts,
		DW_OP_stack_value: stackvalue,
	}
}

// ExecuteStackProgram executes a DWARF location expression and returns the
// value left on top of the stack. The stack is seeded with initial, which
// is how member locations receive the address of the containing object.
// The second return value is true if the expression ended with
// DW_OP_stack_value, i.e. the result is a value and not an address.
func ExecuteStackProgram(sctx StaticContext, instructions []byte, initial ...int64) (int64, bool, error) {
	if sctx.PtrSize == 0 {
		sctx.PtrSize = 8
	}
	if sctx.ByteOrder == nil {
		sctx.ByteOrder = binary.LittleEndian
	}
	ctxt := &context{
		buf:           bytes.NewBuffer(instructions),
		stack:         append(make([]int64, 0, 3), initial...),
		StaticContext: sctx,
	}

	for {
		opcodeByte, err := ctxt.buf.ReadByte()
		if err != nil {
			break
		}
		opcode := Opcode(opcodeByte)
		if ctxt.value {
			return 0, false, fmt.Errorf("%v after DW_OP_stack_value", opcode)
		}
		if opcode >= DW_OP_lit0 && opcode <= DW_OP_lit31 {
			ctxt.stack = append(ctxt.stack, int64(opcode-DW_OP_lit0))
			continue
		}
		fn, ok := oplut[opcode]
		if !ok {
			if _, known := opcodeName[opcode]; known || opcode >= DW_OP_reg0 && opcode <= DW_OP_breg31 {
				return 0, false, fmt.Errorf("%v: %w", opcode, ErrNotStatic)
			}
			return 0, false, fmt.Errorf("invalid instruction %#v", opcode)
		}

		err = fn(opcode, ctxt)
		if err != nil {
			return 0, false, fmt.Errorf("%v: %w", opcode, err)
		}
	}

	if len(ctxt.stack) == 0 {
		return 0, false, ErrEmptyStack
	}

	return ctxt.stack[len(ctxt.stack)-1], ctxt.value, nil
}

// PrettyPrint prints the DWARF stack program instructions to `out`.
func PrettyPrint(out io.Writer, instructions []byte, ptrSize int) {
	in := bytes.NewBuffer(instructions)

	for {
		opcode, err := in.ReadByte()
		if err != nil {
			break
		}
		io.WriteString(out, Opcode(opcode).String())
		out.Write([]byte{' '})
		for _, arg := range opcodeArgs[Opcode(opcode)] {
			switch arg {
			case 's':
				n, _, _ := leb128.DecodeSigned(in)
				fmt.Fprintf(out, "%#x ", n)
			case 'u':
				n, _, _ := leb128.DecodeUnsigned(in)
				fmt.Fprintf(out, "%#x ", n)
			case 'a':
				fmt.Fprintf(out, "%#x ", readUint(in, binary.LittleEndian, ptrSize))
			case '1', '2', '4', '8':
				fmt.Fprintf(out, "%#x ", readUint(in, binary.LittleEndian, int(arg-'0')))
			}
		}
	}
}

func readUint(in *bytes.Buffer, order binary.ByteOrder, sz int) uint64 {
	b := in.Next(sz)
	if len(b) < sz {
		return 0
	}
	switch sz {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	return 0
}

func (ctxt *context) pop() (int64, error) {
	if len(ctxt.stack) == 0 {
		return 0, ErrEmptyStack
	}
	v := ctxt.stack[len(ctxt.stack)-1]
	ctxt.stack = ctxt.stack[:len(ctxt.stack)-1]
	return v, nil
}

func addr(opcode Opcode, ctxt *context) error {
	if ctxt.PtrSize != 4 && ctxt.PtrSize != 8 {
		return fmt.Errorf("unsupported pointer size %d", ctxt.PtrSize)
	}
	if ctxt.buf.Len() < ctxt.PtrSize {
		return io.ErrUnexpectedEOF
	}
	a := readUint(ctxt.buf, ctxt.ByteOrder, ctxt.PtrSize)
	ctxt.stack = append(ctxt.stack, int64(a+ctxt.StaticBase))
	return nil
}

func constn(opcode Opcode, ctxt *context) error {
	var sz int
	switch opcode {
	case DW_OP_const1u, DW_OP_const1s:
		sz = 1
	case DW_OP_const2u, DW_OP_const2s:
		sz = 2
	case DW_OP_const4u, DW_OP_const4s:
		sz = 4
	default:
		sz = 8
	}
	if ctxt.buf.Len() < sz {
		return io.ErrUnexpectedEOF
	}
	u := readUint(ctxt.buf, ctxt.ByteOrder, sz)
	n := int64(u)
	switch opcode {
	case DW_OP_const1s:
		n = int64(int8(u))
	case DW_OP_const2s:
		n = int64(int16(u))
	case DW_OP_const4s:
		n = int64(int32(u))
	}
	ctxt.stack = append(ctxt.stack, n)
	return nil
}

func constu(opcode Opcode, ctxt *context) error {
	num, _, err := leb128.DecodeUnsigned(ctxt.buf)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, int64(num))
	return nil
}

func consts(opcode Opcode, ctxt *context) error {
	num, _, err := leb128.DecodeSigned(ctxt.buf)
	if err != nil {
		return err
	}
	ctxt.stack = append(ctxt.stack, num)
	return nil
}

func dup(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) == 0 {
		return ErrEmptyStack
	}
	ctxt.stack = append(ctxt.stack, ctxt.stack[len(ctxt.stack)-1])
	return nil
}

func drop(opcode Opcode, ctxt *context) error {
	_, err := ctxt.pop()
	return err
}

func plus(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) < 2 {
		return ErrEmptyStack
	}
	var (
		slen   = len(ctxt.stack)
		digits = ctxt.stack[slen-2 : slen]
		st     = ctxt.stack[:slen-2]
	)

	ctxt.stack = append(st, digits[0]+digits[1])
	return nil
}

func minus(opcode Opcode, ctxt *context) error {
	if len(ctxt.stack) < 2 {
		return ErrEmptyStack
	}
	var (
		slen   = len(ctxt.stack)
		digits = ctxt.stack[slen-2 : slen]
		st     = ctxt.stack[:slen-2]
	)

	ctxt.stack = append(st, digits[0]-digits[1])
	return nil
}

func plusuconsts(opcode Opcode, ctxt *context) error {
	slen := len(ctxt.stack)
	if slen == 0 {
		return ErrEmptyStack
	}
	num, _, err := leb128.DecodeUnsigned(ctxt.buf)
	if err != nil {
		return err
	}
	ctxt.stack[slen-1] = ctxt.stack[slen-1] + int64(num)
	return nil
}

func stackvalue(opcode Opcode, ctxt *context) error {
	ctxt.value = true
	return nil
}
