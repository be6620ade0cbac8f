package terminal

import (
	"bufio"
	"fmt"
	"io"
	"text/tabwriter"

	"golang.org/x/arch/x86/x86asm"

	"github.com/go-delve/dwarfdb/pkg/typedb"
)

// AssemblyFlavour is the syntax used by the disassemble command.
type AssemblyFlavour int

const (
	IntelFlavour AssemblyFlavour = iota
	GNUFlavour
	GoFlavour
)

func parseFlavour(s string) (AssemblyFlavour, error) {
	switch s {
	case "intel":
		return IntelFlavour, nil
	case "gnu":
		return GNUFlavour, nil
	case "go":
		return GoFlavour, nil
	}
	return IntelFlavour, fmt.Errorf("unknown assembly flavour %q", s)
}

type asmInstruction struct {
	PC    uint64
	Bytes []byte
	Text  string
}

// disassemble decodes the machine code in [startPC, endPC) read from mem.
// Bytes that do not decode are shown as "?" one at a time.
func disassemble(m *typedb.SymbolManager, mem typedb.MemoryReader, startPC, endPC uint64, flavour AssemblyFlavour) ([]asmInstruction, error) {
	buf := make([]byte, endPC-startPC)
	if n, err := mem.ReadMemory(buf, startPC); err != nil {
		if n == 0 {
			return nil, err
		}
		buf = buf[:n]
	}
	bit := m.PtrSize() * 8

	var r []asmInstruction
	for off := 0; off < len(buf); {
		pc := startPC + uint64(off)
		inst, err := x86asm.Decode(buf[off:], bit)
		if err != nil {
			r = append(r, asmInstruction{PC: pc, Bytes: buf[off : off+1], Text: "?"})
			off++
			continue
		}
		patchPCRel(pc, &inst)
		r = append(r, asmInstruction{PC: pc, Bytes: buf[off : off+inst.Len], Text: asmText(&inst, flavour, pc, symbolLookup(m))})
		off += inst.Len
	}
	return r, nil
}

// converts PC relative arguments to absolute addresses
func patchPCRel(pc uint64, inst *x86asm.Inst) {
	for i := range inst.Args {
		rel, isrel := inst.Args[i].(x86asm.Rel)
		if isrel {
			inst.Args[i] = x86asm.Imm(int64(pc) + int64(rel) + int64(inst.Len))
		}
	}
}

func asmText(inst *x86asm.Inst, flavour AssemblyFlavour, pc uint64, symLookup x86asm.SymLookup) string {
	switch flavour {
	case GNUFlavour:
		return x86asm.GNUSyntax(*inst, pc, symLookup)
	case GoFlavour:
		return x86asm.GoSyntax(*inst, pc, symLookup)
	default:
		return x86asm.IntelSyntax(*inst, pc, symLookup)
	}
}

// symbolLookup returns the function or variable containing an address.
func symbolLookup(m *typedb.SymbolManager) x86asm.SymLookup {
	return func(addr uint64) (string, uint64) {
		if fn, err := m.FunctionAt(addr); err == nil {
			return fn.Name, fn.LowPC
		}
		for _, v := range m.Variables() {
			if !v.HasLocation || addr < v.Location {
				continue
			}
			t, err := v.Resolve(m)
			if err != nil || t == nil {
				continue
			}
			sz, err := m.SizeOf(t)
			if err != nil {
				continue
			}
			if addr < v.Location+uint64(sz) || (sz == 0 && addr == v.Location) {
				return v.Name, v.Location
			}
		}
		return "", 0
	}
}

func disasmPrint(dv []asmInstruction, out io.Writer, fn *typedb.Function) {
	bw := bufio.NewWriter(out)
	defer bw.Flush()
	if fn != nil {
		fmt.Fprintf(bw, "TEXT %s [%#x, %#x)\n", fn.Name, fn.LowPC, fn.HighPC)
	}
	tw := tabwriter.NewWriter(bw, 1, 8, 1, '\t', 0)
	defer tw.Flush()
	for _, inst := range dv {
		fmt.Fprintf(tw, "\t%#x\t%x\t%s\n", inst.PC, inst.Bytes, inst.Text)
	}
}
