package typedb

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/go-delve/dwarfdb/pkg/logflags"
)

// fakeMemory is a flat memory region starting at base.
type fakeMemory struct {
	base uint64
	data []byte
}

func newFakeMemory(base uint64, contents ...interface{}) *fakeMemory {
	mem := &fakeMemory{base: base}
	for _, x := range contents {
		switch x := x.(type) {
		case []byte:
			mem.data = append(mem.data, x...)
		case string:
			mem.data = append(mem.data, x...)
		case uint8:
			mem.data = append(mem.data, x)
		case uint16:
			mem.data = binary.LittleEndian.AppendUint16(mem.data, x)
		case int32:
			mem.data = binary.LittleEndian.AppendUint32(mem.data, uint32(x))
		case uint32:
			mem.data = binary.LittleEndian.AppendUint32(mem.data, x)
		case uint64:
			mem.data = binary.LittleEndian.AppendUint64(mem.data, x)
		default:
			panic(fmt.Errorf("unsupported type %T", x))
		}
	}
	return mem
}

func (mem *fakeMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	if addr < mem.base {
		return 0, fmt.Errorf("read out of bounds %d %#x", len(buf), addr)
	}
	start := addr - mem.base
	end := start + uint64(len(buf))
	if end > uint64(len(mem.data)) {
		return 0, fmt.Errorf("read out of bounds %d %#x", len(buf), addr)
	}
	copy(buf, mem.data[start:end])
	return len(buf), nil
}

// Offsets used by newTestManager.
const (
	offInt      dwarf.Offset = 0x10
	offChar     dwarf.Offset = 0x14
	offUint     dwarf.Offset = 0x18
	offLong     dwarf.Offset = 0x1c
	offFloat    dwarf.Offset = 0x20
	offBool     dwarf.Offset = 0x24
	offNode     dwarf.Offset = 0x30
	offNodePtr  dwarf.Offset = 0x40
	offNodeT    dwarf.Offset = 0x44
	offConstInt dwarf.Offset = 0x48
	offIntArr   dwarf.Offset = 0x50
	offColor    dwarf.Offset = 0x60
	offCharPtr  dwarf.Offset = 0x70
	offName     dwarf.Offset = 0x74
	offFlags    dwarf.Offset = 0x80
	offMatrix   dwarf.Offset = 0x90
	offOuter    dwarf.Offset = 0xa0
	offInner    dwarf.Offset = 0xb0
	offListHead dwarf.Offset = 0xc0
	offItem     dwarf.Offset = 0xd0
	offVoidPtr  dwarf.Offset = 0xe0
	offVarHead  dwarf.Offset = 0x100
	offVarColor dwarf.Offset = 0x104
	offFnMain   dwarf.Offset = 0x110
	offNodeDecl dwarf.Offset = 0x120
)

func mustRegister(t *testing.T, m *SymbolManager, off dwarf.Offset, sym Symbol) {
	t.Helper()
	if _, err := m.Register(off, sym); err != nil {
		t.Fatalf("Register(%#x): %v", off, err)
	}
}

func ref(off dwarf.Offset) ReferencingType {
	return ReferencingType{Ref: off, HasRef: true}
}

// buildTestGraph registers a small C program:
//
//	struct node { int value; struct node *next; };
//	typedef struct node node_t;
//	enum color { RED, GREEN, BLUE };
//	struct flags { unsigned a:3, b:5; unsigned c; };
//	struct outer { int x; union { int i; float f; }; char name[8]; };
//	struct list_head { struct list_head *next; };
//	struct item { long id; struct list_head link; };
//	int matrix[2][3];
//	node_t *head;
//	enum color color;
//	int main(int argc, char **argv);
func buildTestGraph(t *testing.T, m *SymbolManager) {
	t.Helper()
	// The struct is registered before the pointer to it and the pointer
	// before the members, like the parser does.
	node := &Struct{CommonSymbol: CommonSymbol{Name: "node", ByteSize: 16}}
	mustRegister(t, m, offNode, node)
	mustRegister(t, m, offNodePtr, &Pointer{CommonSymbol: CommonSymbol{ByteSize: 8}, ReferencingType: ref(offNode)})
	node.AddMember(&Member{Name: "value", ReferencingType: ref(offInt), ByteOffset: 0})
	node.AddMember(&Member{Name: "next", ReferencingType: ref(offNodePtr), ByteOffset: 8})

	mustRegister(t, m, offInt, &BaseType{CommonSymbol: CommonSymbol{Name: "int", ByteSize: 4}, Encoding: EncSigned})
	mustRegister(t, m, offChar, &BaseType{CommonSymbol: CommonSymbol{Name: "char", ByteSize: 1}, Encoding: EncSignedChar})
	mustRegister(t, m, offUint, &BaseType{CommonSymbol: CommonSymbol{Name: "unsigned int", ByteSize: 4}, Encoding: EncUnsigned})
	mustRegister(t, m, offLong, &BaseType{CommonSymbol: CommonSymbol{Name: "long", ByteSize: 8}, Encoding: EncSigned})
	mustRegister(t, m, offFloat, &BaseType{CommonSymbol: CommonSymbol{Name: "float", ByteSize: 4}, Encoding: EncFloat})
	mustRegister(t, m, offBool, &BaseType{CommonSymbol: CommonSymbol{Name: "_Bool", ByteSize: 1}, Encoding: EncBoolean})

	mustRegister(t, m, offNodeT, &Typedef{CommonSymbol: CommonSymbol{Name: "node_t"}, ReferencingType: ref(offNode)})
	mustRegister(t, m, offConstInt, &ConstType{ReferencingType: ref(offInt), Qual: QualConst})
	mustRegister(t, m, offIntArr, &Array{ReferencingType: ref(offInt), Dims: []int64{3}})

	mustRegister(t, m, offColor, &Enum{
		CommonSymbol: CommonSymbol{Name: "color", ByteSize: 4},
		Enumerators:  []Enumerator{{"RED", 0}, {"GREEN", 1}, {"BLUE", 2}},
	})

	mustRegister(t, m, offCharPtr, &Pointer{CommonSymbol: CommonSymbol{ByteSize: 8}, ReferencingType: ref(offChar)})
	mustRegister(t, m, offName, &Array{ReferencingType: ref(offChar), Dims: []int64{8}})

	flags := &Struct{CommonSymbol: CommonSymbol{Name: "flags", ByteSize: 8}}
	flags.AddMember(&Member{Name: "a", ReferencingType: ref(offUint), BitSize: 3, BitOffset: 0})
	flags.AddMember(&Member{Name: "b", ReferencingType: ref(offUint), BitSize: 5, BitOffset: 3})
	flags.AddMember(&Member{Name: "c", ReferencingType: ref(offUint), ByteOffset: 4})
	mustRegister(t, m, offFlags, flags)

	mustRegister(t, m, offMatrix, &Array{CommonSymbol: CommonSymbol{Name: ""}, ReferencingType: ref(offInt), Dims: []int64{2, 3}})

	inner := &Union{CommonSymbol: CommonSymbol{ByteSize: 4}}
	inner.AddMember(&Member{Name: "i", ReferencingType: ref(offInt)})
	inner.AddMember(&Member{Name: "f", ReferencingType: ref(offFloat)})
	mustRegister(t, m, offInner, inner)
	outer := &Struct{CommonSymbol: CommonSymbol{Name: "outer", ByteSize: 16}}
	outer.AddMember(&Member{Name: "x", ReferencingType: ref(offInt), ByteOffset: 0})
	outer.AddMember(&Member{ReferencingType: ref(offInner), ByteOffset: 4})
	outer.AddMember(&Member{Name: "name", ReferencingType: ref(offName), ByteOffset: 8})
	mustRegister(t, m, offOuter, outer)

	lh := &Struct{CommonSymbol: CommonSymbol{Name: "list_head", ByteSize: 8}}
	mustRegister(t, m, offListHead, lh)
	mustRegister(t, m, offListHead+8, &Pointer{CommonSymbol: CommonSymbol{ByteSize: 8}, ReferencingType: ref(offListHead)})
	lh.AddMember(&Member{Name: "next", ReferencingType: ref(offListHead + 8)})
	item := &Struct{CommonSymbol: CommonSymbol{Name: "item", ByteSize: 16}}
	item.AddMember(&Member{Name: "id", ReferencingType: ref(offLong)})
	item.AddMember(&Member{Name: "link", ReferencingType: ref(offListHead), ByteOffset: 8})
	mustRegister(t, m, offItem, item)

	mustRegister(t, m, offVoidPtr, &Pointer{CommonSymbol: CommonSymbol{ByteSize: 8}})

	mustRegister(t, m, offNodeDecl, &Struct{CommonSymbol: CommonSymbol{Name: "node"}, Structured: Structured{Declaration: true}})

	mustRegister(t, m, offVarHead, &Variable{CommonSymbol: CommonSymbol{Name: "head"}, ReferencingType: ref(offNodePtr), Location: 0x1000, HasLocation: true, External: true})
	mustRegister(t, m, offVarColor, &Variable{CommonSymbol: CommonSymbol{Name: "color"}, ReferencingType: ref(offColor), Location: 0x1008, HasLocation: true})

	mustRegister(t, m, offFnMain+8, &Pointer{CommonSymbol: CommonSymbol{ByteSize: 8}, ReferencingType: ref(offCharPtr)})
	mustRegister(t, m, offFnMain, &Function{
		CommonSymbol:    CommonSymbol{Name: "main"},
		ReferencingType: ref(offInt),
		Params: []Param{
			{Name: "argc", ReferencingType: ref(offInt)},
			{Name: "argv", ReferencingType: ref(offFnMain + 8)},
		},
		LowPC:    0x401000,
		HighPC:   0x401080,
		External: true,
	})
}

func newTestManager(t *testing.T) *SymbolManager {
	t.Helper()
	m := NewSymbolManager(WithLogger(logflags.Discard()))
	buildTestGraph(t, m)
	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return m
}

func findType(t *testing.T, m *SymbolManager, name string) Type {
	t.Helper()
	types, err := m.FindType(name)
	if err != nil {
		t.Fatalf("FindType(%q): %v", name, err)
	}
	return types[0]
}

func typeAt(t *testing.T, m *SymbolManager, off dwarf.Offset) Type {
	t.Helper()
	typ, err := m.TypeAt(off)
	if err != nil {
		t.Fatalf("TypeAt(%#x): %v", off, err)
	}
	return typ
}

func instanceOf(t *testing.T, m *SymbolManager, typ Type, addr uint64, mem MemoryReader) *Instance {
	t.Helper()
	inst, err := m.InstanceOf(typ, addr, mem)
	if err != nil {
		t.Fatalf("InstanceOf: %v", err)
	}
	return inst
}

func assertNoError(err error, t testing.TB, s string) {
	t.Helper()
	if err != nil {
		t.Fatalf("failed assertion %s: %v", s, err)
	}
}

func assertKind(t testing.TB, err error, kind ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
	var e *Error
	if errors.As(err, &e) && !errors.Is(err, &Error{Kind: kind}) {
		t.Fatalf("errors.Is(%v, %s) is false", err, kind)
	}
}

// recordingLogger keeps every message it is given.
type recordingLogger struct {
	lines *[]string
	err   error
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{lines: new([]string)}
}

func (l *recordingLogger) WithField(string, interface{}) logflags.Logger { return l }
func (l *recordingLogger) WithFields(logflags.Fields) logflags.Logger { return l }

func (l *recordingLogger) WithError(err error) logflags.Logger {
	return &recordingLogger{lines: l.lines, err: err}
}

func (l *recordingLogger) logf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	if l.err != nil {
		s += ": " + l.err.Error()
	}
	*l.lines = append(*l.lines, s)
}

func (l *recordingLogger) Debugf(format string, args ...interface{}) { l.logf(format, args...) }
func (l *recordingLogger) Infof(format string, args ...interface{}) { l.logf(format, args...) }
func (l *recordingLogger) Warnf(format string, args ...interface{}) { l.logf(format, args...) }
func (l *recordingLogger) Errorf(format string, args ...interface{}) { l.logf(format, args...) }
func (l *recordingLogger) Debug(args ...interface{}) { l.logf("%s", fmt.Sprint(args...)) }
func (l *recordingLogger) Info(args ...interface{}) { l.logf("%s", fmt.Sprint(args...)) }
func (l *recordingLogger) Warn(args ...interface{}) { l.logf("%s", fmt.Sprint(args...)) }
func (l *recordingLogger) Error(args ...interface{}) { l.logf("%s", fmt.Sprint(args...)) }
