package terminal

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"go/token"
	"strings"
	"testing"

	"github.com/go-delve/dwarfdb/pkg/config"
	"github.com/go-delve/dwarfdb/pkg/memory"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

const (
	offInt     dwarf.Offset = 0x10
	offChar    dwarf.Offset = 0x14
	offNode    dwarf.Offset = 0x30
	offNodePtr dwarf.Offset = 0x40
	offNodeT   dwarf.Offset = 0x44
	offMatrix  dwarf.Offset = 0x50
	offName    dwarf.Offset = 0x54
	offColor   dwarf.Offset = 0x60
	offHead    dwarf.Offset = 0x100
	offMatVar  dwarf.Offset = 0x104
	offNameVar dwarf.Offset = 0x108
	offMain    dwarf.Offset = 0x110
)

func ref(off dwarf.Offset) typedb.ReferencingType {
	return typedb.ReferencingType{Ref: off, HasRef: true}
}

// buildProgram returns the symbols of:
//
//	struct node { int value; struct node *next; };
//	typedef struct node node_t;
//	enum color { RED, GREEN };
//	struct node *head;  // at 0x1000
//	int matrix[2][3];   // at 0x2000
//	char name[8];       // at 0x2100
//	int main(void);     // at 0x3000
func buildProgram(t *testing.T) *typedb.SymbolManager {
	t.Helper()
	m := typedb.NewSymbolManager()
	register := func(off dwarf.Offset, sym typedb.Symbol) {
		t.Helper()
		if _, err := m.Register(off, sym); err != nil {
			t.Fatalf("Register(%#x): %v", off, err)
		}
	}

	register(offInt, &typedb.BaseType{CommonSymbol: typedb.CommonSymbol{Name: "int", ByteSize: 4}, Encoding: typedb.EncSigned})
	register(offChar, &typedb.BaseType{CommonSymbol: typedb.CommonSymbol{Name: "char", ByteSize: 1}, Encoding: typedb.EncSignedChar})
	node := &typedb.Struct{CommonSymbol: typedb.CommonSymbol{Name: "node", ByteSize: 16}}
	node.AddMember(&typedb.Member{Name: "value", ReferencingType: ref(offInt), ByteOffset: 0})
	node.AddMember(&typedb.Member{Name: "next", ReferencingType: ref(offNodePtr), ByteOffset: 8})
	register(offNode, node)
	register(offNodePtr, &typedb.Pointer{CommonSymbol: typedb.CommonSymbol{ByteSize: 8}, ReferencingType: ref(offNode)})
	register(offNodeT, &typedb.Typedef{CommonSymbol: typedb.CommonSymbol{Name: "node_t"}, ReferencingType: ref(offNode)})
	register(offMatrix, &typedb.Array{ReferencingType: ref(offInt), Dims: []int64{2, 3}})
	register(offName, &typedb.Array{ReferencingType: ref(offChar), Dims: []int64{8}})
	register(offColor, &typedb.Enum{
		CommonSymbol:    typedb.CommonSymbol{Name: "color", ByteSize: 4},
		ReferencingType: ref(offInt),
		Enumerators:     []typedb.Enumerator{{Name: "RED", Value: 0}, {Name: "GREEN", Value: 1}},
	})
	register(offHead, &typedb.Variable{
		CommonSymbol:    typedb.CommonSymbol{Name: "head"},
		ReferencingType: ref(offNodePtr),
		Location:        0x1000,
		HasLocation:     true,
		LocationExpr:    []byte{0x03, 0x00, 0x10, 0, 0, 0, 0, 0, 0},
		External:        true,
	})
	register(offMatVar, &typedb.Variable{CommonSymbol: typedb.CommonSymbol{Name: "matrix"}, ReferencingType: ref(offMatrix), Location: 0x2000, HasLocation: true})
	register(offNameVar, &typedb.Variable{CommonSymbol: typedb.CommonSymbol{Name: "name"}, ReferencingType: ref(offName), Location: 0x2100, HasLocation: true})
	register(offMain, &typedb.Function{CommonSymbol: typedb.CommonSymbol{Name: "main"}, ReferencingType: ref(offInt), LowPC: 0x3000, HighPC: 0x3008, External: true})

	if err := m.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return m
}

func buildMemory(t *testing.T) typedb.MemoryReader {
	t.Helper()
	var nodes bytes.Buffer
	for _, v := range []interface{}{
		// head
		uint64(0x1010), uint64(0),
		// first node
		int32(1), int32(0), uint64(0x1020),
		// second node
		int32(2), int32(0), uint64(0),
	} {
		if err := binary.Write(&nodes, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	var matrix bytes.Buffer
	for i := int32(0); i < 6; i++ {
		binary.Write(&matrix, binary.LittleEndian, i)
	}
	name := []byte("abcdefg\x00")
	// push rbp; mov rbp, rsp; xor eax, eax; pop rbp; ret
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0x31, 0xc0, 0x5d, 0xc3}

	var mem memory.Spliced
	mem.Add(memory.NewSnapshot(0x1000, nodes.Bytes()), 0x1000, uint64(nodes.Len()))
	mem.Add(memory.NewSnapshot(0x2000, matrix.Bytes()), 0x2000, uint64(matrix.Len()))
	mem.Add(memory.NewSnapshot(0x2100, name), 0x2100, uint64(len(name)))
	mem.Add(memory.NewSnapshot(0x3000, code), 0x3000, uint64(len(code)))
	return &mem
}

func newTestTerm(t *testing.T) (*Term, *bytes.Buffer) {
	t.Helper()
	term := New(buildProgram(t), buildMemory(t), &config.Config{})
	var buf bytes.Buffer
	term.SetStdout(&buf)
	return term, &buf
}

func call(t *testing.T, term *Term, buf *bytes.Buffer, cmdstr string) string {
	t.Helper()
	buf.Reset()
	if err := term.Call(cmdstr); err != nil {
		t.Fatalf("%q: %v", cmdstr, err)
	}
	return buf.String()
}

func assertContains(t *testing.T, out string, substrs ...string) {
	t.Helper()
	for _, s := range substrs {
		if !strings.Contains(out, s) {
			t.Errorf("output does not contain %q:\n%s", s, out)
		}
	}
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existent-command")
	)

	err := cmd(nil, "")
	if err == nil {
		t.Fatal("cmd() did not default")
	}

	if err.Error() != "command not available" {
		t.Fatal("wrong command output")
	}
}

func TestCommandReplayWithoutPreviousCommand(t *testing.T) {
	var (
		cmds = DebugCommands()
		cmd  = cmds.Find("")
		err  = cmd(nil, "")
	)

	if err != nil {
		t.Error("Null command not returned", err)
	}
}

func TestExitCommand(t *testing.T) {
	var (
		cmds = DebugCommands()
		cmd  = cmds.Find("exit")
	)

	err := cmd(nil, "")
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
}

func TestEvalExpr(t *testing.T) {
	m := buildProgram(t)
	mem := buildMemory(t)

	tests := []struct {
		expr     string
		addr     uint64
		typeName string
	}{
		{"head", 0x1000, "struct node *"},
		{"*head", 0x1010, "struct node"},
		{"head->value", 0x1010, "int"},
		{"head->next->value", 0x1020, "int"},
		{"(*head).next", 0x1018, "struct node *"},
		{"head.value", 0x1010, "int"},
		{"*head->next", 0x1020, "struct node"},
		{"head[1].value", 0x1020, "int"},
		{"matrix[1][2]", 0x2014, "int"},
		{"matrix [0] [1]", 0x2004, "int"},
		{"(struct node)0x1020", 0x1020, "struct node"},
		{"(node_t)0x1020", 0x1020, "node_t"},
		{"((struct node)0x1020).next", 0x1028, "struct node *"},
		{"(struct node)0x1010 . next -> value", 0x1020, "int"},
	}

	for _, tc := range tests {
		inst, err := evalExpr(m, mem, tc.expr)
		if err != nil {
			t.Errorf("%q: %v", tc.expr, err)
			continue
		}
		if inst.Address != tc.addr {
			t.Errorf("%q: address %#x, expected %#x", tc.expr, inst.Address, tc.addr)
		}
		if got := inst.TypeName(); got != tc.typeName {
			t.Errorf("%q: type %q, expected %q", tc.expr, got, tc.typeName)
		}
	}
}

func TestTokenizeExpr(t *testing.T) {
	toks, err := tokenizeExpr("(struct node)0x10->next")
	if err != nil {
		t.Fatal(err)
	}
	var lits []string
	for _, tok := range toks {
		lits = append(lits, tok.lit)
	}
	if got := strings.Join(lits, " "); got != "( struct node ) 0x10 -> next" {
		t.Fatalf("wrong tokens %q", got)
	}
	if toks[1].tok != token.IDENT {
		t.Errorf("struct scanned as %v", toks[1].tok)
	}
	if toks[5].tok != arrow {
		t.Errorf("-> scanned as %v", toks[5].tok)
	}
}

func TestPrintStructCast(t *testing.T) {
	term, buf := newTestTerm(t)
	out := call(t, term, buf, "print (struct node)0x1020")
	assertContains(t, out, "struct node {value: 2, next: (struct node *)(")
	if out := call(t, term, buf, "print ((struct node)0x1010).next->value"); out != "2\n" {
		t.Fatalf("wrong output %q", out)
	}
}

func TestEvalExprErrors(t *testing.T) {
	m := buildProgram(t)
	mem := buildMemory(t)

	kinds := map[string]typedb.ErrorKind{
		"head->nope":        typedb.NoSuchMember,
		"nosuch":            typedb.NotFound,
		"matrix[2][0]":      typedb.IndexOutOfRange,
		"(struct nope)0x10": typedb.NotFound,
	}
	for expr, kind := range kinds {
		_, err := evalExpr(m, mem, expr)
		if err == nil {
			t.Errorf("%q: expected error", expr)
			continue
		}
		if k := typedb.KindOf(err); k != kind {
			t.Errorf("%q: error kind %v, expected %v (%v)", expr, k, kind, err)
		}
	}

	for _, expr := range []string{
		"",
		"matrix[1]",
		"matrix->x",
		"head +",
		"&head",
		"(struct node *)0x10",
		"struct node",
		"head[",
		"(head",
		"head->",
		"head)",
	} {
		if _, err := evalExpr(m, mem, expr); err == nil {
			t.Errorf("%q: expected error", expr)
		}
	}
}

func TestPrintCommand(t *testing.T) {
	term, buf := newTestTerm(t)

	if out := call(t, term, buf, "print head"); out != "*struct node {value: 1, next: (struct node *)(0x1020)}\n" {
		t.Errorf("print head: %q", out)
	}
	if out := call(t, term, buf, "p head->next->value"); out != "2\n" {
		t.Errorf("p head->next->value: %q", out)
	}
	if out := call(t, term, buf, "print name"); out != "\"abcdefg\"\n" {
		t.Errorf("print name: %q", out)
	}
	if out := call(t, term, buf, "print matrix[1][0]"); out != "3\n" {
		t.Errorf("print matrix[1][0]: %q", out)
	}

	if err := term.Call("print"); err == nil {
		t.Error("print without arguments did not fail")
	}
}

func TestWhatisCommand(t *testing.T) {
	term, buf := newTestTerm(t)

	out := call(t, term, buf, "whatis struct node")
	assertContains(t, out, "struct node {\n", "int value;", "struct node * next;", "// offset 8", "}\nSize: 16")

	out = call(t, term, buf, "whatis node_t")
	assertContains(t, out, "typedef struct node node_t", "Size: 16")

	out = call(t, term, buf, "whatis enum color")
	assertContains(t, out, "enum color {\n", "RED = 0,", "GREEN = 1,")

	out = call(t, term, buf, "whatis main")
	assertContains(t, out, "int main()", "Code: [0x3000, 0x3008)")

	if out := call(t, term, buf, "whatis head->next"); out != "struct node *\nSize: 8\nAddress: 0x1018\n" {
		t.Errorf("whatis head->next: %q", out)
	}

	if out := call(t, term, buf, "whatis head"); strings.Contains(out, "Location:") {
		t.Errorf("location expression printed without show-location-expr: %q", out)
	}
	term.conf.ShowLocationExpr = true
	out = call(t, term, buf, "whatis head")
	assertContains(t, out, "Location: DW_OP_addr 0x1000")

	if err := term.Call("whatis"); err == nil {
		t.Error("whatis without arguments did not fail")
	}
}

func TestListCommands(t *testing.T) {
	term, buf := newTestTerm(t)

	if out := call(t, term, buf, "types node"); out != "node_t\nstruct node\n" {
		t.Errorf("types node: %q", out)
	}
	if out := call(t, term, buf, "vars"); out != "head struct node * @ 0x1000\nmatrix int[2][3] @ 0x2000\nname char[8] @ 0x2100\n" {
		t.Errorf("vars: %q", out)
	}
	if out := call(t, term, buf, "funcs ^ma"); out != "main\n" {
		t.Errorf("funcs: %q", out)
	}
	if err := term.Call("types ["); err == nil {
		t.Error("invalid regular expression accepted")
	}
}

func TestExamineMemoryCommand(t *testing.T) {
	term, buf := newTestTerm(t)

	out := call(t, term, buf, "x -count 2 -size 4 0x2004")
	assertContains(t, out, "0x2004:", "0x00000001", "0x00000002")

	out = call(t, term, buf, "examinemem -fmt dec -count 1 -size 4 -x matrix[1][2]")
	assertContains(t, out, "0x2014:", "005")

	for _, cmdstr := range []string{
		"x",
		"x -size 9 0x2000",
		"x -count 2000 0x2000",
		"x -fmt nope 0x2000",
		"x 0x9000",
		"x -x nosuch",
	} {
		if err := term.Call(cmdstr); err == nil {
			t.Errorf("%q did not fail", cmdstr)
		}
	}
}

func TestDisassembleCommand(t *testing.T) {
	term, buf := newTestTerm(t)

	out := call(t, term, buf, "disassemble main")
	assertContains(t, out, "TEXT main [0x3000, 0x3008)", "0x3000", "55", "push rbp", "ret")

	out = call(t, term, buf, "disass -f gnu 0x3004")
	assertContains(t, out, "TEXT main", "%rbp")

	out = call(t, term, buf, "disassemble -a 0x3006 0x3008")
	assertContains(t, out, "0x3007", "c3")
	if strings.Contains(out, "TEXT") {
		t.Errorf("header printed for an address range: %q", out)
	}

	for _, cmdstr := range []string{
		"disassemble",
		"disassemble -f nope main",
		"disassemble nosuch",
		"disassemble 0x9000",
		"disassemble -a 0x3008 0x3000",
	} {
		if err := term.Call(cmdstr); err == nil {
			t.Errorf("%q did not fail", cmdstr)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	term, buf := newTestTerm(t)

	call(t, term, buf, "config max-string-len 3")
	if out := call(t, term, buf, "print name"); out != "\"abc\"\n" {
		t.Errorf("print name with max-string-len 3: %q", out)
	}
	if out := call(t, term, buf, "config max-string-len"); out != "max-string-len\t3\n" {
		t.Errorf("config max-string-len: %q", out)
	}
	assertContains(t, call(t, term, buf, "config -list"), "max-string-len\t3\n", "partial-graph\tfalse\n")

	call(t, term, buf, "config alias print pp")
	if out := call(t, term, buf, "pp head->value"); out != "1\n" {
		t.Errorf("pp head->value: %q", out)
	}
	call(t, term, buf, "config alias pp")
	if err := term.Call("pp head->value"); !errors.Is(err, errNoCmd) {
		t.Errorf("alias not removed: %v", err)
	}

	if err := term.Call("config nope 1"); err == nil {
		t.Error("unknown configuration parameter accepted")
	}
	if err := term.Call("config"); err == nil {
		t.Error("config without arguments did not fail")
	}
}

func TestNodeAndStatsCommands(t *testing.T) {
	term, buf := newTestTerm(t)

	out := call(t, term, buf, "node 0x30")
	assertContains(t, out, "0x30 struct node (unit 0)", "Type: struct node", "Size: 16", "References: 0x10 0x40")

	out = call(t, term, buf, "node 0x40")
	assertContains(t, out, "pointer <anonymous>", "Type: struct node *")

	if err := term.Call("node 0x999"); typedb.KindOf(err) != typedb.NotFound {
		t.Errorf("node 0x999: %v", err)
	}
	if err := term.Call("node zzz"); err == nil {
		t.Error("invalid offset accepted")
	}

	out = call(t, term, buf, "stats")
	assertContains(t, out, "struct", "total", "0 issues")
}

func TestHelpCommand(t *testing.T) {
	term, buf := newTestTerm(t)

	out := call(t, term, buf, "help")
	assertContains(t, out, "Inspecting types and symbols:", "print (alias: p)", "exit (alias: quit | q)")

	out = call(t, term, buf, "help x")
	assertContains(t, out, "Examine raw memory")

	if err := term.Call("help nope"); err != errNoCmd {
		t.Errorf("help nope: %v", err)
	}
	if err := term.Call("nope"); err != errNoCmd {
		t.Errorf("nope: %v", err)
	}
}

func TestComplete(t *testing.T) {
	term, _ := newTestTerm(t)

	got := term.complete("pri")
	if len(got) != 1 || got[0] != "print" {
		t.Errorf("complete(pri) = %q", got)
	}
	got = term.complete("print hea")
	if len(got) != 1 || got[0] != "print head" {
		t.Errorf("complete(print hea) = %q", got)
	}
	got = term.complete("print head->ne")
	if len(got) != 0 {
		t.Errorf("complete(print head->ne) = %q", got)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	DebugCommands().WriteMarkdown(&buf)
	assertContains(t, buf.String(), "# Commands", "[print](#print)", "## print\n", "Aliases: p\n", ".dwarfdb_history")
}
