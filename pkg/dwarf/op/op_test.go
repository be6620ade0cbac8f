package op

import (
	"bytes"
	"errors"
	"testing"
)

func TestExecuteStackProgram(t *testing.T) {
	var (
		instructions = []byte{byte(DW_OP_consts), 0x1c, byte(DW_OP_consts), 0x1c, byte(DW_OP_plus)}
		expected     = int64(56)
	)
	actual, isValue, err := ExecuteStackProgram(StaticContext{}, instructions)
	if err != nil {
		t.Fatal(err)
	}

	if actual != expected {
		t.Fatalf("actual %d != expected %d", actual, expected)
	}
	if isValue {
		t.Fatalf("expression should not be a stack value")
	}
}

func TestStaticAddress(t *testing.T) {
	tcs := []struct {
		name  string
		sctx  StaticContext
		instr []byte
		tgt   int64
	}{
		{"addr", StaticContext{PtrSize: 8}, []byte{byte(DW_OP_addr), 0x10, 0x20, 0, 0, 0, 0, 0, 0}, 0x2010},
		{"addr+base", StaticContext{PtrSize: 8, StaticBase: 0x1000}, []byte{byte(DW_OP_addr), 0x10, 0x20, 0, 0, 0, 0, 0, 0}, 0x3010},
		{"addr32", StaticContext{PtrSize: 4}, []byte{byte(DW_OP_addr), 0x10, 0x20, 0, 0}, 0x2010},
		{"addr+uconst", StaticContext{PtrSize: 8}, []byte{byte(DW_OP_addr), 0x00, 0x10, 0, 0, 0, 0, 0, 0, byte(DW_OP_plus_uconst), 0x08}, 0x1008},
		{"lit", StaticContext{}, []byte{byte(DW_OP_lit0 + 3), byte(DW_OP_lit0 + 4), byte(DW_OP_minus)}, -1},
		{"const2s", StaticContext{}, []byte{byte(DW_OP_const2s), 0xfe, 0xff}, -2},
		{"const4u", StaticContext{}, []byte{byte(DW_OP_const4u), 0x01, 0x00, 0x00, 0x80}, 0x80000001},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := ExecuteStackProgram(tc.sctx, tc.instr)
			if err != nil {
				t.Fatal(err)
			}
			if out != tc.tgt {
				t.Fatalf("expected %#x got %#x", tc.tgt, out)
			}
		})
	}
}

func TestMemberOffset(t *testing.T) {
	out, _, err := ExecuteStackProgram(StaticContext{}, []byte{byte(DW_OP_plus_uconst), 0x18}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out != 0x18 {
		t.Fatalf("expected 0x18 got %#x", out)
	}
}

func TestStackValue(t *testing.T) {
	out, isValue, err := ExecuteStackProgram(StaticContext{}, []byte{byte(DW_OP_constu), 0x2a, byte(DW_OP_stack_value)})
	if err != nil {
		t.Fatal(err)
	}
	if !isValue || out != 42 {
		t.Fatalf("expected value 42 got %d (value: %v)", out, isValue)
	}
}

func TestNotStatic(t *testing.T) {
	for _, instr := range [][]byte{
		{byte(DW_OP_fbreg), 0x10},
		{byte(DW_OP_reg0 + 5)},
		{byte(DW_OP_breg0 + 6), 0x08},
		{byte(DW_OP_call_frame_cfa)},
		{byte(DW_OP_addr), 0, 0, 0, 0, 0, 0, 0, 0, byte(DW_OP_deref)},
	} {
		_, _, err := ExecuteStackProgram(StaticContext{}, instr)
		if !errors.Is(err, ErrNotStatic) {
			t.Errorf("%x: expected ErrNotStatic, got %v", instr, err)
		}
	}
}

func TestMalformed(t *testing.T) {
	for _, instr := range [][]byte{
		{},
		{byte(DW_OP_plus)},
		{byte(DW_OP_addr), 0x01},
		{0xff},
	} {
		if _, _, err := ExecuteStackProgram(StaticContext{}, instr); err == nil {
			t.Errorf("%x: expected error", instr)
		}
	}
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, []byte{byte(DW_OP_addr), 0x10, 0x20, 0, 0, 0, 0, 0, 0, byte(DW_OP_plus_uconst), 0x08}, 8)
	if out := buf.String(); out != "DW_OP_addr 0x2010 DW_OP_plus_uconst 0x8 " {
		t.Fatalf("unexpected output %q", out)
	}
}
