package dwarfbuilder

import (
	"debug/dwarf"
	"testing"

	"github.com/go-delve/dwarfdb/pkg/dwarf/op"
)

func TestBuildReadable(t *testing.T) {
	b := New()
	intoff := b.AddBaseType("int", DW_ATE_signed, 4)
	stoff := b.AddStructType("point", 8)
	b.AddMember("x", intoff, LocationBlock(op.DW_OP_plus_uconst, uint(0)))
	b.AddMemberAt("y", intoff, 4)
	b.TagClose()
	b.AddArrayType("", intoff, 3)
	if err := b.NewUnit("other.c"); err != nil {
		t.Fatal(err)
	}
	b.AddVariable("p", stoff, LocationBlock(op.DW_OP_addr, Address(0x1000)))

	dw, err := b.Data()
	if err != nil {
		t.Fatal(err)
	}

	rdr := dw.Reader()
	var tags []dwarf.Tag
	units := 0
	for {
		e, err := rdr.Next()
		if err != nil {
			t.Fatal(err)
		}
		if e == nil {
			break
		}
		if e.Tag == 0 {
			continue
		}
		if e.Tag == dwarf.TagCompileUnit {
			units++
		}
		tags = append(tags, e.Tag)
		switch e.Offset {
		case stoff:
			if sz, _ := e.Val(dwarf.AttrByteSize).(int64); sz != 8 {
				t.Errorf("struct size: %d", sz)
			}
		}
		if e.Tag == dwarf.TagMember && e.Val(dwarf.AttrName) == "y" {
			if loc, _ := e.Val(dwarf.AttrDataMemberLoc).(int64); loc != 4 {
				t.Errorf("member y location: %v", e.Val(dwarf.AttrDataMemberLoc))
			}
		}
		if e.Tag == dwarf.TagVariable {
			if typ, _ := e.Val(dwarf.AttrType).(dwarf.Offset); typ != stoff {
				t.Errorf("variable type %#x, expected %#x", typ, stoff)
			}
		}
	}
	if units != 2 {
		t.Fatalf("expected 2 compilation units, got %d (%v)", units, tags)
	}
}

func TestUnbalanced(t *testing.T) {
	b := New()
	b.AddStructType("open", 4)
	if _, err := b.Data(); err == nil {
		t.Fatal("expected error for unbalanced tags")
	}
}
