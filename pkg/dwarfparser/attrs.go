package dwarfparser

import (
	"debug/dwarf"
	"fmt"

	"github.com/go-delve/dwarfdb/pkg/dwarf/godwarf"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

func malformed(n *godwarf.Tree, format string, args ...interface{}) *typedb.Error {
	return &typedb.Error{Kind: typedb.MalformedDIE, Offset: n.Offset, Tag: n.Tag, Msg: fmt.Sprintf(format, args...)}
}

func unsupported(n *godwarf.Tree, format string, args ...interface{}) *typedb.Error {
	return &typedb.Error{Kind: typedb.UnsupportedConstruct, Offset: n.Offset, Tag: n.Tag, Msg: fmt.Sprintf(format, args...)}
}

// typeRef reads a reference attribute. A missing attribute is a reference
// to void.
func typeRef(n *godwarf.Tree, attr dwarf.Attr) (typedb.ReferencingType, error) {
	switch v := n.Val(attr).(type) {
	case nil:
		return typedb.ReferencingType{}, nil
	case dwarf.Offset:
		return typedb.ReferencingType{Ref: v, HasRef: true}, nil
	case uint64:
		// DW_FORM_ref_sig8
		return typedb.ReferencingType{}, unsupported(n, "%s refers to a type unit", attr)
	default:
		return typedb.ReferencingType{}, malformed(n, "%s has class %T", attr, v)
	}
}

// offsetAttr reads an attribute that refers to another DIE.
func offsetAttr(n *godwarf.Tree, attr dwarf.Attr) (dwarf.Offset, bool) {
	off, ok := n.Val(attr).(dwarf.Offset)
	return off, ok
}

// intAttr reads a constant attribute. The data forms are decoded as int64
// by debug/dwarf, hand built trees may use other integer types.
func intAttr(n *godwarf.Tree, attr dwarf.Attr) (int64, bool, error) {
	switch v := n.Val(attr).(type) {
	case nil:
		return 0, false, nil
	case int64:
		return v, true, nil
	case uint64:
		return int64(v), true, nil
	case int:
		return int64(v), true, nil
	case uint8:
		return int64(v), true, nil
	case uint16:
		return int64(v), true, nil
	case uint32:
		return int64(v), true, nil
	default:
		return 0, false, malformed(n, "%s has class %T", attr, v)
	}
}

func flagAttr(n *godwarf.Tree, attr dwarf.Attr) bool {
	v, _ := n.Val(attr).(bool)
	return v
}

func addrAttr(n *godwarf.Tree, attr dwarf.Attr) (uint64, bool) {
	v, ok := n.Val(attr).(uint64)
	return v, ok
}
