// Package typedb holds the type graph built from DWARF debug information
// and decodes target memory through it.
//
// All nodes are owned by a SymbolManager and refer to each other by DIE
// offset, which makes forward and cyclic references trivially safe: the
// graph is never traversed by pointer, every edge is resolved through the
// manager when it is followed.
package typedb

import (
	"debug/dwarf"
	"fmt"
)

// Kind identifies the variant of a Symbol.
type Kind uint8

const (
	KindBase Kind = iota + 1
	KindConst
	KindTypedef
	KindPointer
	KindFuncPointer
	KindArray
	KindEnum
	KindStruct
	KindUnion
	KindFunction
	KindVariable
	KindUnsupported
)

var kindNames = [...]string{
	KindBase:        "base type",
	KindConst:       "qualified type",
	KindTypedef:     "typedef",
	KindPointer:     "pointer",
	KindFuncPointer: "function type",
	KindArray:       "array",
	KindEnum:        "enum",
	KindStruct:      "struct",
	KindUnion:       "union",
	KindFunction:    "function",
	KindVariable:    "variable",
	KindUnsupported: "unsupported type",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// CommonSymbol holds the fields shared by every node.
type CommonSymbol struct {
	Offset   dwarf.Offset
	Name     string // empty for anonymous nodes
	ByteSize int64  // 0 when the DIE has no DW_AT_byte_size
	Unit     int    // index of the compilation unit
}

// Common returns c.
func (c *CommonSymbol) Common() *CommonSymbol { return c }

// Symbol is a node of the type graph: a type, a variable or a function.
type Symbol interface {
	Common() *CommonSymbol
	Kind() Kind
	// References returns the offsets of every other node this node refers
	// to, in no particular order.
	References() []dwarf.Offset
}

// Type is a Symbol that can be the type of a value.
type Type interface {
	Symbol
	isType()
}

// ReferencingType is embedded by nodes that refer to another type.
// HasRef is false for references to void (pointers to void, functions that
// return nothing).
type ReferencingType struct {
	Ref    dwarf.Offset
	HasRef bool
}

// SetRef sets the referenced offset.
func (r *ReferencingType) SetRef(off dwarf.Offset) {
	r.Ref = off
	r.HasRef = true
}

// Resolve returns the referenced type. It returns nil and no error for a
// reference to void.
func (r *ReferencingType) Resolve(m *SymbolManager) (Type, error) {
	if !r.HasRef {
		return nil, nil
	}
	return m.typeAt(r.Ref, 0)
}

func (r *ReferencingType) refs() []dwarf.Offset {
	if !r.HasRef {
		return nil
	}
	return []dwarf.Offset{r.Ref}
}
