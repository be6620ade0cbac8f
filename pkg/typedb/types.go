package typedb

import (
	"debug/dwarf"
	"fmt"
)

// Encoding is the value of DW_AT_encoding of a base type.
type Encoding uint8

// Basic type encodings, see DWARF v4 section 7.8.
const (
	EncAddress        Encoding = 0x01
	EncBoolean        Encoding = 0x02
	EncComplexFloat   Encoding = 0x03
	EncFloat          Encoding = 0x04
	EncSigned         Encoding = 0x05
	EncSignedChar     Encoding = 0x06
	EncUnsigned       Encoding = 0x07
	EncUnsignedChar   Encoding = 0x08
	EncImaginaryFloat Encoding = 0x09
	EncPackedDecimal  Encoding = 0x0a
	EncNumericString  Encoding = 0x0b
	EncEdited         Encoding = 0x0c
	EncSignedFixed    Encoding = 0x0d
	EncUnsignedFixed  Encoding = 0x0e
	EncDecimalFloat   Encoding = 0x0f
	EncUTF            Encoding = 0x10
)

var encodingNames = map[Encoding]string{
	EncAddress:        "address",
	EncBoolean:        "boolean",
	EncComplexFloat:   "complex float",
	EncFloat:          "float",
	EncSigned:         "signed",
	EncSignedChar:     "signed char",
	EncUnsigned:       "unsigned",
	EncUnsignedChar:   "unsigned char",
	EncImaginaryFloat: "imaginary float",
	EncPackedDecimal:  "packed decimal",
	EncNumericString:  "numeric string",
	EncEdited:         "edited",
	EncSignedFixed:    "signed fixed",
	EncUnsignedFixed:  "unsigned fixed",
	EncDecimalFloat:   "decimal float",
	EncUTF:            "UTF",
}

func (e Encoding) String() string {
	if s, ok := encodingNames[e]; ok {
		return s
	}
	return fmt.Sprintf("encoding %#x", uint8(e))
}

// BaseType is a primitive type.
type BaseType struct {
	CommonSymbol
	Encoding Encoding
	// BitSize and BitOffset are set when only some of the bits of the
	// storage hold the value, BitOffset is counted like Member.BitOffset.
	BitSize   int64
	BitOffset int64
}

func (t *BaseType) Kind() Kind                 { return KindBase }
func (t *BaseType) References() []dwarf.Offset { return nil }
func (t *BaseType) isType()                    {}

// Qualifier distinguishes the transparent wrappers represented by ConstType.
type Qualifier uint8

const (
	QualConst Qualifier = iota
	QualVolatile
	QualRestrict
)

func (q Qualifier) String() string {
	switch q {
	case QualVolatile:
		return "volatile"
	case QualRestrict:
		return "restrict"
	}
	return "const"
}

// ConstType is a const, volatile or restrict qualified type. It has no
// representation of its own.
type ConstType struct {
	CommonSymbol
	ReferencingType
	Qual Qualifier
}

func (t *ConstType) Kind() Kind                 { return KindConst }
func (t *ConstType) References() []dwarf.Offset { return t.refs() }
func (t *ConstType) isType()                    {}

// Typedef is a named alias of another type.
type Typedef struct {
	CommonSymbol
	ReferencingType
}

func (t *Typedef) Kind() Kind                 { return KindTypedef }
func (t *Typedef) References() []dwarf.Offset { return t.refs() }
func (t *Typedef) isType()                    {}

// Pointer is a pointer (or C++ reference) type. A Pointer without a
// reference is a void pointer.
type Pointer struct {
	CommonSymbol
	ReferencingType
	Reference bool // DW_TAG_reference_type or DW_TAG_rvalue_reference_type
}

func (t *Pointer) Kind() Kind                 { return KindPointer }
func (t *Pointer) References() []dwarf.Offset { return t.refs() }
func (t *Pointer) isType()                    {}

// FuncPointer is a function signature (DW_TAG_subroutine_type), usually
// the target of a function pointer. The embedded reference is the return
// type.
type FuncPointer struct {
	CommonSymbol
	ReferencingType
	Params   []dwarf.Offset
	Variadic bool
}

func (t *FuncPointer) Kind() Kind { return KindFuncPointer }
func (t *FuncPointer) isType()    {}

func (t *FuncPointer) References() []dwarf.Offset {
	return append(t.refs(), t.Params...)
}

// UnknownExtent is the dimension of a flexible array.
const UnknownExtent = -1

// Array is a fixed size, possibly multi-dimensional array. The embedded
// reference is the element type.
type Array struct {
	CommonSymbol
	ReferencingType
	Dims       []int64 // outermost first, UnknownExtent for x[]
	StrideBits int64   // 0 if the stride is the element size
}

func (t *Array) Kind() Kind                 { return KindArray }
func (t *Array) References() []dwarf.Offset { return t.refs() }
func (t *Array) isType()                    {}

// Known returns false if any dimension has an unknown extent.
func (t *Array) Known() bool {
	for _, d := range t.Dims {
		if d < 0 {
			return false
		}
	}
	return true
}

// Count returns the total number of elements, the product of all
// dimensions. An array with an unknown extent has 0 elements.
func (t *Array) Count() int64 {
	if !t.Known() {
		return 0
	}
	n := int64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Enumerator is a named value of an Enum.
type Enumerator struct {
	Name  string
	Value int64
}

// Enum is an enumeration type. The embedded reference, when present, is the
// underlying integer type.
type Enum struct {
	CommonSymbol
	ReferencingType
	Enumerators []Enumerator
	Declaration bool
}

func (t *Enum) Kind() Kind                 { return KindEnum }
func (t *Enum) References() []dwarf.Offset { return t.refs() }
func (t *Enum) isType()                    {}

// NameOf returns the name of the first enumerator with value v.
func (t *Enum) NameOf(v int64) (string, bool) {
	for _, e := range t.Enumerators {
		if e.Value == v {
			return e.Name, true
		}
	}
	return "", false
}

// ValueOf returns the value of the enumerator called name.
func (t *Enum) ValueOf(name string) (int64, bool) {
	for _, e := range t.Enumerators {
		if e.Name == name {
			return e.Value, true
		}
	}
	return 0, false
}

// Struct is a structure or class type.
type Struct struct {
	CommonSymbol
	Structured
	Class bool
}

func (t *Struct) Kind() Kind                 { return KindStruct }
func (t *Struct) References() []dwarf.Offset { return t.memberRefs() }
func (t *Struct) isType()                    {}

// Union is a union type, all its members start at offset 0.
type Union struct {
	CommonSymbol
	Structured
}

func (t *Union) Kind() Kind                 { return KindUnion }
func (t *Union) References() []dwarf.Offset { return t.memberRefs() }
func (t *Union) isType()                    {}

// Param is a formal parameter of a Function.
type Param struct {
	Name string
	ReferencingType
	Offset dwarf.Offset
}

// Function is a subprogram. The embedded reference is the return type.
type Function struct {
	CommonSymbol
	ReferencingType
	Params      []Param
	Variadic    bool
	LowPC       uint64
	HighPC      uint64
	External    bool
	Declaration bool
}

func (t *Function) Kind() Kind { return KindFunction }
func (t *Function) isType()    {}

func (t *Function) References() []dwarf.Offset {
	r := t.refs()
	for i := range t.Params {
		r = append(r, t.Params[i].refs()...)
	}
	return r
}

// Param returns the parameter called name.
func (t *Function) Param(name string) (*Param, bool) {
	for i := range t.Params {
		if t.Params[i].Name == name {
			return &t.Params[i], true
		}
	}
	return nil, false
}

// HasCode returns true if the function has a known address range.
func (t *Function) HasCode() bool {
	return t.HighPC > t.LowPC
}

// Unsupported stands in for a type DIE whose tag is recognized but not
// implemented, so that references to it resolve. Every Instance operation
// on it fails with UnsupportedConstruct.
type Unsupported struct {
	CommonSymbol
	ReferencingType
	Tag dwarf.Tag
}

func (t *Unsupported) Kind() Kind                 { return KindUnsupported }
func (t *Unsupported) References() []dwarf.Offset { return t.refs() }
func (t *Unsupported) isType()                    {}

// Variable is a global or static variable.
type Variable struct {
	CommonSymbol
	ReferencingType
	Location     uint64 // static address, valid if HasLocation
	HasLocation  bool
	LocationExpr []byte
	External     bool
	Declaration  bool
}

func (v *Variable) Kind() Kind                 { return KindVariable }
func (v *Variable) References() []dwarf.Offset { return v.refs() }
