package typedb

import (
	"debug/dwarf"
	"fmt"
	"sort"
	"strings"
)

func (m *SymbolManager) requireReady() error {
	if m.state != QueryReady {
		return &Error{Kind: InvalidState, Msg: "the symbol manager has not been finalized"}
	}
	return nil
}

// FindType returns all types called name.
func (m *SymbolManager) FindType(name string) ([]Type, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	var r []Type
	for _, sym := range m.byName[name] {
		if t, ok := sym.(Type); ok && sym.Kind() != KindFunction {
			r = append(r, t)
		}
	}
	if len(r) == 0 {
		return nil, &Error{Kind: NotFound, Msg: fmt.Sprintf("no type named %q", name)}
	}
	return r, nil
}

// FindVariable returns all variables called name.
func (m *SymbolManager) FindVariable(name string) ([]*Variable, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	var r []*Variable
	for _, sym := range m.byName[name] {
		if v, ok := sym.(*Variable); ok {
			r = append(r, v)
		}
	}
	if len(r) == 0 {
		return nil, &Error{Kind: NotFound, Msg: fmt.Sprintf("no variable named %q", name)}
	}
	return r, nil
}

// FindFunction returns all functions called name.
func (m *SymbolManager) FindFunction(name string) ([]*Function, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	var r []*Function
	for _, sym := range m.byName[name] {
		if fn, ok := sym.(*Function); ok {
			r = append(r, fn)
		}
	}
	if len(r) == 0 {
		return nil, &Error{Kind: NotFound, Msg: fmt.Sprintf("no function named %q", name)}
	}
	return r, nil
}

// LookupVariable returns the variable called name, preferring one that has
// a static location over declarations.
func (m *SymbolManager) LookupVariable(name string) (*Variable, error) {
	vars, err := m.FindVariable(name)
	if err != nil {
		return nil, err
	}
	for _, v := range vars {
		if v.HasLocation {
			return v, nil
		}
	}
	return vars[0], nil
}

// LookupFunction returns the function called name, preferring one with a
// known address range.
func (m *SymbolManager) LookupFunction(name string) (*Function, error) {
	fns, err := m.FindFunction(name)
	if err != nil {
		return nil, err
	}
	for _, fn := range fns {
		if fn.HasCode() {
			return fn, nil
		}
	}
	return fns[0], nil
}

// FunctionAt returns the function whose address range contains pc.
func (m *SymbolManager) FunctionAt(pc uint64) (*Function, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	for _, off := range m.order {
		if fn, ok := m.nodes[off].(*Function); ok && fn.LowPC <= pc && pc < fn.HighPC {
			return fn, nil
		}
	}
	return nil, &Error{Kind: NotFound, Msg: fmt.Sprintf("no function contains %#x", pc)}
}

// TypeAt returns the type registered at off.
func (m *SymbolManager) TypeAt(off dwarf.Offset) (Type, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	sym, err := m.LookupByOffset(off)
	if err != nil {
		return nil, err
	}
	t, ok := sym.(Type)
	if !ok {
		return nil, wrongKind(sym, "TypeAt")
	}
	return t, nil
}

// InstanceOf returns a view of the memory at addr as a value of type t.
// Nothing is read until one of the instance methods is called.
func (m *SymbolManager) InstanceOf(t Type, addr uint64, mem MemoryReader) (*Instance, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &Error{Kind: WrongKind, Msg: "instance of void"}
	}
	return &Instance{Type: t, Address: addr, m: m, mem: mem}, nil
}

// VariableInstance returns the instance of a variable with a static
// location.
func (m *SymbolManager) VariableInstance(v *Variable, mem MemoryReader) (*Instance, error) {
	if !v.HasLocation {
		return nil, NewError(NotFound, v.Offset, "variable %s has no static location", v.Name)
	}
	t, err := v.Resolve(m)
	if err != nil {
		return nil, err
	}
	return m.InstanceOf(t, v.Location, mem)
}

// Definition returns the complete definition of a struct, union or enum
// that is only declared at t. Other types are returned unchanged.
func (m *SymbolManager) Definition(t Type) (Type, error) {
	declared := false
	switch t := t.(type) {
	case *Struct:
		declared = t.Declaration
	case *Union:
		declared = t.Declaration
	case *Enum:
		declared = t.Declaration
	}
	if !declared {
		return t, nil
	}
	name := t.Common().Name
	for _, sym := range m.LookupByName(name) {
		if sym.Kind() != t.Kind() {
			continue
		}
		switch d := sym.(type) {
		case *Struct:
			if !d.Declaration {
				return d, nil
			}
		case *Union:
			if !d.Declaration {
				return d, nil
			}
		case *Enum:
			if !d.Declaration {
				return d, nil
			}
		}
	}
	return nil, NewError(NotFound, t.Common().Offset, "no definition of %s %s", t.Kind(), name)
}

// Effective strips const, volatile, restrict and typedef wrappers from t.
// It returns nil for void.
func (m *SymbolManager) Effective(t Type) (Type, error) {
	seen := map[dwarf.Offset]bool{}
	for t != nil {
		var ref *ReferencingType
		switch x := t.(type) {
		case *ConstType:
			ref = &x.ReferencingType
		case *Typedef:
			ref = &x.ReferencingType
		default:
			return t, nil
		}
		off := t.Common().Offset
		if seen[off] {
			return nil, NewError(MalformedDIE, off, "cyclic typedef or qualifier chain")
		}
		seen[off] = true
		if !ref.HasRef {
			return nil, nil
		}
		next, err := m.typeAt(ref.Ref, off)
		if err != nil {
			return nil, err
		}
		t = next
	}
	return nil, nil
}

// SizeOf returns the size in bytes of a value of type t.
func (m *SymbolManager) SizeOf(t Type) (int64, error) {
	return m.sizeOf(t, 0)
}

const maxTypeDepth = 64

func (m *SymbolManager) sizeOf(t Type, depth int) (int64, error) {
	if t == nil {
		return 0, &Error{Kind: WrongKind, Msg: "size of void"}
	}
	if depth > maxTypeDepth {
		return 0, NewError(MalformedDIE, t.Common().Offset, "type nesting too deep")
	}
	switch t := t.(type) {
	case *BaseType, *Struct, *Union:
		return t.Common().ByteSize, nil
	case *Pointer:
		if t.ByteSize > 0 {
			return t.ByteSize, nil
		}
		return int64(m.ptrSize), nil
	case *Enum:
		if t.ByteSize > 0 || !t.HasRef {
			return t.ByteSize, nil
		}
		under, err := t.Resolve(m)
		if err != nil {
			return 0, err
		}
		return m.sizeOf(under, depth+1)
	case *ConstType, *Typedef:
		if t.Common().ByteSize > 0 {
			return t.Common().ByteSize, nil
		}
		eff, err := m.Effective(t)
		if err != nil {
			return 0, err
		}
		return m.sizeOf(eff, depth+1)
	case *Array:
		if !t.Known() {
			return 0, nil
		}
		if t.ByteSize > 0 {
			return t.ByteSize, nil
		}
		stride, err := m.stride(t, depth)
		if err != nil {
			return 0, err
		}
		return stride * t.Count(), nil
	case *Unsupported:
		if t.ByteSize > 0 {
			return t.ByteSize, nil
		}
		return 0, NewError(UnsupportedConstruct, t.Offset, "size of %s", t.Tag)
	}
	return 0, wrongKind(t, "sizeof")
}

// stride returns the distance in bytes between two elements of an array.
func (m *SymbolManager) stride(t *Array, depth int) (int64, error) {
	if t.StrideBits > 0 {
		return t.StrideBits / 8, nil
	}
	elem, err := t.Resolve(m)
	if err != nil {
		return 0, err
	}
	return m.sizeOf(elem, depth+1)
}

// Complete returns the names in the database that start with prefix,
// sorted.
func (m *SymbolManager) Complete(prefix string) []string {
	if m.state != QueryReady {
		return nil
	}
	r := m.names.PrefixSearch(prefix)
	sort.Strings(r)
	return r
}

// Types returns all types, sorted by offset.
func (m *SymbolManager) Types() []Type {
	var r []Type
	for _, off := range m.Offsets() {
		if t, ok := m.nodes[off].(Type); ok && t.Kind() != KindFunction {
			r = append(r, t)
		}
	}
	return r
}

// Variables returns all variables, sorted by offset.
func (m *SymbolManager) Variables() []*Variable {
	var r []*Variable
	for _, off := range m.Offsets() {
		if v, ok := m.nodes[off].(*Variable); ok {
			r = append(r, v)
		}
	}
	return r
}

// Functions returns all functions, sorted by offset.
func (m *SymbolManager) Functions() []*Function {
	var r []*Function
	for _, off := range m.Offsets() {
		if fn, ok := m.nodes[off].(*Function); ok {
			r = append(r, fn)
		}
	}
	return r
}

// Stats returns the number of nodes of each kind.
func (m *SymbolManager) Stats() map[Kind]int {
	r := map[Kind]int{}
	for _, sym := range m.nodes {
		r[sym.Kind()]++
	}
	return r
}

const cyclicalTypeStop = "<cyclical>" // printed for types with a cyclical definition

type recCheck map[dwarf.Offset]struct{}

func (recCheck recCheck) acquire(off dwarf.Offset) (release func()) {
	if _, rec := recCheck[off]; rec {
		return nil
	}
	recCheck[off] = struct{}{}
	return func() {
		delete(recCheck, off)
	}
}

// TypeName returns a C-like rendering of the name of t.
func (m *SymbolManager) TypeName(t Type) string {
	return m.typeName(t, make(recCheck))
}

func (m *SymbolManager) refName(r *ReferencingType, recCheck recCheck) string {
	if !r.HasRef {
		return "void"
	}
	t, err := m.typeAt(r.Ref, 0)
	if err != nil {
		return fmt.Sprintf("<unresolved %#x>", r.Ref)
	}
	return m.typeName(t, recCheck)
}

func (m *SymbolManager) typeName(t Type, recCheck recCheck) string {
	if t == nil {
		return "void"
	}
	release := recCheck.acquire(t.Common().Offset)
	if release == nil {
		return cyclicalTypeStop
	}
	defer release()

	name := t.Common().Name
	switch t := t.(type) {
	case *BaseType, *Typedef:
		return name
	case *ConstType:
		return t.Qual.String() + " " + m.refName(&t.ReferencingType, recCheck)
	case *Pointer:
		if t.Reference {
			return m.refName(&t.ReferencingType, recCheck) + " &"
		}
		return m.refName(&t.ReferencingType, recCheck) + " *"
	case *FuncPointer:
		params := make([]string, 0, len(t.Params)+1)
		for _, p := range t.Params {
			params = append(params, m.refName(&ReferencingType{Ref: p, HasRef: true}, recCheck))
		}
		if t.Variadic {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s (*)(%s)", m.refName(&t.ReferencingType, recCheck), strings.Join(params, ", "))
	case *Array:
		var b strings.Builder
		b.WriteString(m.refName(&t.ReferencingType, recCheck))
		for _, d := range t.Dims {
			if d < 0 {
				b.WriteString("[]")
			} else {
				fmt.Fprintf(&b, "[%d]", d)
			}
		}
		return b.String()
	case *Enum:
		return "enum " + anon(name)
	case *Struct:
		if t.Class {
			return "class " + anon(name)
		}
		return "struct " + anon(name)
	case *Union:
		return "union " + anon(name)
	case *Function:
		params := make([]string, 0, len(t.Params)+1)
		for i := range t.Params {
			params = append(params, m.refName(&t.Params[i].ReferencingType, recCheck))
		}
		if t.Variadic {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s %s(%s)", m.refName(&t.ReferencingType, recCheck), name, strings.Join(params, ", "))
	case *Unsupported:
		if name != "" {
			return name
		}
		return fmt.Sprintf("<unsupported %s>", t.Tag)
	}
	return name
}

func anon(name string) string {
	if name == "" {
		return "{...}"
	}
	return name
}
