package typedb

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Instance is a typed view of the memory at Address. Instances are cheap,
// they are created for a single query and never cached. All reads go
// through the MemoryReader given to InstanceOf.
type Instance struct {
	Type    Type
	Address uint64
	// BitSize and BitOffset are set when the instance is a bit-field
	// member, BitOffset is relative to Address.
	BitSize   int64
	BitOffset int64

	m   *SymbolManager
	mem MemoryReader
}

func (inst *Instance) derive(t Type, addr uint64) *Instance {
	return &Instance{Type: t, Address: addr, m: inst.m, mem: inst.mem}
}

// Manager returns the SymbolManager inst belongs to.
func (inst *Instance) Manager() *SymbolManager { return inst.m }

// TypeName returns the C-like name of the type of inst.
func (inst *Instance) TypeName() string { return inst.m.TypeName(inst.Type) }

func (inst *Instance) String() string {
	return fmt.Sprintf("(%s)(%#x)", inst.TypeName(), inst.Address)
}

// Equal returns true if inst and o are the same value: same type node and
// same address.
func (inst *Instance) Equal(o *Instance) bool {
	if inst == nil || o == nil {
		return inst == o
	}
	return inst.Type.Common().Offset == o.Type.Common().Offset && inst.Address == o.Address && inst.BitSize == o.BitSize && inst.BitOffset == o.BitOffset
}

// Cast returns a view of the same memory with a different type.
func (inst *Instance) Cast(t Type) *Instance {
	return inst.derive(t, inst.Address)
}

// concrete returns the type of inst without qualifiers and typedefs and
// with declarations replaced by their definition.
func (inst *Instance) concrete() (Type, error) {
	t, err := inst.m.Effective(inst.Type)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &Error{Kind: WrongKind, Offset: inst.Type.Common().Offset, Msg: "value of type void"}
	}
	if u, ok := t.(*Unsupported); ok {
		return nil, &Error{Kind: UnsupportedConstruct, Offset: u.Offset, Tag: u.Tag, Msg: "values of this type can not be decoded"}
	}
	return inst.m.Definition(t)
}

func structuredOf(t Type) (*Structured, bool) {
	switch t := t.(type) {
	case *Struct:
		return &t.Structured, true
	case *Union:
		return &t.Structured, true
	}
	return nil, false
}

func (inst *Instance) structured(op string) (*Structured, Type, error) {
	t, err := inst.concrete()
	if err != nil {
		return nil, nil, err
	}
	s, ok := structuredOf(t)
	if !ok {
		return nil, nil, wrongKind(t, op)
	}
	return s, t, nil
}

// Field returns the member called name. Only direct members are searched,
// use FindField to look inside anonymous structs and unions.
func (inst *Instance) Field(name string) (*Instance, error) {
	s, t, err := inst.structured("field access")
	if err != nil {
		return nil, err
	}
	mb, ok := s.MemberByName(name)
	if !ok {
		return nil, &Error{Kind: NoSuchMember, Offset: t.Common().Offset, Msg: fmt.Sprintf("%s has no member named %q", inst.m.TypeName(t), name)}
	}
	return inst.member(mb)
}

func (inst *Instance) member(mb *Member) (*Instance, error) {
	t, err := mb.Resolve(inst.m)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, NewError(MalformedDIE, mb.Offset, "member %q has no type", mb.Name)
	}
	r := inst.derive(t, inst.Address+mb.ByteOffset)
	r.BitSize, r.BitOffset = mb.BitSize, mb.BitOffset
	return r, nil
}

// FindField is like Field but also searches the members of anonymous
// structs and unions nested in inst, depth first.
func (inst *Instance) FindField(name string) (*Instance, error) {
	r, err := inst.Field(name)
	if err == nil || !errors.Is(err, ErrNoSuchMember) {
		return r, err
	}
	s, _, _ := inst.structured("field access")
	for _, mb := range s.Members {
		if mb.Name != "" {
			continue
		}
		sub, err := inst.member(mb)
		if err != nil {
			continue
		}
		if found, err := sub.FindField(name); err == nil {
			return found, nil
		}
	}
	return nil, err
}

// FieldPath follows a sequence of member names, see FindField.
func (inst *Instance) FieldPath(path ...string) (*Instance, error) {
	cur := inst
	for _, name := range path {
		next, err := cur.FindField(name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// FieldByOffset returns the member that starts at off or, if there is
// none, the closest member starting before off.
func (inst *Instance) FieldByOffset(off uint64) (*Instance, error) {
	s, t, err := inst.structured("field access")
	if err != nil {
		return nil, err
	}
	mb, ok := s.MemberByOffset(off)
	if !ok {
		return nil, &Error{Kind: NoSuchMember, Offset: t.Common().Offset, Msg: fmt.Sprintf("%s has no member at offset %d", inst.m.TypeName(t), off)}
	}
	return inst.member(mb)
}

// MemberName returns the name of the member FieldByOffset would return.
func (inst *Instance) MemberName(off uint64) (string, error) {
	s, t, err := inst.structured("field access")
	if err != nil {
		return "", err
	}
	name, ok := s.MemberNameByOffset(off)
	if !ok {
		return "", &Error{Kind: NoSuchMember, Offset: t.Common().Offset, Msg: fmt.Sprintf("%s has no member at offset %d", inst.m.TypeName(t), off)}
	}
	return name, nil
}

func (inst *Instance) array() (*Array, error) {
	t, err := inst.concrete()
	if err != nil {
		return nil, err
	}
	arr, ok := t.(*Array)
	if !ok {
		return nil, wrongKind(t, "indexing")
	}
	return arr, nil
}

// Element returns the element at index, counting all dimensions of a
// multi-dimensional array in row-major order. The index is checked only if
// the extent of the array is known.
func (inst *Instance) Element(index int64) (*Instance, error) {
	arr, err := inst.array()
	if err != nil {
		return nil, err
	}
	if index < 0 || (arr.Known() && index >= arr.Count()) {
		return nil, &Error{Kind: IndexOutOfRange, Offset: arr.Offset, Msg: fmt.Sprintf("index %d out of bounds [0, %d)", index, arr.Count())}
	}
	return inst.element(arr, index)
}

func (inst *Instance) element(arr *Array, index int64) (*Instance, error) {
	elem, err := arr.Resolve(inst.m)
	if err != nil {
		return nil, err
	}
	if elem == nil {
		return nil, NewError(MalformedDIE, arr.Offset, "array of void")
	}
	stride, err := inst.m.stride(arr, 0)
	if err != nil {
		return nil, err
	}
	return inst.derive(elem, inst.Address+uint64(index)*uint64(stride)), nil
}

// ElementAt returns the element of a multi-dimensional array with one
// index per dimension.
func (inst *Instance) ElementAt(indices ...int64) (*Instance, error) {
	arr, err := inst.array()
	if err != nil {
		return nil, err
	}
	if len(indices) != len(arr.Dims) {
		return nil, &Error{Kind: WrongKind, Offset: arr.Offset, Msg: fmt.Sprintf("array has %d dimensions, got %d indices", len(arr.Dims), len(indices))}
	}
	var flat int64
	for k, idx := range indices {
		dim := arr.Dims[k]
		if idx < 0 || (dim >= 0 && idx >= dim) {
			return nil, &Error{Kind: IndexOutOfRange, Offset: arr.Offset, Msg: fmt.Sprintf("index %d out of bounds [0, %d) in dimension %d", idx, dim, k)}
		}
		if k > 0 {
			if dim < 0 {
				return nil, &Error{Kind: UnsupportedConstruct, Offset: arr.Offset, Msg: fmt.Sprintf("dimension %d has an unknown extent", k)}
			}
			flat *= dim
		}
		flat += idx
	}
	return inst.element(arr, flat)
}

// Len returns the number of elements of an array, 0 if the extent is
// unknown.
func (inst *Instance) Len() (int64, error) {
	arr, err := inst.array()
	if err != nil {
		return 0, err
	}
	return arr.Count(), nil
}

// Size returns the size of the value in bytes.
func (inst *Instance) Size() (int64, error) {
	return inst.m.SizeOf(inst.Type)
}

// Read returns the raw bytes of the value.
func (inst *Instance) Read() ([]byte, error) {
	sz, err := inst.Size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, sz)
	if err := readMemory(inst.mem, buf, inst.Address); err != nil {
		return nil, err
	}
	return buf, nil
}

func (inst *Instance) pointer() (*Pointer, error) {
	t, err := inst.concrete()
	if err != nil {
		return nil, err
	}
	ptr, ok := t.(*Pointer)
	if !ok {
		return nil, wrongKind(t, "dereference")
	}
	return ptr, nil
}

// ReadPointer returns the address stored in a pointer.
func (inst *Instance) ReadPointer() (uint64, error) {
	ptr, err := inst.pointer()
	if err != nil {
		return 0, err
	}
	sz, err := inst.m.SizeOf(ptr)
	if err != nil {
		return 0, err
	}
	return inst.readUint(sz)
}

// Deref reads the pointer and returns the instance it points to. The
// pointer is not checked for nil, reading through it will fail in the
// memory reader.
func (inst *Instance) Deref() (*Instance, error) {
	ptr, err := inst.pointer()
	if err != nil {
		return nil, err
	}
	if !ptr.HasRef {
		return nil, &Error{Kind: WrongKind, Offset: ptr.Offset, Msg: "dereference of void pointer"}
	}
	target, err := ptr.Resolve(inst.m)
	if err != nil {
		return nil, err
	}
	addr, err := inst.ReadPointer()
	if err != nil {
		return nil, err
	}
	inst.m.ilog.Debugf("deref %#x -> %#x", inst.Address, addr)
	return inst.derive(target, addr), nil
}

// IsNil returns true if inst is at address 0 or if it is a pointer that
// contains 0.
func (inst *Instance) IsNil() (bool, error) {
	if inst.Address == 0 {
		return true, nil
	}
	if _, err := inst.pointer(); err != nil {
		return false, nil
	}
	p, err := inst.ReadPointer()
	if err != nil {
		return false, err
	}
	return p == 0, nil
}

// ContainerOf returns the struct called typeName that contains inst as its
// member called member, like the container_of macro.
func (inst *Instance) ContainerOf(typeName, member string) (*Instance, error) {
	types, err := inst.m.FindType(typeName)
	if err != nil {
		return nil, err
	}
	var lastErr error
	for _, t := range types {
		c := inst.derive(t, 0)
		s, _, err := c.structured("container_of")
		if err != nil {
			lastErr = err
			continue
		}
		mb, ok := s.MemberByName(member)
		if !ok {
			lastErr = &Error{Kind: NoSuchMember, Offset: t.Common().Offset, Msg: fmt.Sprintf("%s has no member named %q", inst.m.TypeName(t), member)}
			continue
		}
		c.Address = inst.Address - mb.ByteOffset
		return c, nil
	}
	return nil, lastErr
}

// CString reads a NUL terminated string of at most max bytes from a char
// pointer or a char array.
func (inst *Instance) CString(max int) (string, error) {
	t, err := inst.concrete()
	if err != nil {
		return "", err
	}
	addr := inst.Address
	switch t := t.(type) {
	case *Pointer:
		if addr, err = inst.ReadPointer(); err != nil {
			return "", err
		}
	case *Array:
		if t.Known() && t.Count() < int64(max) {
			max = int(t.Count())
		}
	default:
		return "", wrongKind(t, "string conversion")
	}
	return readCString(inst.mem, addr, max)
}

func readCString(mem MemoryReader, addr uint64, max int) (string, error) {
	const chunk = 64
	var out []byte
	for len(out) < max {
		n := chunk
		if max-len(out) < n {
			n = max - len(out)
		}
		buf := make([]byte, n)
		if err := readMemory(mem, buf, addr+uint64(len(out))); err != nil {
			if len(out) > 0 {
				break
			}
			return "", err
		}
		for i, b := range buf {
			if b == 0 {
				return string(append(out, buf[:i]...)), nil
			}
		}
		out = append(out, buf...)
	}
	return string(out), nil
}

// readUint reads an unsigned integer of sz bytes at the address of inst.
func (inst *Instance) readUint(sz int64) (uint64, error) {
	if sz <= 0 || sz > 8 {
		return 0, &Error{Kind: UnknownEncoding, Offset: inst.Type.Common().Offset, Msg: fmt.Sprintf("can not read an integer of %d bytes", sz)}
	}
	buf := make([]byte, sz)
	if err := readMemory(inst.mem, buf, inst.Address); err != nil {
		return 0, err
	}
	return decodeUint(buf, inst.m.byteOrder), nil
}

func decodeUint(buf []byte, order binary.ByteOrder) uint64 {
	var v uint64
	if order == binary.BigEndian {
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}
