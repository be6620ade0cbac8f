package typedb

import (
	"debug/dwarf"
)

// Member is a data member of a struct or union.
type Member struct {
	Name string // empty for anonymous members
	ReferencingType
	Offset     dwarf.Offset // offset of the DW_TAG_member DIE
	ByteOffset uint64
	// BitSize and BitOffset describe bit-fields. BitOffset is the distance
	// in bits from the start of the byte at ByteOffset: on little endian
	// targets it is counted from its least significant bit, on big endian
	// targets from its most significant bit.
	BitSize   int64
	BitOffset int64
	// Inherited is set for members generated from DW_TAG_inheritance.
	Inherited bool
}

// IsBitfield returns true if m is a bit-field.
func (m *Member) IsBitfield() bool {
	return m.BitSize > 0
}

// Structured is the member list shared by Struct and Union.
type Structured struct {
	Members     []*Member
	Declaration bool // the DIE only declares the type (DW_AT_declaration)
}

func (s *Structured) memberRefs() []dwarf.Offset {
	var r []dwarf.Offset
	for _, m := range s.Members {
		r = append(r, m.refs()...)
	}
	return r
}

// AddMember appends m to the member list.
func (s *Structured) AddMember(m *Member) {
	s.Members = append(s.Members, m)
}

// MemberByName returns the first member called name. Members of anonymous
// nested structs and unions are not searched.
func (s *Structured) MemberByName(name string) (*Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// MemberByOffset returns the member that starts at off or, if there is
// none, the last member starting before off. It returns false if off is
// before the first member.
func (s *Structured) MemberByOffset(off uint64) (*Member, bool) {
	var best *Member
	for _, m := range s.Members {
		if m.ByteOffset == off {
			return m, true
		}
		if m.ByteOffset < off && (best == nil || m.ByteOffset > best.ByteOffset) {
			best = m
		}
	}
	return best, best != nil
}

// MemberNameByOffset returns the name of the member that MemberByOffset
// would return.
func (s *Structured) MemberNameByOffset(off uint64) (string, bool) {
	m, ok := s.MemberByOffset(off)
	if !ok {
		return "", false
	}
	return m.Name, true
}

// MemberOffset returns the byte offset of the member called name.
func (s *Structured) MemberOffset(name string) (uint64, bool) {
	m, ok := s.MemberByName(name)
	if !ok {
		return 0, false
	}
	return m.ByteOffset, true
}

// MemberNames returns the names of all members, in declaration order.
func (s *Structured) MemberNames() []string {
	r := make([]string, 0, len(s.Members))
	for _, m := range s.Members {
		r = append(r, m.Name)
	}
	return r
}
