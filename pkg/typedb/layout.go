package typedb

import (
	"fmt"
)

// validateLayouts checks every complete struct for members that overlap
// or extend past the end of the struct. Bit-fields share storage units
// and are skipped, empty base classes may overlap the first member.
func (m *SymbolManager) validateLayouts() []error {
	var issues []error
	for _, off := range m.Offsets() {
		st, ok := m.nodes[off].(*Struct)
		if !ok || st.Declaration {
			continue
		}
		issues = append(issues, m.validateStruct(st)...)
	}
	return issues
}

func (m *SymbolManager) validateStruct(st *Struct) []error {
	var (
		issues  []error
		prevEnd uint64
		prev    *Member
	)
	report := func(format string, args ...interface{}) {
		issues = append(issues, &Error{Kind: MalformedDIE, Offset: st.Offset, Msg: fmt.Sprintf("struct %s: ", anon(st.Name)) + fmt.Sprintf(format, args...)})
	}
	for _, mb := range st.Members {
		if mb.IsBitfield() {
			continue
		}
		if prev != nil && mb.ByteOffset < prev.ByteOffset {
			report("member %q at %d is before member %q at %d", mb.Name, mb.ByteOffset, prev.Name, prev.ByteOffset)
		} else if prev != nil && !prev.Inherited && mb.ByteOffset < prevEnd {
			report("member %q at %d overlaps member %q ending at %d", mb.Name, mb.ByteOffset, prev.Name, prevEnd)
		}
		sz, err := m.memberSize(mb)
		if err != nil {
			// Dangling or unsupported member types are reported elsewhere.
			prev, prevEnd = mb, mb.ByteOffset
			continue
		}
		end := mb.ByteOffset + uint64(sz)
		if st.ByteSize > 0 && end > uint64(st.ByteSize) {
			report("member %q ends at %d past the struct size %d", mb.Name, end, st.ByteSize)
		}
		prev, prevEnd = mb, end
	}
	return issues
}

func (m *SymbolManager) memberSize(mb *Member) (int64, error) {
	t, err := mb.Resolve(m)
	if err != nil {
		return 0, err
	}
	return m.SizeOf(t)
}
