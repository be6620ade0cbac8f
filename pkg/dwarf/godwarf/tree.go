// Package godwarf exposes the DWARF debug_info section as a sequence of DIE
// trees, one per compilation unit.
package godwarf

import (
	"debug/dwarf"
	"sort"
)

// Entry represents a debug_info entry.
// Val returns nil if the entry does not have the specified attribute.
type Entry interface {
	Val(dwarf.Attr) interface{}
}

// Attrs is an Entry backed by a map, it is used to build DIE trees that do
// not come from a debug_info section.
type Attrs map[dwarf.Attr]interface{}

// Val implements Entry.
func (a Attrs) Val(attr dwarf.Attr) interface{} {
	return a[attr]
}

// Tree represents a tree of dwarf objects.
type Tree struct {
	Entry
	Tag      dwarf.Tag
	Offset   dwarf.Offset
	Ranges   [][2]uint64
	Children []*Tree
}

// NewTree returns a tree node with the given tag, attributes and children.
func NewTree(off dwarf.Offset, tag dwarf.Tag, attrs Attrs, children ...*Tree) *Tree {
	if attrs == nil {
		attrs = Attrs{}
	}
	return &Tree{Entry: attrs, Offset: off, Tag: tag, Children: children}
}

// Name returns the DW_AT_name attribute of the node, or the empty string.
func (n *Tree) Name() string {
	name, _ := n.Val(dwarf.AttrName).(string)
	return name
}

// EntryToTree converts a single entry, without children to a *Tree object
func EntryToTree(entry *dwarf.Entry) *Tree {
	return &Tree{Entry: entry, Offset: entry.Offset, Tag: entry.Tag}
}

func loadTreeChildren(e *dwarf.Entry, rdr *dwarf.Reader) ([]*Tree, error) {
	if !e.Children {
		return nil, nil
	}
	children := []*Tree{}
	for {
		e, err := rdr.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, dwarf.DecodeError{Name: "info", Offset: 0, Err: "unexpected end of children list"}
		}
		if e.Tag == 0 {
			break
		}
		child := EntryToTree(e)
		child.Children, err = loadTreeChildren(e, rdr)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// hasRanges returns true for the DIEs that can own a range of PC values.
func hasRanges(tag dwarf.Tag) bool {
	switch tag {
	case dwarf.TagCompileUnit, dwarf.TagPartialUnit, dwarf.TagSubprogram, dwarf.TagLexDwarfBlock, dwarf.TagInlinedSubroutine:
		return true
	}
	return false
}

// resolveRanges fills the Ranges field of every DIE that can own code,
// ranges of children that are not covered by their parent are bubbled up.
func (n *Tree) resolveRanges(dw *dwarf.Data, staticBase uint64) error {
	if e, ok := n.Entry.(*dwarf.Entry); ok && hasRanges(n.Tag) {
		var err error
		n.Ranges, err = dw.Ranges(e)
		if err != nil {
			return err
		}
		for i := range n.Ranges {
			n.Ranges[i][0] += staticBase
			n.Ranges[i][1] += staticBase
		}
		n.Ranges = normalizeRanges(n.Ranges)
	}

	for _, child := range n.Children {
		err := child.resolveRanges(dw, staticBase)
		if err != nil {
			return err
		}
		if hasRanges(n.Tag) {
			n.Ranges = fuseRanges(n.Ranges, child.Ranges)
		}
	}
	return nil
}

// normalizeRanges sorts rngs by starting point and fuses overlapping entries.
func normalizeRanges(rngs [][2]uint64) [][2]uint64 {
	const (
		start = 0
		end   = 1
	)

	if len(rngs) == 0 {
		return rngs
	}

	sort.Slice(rngs, func(i, j int) bool {
		return rngs[i][start] <= rngs[j][start]
	})

	// eliminate invalid entries
	out := rngs[:0]
	for i := range rngs {
		if rngs[i][start] < rngs[i][end] {
			out = append(out, rngs[i])
		}
	}
	rngs = out
	if len(rngs) == 0 {
		return rngs
	}

	// fuse overlapping entries
	out = rngs[:1]
	for i := 1; i < len(rngs); i++ {
		cur := rngs[i]
		if cur[start] <= out[len(out)-1][end] {
			out[len(out)-1][end] = max(cur[end], out[len(out)-1][end])
		} else {
			out = append(out, cur)
		}
	}
	return out
}

func max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// fuseRanges fuses rngs2 into rngs1, it's the equivalent of
//
//	normalizeRanges(append(rngs1, rngs2))
//
// but more efficient.
func fuseRanges(rngs1, rngs2 [][2]uint64) [][2]uint64 {
	if rangesContains(rngs1, rngs2) {
		return rngs1
	}

	return normalizeRanges(append(rngs1, rngs2...))
}

// rangesContains checks that rngs1 is a superset of rngs2.
func rangesContains(rngs1, rngs2 [][2]uint64) bool {
	i, j := 0, 0
	for {
		if i >= len(rngs1) {
			return false
		}
		if j >= len(rngs2) {
			return true
		}
		if rangeContains(rngs1[i], rngs2[j]) {
			j++
		} else {
			i++
		}
	}
}

// rangeContains checks that a contains b.
func rangeContains(a, b [2]uint64) bool {
	return a[0] <= b[0] && a[1] >= b[1]
}

// ContainsPC returns true if the ranges of this DIE contains PC.
func (n *Tree) ContainsPC(pc uint64) bool {
	for _, rng := range n.Ranges {
		if rng[0] > pc {
			return false
		}
		if rng[0] <= pc && pc < rng[1] {
			return true
		}
	}
	return false
}

// Walk calls fn for n and all its descendants, depth first. If fn returns
// false the children of that node are not visited.
func (n *Tree) Walk(fn func(*Tree) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
