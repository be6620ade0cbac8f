package godwarf

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"io"
)

// UnitReader reads the compilation units of a debug_info section one at a
// time, returning each one as a fully loaded DIE tree.
type UnitReader struct {
	dw         *dwarf.Data
	rdr        *dwarf.Reader
	staticBase uint64
	ptrSize    int
	order      binary.ByteOrder
}

// NewUnitReader returns a UnitReader for dw. PC ranges are relocated by
// staticBase.
func NewUnitReader(dw *dwarf.Data, staticBase uint64) *UnitReader {
	return &UnitReader{dw: dw, rdr: dw.Reader(), staticBase: staticBase, ptrSize: 8, order: binary.LittleEndian}
}

// NextUnit returns the next compilation unit, or io.EOF after the last one.
func (r *UnitReader) NextUnit() (*Tree, error) {
	e, err := r.rdr.Next()
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, io.EOF
	}
	switch e.Tag {
	case dwarf.TagCompileUnit, dwarf.TagPartialUnit, dwarf.TagTypeUnit:
	default:
		return nil, dwarf.DecodeError{Name: "info", Offset: e.Offset, Err: "expected compilation unit, got " + e.Tag.String()}
	}
	r.ptrSize = r.rdr.AddressSize()
	r.order = r.rdr.ByteOrder()
	cu := EntryToTree(e)
	cu.Children, err = loadTreeChildren(e, r.rdr)
	if err != nil {
		return nil, err
	}
	if err := cu.resolveRanges(r.dw, r.staticBase); err != nil {
		// Broken range lists only affect PC lookups, the types are
		// still usable.
		cu.Ranges = nil
	}
	return cu, nil
}

// AddressSize returns the size of an address in the last unit read.
func (r *UnitReader) AddressSize() int {
	return r.ptrSize
}

// ByteOrder returns the byte order of the debug_info section.
func (r *UnitReader) ByteOrder() binary.ByteOrder {
	return r.order
}

// TreeUnits is a list of hand built compilation units.
type TreeUnits struct {
	Units   []*Tree
	PtrSize int
	Order   binary.ByteOrder
	next    int
}

// NextUnit returns the next tree in the list, or io.EOF.
func (tu *TreeUnits) NextUnit() (*Tree, error) {
	if tu.next >= len(tu.Units) {
		return nil, io.EOF
	}
	tu.next++
	if tu.Units[tu.next-1] == nil {
		return nil, errors.New("nil compilation unit")
	}
	return tu.Units[tu.next-1], nil
}

// AddressSize returns PtrSize, or 8 if it is not set.
func (tu *TreeUnits) AddressSize() int {
	if tu.PtrSize == 0 {
		return 8
	}
	return tu.PtrSize
}

// ByteOrder returns Order, or little endian if it is not set.
func (tu *TreeUnits) ByteOrder() binary.ByteOrder {
	if tu.Order == nil {
		return binary.LittleEndian
	}
	return tu.Order
}
