// Package dwarfbuilder provides a way to build DWARF sections with
// arbitrary contents.
package dwarfbuilder

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"fmt"
)

// DW_LANG_C99 is the language written to the compilation units.
const DW_LANG_C99 = 0x0c

// Builder dwarf builder
type Builder struct {
	info      bytes.Buffer
	loc       bytes.Buffer
	abbrevs   []tagDescr
	tagStack  []*tagState
	unitStart int
	units     int
}

// New creates a new DWARF builder, with a compilation unit already open.
func New() *Builder {
	b := &Builder{}
	b.openUnit("main.c")
	return b
}

func (b *Builder) openUnit(name string) {
	b.unitStart = b.info.Len()
	b.info.Write([]byte{
		0x0, 0x0, 0x0, 0x0, // length
		0x4, 0x0, // version
		0x0, 0x0, 0x0, 0x0, // debug_abbrev_offset
		0x8, // address_size
	})

	b.TagOpen(dwarf.TagCompileUnit, name)
	b.Attr(dwarf.AttrLanguage, uint8(DW_LANG_C99))
	b.units++
}

func (b *Builder) closeUnit() error {
	b.TagClose()

	if len(b.tagStack) > 0 {
		return fmt.Errorf("unbalanced TagOpen/TagClose %d", len(b.tagStack))
	}

	unit := b.info.Bytes()[b.unitStart:]
	binary.LittleEndian.PutUint32(unit, uint32(len(unit)-4))
	return nil
}

// NewUnit closes the current compilation unit and opens a new one.
func (b *Builder) NewUnit(name string) error {
	if err := b.closeUnit(); err != nil {
		return err
	}
	b.openUnit(name)
	return nil
}

// Build closes b and returns all the dwarf sections.
func (b *Builder) Build() (abbrev, aranges, frame, info, line, pubnames, ranges, str, loc []byte, err error) {
	err = b.closeUnit()
	if err != nil {
		return
	}

	abbrev = b.makeAbbrevTable()
	info = b.info.Bytes()
	loc = b.loc.Bytes()

	return
}

// Data closes b and parses the result with debug/dwarf.
func (b *Builder) Data() (*dwarf.Data, error) {
	abbrev, aranges, frame, info, line, pubnames, ranges, str, _, err := b.Build()
	if err != nil {
		return nil, err
	}
	return dwarf.New(abbrev, aranges, frame, info, line, pubnames, ranges, str)
}
