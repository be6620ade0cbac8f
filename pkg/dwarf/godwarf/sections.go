package godwarf

import (
	"bytes"
	"compress/zlib"
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// GetDebugSectionElf returns the data contents of the specified debug
// section, decompressing it if it is compressed.
// For example GetDebugSectionElf("line") will return the contents of
// .debug_line, if .debug_line doesn't exist it will try to return the
// decompressed contents of .zdebug_line.
func GetDebugSectionElf(f *elf.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec != nil {
		return sec.Data()
	}
	sec = f.Section(".zdebug_" + name)
	if sec == nil {
		return nil, fmt.Errorf("could not find .debug_%s section", name)
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

// GetDebugSectionPE returns the data contents of the specified debug
// section, decompressing it if it is compressed.
// For example GetDebugSectionPE("line") will return the contents of
// .debug_line, if .debug_line doesn't exist it will try to return the
// decompressed contents of .zdebug_line.
func GetDebugSectionPE(f *pe.File, name string) ([]byte, error) {
	sec := f.Section(".debug_" + name)
	if sec != nil {
		return peSectionData(sec)
	}
	sec = f.Section(".zdebug_" + name)
	if sec == nil {
		return nil, fmt.Errorf("could not find .debug_%s section", name)
	}
	b, err := peSectionData(sec)
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

func peSectionData(sec *pe.Section) ([]byte, error) {
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	if 0 < sec.VirtualSize && sec.VirtualSize < sec.Size {
		b = b[:sec.VirtualSize]
	}
	return b, nil
}

// GetDebugSectionMacho returns the data contents of the specified debug
// section, decompressing it if it is compressed.
// For example GetDebugSectionMacho("line") will return the contents of
// __debug_line, if __debug_line doesn't exist it will try to return the
// decompressed contents of __zdebug_line.
func GetDebugSectionMacho(f *macho.File, name string) ([]byte, error) {
	sec := f.Section("__debug_" + name)
	if sec != nil {
		return sec.Data()
	}
	sec = f.Section("__zdebug_" + name)
	if sec == nil {
		return nil, fmt.Errorf("could not find .debug_%s section", name)
	}
	b, err := sec.Data()
	if err != nil {
		return nil, err
	}
	return decompressMaybe(b)
}

func decompressMaybe(b []byte) ([]byte, error) {
	if len(b) < 12 || string(b[:4]) != "ZLIB" {
		// not compressed
		return b, nil
	}

	dlen := binary.BigEndian.Uint64(b[4:12])
	dbuf := make([]byte, dlen)
	r, err := zlib.NewReader(bytes.NewBuffer(b[12:]))
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, dbuf); err != nil {
		return nil, err
	}
	if err := r.Close(); err != nil {
		return nil, err
	}
	return dbuf, nil
}

// File is an executable file opened for its debug information.
type File struct {
	Path      string
	Format    string
	Dwarf     *dwarf.Data
	ByteOrder binary.ByteOrder
	PtrSize   int

	// ELF is set when Format is "elf", it is used to read the initialized
	// data of the executable.
	ELF *elf.File

	closer io.Closer
}

var errNoDebugInfo = errors.New("could not find debug_info section, was the binary built without debug information?")

// Open opens the ELF, Mach-O or PE file at path and loads its DWARF
// sections.
func Open(path string) (*File, error) {
	if ef, err := elf.Open(path); err == nil {
		f := &File{Path: path, Format: "elf", ELF: ef, ByteOrder: ef.ByteOrder, PtrSize: 8, closer: ef}
		if ef.Class == elf.ELFCLASS32 {
			f.PtrSize = 4
		}
		if err := f.loadDwarf(func(name string) ([]byte, error) { return GetDebugSectionElf(ef, name) }); err != nil {
			ef.Close()
			return nil, err
		}
		return f, nil
	}
	if mf, err := macho.Open(path); err == nil {
		f := &File{Path: path, Format: "macho", ByteOrder: mf.ByteOrder, PtrSize: 8, closer: mf}
		if mf.Magic == macho.Magic32 {
			f.PtrSize = 4
		}
		if err := f.loadDwarf(func(name string) ([]byte, error) { return GetDebugSectionMacho(mf, name) }); err != nil {
			mf.Close()
			return nil, err
		}
		return f, nil
	}
	pf, err := pe.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: unrecognized executable format", path)
	}
	f := &File{Path: path, Format: "pe", ByteOrder: binary.LittleEndian, PtrSize: 8, closer: pf}
	if _, ok := pf.OptionalHeader.(*pe.OptionalHeader32); ok {
		f.PtrSize = 4
	}
	if err := f.loadDwarf(func(name string) ([]byte, error) { return GetDebugSectionPE(pf, name) }); err != nil {
		pf.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) loadDwarf(section func(string) ([]byte, error)) error {
	info, err := section("info")
	if err != nil {
		return errNoDebugInfo
	}
	// Missing optional sections are passed to dwarf.New as nil.
	abbrev, _ := section("abbrev")
	line, _ := section("line")
	ranges, _ := section("ranges")
	str, _ := section("str")
	f.Dwarf, err = dwarf.New(abbrev, nil, nil, info, line, nil, ranges, str)
	if err != nil {
		return err
	}
	for _, name := range []string{"addr", "line_str", "loclists", "rnglists", "str_offsets"} {
		if data, err := section(name); err == nil {
			if err := f.Dwarf.AddSection(".debug_"+name, data); err != nil {
				return err
			}
		}
	}
	return nil
}

// Units returns a reader for the compilation units of f.
func (f *File) Units(staticBase uint64) *UnitReader {
	return NewUnitReader(f.Dwarf, staticBase)
}

// Close closes the underlying executable file.
func (f *File) Close() error {
	return f.closer.Close()
}
