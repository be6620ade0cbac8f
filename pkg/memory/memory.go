// Package memory implements the memory readers that back typedb
// instances: byte snapshots, executable images, live processes and a page
// cache in front of any of them.
//
// Every reader implements typedb.MemoryReader. A read either fills the
// whole buffer or returns an error, partial reads report how many bytes
// were copied.
package memory

import (
	"fmt"
	"io"
)

// Reader is typedb.MemoryReader, repeated here so that this package does
// not depend on the type database.
type Reader interface {
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// Snapshot is a copy of a contiguous region of memory starting at Base.
type Snapshot struct {
	Base uint64
	Data []byte
}

// NewSnapshot returns a Snapshot of data mapped at base.
func NewSnapshot(base uint64, data []byte) *Snapshot {
	return &Snapshot{Base: base, Data: data}
}

// ReadMemory implements Reader.ReadMemory.
func (s *Snapshot) ReadMemory(buf []byte, addr uint64) (int, error) {
	if addr < s.Base || addr-s.Base >= uint64(len(s.Data)) {
		return 0, fmt.Errorf("address %#x is outside of snapshot [%#x, %#x)", addr, s.Base, s.Base+uint64(len(s.Data)))
	}
	n := copy(buf, s.Data[addr-s.Base:])
	if n < len(buf) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

// OffsetReaderAt wraps a ReaderAt into a Reader, subtracting a fixed
// offset from the address. If program data is mapped at 0x400000 an
// OffsetReaderAt with offset 0x400000 can be wrapped around the file to
// read that part of the address space.
type OffsetReaderAt struct {
	Reader io.ReaderAt
	Offset uint64
}

// ReadMemory will read the memory at addr-offset.
func (r *OffsetReaderAt) ReadMemory(buf []byte, addr uint64) (int, error) {
	if addr < r.Offset {
		return 0, fmt.Errorf("address %#x is before the start of the mapping %#x", addr, r.Offset)
	}
	n, err := r.Reader.ReadAt(buf, int64(addr-r.Offset))
	if err == io.EOF && n < len(buf) {
		err = io.ErrUnexpectedEOF
	} else if err == io.EOF {
		err = nil
	}
	return n, err
}

// zeroReader reads as zeros, it backs the part of a segment that is not
// stored in the file (.bss).
type zeroReader struct{}

func (zeroReader) ReadMemory(buf []byte, addr uint64) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}
