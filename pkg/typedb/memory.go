package typedb

import (
	"fmt"
	"io"
)

// MemoryReader reads the memory of the target. It has the same shape as
// io.ReaderAt with the arguments swapped, n < len(buf) means the read was
// short and err should explain why.
type MemoryReader interface {
	ReadMemory(buf []byte, addr uint64) (n int, err error)
}

// MemoryReaderFunc adapts a function to the MemoryReader interface.
type MemoryReaderFunc func(buf []byte, addr uint64) (int, error)

// ReadMemory calls f(buf, addr).
func (f MemoryReaderFunc) ReadMemory(buf []byte, addr uint64) (int, error) {
	return f(buf, addr)
}

// readMemory fills buf from addr, a short read without error is reported
// as io.ErrUnexpectedEOF. Reader errors are wrapped, never replaced.
func readMemory(mem MemoryReader, buf []byte, addr uint64) error {
	if mem == nil {
		return &Error{Kind: ReadFailure, Msg: "no memory reader"}
	}
	n, err := mem.ReadMemory(buf, addr)
	if err != nil {
		return &Error{Kind: ReadFailure, Msg: readMsg(len(buf), addr), Err: err}
	}
	if n < len(buf) {
		return &Error{Kind: ReadFailure, Msg: readMsg(len(buf), addr), Err: io.ErrUnexpectedEOF}
	}
	return nil
}

func readMsg(n int, addr uint64) string {
	return fmt.Sprintf("reading %d bytes at %#x", n, addr)
}
