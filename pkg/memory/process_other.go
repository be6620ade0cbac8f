//go:build !linux

package memory

import (
	"errors"
	"runtime"
)

// Process reads the memory of a running process. It is only implemented
// on linux.
type Process struct {
	Pid int
}

// OpenProcess always fails on this platform.
func OpenProcess(pid int) (*Process, error) {
	return nil, errors.New("reading process memory is not supported on " + runtime.GOOS)
}

// ReadMemory implements Reader.ReadMemory.
func (p *Process) ReadMemory(buf []byte, addr uint64) (int, error) {
	return 0, errors.New("reading process memory is not supported on " + runtime.GOOS)
}

// Close does nothing.
func (p *Process) Close() error {
	return nil
}
