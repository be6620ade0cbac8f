package memory

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Process reads the memory of a running process through /proc/<pid>/mem.
// The caller needs the permission to ptrace the process, the process does
// not have to be stopped but the values read may be inconsistent if it is
// not.
type Process struct {
	Pid int
	f   *os.File
}

// OpenProcess opens the memory of process pid for reading.
func OpenProcess(pid int) (*Process, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/mem", pid))
	if err != nil {
		return nil, err
	}
	return &Process{Pid: pid, f: f}, nil
}

// ReadMemory implements Reader.ReadMemory.
func (p *Process) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var n int
	for n < len(buf) {
		m, err := unix.Pread(int(p.f.Fd()), buf[n:], int64(addr)+int64(n))
		if err == syscall.EINTR {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("could not read process %d memory at %#x: %w", p.Pid, addr+uint64(n), err)
		}
		if m == 0 {
			return n, fmt.Errorf("could not read process %d memory at %#x: unmapped", p.Pid, addr+uint64(n))
		}
		n += m
	}
	return n, nil
}

// Close releases the file descriptor of the process memory.
func (p *Process) Close() error {
	return p.f.Close()
}
