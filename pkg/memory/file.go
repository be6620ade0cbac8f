package memory

import (
	"os"
)

// File is a raw memory dump stored in a file, mapped at a base address.
type File struct {
	OffsetReaderAt
	f *os.File
}

// OpenFile opens the dump at path. The first byte of the file is the
// memory at base.
func OpenFile(path string, base uint64) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{OffsetReaderAt: OffsetReaderAt{Reader: f, Offset: base}, f: f}, nil
}

// Size returns the number of bytes in the dump.
func (f *File) Size() (int64, error) {
	fi, err := f.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Close closes the dump file.
func (f *File) Close() error {
	return f.f.Close()
}
