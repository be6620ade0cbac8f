package memory

import (
	"debug/elf"
	"errors"
	"fmt"
)

// ELFImage is the initial memory image of an ELF executable: the contents
// of its PT_LOAD segments, relocated by a static base. Global variables
// read through an ELFImage have the values they are initialized with.
type ELFImage struct {
	Spliced
	Entry      uint64
	StaticBase uint64
	closer     func() error
}

// OpenELF opens the executable at path and maps its loadable segments at
// their virtual address plus staticBase.
func OpenELF(path string, staticBase uint64) (*ELFImage, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	img, err := NewELFImage(f, staticBase)
	if err != nil {
		f.Close()
		return nil, err
	}
	img.closer = f.Close
	return img, nil
}

// NewELFImage maps the loadable segments of f. The caller keeps ownership
// of f, which must stay open while the image is in use.
func NewELFImage(f *elf.File, staticBase uint64) (*ELFImage, error) {
	img := &ELFImage{Entry: f.Entry + staticBase, StaticBase: staticBase}
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Memsz > prog.Filesz {
			img.Add(zeroReader{}, prog.Vaddr+staticBase+prog.Filesz, prog.Memsz-prog.Filesz)
		}
		if prog.Filesz == 0 {
			continue
		}
		img.Add(&OffsetReaderAt{Reader: prog.ReaderAt, Offset: prog.Vaddr + staticBase}, prog.Vaddr+staticBase, prog.Filesz)
	}
	if len(img.readers) == 0 {
		return nil, errors.New("executable has no loadable segments")
	}
	return img, nil
}

// Close closes the executable if it was opened by OpenELF.
func (img *ELFImage) Close() error {
	if img.closer == nil {
		return nil
	}
	return img.closer()
}

func (img *ELFImage) String() string {
	regions := img.Regions()
	if len(regions) == 0 {
		return "empty image"
	}
	last := regions[len(regions)-1]
	return fmt.Sprintf("image [%#x, %#x) entry %#x", regions[0][0], last[0]+last[1], img.Entry)
}
