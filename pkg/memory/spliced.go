package memory

import (
	"fmt"
)

// Spliced represents a memory space formed from multiple regions, each of
// which may override previously added regions. For example the segments
// of an executable can be added first and then the contents of a data
// dump on top of them:
//
//	Start               End
//	0x0000000000400000  0x000000000044f000  text, read from the executable
//	0x000000000049a000  0x000000000049c000  data, read from the dump
//
// Reads that cross the end of a region continue in the next one, reads
// that hit an unmapped hole stop there.
type Spliced struct {
	readers []readerEntry
}

type readerEntry struct {
	offset uint64
	length uint64
	reader Reader
}

// Add adds a new region to the Spliced memory, which may override existing
// regions.
func (r *Spliced) Add(reader Reader, off, length uint64) {
	if length == 0 {
		return
	}
	end := off + length - 1
	newReaders := make([]readerEntry, 0, len(r.readers))
	add := func(e readerEntry) {
		if e.length == 0 {
			return
		}
		newReaders = append(newReaders, e)
	}
	inserted := false
	// Walk through the list of regions, fixing up any that overlap and
	// inserting the new one.
	for _, entry := range r.readers {
		entryEnd := entry.offset + entry.length - 1
		switch {
		case entryEnd < off:
			// Entry is completely before the new region.
			add(entry)
		case end < entry.offset:
			// Entry is completely after the new region.
			if !inserted {
				add(readerEntry{off, length, reader})
				inserted = true
			}
			add(entry)
		case off <= entry.offset && entryEnd <= end:
			// Entry is completely overwritten by the new region. Drop.
		case entry.offset < off && entryEnd <= end:
			// New region overwrites the end of the entry.
			entry.length = off - entry.offset
			add(entry)
		case off <= entry.offset && end < entryEnd:
			// New region overwrites the beginning of the entry.
			if !inserted {
				add(readerEntry{off, length, reader})
				inserted = true
			}
			overlap := end + 1 - entry.offset
			entry.offset += overlap
			entry.length -= overlap
			add(entry)
		case entry.offset < off && end < entryEnd:
			// New region punches a hole in the entry. Split it in two and
			// put the new region in the middle.
			add(readerEntry{entry.offset, off - entry.offset, entry.reader})
			add(readerEntry{off, length, reader})
			add(readerEntry{end + 1, entryEnd - end, entry.reader})
			inserted = true
		default:
			panic(fmt.Sprintf("unhandled case: existing entry is %#x len %#x, new is %#x len %#x", entry.offset, entry.length, off, length))
		}
	}
	if !inserted {
		newReaders = append(newReaders, readerEntry{off, length, reader})
	}
	r.readers = newReaders
}

// Regions returns the start and the length of every region, sorted by
// address.
func (r *Spliced) Regions() [][2]uint64 {
	out := make([][2]uint64, 0, len(r.readers))
	for _, entry := range r.readers {
		out = append(out, [2]uint64{entry.offset, entry.length})
	}
	return out
}

// ReadMemory implements Reader.ReadMemory.
func (r *Spliced) ReadMemory(buf []byte, addr uint64) (n int, err error) {
	started := false
	for _, entry := range r.readers {
		if entry.offset+entry.length <= addr {
			continue
		}
		if entry.offset > addr {
			if !started {
				break
			}
			return n, fmt.Errorf("hit unmapped area at %#x after %d bytes", addr, n)
		}
		started = true

		// Don't go past the region.
		pb := buf
		if addr+uint64(len(buf)) > entry.offset+entry.length {
			pb = pb[:entry.offset+entry.length-addr]
		}
		pn, err := entry.reader.ReadMemory(pb, addr)
		n += pn
		if err != nil {
			return n, fmt.Errorf("error while reading spliced memory at %#x: %w", addr, err)
		}
		if pn != len(pb) {
			return n, nil
		}
		buf = buf[pn:]
		addr += uint64(pn)
		if len(buf) == 0 {
			// Done, don't bother scanning the rest.
			return n, nil
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("address %#x did not match any regions", addr)
	}
	return n, fmt.Errorf("hit unmapped area at %#x after %d bytes", addr, n)
}
