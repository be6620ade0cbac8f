package memory

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/dwarfdb/pkg/logflags"
)

// DefaultPageSize is the page size used by NewCached when pageSize is 0.
const DefaultPageSize = 4096

// Cached is a page cache in front of a slow Reader, such as a Process.
// Pages are read whole and kept in an LRU cache, so walking a linked list
// or the members of a struct only reads each page once.
type Cached struct {
	mem      Reader
	pageSize uint64
	pages    *lru.Cache
	log      logflags.Logger

	mu           sync.Mutex
	hits, misses int
}

// NewCached returns a Cached reader keeping up to npages pages of mem.
func NewCached(mem Reader, npages, pageSize int) (*Cached, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize&(pageSize-1) != 0 {
		return nil, fmt.Errorf("page size %d is not a power of two", pageSize)
	}
	pages, err := lru.New(npages)
	if err != nil {
		return nil, err
	}
	return &Cached{mem: mem, pageSize: uint64(pageSize), pages: pages, log: logflags.MemoryLogger()}, nil
}

// ReadMemory implements Reader.ReadMemory.
func (c *Cached) ReadMemory(buf []byte, addr uint64) (int, error) {
	n := 0
	for n < len(buf) {
		cur := addr + uint64(n)
		base := cur &^ (c.pageSize - 1)
		page, err := c.page(base)
		if err != nil {
			// The page may be partially mapped, read around the cache.
			m, err := c.mem.ReadMemory(buf[n:], cur)
			return n + m, err
		}
		n += copy(buf[n:], page[cur-base:])
	}
	return n, nil
}

func (c *Cached) page(base uint64) ([]byte, error) {
	if v, ok := c.pages.Get(base); ok {
		c.count(&c.hits)
		return v.([]byte), nil
	}
	c.count(&c.misses)
	page := make([]byte, c.pageSize)
	if _, err := c.mem.ReadMemory(page, base); err != nil {
		c.log.WithError(err).Debugf("page %#x not cached", base)
		return nil, err
	}
	c.pages.Add(base, page)
	return page, nil
}

// Invalidate drops every cached page, it must be called when the memory
// behind the cache may have changed.
func (c *Cached) Invalidate() {
	c.pages.Purge()
}

// Stats returns the number of page hits and misses since the cache was
// created.
func (c *Cached) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *Cached) count(n *int) {
	c.mu.Lock()
	*n++
	c.mu.Unlock()
}
