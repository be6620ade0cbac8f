package typedb

import (
	"debug/dwarf"
	"encoding/binary"
	"sort"

	"github.com/derekparker/trie"

	"github.com/go-delve/dwarfdb/pkg/logflags"
)

// State is the lifecycle state of a SymbolManager.
type State uint8

const (
	// Building accepts registrations, queries are refused.
	Building State = iota
	// QueryReady is the frozen state reached after a successful Finalize.
	QueryReady
)

func (s State) String() string {
	if s == QueryReady {
		return "query-ready"
	}
	return "building"
}

// SymbolManager owns every node of the type graph, indexed by DIE offset.
//
// Nodes are registered while the manager is Building, Finalize checks that
// every reference resolves and freezes the manager. A QueryReady manager is
// never modified again and can be queried concurrently.
type SymbolManager struct {
	nodes map[dwarf.Offset]Symbol
	order []dwarf.Offset // registration order
	state State

	byteOrder  binary.ByteOrder
	ptrSize    int
	staticBase uint64

	// Built by Finalize.
	byName     map[string][]Symbol
	names      *trie.Trie
	dangling   map[dwarf.Offset]bool
	broken     map[dwarf.Offset]dwarf.Offset // referrer -> dangling target
	unresolved *UnresolvedReferenceError
	issues     []error

	log  logflags.Logger
	ilog logflags.Logger // used by instances
}

// ManagerOption configures a SymbolManager.
type ManagerOption func(*SymbolManager)

// WithByteOrder sets the byte order of the target, the default is little
// endian.
func WithByteOrder(order binary.ByteOrder) ManagerOption {
	return func(m *SymbolManager) {
		m.byteOrder = order
	}
}

// WithAddressSize sets the size of a pointer on the target, the default
// is 8.
func WithAddressSize(sz int) ManagerOption {
	return func(m *SymbolManager) {
		m.ptrSize = sz
	}
}

// WithStaticBase sets the difference between the addresses in the debug
// information and the addresses at which the binary is loaded.
func WithStaticBase(base uint64) ManagerOption {
	return func(m *SymbolManager) {
		m.staticBase = base
	}
}

// WithLogger sets the logger used by the manager. It is also used by its
// instances unless WithInstanceLogger is given.
func WithLogger(l logflags.Logger) ManagerOption {
	return func(m *SymbolManager) {
		m.log = l
	}
}

// WithInstanceLogger sets the logger used when decoding instances.
func WithInstanceLogger(l logflags.Logger) ManagerOption {
	return func(m *SymbolManager) {
		m.ilog = l
	}
}

// NewSymbolManager returns an empty SymbolManager in the Building state.
func NewSymbolManager(opts ...ManagerOption) *SymbolManager {
	m := &SymbolManager{
		nodes:     make(map[dwarf.Offset]Symbol),
		byteOrder: binary.LittleEndian,
		ptrSize:   8,
	}
	for _, opt := range opts {
		opt(m)
	}
	switch {
	case m.ilog != nil:
	case m.log != nil:
		m.ilog = m.log
	default:
		m.ilog = logflags.InstanceLogger()
	}
	if m.log == nil {
		m.log = logflags.RegistryLogger()
	}
	return m
}

// State returns the lifecycle state of m.
func (m *SymbolManager) State() State { return m.state }

// Len returns the number of registered nodes.
func (m *SymbolManager) Len() int { return len(m.nodes) }

// ByteOrder returns the byte order of the target.
func (m *SymbolManager) ByteOrder() binary.ByteOrder { return m.byteOrder }

// PtrSize returns the size of a pointer on the target.
func (m *SymbolManager) PtrSize() int { return m.ptrSize }

// StaticBase returns the load bias of the binary.
func (m *SymbolManager) StaticBase() uint64 { return m.staticBase }

// Register inserts sym at offset off. If a node is already registered at
// off the existing node is returned and sym is discarded, callers must use
// the returned node.
func (m *SymbolManager) Register(off dwarf.Offset, sym Symbol) (Symbol, error) {
	if m.state != Building {
		return nil, NewError(InvalidState, off, "can not register nodes after Finalize")
	}
	if sym == nil {
		return nil, NewError(MalformedDIE, off, "nil node")
	}
	if old, ok := m.nodes[off]; ok {
		if m.log != nil && old.Kind() != sym.Kind() {
			m.log.Debugf("offset %#x already registered as %s, ignoring %s", off, old.Kind(), sym.Kind())
		}
		return old, nil
	}
	sym.Common().Offset = off
	m.nodes[off] = sym
	m.order = append(m.order, off)
	return sym, nil
}

// LookupByOffset returns the node registered at off. It is valid in every
// state.
//
// After a partial Finalize a node that has a dangling reference of its own
// is reported as UnresolvedReference, naming the missing target. Such a
// node is still returned by the name queries and can still be reached from
// the nodes that reference it.
func (m *SymbolManager) LookupByOffset(off dwarf.Offset) (Symbol, error) {
	if target, ok := m.broken[off]; ok {
		return nil, unresolved(target, off)
	}
	if sym, ok := m.nodes[off]; ok {
		return sym, nil
	}
	if m.dangling[off] {
		return nil, unresolved(off, 0)
	}
	return nil, &Error{Kind: NotFound, Offset: off}
}

// LookupByName returns every node called name, in registration order.
func (m *SymbolManager) LookupByName(name string) []Symbol {
	if m.state == QueryReady {
		return m.byName[name]
	}
	var r []Symbol
	for _, off := range m.order {
		if sym := m.nodes[off]; sym.Common().Name == name {
			r = append(r, sym)
		}
	}
	return r
}

// typeAt resolves a reference made by the node at from.
func (m *SymbolManager) typeAt(off, from dwarf.Offset) (Type, error) {
	sym, ok := m.nodes[off]
	if !ok {
		return nil, unresolved(off, from)
	}
	t, ok := sym.(Type)
	if !ok {
		return nil, NewError(MalformedDIE, off, "%s used as a type", sym.Kind())
	}
	return t, nil
}

type finalizeConfig struct {
	allowPartial bool
	ignore       map[dwarf.Offset]bool
}

// FinalizeOption configures Finalize.
type FinalizeOption func(*finalizeConfig)

// AllowPartial makes Finalize succeed even if some references are
// dangling. Following a dangling reference fails with UnresolvedReference,
// the rest of the graph is usable.
func AllowPartial() FinalizeOption {
	return func(cfg *finalizeConfig) {
		cfg.allowPartial = true
	}
}

// IgnoreOffsets makes Finalize tolerate dangling references to the given
// offsets, even in strict mode.
func IgnoreOffsets(offs ...dwarf.Offset) FinalizeOption {
	return func(cfg *finalizeConfig) {
		for _, off := range offs {
			cfg.ignore[off] = true
		}
	}
}

// Finalize checks that every reference resolves, validates the layout of
// structs and freezes m.
//
// If some references are dangling an *UnresolvedReferenceError listing all
// of them is returned and m stays in the Building state, unless
// AllowPartial is used. Calling Finalize on a QueryReady manager does
// nothing.
func (m *SymbolManager) Finalize(opts ...FinalizeOption) error {
	if m.state == QueryReady {
		return nil
	}
	cfg := finalizeConfig{ignore: map[dwarf.Offset]bool{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	dangling := map[dwarf.Offset][]dwarf.Offset{}
	all := map[dwarf.Offset]bool{}
	for _, off := range m.order {
		for _, ref := range m.nodes[off].References() {
			if _, ok := m.nodes[ref]; ok {
				continue
			}
			all[ref] = true
			if !cfg.ignore[ref] {
				dangling[ref] = appendUnique(dangling[ref], off)
			}
		}
	}
	if len(dangling) > 0 {
		err := newUnresolvedReferenceError(dangling)
		if !cfg.allowPartial {
			return err
		}
		m.log.Warnf("finalizing with %d unresolved references", len(dangling))
		m.unresolved = err
		m.broken = make(map[dwarf.Offset]dwarf.Offset)
		for target, referrers := range dangling {
			for _, r := range referrers {
				if cur, ok := m.broken[r]; !ok || target < cur {
					m.broken[r] = target
				}
			}
		}
	}
	m.dangling = all

	m.issues = m.validateLayouts()
	for _, issue := range m.issues {
		m.log.Debugf("layout: %v", issue)
	}

	m.buildIndex()
	m.state = QueryReady
	m.log.Debugf("registry ready: %d nodes, %d names", len(m.nodes), len(m.byName))
	return nil
}

func appendUnique(s []dwarf.Offset, off dwarf.Offset) []dwarf.Offset {
	for _, x := range s {
		if x == off {
			return s
		}
	}
	return append(s, off)
}

func (m *SymbolManager) buildIndex() {
	m.byName = make(map[string][]Symbol)
	m.names = trie.New()
	for _, off := range m.order {
		sym := m.nodes[off]
		name := sym.Common().Name
		if name == "" {
			continue
		}
		if _, seen := m.byName[name]; !seen {
			m.names.Add(name, nil)
		}
		m.byName[name] = append(m.byName[name], sym)
	}
}

// Unresolved returns the dangling references tolerated by a partial
// Finalize, or nil.
func (m *SymbolManager) Unresolved() *UnresolvedReferenceError {
	return m.unresolved
}

// Issues returns the layout problems found by Finalize. They do not
// prevent queries.
func (m *SymbolManager) Issues() []error {
	return m.issues
}

// Offsets returns the offsets of all registered nodes, sorted.
func (m *SymbolManager) Offsets() []dwarf.Offset {
	r := make([]dwarf.Offset, len(m.order))
	copy(r, m.order)
	sort.Slice(r, func(i, j int) bool { return r[i] < r[j] })
	return r
}
