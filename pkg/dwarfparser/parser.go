// Package dwarfparser builds a typedb.SymbolManager from the DIE trees of
// a debug_info section.
//
// Every DIE that describes a type, a global variable or a function becomes
// one node of the manager, registered at the offset of the DIE before its
// children are visited. References between DIEs are stored as offsets and
// resolved by the manager, so the order in which DIEs appear does not
// matter.
package dwarfparser

import (
	"debug/dwarf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/go-delve/dwarfdb/pkg/dwarf/godwarf"
	"github.com/go-delve/dwarfdb/pkg/dwarf/op"
	"github.com/go-delve/dwarfdb/pkg/logflags"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

// DebugInfoReader is a source of compilation units. It is implemented by
// godwarf.UnitReader for real debug_info sections and by godwarf.TreeUnits
// for hand built trees.
type DebugInfoReader interface {
	// NextUnit returns the next compilation unit or io.EOF.
	NextUnit() (*godwarf.Tree, error)
	AddressSize() int
	ByteOrder() binary.ByteOrder
}

type config struct {
	finalize    []typedb.FinalizeOption
	managerOpts []typedb.ManagerOption
	staticBase  uint64
	log         logflags.Logger
}

// Option configures Parse.
type Option func(*config)

// AllowPartial finalizes the manager even if some references are
// dangling, see typedb.AllowPartial.
func AllowPartial() Option {
	return func(cfg *config) {
		cfg.finalize = append(cfg.finalize, typedb.AllowPartial())
	}
}

// IgnoreOffsets tolerates dangling references to offs.
func IgnoreOffsets(offs ...dwarf.Offset) Option {
	return func(cfg *config) {
		cfg.finalize = append(cfg.finalize, typedb.IgnoreOffsets(offs...))
	}
}

// WithStaticBase relocates static addresses (variable locations and
// function entry points) by base. Units read through a godwarf.UnitReader
// must be created with the same base.
func WithStaticBase(base uint64) Option {
	return func(cfg *config) {
		cfg.staticBase = base
	}
}

// WithLogger sets the logger of the parser.
func WithLogger(l logflags.Logger) Option {
	return func(cfg *config) {
		cfg.log = l
	}
}

// WithManagerOptions passes opts to typedb.NewSymbolManager, after the
// options derived from the reader.
func WithManagerOptions(opts ...typedb.ManagerOption) Option {
	return func(cfg *config) {
		cfg.managerOpts = append(cfg.managerOpts, opts...)
	}
}

type scope uint8

const (
	scopeGlobal scope = iota
	scopeFunction
)

// origin is a DIE that completes another one through DW_AT_specification
// or DW_AT_abstract_origin.
type origin struct {
	sym    typedb.Symbol
	target dwarf.Offset
	unit   int
}

// paramOrigin is a formal parameter of a concrete function that takes its
// name and type from the abstract instance.
type paramOrigin struct {
	fn     *typedb.Function
	idx    int
	target dwarf.Offset
	unit   int
}

// bitfield is a DWARF 2/3 bit-field member, its DW_AT_bit_offset is
// counted from the most significant bit of a storage unit whose size may
// only be known once the whole graph is registered.
type bitfield struct {
	mb        *typedb.Member
	die       *godwarf.Tree
	loc       int64
	bitOffset int64
	storage   int64
	unit      int
}

type parser struct {
	m      *typedb.SymbolManager
	log    logflags.Logger
	sctx   op.StaticContext
	report *Report
	cur    *UnitReport
	unit   int

	origins      []origin
	paramOrigins []paramOrigin
	params       map[dwarf.Offset]typedb.Param
	bitfields    []bitfield
}

// Parse reads every compilation unit of src and returns the resulting
// SymbolManager, finalized.
//
// Malformed DIEs are skipped and recorded in the Report, they never stop
// the parse. If the strict finalization fails the manager is returned
// anyway, still in the Building state, together with the
// *typedb.UnresolvedReferenceError: callers can inspect it and finalize
// again with typedb.AllowPartial.
//
// A compilation unit that can not be read ends the walk. It is recorded in
// the Report as a MalformedDIE issue of that unit and the units read before
// it are still resolved and finalized. The manager is returned together
// with the read error.
func Parse(src DebugInfoReader, opts ...Option) (*typedb.SymbolManager, *Report, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = logflags.ParserLogger()
	}
	p := &parser{
		log:    cfg.log,
		report: &Report{},
		params: make(map[dwarf.Offset]typedb.Param),
	}

	var readErr error
	for i := 0; ; i++ {
		cu, err := src.NextUnit()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = &typedb.Error{Kind: typedb.MalformedDIE, Msg: fmt.Sprintf("could not read compilation unit %d", i), Err: err}
			p.report.Units = append(p.report.Units, UnitReport{Index: i, Issues: []error{readErr}})
			p.log.WithError(err).Warnf("stopping at compilation unit %d", i)
			break
		}
		if p.m == nil {
			p.init(src, &cfg)
		}
		p.parseUnit(i, cu)
	}
	if p.m == nil {
		p.init(src, &cfg)
	}

	p.resolveOrigins()
	p.resolveBitfields()

	p.log.Debugf("parsed %d units, %d nodes, %d issues", len(p.report.Units), p.m.Len(), len(p.report.Issues()))
	if err := p.m.Finalize(cfg.finalize...); err != nil {
		return p.m, p.report, multierr.Append(readErr, err)
	}
	return p.m, p.report, readErr
}

func (p *parser) init(src DebugInfoReader, cfg *config) {
	p.sctx = op.StaticContext{StaticBase: cfg.staticBase, PtrSize: src.AddressSize(), ByteOrder: src.ByteOrder()}
	mopts := []typedb.ManagerOption{
		typedb.WithByteOrder(src.ByteOrder()),
		typedb.WithAddressSize(src.AddressSize()),
		typedb.WithStaticBase(cfg.staticBase),
	}
	p.m = typedb.NewSymbolManager(append(mopts, cfg.managerOpts...)...)
}

func (p *parser) parseUnit(index int, cu *godwarf.Tree) {
	p.report.Units = append(p.report.Units, UnitReport{Index: index, Name: cu.Name(), Offset: cu.Offset})
	p.cur = &p.report.Units[len(p.report.Units)-1]
	p.unit = index
	p.log.Debugf("unit %d %q at %#x", index, cu.Name(), cu.Offset)

	switch cu.Tag {
	case dwarf.TagCompileUnit, dwarf.TagPartialUnit, dwarf.TagTypeUnit:
		p.children(cu, scopeGlobal)
	default:
		p.issue(malformed(cu, "expected a compilation unit"))
	}
}

// issue records err in the report of the current unit.
func (p *parser) issue(err error) {
	p.cur.Issues = append(p.cur.Issues, err)
	if typedb.KindOf(err) == typedb.MalformedDIE {
		p.cur.Skipped++
		p.log.WithField("unit", p.unit).Warnf("%v", err)
		return
	}
	p.log.WithField("unit", p.unit).Debugf("%v", err)
}

func (p *parser) unitIssue(unit int, err error) {
	for i := range p.report.Units {
		if p.report.Units[i].Index == unit {
			p.report.Units[i].Issues = append(p.report.Units[i].Issues, err)
			break
		}
	}
	p.log.WithField("unit", unit).Debugf("%v", err)
}

func (p *parser) children(n *godwarf.Tree, sc scope) {
	for _, child := range n.Children {
		p.visit(child, sc)
	}
}

// unsupportedTypes are type tags that are recognized but not decoded, they
// are registered as typedb.Unsupported so that references to them resolve.
var unsupportedTypes = map[dwarf.Tag]bool{
	dwarf.TagUnspecifiedType: true,
	dwarf.TagPtrToMemberType: true,
	dwarf.TagStringType:      true,
	dwarf.TagSetType:         true,
	dwarf.TagFileType:        true,
	dwarf.TagSubrangeType:    true,
	dwarf.TagPackedType:      true,
	dwarf.TagSharedType:      true,
	dwarf.TagInterfaceType:   true,
	dwarf.TagThrownType:      true,
	dwarf.TagAtomicType:      true,
	dwarf.TagImmutableType:   true,
	dwarf.TagCoarrayType:     true,
	dwarf.TagDynamicType:     true,
	dwarf.TagGenericSubrange: true,
}

// ignoredTags carry nothing the type graph needs.
var ignoredTags = map[dwarf.Tag]bool{
	dwarf.TagLabel:                  true,
	dwarf.TagInlinedSubroutine:      true,
	dwarf.TagCallSite:               true,
	dwarf.TagCallSiteParameter:      true,
	dwarf.Tag(0x4109):               true, // DW_TAG_GNU_call_site
	dwarf.Tag(0x410a):               true, // DW_TAG_GNU_call_site_parameter
	dwarf.TagTemplateTypeParameter:  true,
	dwarf.TagTemplateValueParameter: true,
	dwarf.TagImportedDeclaration:    true,
	dwarf.TagImportedModule:         true,
	dwarf.TagImportedUnit:           true,
	dwarf.TagDwarfProcedure:         true,
	dwarf.TagAccessDeclaration:      true,
	dwarf.TagFriend:                 true,
	dwarf.TagVariantPart:            true,
	dwarf.TagConstant:               true,
	dwarf.TagCommonDwarfBlock:       true,
	dwarf.TagEntryPoint:             true,
}

func (p *parser) visit(n *godwarf.Tree, sc scope) {
	var err error
	switch n.Tag {
	case dwarf.TagNamespace, dwarf.TagLexDwarfBlock, dwarf.TagModule:
		p.children(n, sc)
	case dwarf.TagBaseType:
		err = p.baseType(n)
	case dwarf.TagConstType, dwarf.TagVolatileType, dwarf.TagRestrictType:
		err = p.qualType(n)
	case dwarf.TagTypedef:
		err = p.typedef(n)
	case dwarf.TagPointerType, dwarf.TagReferenceType, dwarf.TagRvalueReferenceType:
		err = p.pointer(n)
	case dwarf.TagSubroutineType:
		err = p.subroutineType(n)
	case dwarf.TagArrayType:
		err = p.array(n)
	case dwarf.TagEnumerationType:
		err = p.enum(n)
	case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType:
		err = p.structured(n)
	case dwarf.TagSubprogram:
		err = p.subprogram(n)
	case dwarf.TagVariable:
		err = p.variable(n, sc)
	case dwarf.TagMember, dwarf.TagInheritance, dwarf.TagEnumerator, dwarf.TagFormalParameter, dwarf.TagUnspecifiedParameters:
		err = malformed(n, "%s outside of its parent", n.Tag)
	default:
		switch {
		case unsupportedTypes[n.Tag]:
			err = p.unsupportedType(n)
		case ignoredTags[n.Tag]:
			p.log.Debugf("skipping %s at %#x", n.Tag, n.Offset)
		default:
			p.cur.Skipped++
			err = unsupported(n, "unknown tag")
		}
	}
	if err != nil {
		p.issue(err)
	}
}

// register inserts sym at the offset of n, filling the common fields from
// the attributes of n. It returns false if the offset was already taken,
// in which case the children of n must not be visited again.
func (p *parser) register(n *godwarf.Tree, sym typedb.Symbol) (bool, error) {
	c := sym.Common()
	c.Name = n.Name()
	c.Unit = p.unit
	sz, ok, err := intAttr(n, dwarf.AttrByteSize)
	if err != nil {
		return false, err
	}
	if ok {
		c.ByteSize = sz
	}
	got, err := p.m.Register(n.Offset, sym)
	if err != nil {
		return false, err
	}
	if got != sym {
		return false, nil
	}
	p.cur.Nodes++
	return true, nil
}

func (p *parser) baseType(n *godwarf.Tree) error {
	enc, ok, err := intAttr(n, dwarf.AttrEncoding)
	if err != nil {
		return err
	}
	if !ok {
		return malformed(n, "base type %s without encoding", n.Name())
	}
	t := &typedb.BaseType{Encoding: typedb.Encoding(enc)}
	t.BitSize, _, err = intAttr(n, dwarf.AttrBitSize)
	if err != nil {
		return err
	}
	t.BitOffset, _, err = intAttr(n, dwarf.AttrDataBitOffset)
	if err != nil {
		return err
	}
	if n.Val(dwarf.AttrByteSize) == nil {
		if t.BitSize <= 0 {
			return malformed(n, "base type %s without size", n.Name())
		}
		t.ByteSize = (t.BitSize + 7) / 8
	}
	_, err = p.register(n, t)
	return err
}

func (p *parser) qualType(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	t := &typedb.ConstType{ReferencingType: ref}
	switch n.Tag {
	case dwarf.TagVolatileType:
		t.Qual = typedb.QualVolatile
	case dwarf.TagRestrictType:
		t.Qual = typedb.QualRestrict
	default:
		t.Qual = typedb.QualConst
	}
	_, err = p.register(n, t)
	return err
}

func (p *parser) typedef(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	_, err = p.register(n, &typedb.Typedef{ReferencingType: ref})
	return err
}

func (p *parser) pointer(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	_, err = p.register(n, &typedb.Pointer{ReferencingType: ref, Reference: n.Tag != dwarf.TagPointerType})
	return err
}

func (p *parser) subroutineType(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	t := &typedb.FuncPointer{ReferencingType: ref}
	fresh, err := p.register(n, t)
	if err != nil || !fresh {
		return err
	}
	for _, c := range n.Children {
		switch c.Tag {
		case dwarf.TagFormalParameter:
			pref, err := typeRef(c, dwarf.AttrType)
			if err != nil {
				p.issue(err)
				continue
			}
			if !pref.HasRef {
				p.issue(malformed(c, "parameter without type"))
				continue
			}
			t.Params = append(t.Params, pref.Ref)
		case dwarf.TagUnspecifiedParameters:
			t.Variadic = true
		default:
			p.visit(c, scopeGlobal)
		}
	}
	return nil
}

func (p *parser) array(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	if !ref.HasRef {
		return malformed(n, "array without element type")
	}
	t := &typedb.Array{ReferencingType: ref}
	if bytes, ok, _ := intAttr(n, dwarf.AttrStride); ok {
		t.StrideBits = 8 * bytes
	} else if bits, ok, _ := intAttr(n, dwarf.AttrStrideSize); ok {
		t.StrideBits = bits
	}

	// The dimensions are not nodes, they are read before registering so
	// that a bad bound drops the whole array.
	for _, c := range n.Children {
		switch c.Tag {
		case dwarf.TagSubrangeType:
			t.Dims = append(t.Dims, extent(c))
		case dwarf.TagEnumerationType:
			return malformed(c, "cannot handle enumeration type as array bound")
		}
	}
	if len(t.Dims) == 0 {
		// LLVM generates this for x[].
		t.Dims = []int64{typedb.UnknownExtent}
	}
	_, err = p.register(n, t)
	return err
}

// extent returns the number of elements described by a subrange, or
// UnknownExtent if the bounds are missing or not constant.
func extent(c *godwarf.Tree) int64 {
	if count, ok, err := intAttr(c, dwarf.AttrCount); err == nil && ok {
		return count
	}
	upper, ok, err := intAttr(c, dwarf.AttrUpperBound)
	if err != nil || !ok {
		return typedb.UnknownExtent
	}
	lower, _, err := intAttr(c, dwarf.AttrLowerBound)
	if err != nil {
		return typedb.UnknownExtent
	}
	if n := upper - lower + 1; n > 0 {
		return n
	}
	return 0
}

func (p *parser) enum(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	t := &typedb.Enum{ReferencingType: ref, Declaration: flagAttr(n, dwarf.AttrDeclaration)}
	fresh, err := p.register(n, t)
	if err != nil || !fresh {
		return err
	}
	for _, c := range n.Children {
		if c.Tag != dwarf.TagEnumerator {
			p.visit(c, scopeGlobal)
			continue
		}
		v, ok, err := intAttr(c, dwarf.AttrConstValue)
		if err != nil {
			p.issue(err)
			continue
		}
		if !ok {
			p.issue(malformed(c, "enumerator %s without value", c.Name()))
			continue
		}
		t.Enumerators = append(t.Enumerators, typedb.Enumerator{Name: c.Name(), Value: v})
	}
	return nil
}

func (p *parser) structured(n *godwarf.Tree) error {
	var (
		s   *typedb.Structured
		sym typedb.Symbol
	)
	decl := flagAttr(n, dwarf.AttrDeclaration)
	if n.Tag == dwarf.TagUnionType {
		u := &typedb.Union{Structured: typedb.Structured{Declaration: decl}}
		s, sym = &u.Structured, u
	} else {
		st := &typedb.Struct{Structured: typedb.Structured{Declaration: decl}, Class: n.Tag == dwarf.TagClassType}
		s, sym = &st.Structured, st
	}
	fresh, err := p.register(n, sym)
	if err != nil || !fresh {
		return err
	}
	for _, c := range n.Children {
		switch c.Tag {
		case dwarf.TagMember:
			err = p.member(c, s, false)
		case dwarf.TagInheritance:
			err = p.member(c, s, true)
		default:
			// nested types, methods and static members
			p.visit(c, scopeGlobal)
			continue
		}
		if err != nil {
			p.issue(err)
		}
	}
	return nil
}

func (p *parser) member(c *godwarf.Tree, s *typedb.Structured, inherited bool) error {
	ref, err := typeRef(c, dwarf.AttrType)
	if err != nil {
		return err
	}
	if !ref.HasRef {
		return malformed(c, "member %s without type", c.Name())
	}
	if !inherited && flagAttr(c, dwarf.AttrDeclaration) {
		p.log.Debugf("skipping static member %s at %#x", c.Name(), c.Offset)
		return nil
	}
	mb := &typedb.Member{ReferencingType: ref, Offset: c.Offset, Inherited: inherited}
	if !inherited {
		mb.Name = c.Name()
	}
	loc, err := p.memberLocation(c)
	if err != nil {
		return err
	}
	if loc < 0 {
		return malformed(c, "member %s at negative offset %d", c.Name(), loc)
	}
	mb.ByteOffset = uint64(loc)

	bitSize, ok, err := intAttr(c, dwarf.AttrBitSize)
	if err != nil {
		return err
	}
	if ok {
		mb.BitSize = bitSize
		if dbo, ok, err := intAttr(c, dwarf.AttrDataBitOffset); err != nil {
			return err
		} else if ok {
			total := loc*8 + dbo
			mb.ByteOffset, mb.BitOffset = uint64(total/8), total%8
		} else if bo, ok, err := intAttr(c, dwarf.AttrBitOffset); err != nil {
			return err
		} else if ok {
			storage, _, _ := intAttr(c, dwarf.AttrByteSize)
			p.bitfields = append(p.bitfields, bitfield{mb: mb, die: c, loc: loc, bitOffset: bo, storage: storage, unit: p.unit})
		}
	}
	s.AddMember(mb)
	return nil
}

// memberLocation returns the byte offset of a member inside its parent.
// Union members usually have no location.
func (p *parser) memberLocation(c *godwarf.Tree) (int64, error) {
	switch v := c.Val(dwarf.AttrDataMemberLoc).(type) {
	case nil:
		return 0, nil
	case []byte:
		loc, _, err := op.ExecuteStackProgram(p.sctx, v, 0)
		if err != nil {
			return 0, malformed(c, "member location: %v", err)
		}
		return loc, nil
	default:
		loc, _, err := intAttr(c, dwarf.AttrDataMemberLoc)
		return loc, err
	}
}

func (p *parser) subprogram(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	fn := &typedb.Function{
		ReferencingType: ref,
		External:        flagAttr(n, dwarf.AttrExternal),
		Declaration:     flagAttr(n, dwarf.AttrDeclaration),
	}
	fn.LowPC, fn.HighPC = p.pcRange(n)
	fresh, err := p.register(n, fn)
	if err != nil || !fresh {
		return err
	}
	p.addOrigin(n, fn)

	for _, c := range n.Children {
		switch c.Tag {
		case dwarf.TagFormalParameter:
			pref, err := typeRef(c, dwarf.AttrType)
			if err != nil {
				p.issue(err)
				continue
			}
			param := typedb.Param{Name: c.Name(), ReferencingType: pref, Offset: c.Offset}
			if target, ok := offsetAttr(c, dwarf.AttrAbstractOrigin); ok {
				p.paramOrigins = append(p.paramOrigins, paramOrigin{fn: fn, idx: len(fn.Params), target: target, unit: p.unit})
			} else if !pref.HasRef {
				p.issue(malformed(c, "parameter %s without type", c.Name()))
				continue
			}
			p.params[c.Offset] = param
			fn.Params = append(fn.Params, param)
		case dwarf.TagUnspecifiedParameters:
			fn.Variadic = true
		default:
			p.visit(c, scopeFunction)
		}
	}
	return nil
}

// pcRange returns the entry point and the end of a function. The ranges
// computed by the reader are preferred, they are already relocated.
func (p *parser) pcRange(n *godwarf.Tree) (lowpc, highpc uint64) {
	if len(n.Ranges) > 0 {
		return n.Ranges[0][0], n.Ranges[len(n.Ranges)-1][1]
	}
	lowpc, ok := addrAttr(n, dwarf.AttrLowpc)
	if !ok {
		return 0, 0
	}
	switch v := n.Val(dwarf.AttrHighpc).(type) {
	case uint64:
		highpc = v
	case int64:
		highpc = lowpc + uint64(v)
	default:
		return 0, 0
	}
	return lowpc + p.sctx.StaticBase, highpc + p.sctx.StaticBase
}

func (p *parser) variable(n *godwarf.Tree, sc scope) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		return err
	}
	v := &typedb.Variable{
		ReferencingType: ref,
		External:        flagAttr(n, dwarf.AttrExternal),
		Declaration:     flagAttr(n, dwarf.AttrDeclaration),
	}
	if instr, ok := n.Val(dwarf.AttrLocation).([]byte); ok {
		v.LocationExpr = instr
		addr, isValue, err := op.ExecuteStackProgram(p.sctx, instr)
		switch {
		case err == nil && !isValue:
			v.Location, v.HasLocation = uint64(addr), true
		case err != nil && !errors.Is(err, op.ErrNotStatic):
			p.issue(unsupported(n, "location of %s: %v", n.Name(), err))
		}
	}
	// Location lists and register based locations are not static.
	if sc == scopeFunction && !v.HasLocation {
		return nil
	}
	fresh, err := p.register(n, v)
	if err != nil || !fresh {
		return err
	}
	p.addOrigin(n, v)
	return nil
}

func (p *parser) unsupportedType(n *godwarf.Tree) error {
	ref, err := typeRef(n, dwarf.AttrType)
	if err != nil {
		ref = typedb.ReferencingType{}
	}
	if _, err := p.register(n, &typedb.Unsupported{ReferencingType: ref, Tag: n.Tag}); err != nil {
		return err
	}
	return unsupported(n, "values of type %s can not be decoded", n.Tag)
}

func (p *parser) addOrigin(n *godwarf.Tree, sym typedb.Symbol) {
	if target, ok := offsetAttr(n, dwarf.AttrSpecification); ok {
		p.origins = append(p.origins, origin{sym: sym, target: target, unit: p.unit})
	} else if target, ok := offsetAttr(n, dwarf.AttrAbstractOrigin); ok {
		p.origins = append(p.origins, origin{sym: sym, target: target, unit: p.unit})
	}
}

// resolveOrigins completes the DIEs that refer to a declaration or to an
// abstract instance with the name, type and parameters of their target.
// Targets are completed first, chains are followed up to maxOriginDepth.
func (p *parser) resolveOrigins() {
	const maxOriginDepth = 8
	byOffset := make(map[dwarf.Offset]*origin, len(p.origins))
	for i := range p.origins {
		byOffset[p.origins[i].sym.Common().Offset] = &p.origins[i]
	}
	done := make(map[dwarf.Offset]bool, len(p.origins))

	var resolve func(o *origin, depth int)
	resolve = func(o *origin, depth int) {
		off := o.sym.Common().Offset
		if done[off] {
			return
		}
		done[off] = true
		if next, ok := byOffset[o.target]; ok && depth < maxOriginDepth {
			resolve(next, depth+1)
		}
		target, err := p.m.LookupByOffset(o.target)
		if err != nil {
			p.unitIssue(o.unit, typedb.NewError(typedb.UnresolvedReference, o.target, "origin of %#x", off))
			return
		}
		mergeOrigin(o.sym, target)
	}
	for i := range p.origins {
		resolve(&p.origins[i], 0)
	}

	for _, po := range p.paramOrigins {
		target, ok := p.params[po.target]
		if !ok {
			p.unitIssue(po.unit, typedb.NewError(typedb.UnresolvedReference, po.target, "origin of parameter %d of %s", po.idx, po.fn.Name))
			continue
		}
		param := &po.fn.Params[po.idx]
		if param.Name == "" {
			param.Name = target.Name
		}
		if !param.HasRef {
			param.ReferencingType = target.ReferencingType
		}
	}
}

func mergeOrigin(sym, target typedb.Symbol) {
	c := sym.Common()
	if c.Name == "" {
		c.Name = target.Common().Name
	}
	switch s := sym.(type) {
	case *typedb.Variable:
		if tv, ok := target.(*typedb.Variable); ok {
			if !s.HasRef {
				s.ReferencingType = tv.ReferencingType
			}
			s.External = s.External || tv.External
		}
	case *typedb.Function:
		if tf, ok := target.(*typedb.Function); ok {
			if !s.HasRef {
				s.ReferencingType = tf.ReferencingType
			}
			if len(s.Params) == 0 {
				s.Params = append([]typedb.Param(nil), tf.Params...)
			}
			s.External = s.External || tf.External
			s.Variadic = s.Variadic || tf.Variadic
		}
	}
}

// resolveBitfields converts DW_AT_bit_offset, counted from the most
// significant bit of the storage unit, into an offset counted from the
// first byte of the member.
func (p *parser) resolveBitfields() {
	for _, bf := range p.bitfields {
		storage := bf.storage
		if storage == 0 {
			t, err := bf.mb.Resolve(p.m)
			if err == nil {
				storage, err = p.m.SizeOf(t)
			}
			if err != nil {
				p.unitIssue(bf.unit, malformed(bf.die, "size of the storage unit of bit-field %s: %v", bf.mb.Name, err))
				continue
			}
		}
		dbo := bf.loc*8 + bf.bitOffset
		if p.m.ByteOrder() != binary.BigEndian {
			dbo = bf.loc*8 + storage*8 - bf.bitOffset - bf.mb.BitSize
		}
		if dbo < 0 {
			p.unitIssue(bf.unit, malformed(bf.die, "bit-field %s at negative bit offset %d", bf.mb.Name, dbo))
			continue
		}
		bf.mb.ByteOffset, bf.mb.BitOffset = uint64(dbo/8), dbo%8
	}
}
