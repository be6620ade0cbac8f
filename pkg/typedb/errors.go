package typedb

import (
	"debug/dwarf"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies the errors returned by this package and by the
// parser.
type ErrorKind uint8

const (
	// MalformedDIE means a required attribute is missing or has the wrong
	// form, or the DIE appears where it is not allowed.
	MalformedDIE ErrorKind = iota + 1
	// UnsupportedConstruct means the DWARF construct is recognized but not
	// implemented.
	UnsupportedConstruct
	// UnresolvedReference means an offset does not name any registered node.
	UnresolvedReference
	// NoSuchMember means a struct or union has no member with that name.
	NoSuchMember
	// IndexOutOfRange means an array index is past the known extent.
	IndexOutOfRange
	// ReadFailure means the memory reader failed.
	ReadFailure
	// UnknownEncoding means a base type encoding can not be decoded.
	UnknownEncoding
	// NotFound means no symbol has the requested name or offset.
	NotFound
	// WrongKind means the operation does not apply to the type.
	WrongKind
	// InvalidState means the operation is not allowed in the current
	// lifecycle state of the SymbolManager.
	InvalidState
)

var errorKindNames = map[ErrorKind]string{
	MalformedDIE:         "malformed DIE",
	UnsupportedConstruct: "unsupported construct",
	UnresolvedReference:  "unresolved reference",
	NoSuchMember:         "no such member",
	IndexOutOfRange:      "index out of range",
	ReadFailure:          "read failure",
	UnknownEncoding:      "unknown encoding",
	NotFound:             "not found",
	WrongKind:            "wrong kind",
	InvalidState:         "invalid state",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is the error type returned by the type database.
type Error struct {
	Kind   ErrorKind
	Offset dwarf.Offset // offset of the DIE involved, if any
	Tag    dwarf.Tag    // tag of the DIE involved, if known
	Msg    string
	Err    error
}

// Sentinel errors, one per kind, to be used with errors.Is.
var (
	ErrMalformedDIE         = &Error{Kind: MalformedDIE}
	ErrUnsupportedConstruct = &Error{Kind: UnsupportedConstruct}
	ErrUnresolvedReference  = &Error{Kind: UnresolvedReference}
	ErrNoSuchMember         = &Error{Kind: NoSuchMember}
	ErrIndexOutOfRange      = &Error{Kind: IndexOutOfRange}
	ErrReadFailure          = &Error{Kind: ReadFailure}
	ErrUnknownEncoding      = &Error{Kind: UnknownEncoding}
	ErrNotFound             = &Error{Kind: NotFound}
	ErrWrongKind            = &Error{Kind: WrongKind}
	ErrInvalidState         = &Error{Kind: InvalidState}
)

// NewError returns an *Error of the given kind for the DIE at off.
func NewError(kind ErrorKind, off dwarf.Offset, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Offset != 0 {
		fmt.Fprintf(&b, " at %#x", e.Offset)
	}
	if e.Tag != 0 {
		fmt.Fprintf(&b, " (%s)", e.Tag)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Offset == 0 && t.Msg == "" && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ue *UnresolvedReferenceError
	if errors.As(err, &ue) {
		return UnresolvedReference
	}
	return 0
}

// DanglingReference is an offset that is referenced but was never
// registered.
type DanglingReference struct {
	Target    dwarf.Offset
	Referrers []dwarf.Offset
}

// UnresolvedReferenceError is returned by Finalize when some references can
// not be resolved. It lists every dangling offset with its referrers.
type UnresolvedReferenceError struct {
	Dangling []DanglingReference
}

func newUnresolvedReferenceError(dangling map[dwarf.Offset][]dwarf.Offset) *UnresolvedReferenceError {
	err := &UnresolvedReferenceError{}
	for target, referrers := range dangling {
		sort.Slice(referrers, func(i, j int) bool { return referrers[i] < referrers[j] })
		err.Dangling = append(err.Dangling, DanglingReference{Target: target, Referrers: referrers})
	}
	sort.Slice(err.Dangling, func(i, j int) bool { return err.Dangling[i].Target < err.Dangling[j].Target })
	return err
}

// Offsets returns the dangling offsets, sorted.
func (e *UnresolvedReferenceError) Offsets() []dwarf.Offset {
	r := make([]dwarf.Offset, len(e.Dangling))
	for i := range e.Dangling {
		r[i] = e.Dangling[i].Target
	}
	return r
}

func (e *UnresolvedReferenceError) Error() string {
	const maxShown = 8
	var b strings.Builder
	fmt.Fprintf(&b, "%d unresolved references:", len(e.Dangling))
	for i, d := range e.Dangling {
		if i >= maxShown {
			fmt.Fprintf(&b, " and %d more", len(e.Dangling)-maxShown)
			break
		}
		fmt.Fprintf(&b, " %#x (from", d.Target)
		for _, r := range d.Referrers {
			fmt.Fprintf(&b, " %#x", r)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is makes errors.Is(err, ErrUnresolvedReference) succeed.
func (e *UnresolvedReferenceError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t == ErrUnresolvedReference
}

func unresolved(off, from dwarf.Offset) *Error {
	if from != 0 {
		return NewError(UnresolvedReference, off, "referenced by %#x", from)
	}
	return &Error{Kind: UnresolvedReference, Offset: off}
}

func wrongKind(t Symbol, op string) *Error {
	return &Error{Kind: WrongKind, Offset: t.Common().Offset, Msg: fmt.Sprintf("%s is not applicable to %s", op, t.Kind())}
}
