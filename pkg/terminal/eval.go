package terminal

import (
	"errors"
	"fmt"
	"go/scanner"
	"go/token"
	"strconv"

	"github.com/go-delve/dwarfdb/pkg/typedb"
)

// An access path is a C expression restricted to the operators that
// navigate memory without computing anything:
//
//	expr    = "*" expr | postfix
//	postfix = primary { "." ident | "->" ident | "[" int "]" }
//	primary = ident | "(" expr ")" | "(" type ")" int
//	type    = [ "struct" | "union" | "enum" | "class" ] ident
//
// Identifiers are global variables. A cast reinterprets the memory at an
// address as a value of the named type.

type exprToken struct {
	pos token.Pos
	tok token.Token
	lit string
}

// arrow is the token used for "->", go/scanner returns it as SUB GTR.
const arrow = token.Token(-1)

func tokenizeExpr(expr string) ([]exprToken, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(expr))
	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(file, []byte(expr), func(pos token.Position, msg string) { errs.Add(pos, msg) }, 0)

	var toks []exprToken
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			// automatically inserted
			continue
		}
		if tok == token.GTR && len(toks) > 0 {
			prev := &toks[len(toks)-1]
			if prev.tok == token.SUB && prev.pos+1 == pos {
				prev.tok = arrow
				prev.lit = "->"
				continue
			}
		}
		if tok.IsKeyword() {
			// struct, union and the like are plain identifiers in C
			tok = token.IDENT
		}
		if lit == "" {
			lit = tok.String()
		}
		toks = append(toks, exprToken{pos: pos, tok: tok, lit: lit})
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	return toks, nil
}

type evaluator struct {
	m    *typedb.SymbolManager
	mem  typedb.MemoryReader
	toks []exprToken
	i    int
}

// evalExpr evaluates the access path expr and returns the instance it
// designates.
func evalExpr(m *typedb.SymbolManager, mem typedb.MemoryReader, expr string) (*typedb.Instance, error) {
	toks, err := tokenizeExpr(expr)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errors.New("empty expression")
	}
	ev := &evaluator{m: m, mem: mem, toks: toks}
	inst, err := ev.expr()
	if err != nil {
		return nil, err
	}
	if ev.i < len(ev.toks) {
		return nil, ev.errorf("unexpected %s", ev.toks[ev.i].lit)
	}
	return inst, nil
}

func (ev *evaluator) peek(n int) token.Token {
	if ev.i+n >= len(ev.toks) {
		return token.EOF
	}
	return ev.toks[ev.i+n].tok
}

func (ev *evaluator) next() exprToken {
	if ev.i >= len(ev.toks) {
		return exprToken{tok: token.EOF, lit: "end of expression"}
	}
	t := ev.toks[ev.i]
	ev.i++
	return t
}

func (ev *evaluator) expect(tok token.Token) (exprToken, error) {
	t := ev.next()
	if t.tok != tok {
		return t, fmt.Errorf("expected %s, found %s", tok, t.lit)
	}
	return t, nil
}

func (ev *evaluator) errorf(format string, args ...interface{}) error {
	col := 0
	if ev.i < len(ev.toks) {
		col = int(ev.toks[ev.i].pos)
	}
	return fmt.Errorf("%d: %s", col, fmt.Sprintf(format, args...))
}

func (ev *evaluator) expr() (*typedb.Instance, error) {
	switch ev.peek(0) {
	case token.MUL:
		ev.next()
		inst, err := ev.expr()
		if err != nil {
			return nil, err
		}
		return inst.Deref()
	case token.AND:
		return nil, ev.errorf("can not take the address of a value")
	}
	return ev.postfix()
}

func (ev *evaluator) postfix() (*typedb.Instance, error) {
	inst, err := ev.primary()
	for err == nil {
		switch ev.peek(0) {
		case token.PERIOD:
			ev.next()
			inst, err = ev.member(inst, false)
		case arrow:
			ev.next()
			inst, err = ev.member(inst, true)
		case token.LBRACK:
			inst, err = ev.subscripts(inst)
		default:
			return inst, nil
		}
	}
	return nil, err
}

func (ev *evaluator) member(inst *typedb.Instance, deref bool) (*typedb.Instance, error) {
	name, err := ev.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return ev.field(inst, name.lit, deref)
}

func (ev *evaluator) subscripts(inst *typedb.Instance) (*typedb.Instance, error) {
	var indices []int64
	for ev.peek(0) == token.LBRACK {
		ev.next()
		lit, err := ev.expect(token.INT)
		if err != nil {
			return nil, err
		}
		idx, err := strconv.ParseInt(lit.lit, 0, 64)
		if err != nil {
			return nil, err
		}
		if _, err := ev.expect(token.RBRACK); err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return ev.index(inst, indices)
}

func (ev *evaluator) primary() (*typedb.Instance, error) {
	switch ev.peek(0) {
	case token.IDENT:
		name := ev.next().lit
		if isTypeKeyword(name) {
			return nil, fmt.Errorf("type %s %s used as a value", name, ev.next().lit)
		}
		v, err := ev.m.LookupVariable(name)
		if err != nil {
			return nil, err
		}
		return ev.m.VariableInstance(v, ev.mem)
	case token.LPAREN:
		if ev.isCast() {
			return ev.cast()
		}
		ev.next()
		inst, err := ev.expr()
		if err != nil {
			return nil, err
		}
		if _, err := ev.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return inst, nil
	case token.EOF:
		return nil, errors.New("unexpected end of expression")
	}
	return nil, ev.errorf("unexpected %s", ev.toks[ev.i].lit)
}

func isTypeKeyword(s string) bool {
	switch s {
	case "struct", "union", "enum", "class":
		return true
	}
	return false
}

// isCast returns true if the parenthesis at the current position starts a
// type cast rather than a sub-expression.
func (ev *evaluator) isCast() bool {
	if ev.peek(1) != token.IDENT {
		return false
	}
	if isTypeKeyword(ev.toks[ev.i+1].lit) {
		return true
	}
	return ev.peek(2) == token.RPAREN && ev.peek(3) == token.INT
}

func (ev *evaluator) cast() (*typedb.Instance, error) {
	ev.next() // (
	keyword := ""
	name := ev.next().lit
	if isTypeKeyword(name) {
		keyword = name
		t, err := ev.expect(token.IDENT)
		if err != nil {
			return nil, err
		}
		name = t.lit
	}
	if ev.peek(0) == token.MUL {
		return nil, ev.errorf("casts to pointer types are not supported")
	}
	if _, err := ev.expect(token.RPAREN); err != nil {
		return nil, err
	}
	lit, err := ev.expect(token.INT)
	if err != nil {
		return nil, err
	}
	addr, err := strconv.ParseUint(lit.lit, 0, 64)
	if err != nil {
		return nil, err
	}
	t, err := lookupType(ev.m, keyword, name)
	if err != nil {
		return nil, err
	}
	return ev.m.InstanceOf(t, addr, ev.mem)
}

// lookupType returns the type called name. If keyword is not empty only
// types of the corresponding kind are considered. Definitions are
// preferred over declarations.
func lookupType(m *typedb.SymbolManager, keyword, name string) (typedb.Type, error) {
	types, err := m.FindType(name)
	if err != nil {
		return nil, err
	}
	var found typedb.Type
	for _, t := range types {
		switch keyword {
		case "struct", "class":
			if t.Kind() != typedb.KindStruct {
				continue
			}
		case "union":
			if t.Kind() != typedb.KindUnion {
				continue
			}
		case "enum":
			if t.Kind() != typedb.KindEnum {
				continue
			}
		}
		if !isDeclaration(t) {
			return t, nil
		}
		if found == nil {
			found = t
		}
	}
	if found == nil {
		return nil, &typedb.Error{Kind: typedb.NotFound, Msg: fmt.Sprintf("no type named %s %s", keyword, name)}
	}
	// only declared here, the definition may be in another unit
	if def, err := m.Definition(found); err == nil {
		return def, nil
	}
	return found, nil
}

func isDeclaration(t typedb.Type) bool {
	switch t := t.(type) {
	case *typedb.Struct:
		return t.Declaration
	case *typedb.Union:
		return t.Declaration
	case *typedb.Enum:
		return t.Declaration
	}
	return false
}

// field returns the member called name of inst. Pointers are dereferenced
// first, which "->" requires and "." tolerates.
func (ev *evaluator) field(inst *typedb.Instance, name string, deref bool) (*typedb.Instance, error) {
	t, err := ev.m.Effective(inst.Type)
	if err != nil {
		return nil, err
	}
	if _, isptr := t.(*typedb.Pointer); isptr {
		inst, err = inst.Deref()
		if err != nil {
			return nil, err
		}
	} else if deref {
		return nil, fmt.Errorf("%s is not a pointer", inst.TypeName())
	}
	return inst.FindField(name)
}

// index applies a chain of subscripts. Consecutive subscripts of a
// multi-dimensional array select one element, subscripts of a pointer
// use the pointed-to type as the stride.
func (ev *evaluator) index(inst *typedb.Instance, indices []int64) (*typedb.Instance, error) {
	for len(indices) > 0 {
		t, err := ev.m.Effective(inst.Type)
		if err != nil {
			return nil, err
		}
		switch t := t.(type) {
		case *typedb.Array:
			n := len(t.Dims)
			if len(indices) < n {
				return nil, fmt.Errorf("%s needs %d subscripts", inst.TypeName(), n)
			}
			inst, err = inst.ElementAt(indices[:n]...)
			indices = indices[n:]
		case *typedb.Pointer:
			inst, err = ev.pointerIndex(inst, t, indices[0])
			indices = indices[1:]
		default:
			return nil, fmt.Errorf("%s can not be indexed", inst.TypeName())
		}
		if err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func (ev *evaluator) pointerIndex(inst *typedb.Instance, ptr *typedb.Pointer, i int64) (*typedb.Instance, error) {
	target, err := ptr.Resolve(ev.m)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, errors.New("can not index a void pointer")
	}
	sz, err := ev.m.SizeOf(target)
	if err != nil {
		return nil, err
	}
	addr, err := inst.ReadPointer()
	if err != nil {
		return nil, err
	}
	if addr == 0 {
		return nil, fmt.Errorf("nil pointer dereference")
	}
	return ev.m.InstanceOf(target, addr+uint64(i*sz), ev.mem)
}
