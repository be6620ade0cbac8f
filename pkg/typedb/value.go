package typedb

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// LoadConfig controls how much of a value Load reads.
type LoadConfig struct {
	// FollowPointers requests pointers to be automatically dereferenced.
	FollowPointers bool
	// MaxVariableRecurse is how far to recurse when evaluating nested types.
	MaxVariableRecurse int
	// MaxStringLen is the maximum number of bytes read from a string.
	MaxStringLen int
	// MaxArrayValues is the maximum number of elements read from an array.
	MaxArrayValues int
	// MaxStructFields is the maximum number of fields read from a struct or
	// union. A value of -1 will read all fields.
	MaxStructFields int
}

// DefaultLoadConfig is the configuration used by the command line tools.
var DefaultLoadConfig = LoadConfig{
	FollowPointers:     true,
	MaxVariableRecurse: 1,
	MaxStringLen:       64,
	MaxArrayValues:     64,
	MaxStructFields:    -1,
}

// Value is a loaded, printable snapshot of an Instance.
type Value struct {
	Name     string
	Addr     uint64
	TypeName string
	Kind     Kind

	// Scalar is set for base types, enums and pointers.
	Scalar *Scalar
	// Str is set for char arrays and char pointers.
	Str    string
	HasStr bool
	// Len is the number of elements of an array or the number of members
	// of a struct or union, Children can be shorter.
	Len      int64
	Children []*Value

	// Unreadable is the error encountered while loading this value.
	Unreadable error
}

// Load reads the value of inst and of its children, as limited by cfg.
// Errors are stored in the Unreadable field of the values that could not be
// read.
func (inst *Instance) Load(cfg LoadConfig) *Value {
	v := inst.load("", cfg, 0)
	if v.Unreadable != nil {
		inst.m.ilog.WithError(v.Unreadable).Debugf("could not load %s at %#x", v.TypeName, v.Addr)
	}
	return v
}

func (inst *Instance) load(name string, cfg LoadConfig, recurseLevel int) *Value {
	v := &Value{Name: name, Addr: inst.Address, TypeName: inst.TypeName()}
	t, err := inst.concrete()
	if err != nil {
		v.Unreadable = err
		return v
	}
	v.Kind = t.Kind()

	switch t := t.(type) {
	case *BaseType, *Enum:
		s, err := inst.Scalar()
		if err != nil {
			v.Unreadable = err
			return v
		}
		v.Scalar = &s

	case *Pointer:
		s, err := inst.Scalar()
		if err != nil {
			v.Unreadable = err
			return v
		}
		v.Scalar = &s
		if s.Raw == 0 || !t.HasRef {
			return v
		}
		if inst.isCharPointer(t) {
			v.Str, v.Unreadable = readCString(inst.mem, s.Raw, cfg.MaxStringLen)
			v.HasStr = v.Unreadable == nil
			return v
		}
		if !cfg.FollowPointers || recurseLevel >= cfg.MaxVariableRecurse {
			return v
		}
		target, err := inst.Deref()
		if err != nil {
			v.Unreadable = err
			return v
		}
		if eff, err := inst.m.Effective(target.Type); err == nil && eff != nil && eff.Kind() == KindFuncPointer {
			return v
		}
		v.Children = []*Value{target.load("", cfg, recurseLevel+1)}

	case *Array:
		v.Len = t.Count()
		if inst.isCharArray(t) {
			max := cfg.MaxStringLen
			if t.Known() && v.Len < int64(max) {
				max = int(v.Len)
			}
			v.Str, v.Unreadable = readCString(inst.mem, inst.Address, max)
			v.HasStr = v.Unreadable == nil
			return v
		}
		if recurseLevel > cfg.MaxVariableRecurse {
			return v
		}
		n := v.Len
		if n > int64(cfg.MaxArrayValues) {
			n = int64(cfg.MaxArrayValues)
		}
		for i := int64(0); i < n; i++ {
			elem, err := inst.Element(i)
			if err != nil {
				v.Children = append(v.Children, &Value{Name: "[" + strconv.FormatInt(i, 10) + "]", Unreadable: err})
				continue
			}
			v.Children = append(v.Children, elem.load("", cfg, recurseLevel+1))
		}

	case *Struct, *Union:
		s, _ := structuredOf(t)
		v.Len = int64(len(s.Members))
		if recurseLevel > cfg.MaxVariableRecurse {
			return v
		}
		for i, mb := range s.Members {
			if cfg.MaxStructFields >= 0 && i >= cfg.MaxStructFields {
				break
			}
			field, err := inst.member(mb)
			if err != nil {
				v.Children = append(v.Children, &Value{Name: mb.Name, Unreadable: err})
				continue
			}
			v.Children = append(v.Children, field.load(mb.Name, cfg, recurseLevel+1))
		}

	default:
		v.Unreadable = wrongKind(t, "load")
	}
	return v
}

func (inst *Instance) isChar(t Type) bool {
	eff, err := inst.m.Effective(t)
	if err != nil {
		return false
	}
	b, ok := eff.(*BaseType)
	if !ok || b.ByteSize != 1 {
		return false
	}
	return b.Encoding == EncSignedChar || b.Encoding == EncUnsignedChar
}

func (inst *Instance) isCharPointer(t *Pointer) bool {
	target, err := t.Resolve(inst.m)
	return err == nil && target != nil && inst.isChar(target)
}

func (inst *Instance) isCharArray(t *Array) bool {
	if len(t.Dims) != 1 {
		return false
	}
	elem, err := t.Resolve(inst.m)
	return err == nil && elem != nil && inst.isChar(elem)
}

func (v *Value) String() string {
	var buf bytes.Buffer
	v.Write(&buf, true)
	return buf.String()
}

// Write writes a single line representation of v to w. If top is true
// the type of v is included.
func (v *Value) Write(w io.Writer, top bool) {
	if v.Unreadable != nil {
		fmt.Fprintf(w, "(unreadable %v)", v.Unreadable)
		return
	}
	switch v.Kind {
	case KindBase, KindEnum:
		fmt.Fprint(w, v.Scalar.String())
	case KindPointer:
		switch {
		case v.HasStr:
			fmt.Fprintf(w, "%s", strconv.Quote(v.Str))
		case len(v.Children) == 1:
			fmt.Fprint(w, "*")
			v.Children[0].Write(w, top)
		default:
			fmt.Fprintf(w, "(%s)(%s)", v.TypeName, v.Scalar)
		}
	case KindArray:
		if v.HasStr {
			fmt.Fprintf(w, "%s", strconv.Quote(v.Str))
			return
		}
		if top {
			fmt.Fprintf(w, "%s ", v.TypeName)
		}
		fmt.Fprint(w, "[")
		for i, c := range v.Children {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			c.Write(w, false)
		}
		if more := v.Len - int64(len(v.Children)); more > 0 && len(v.Children) > 0 {
			fmt.Fprintf(w, ",...+%d more", more)
		} else if more > 0 {
			fmt.Fprint(w, "...")
		}
		fmt.Fprint(w, "]")
	case KindStruct, KindUnion:
		fmt.Fprintf(w, "%s {", v.TypeName)
		if len(v.Children) == 0 && v.Len > 0 {
			fmt.Fprint(w, "...")
		}
		for i, c := range v.Children {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			name := c.Name
			if name == "" {
				name = "<anonymous>"
			}
			fmt.Fprintf(w, "%s: ", name)
			c.Write(w, false)
		}
		if more := v.Len - int64(len(v.Children)); more > 0 && len(v.Children) > 0 {
			fmt.Fprintf(w, ", ...+%d more", more)
		}
		fmt.Fprint(w, "}")
	default:
		fmt.Fprintf(w, "(%s)(%#x)", v.TypeName, v.Addr)
	}
}
