package typedb

import (
	"encoding/binary"
	"fmt"
	"go/constant"
	"math"
	"strconv"
)

// ScalarKind is the class of a decoded scalar.
type ScalarKind uint8

const (
	ScalarSigned ScalarKind = iota + 1
	ScalarUnsigned
	ScalarFloat
	ScalarBool
	ScalarChar
	ScalarAddress
	ScalarEnum
)

// Scalar is a decoded primitive value.
type Scalar struct {
	Kind  ScalarKind
	Value constant.Value
	// Name is the enumerator matching the value, empty if none does.
	Name string
	// Raw holds the bits that were read, after bit-field extraction.
	Raw  uint64
	Size int64
}

// Int64 returns the value as a signed integer.
func (s Scalar) Int64() int64 {
	switch s.Kind {
	case ScalarFloat:
		return int64(s.Float64())
	case ScalarBool:
		if constant.BoolVal(s.Value) {
			return 1
		}
		return 0
	}
	if v, exact := constant.Int64Val(s.Value); exact {
		return v
	}
	u, _ := constant.Uint64Val(s.Value)
	return int64(u)
}

// Uint64 returns the value as an unsigned integer.
func (s Scalar) Uint64() uint64 {
	return uint64(s.Int64())
}

// Float64 returns the value as a floating point number, NaNs and
// infinities included.
func (s Scalar) Float64() float64 {
	if s.Kind != ScalarFloat {
		return float64(s.Int64())
	}
	if s.Size == 4 {
		return float64(math.Float32frombits(uint32(s.Raw)))
	}
	return math.Float64frombits(s.Raw)
}

func (s Scalar) String() string {
	switch s.Kind {
	case ScalarFloat:
		bits := 64
		if s.Size == 4 {
			bits = 32
		}
		return strconv.FormatFloat(s.Float64(), 'g', -1, bits)
	case ScalarBool:
		return strconv.FormatBool(constant.BoolVal(s.Value))
	case ScalarChar:
		v := s.Int64()
		if v >= 0x20 && v < 0x7f {
			return fmt.Sprintf("%d %q", v, rune(v))
		}
		return strconv.FormatInt(v, 10)
	case ScalarAddress:
		return fmt.Sprintf("%#x", s.Raw)
	case ScalarEnum:
		if s.Name != "" {
			return fmt.Sprintf("%s (%s)", s.Name, s.Value.ExactString())
		}
	}
	return s.Value.ExactString()
}

// Scalar decodes a base type, an enum or a pointer value.
func (inst *Instance) Scalar() (Scalar, error) {
	t, err := inst.concrete()
	if err != nil {
		return Scalar{}, err
	}
	switch t := t.(type) {
	case *BaseType:
		return inst.decodeBase(t)
	case *Enum:
		return inst.decodeEnum(t)
	case *Pointer:
		p, err := inst.ReadPointer()
		if err != nil {
			return Scalar{}, err
		}
		return Scalar{Kind: ScalarAddress, Value: constant.MakeUint64(p), Raw: p, Size: int64(inst.m.ptrSize)}, nil
	}
	return Scalar{}, wrongKind(t, "scalar decoding")
}

// readBits reads the integer of size bytes at inst, or the bit-field
// described by inst.BitSize and inst.BitOffset.
func (inst *Instance) readBits(size int64) (uint64, int64, error) {
	if inst.BitSize <= 0 {
		v, err := inst.readUint(size)
		return v, size * 8, err
	}
	n := (inst.BitOffset + inst.BitSize + 7) / 8
	if n > 8 {
		return 0, 0, &Error{Kind: UnsupportedConstruct, Offset: inst.Type.Common().Offset, Msg: "bit-field straddles more than 8 bytes"}
	}
	v, err := inst.readUint(n)
	if err != nil {
		return 0, 0, err
	}
	shift := inst.BitOffset
	if inst.m.byteOrder == binary.BigEndian {
		shift = n*8 - inst.BitOffset - inst.BitSize
	}
	v >>= uint(shift)
	if inst.BitSize < 64 {
		v &= (uint64(1) << uint(inst.BitSize)) - 1
	}
	return v, inst.BitSize, nil
}

func signExtend(v uint64, bits int64) int64 {
	if bits <= 0 || bits >= 64 {
		return int64(v)
	}
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift
}

func (inst *Instance) decodeBase(t *BaseType) (Scalar, error) {
	size := t.ByteSize
	unknown := func() (Scalar, error) {
		return Scalar{}, &Error{Kind: UnknownEncoding, Offset: t.Offset, Msg: fmt.Sprintf("%s of %d bytes (%s)", t.Encoding, size, t.Name)}
	}
	bi := inst
	if inst.BitSize <= 0 && t.BitSize > 0 {
		bi = inst.derive(t, inst.Address)
		bi.BitSize, bi.BitOffset = t.BitSize, t.BitOffset
	}
	switch t.Encoding {
	case EncSigned, EncSignedChar, EncUnsigned, EncUnsignedChar, EncUTF, EncAddress, EncBoolean:
		if size <= 0 || size > 8 {
			return unknown()
		}
	case EncFloat:
		if (size != 4 && size != 8) || bi.BitSize > 0 {
			return unknown()
		}
	default:
		return unknown()
	}

	raw, bits, err := bi.readBits(size)
	if err != nil {
		return Scalar{}, err
	}
	s := Scalar{Raw: raw, Size: size}
	switch t.Encoding {
	case EncSigned:
		s.Kind, s.Value = ScalarSigned, constant.MakeInt64(signExtend(raw, bits))
	case EncSignedChar:
		s.Kind, s.Value = ScalarChar, constant.MakeInt64(signExtend(raw, bits))
	case EncUnsigned:
		s.Kind, s.Value = ScalarUnsigned, constant.MakeUint64(raw)
	case EncUnsignedChar, EncUTF:
		s.Kind, s.Value = ScalarChar, constant.MakeUint64(raw)
	case EncAddress:
		s.Kind, s.Value = ScalarAddress, constant.MakeUint64(raw)
	case EncBoolean:
		s.Kind, s.Value = ScalarBool, constant.MakeBool(raw != 0)
	case EncFloat:
		s.Kind = ScalarFloat
		s.Value = constant.MakeFloat64(s.Float64())
	}
	return s, nil
}

func (inst *Instance) enumSigned(t *Enum) bool {
	if t.HasRef {
		if under, err := t.Resolve(inst.m); err == nil {
			if eff, err := inst.m.Effective(under); err == nil {
				if b, ok := eff.(*BaseType); ok {
					return b.Encoding == EncSigned || b.Encoding == EncSignedChar
				}
			}
		}
	}
	for _, e := range t.Enumerators {
		if e.Value < 0 {
			return true
		}
	}
	return false
}

func (inst *Instance) decodeEnum(t *Enum) (Scalar, error) {
	size, err := inst.m.SizeOf(t)
	if err != nil {
		return Scalar{}, err
	}
	if size <= 0 || size > 8 {
		return Scalar{}, &Error{Kind: UnknownEncoding, Offset: t.Offset, Msg: fmt.Sprintf("enum of %d bytes", size)}
	}
	raw, bits, err := inst.readBits(size)
	if err != nil {
		return Scalar{}, err
	}
	s := Scalar{Kind: ScalarEnum, Raw: raw, Size: size}
	var v int64
	if inst.enumSigned(t) {
		v = signExtend(raw, bits)
		s.Value = constant.MakeInt64(v)
	} else {
		v = int64(raw)
		s.Value = constant.MakeUint64(raw)
	}
	// An unnamed value is not an error, enums are often used as bit masks.
	s.Name, _ = t.NameOf(v)
	return s, nil
}
