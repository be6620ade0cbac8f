package leb128

import (
	"errors"
	"io"
)

// Reader is a io.ByteReader with a Len method. This interface is
// satisfied by both bytes.Buffer and bytes.Reader.
type Reader interface {
	io.ByteReader
	io.Reader
	Len() int
}

// ErrTruncated is returned when the input ends in the middle of a
// LEB128 encoded number.
var ErrTruncated = errors.New("truncated LEB128 value")

// ErrOverflow is returned when an encoded number does not fit in 64 bits.
var ErrOverflow = errors.New("LEB128 value overflows 64 bits")

// DecodeUnsigned decodes an unsigned Little Endian Base 128
// represented number, it returns the number and the count of bytes read.
func DecodeUnsigned(buf Reader) (uint64, uint32, error) {
	var (
		result uint64
		shift  uint64
		length uint32
	)

	if buf.Len() == 0 {
		return 0, 0, ErrTruncated
	}

	for {
		b, err := buf.ReadByte()
		if err != nil {
			return 0, length, ErrTruncated
		}
		length++

		if shift >= 64 {
			return 0, length, ErrOverflow
		}
		result |= uint64((uint(b) & 0x7f) << shift)

		// If high order bit is 1.
		if b&0x80 == 0 {
			break
		}

		shift += 7
	}

	return result, length, nil
}

// DecodeSigned decodes a signed Little Endian Base 128
// represented number, it returns the number and the count of bytes read.
func DecodeSigned(buf Reader) (int64, uint32, error) {
	var (
		b      byte
		err    error
		result int64
		shift  uint64
		length uint32
	)

	if buf.Len() == 0 {
		return 0, 0, ErrTruncated
	}

	for {
		b, err = buf.ReadByte()
		if err != nil {
			return 0, length, ErrTruncated
		}
		length++

		if shift >= 64 {
			return 0, length, ErrOverflow
		}
		result |= (int64(b) & 0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}

	if (shift < 64) && (b&0x40 > 0) {
		result |= -(1 << shift)
	}

	return result, length, nil
}
