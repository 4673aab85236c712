package wasm

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned when a LEB128 value runs past the end of input.
var ErrTruncated = errors.New("wasm: truncated leb128 value")

// AppendULEB128 appends v in unsigned LEB128 form.
func AppendULEB128(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
			continue
		}
		return append(dst, b)
	}
}

// AppendSLEB128 appends v in signed LEB128 form.
func AppendSLEB128(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7 // arithmetic shift keeps the sign
		signBit := b&0x40 != 0
		if (v == 0 && !signBit) || (v == -1 && signBit) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// EncodeULEB128 returns v in unsigned LEB128 form.
func EncodeULEB128(v uint64) []byte {
	return AppendULEB128(nil, v)
}

// EncodeSLEB128 returns v in signed LEB128 form.
func EncodeSLEB128(v int64) []byte {
	return AppendSLEB128(nil, v)
}

// ReadULEB128 decodes an unsigned LEB128 value from the start of b.
// It returns the value and the number of bytes consumed.
func ReadULEB128(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("wasm: uleb128 value overflows 64 bits")
		}
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}

// ReadSLEB128 decodes a signed LEB128 value from the start of b.
// It returns the value and the number of bytes consumed.
func ReadSLEB128(b []byte) (int64, int, error) {
	var result int64
	var shift uint
	for i, c := range b {
		if shift >= 64 {
			return 0, 0, fmt.Errorf("wasm: sleb128 value overflows 64 bits")
		}
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}
