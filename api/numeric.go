package api

import (
	"golang.org/x/exp/constraints"
)

// The functions below mirror the small template library the original
// (Walrus, C++) interpreter used to share one implementation of each
// arithmetic op across i32/i64/u32/u64/f32/f64 (see interpreter/Interpreter.cpp
// in the C++ sources this engine was ported from). Go generics over
// constraints.Integer/constraints.Float play the same role templates did.

// ShiftMask masks a shift count to the modulo of T's bit width, per §4.1:
// "Integer shifts mask the shift count modulo the bit-width."
func ShiftMask[T constraints.Integer](count T) uint {
	var zero T
	bits := bitWidth(zero)
	return uint(count) % bits
}

func bitWidth[T constraints.Integer](_ T) uint {
	var v T
	switch any(v).(type) {
	case int8, uint8:
		return 8
	case int16, uint16:
		return 16
	case int32, uint32:
		return 32
	case int64, uint64, int, uint:
		return 64
	default:
		return 64
	}
}

// MinInt returns the lesser of two integers of the same kind.
func MinInt[T constraints.Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// MaxInt returns the greater of two integers of the same kind.
func MaxInt[T constraints.Integer](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// MinFloat implements Wasm's min: NaN-propagating, and -0 < +0.
func MinFloat[T constraints.Float](a, b T) T {
	if a != a { // a is NaN
		return a
	}
	if b != b {
		return b
	}
	if a == 0 && b == 0 {
		// -0 < +0: whichever operand is negative (has its sign bit set) wins.
		if isNegZero(a) {
			return a
		}
		if isNegZero(b) {
			return b
		}
		return a
	}
	if a < b {
		return a
	}
	return b
}

// MaxFloat implements Wasm's max: NaN-propagating, and +0 > -0.
func MaxFloat[T constraints.Float](a, b T) T {
	if a != a {
		return a
	}
	if b != b {
		return b
	}
	if a == 0 && b == 0 {
		if !isNegZero(a) {
			return a
		}
		if !isNegZero(b) {
			return b
		}
		return a
	}
	if a > b {
		return a
	}
	return b
}

func isNegZero[T constraints.Float](v T) bool {
	switch x := any(v).(type) {
	case float32:
		return EncodeF32(x) == 0x8000_0000
	case float64:
		return EncodeF64(x) == 0x8000_0000_0000_0000
	default:
		return false
	}
}
