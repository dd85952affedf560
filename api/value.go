// Package api holds the types shared between the core engine and its hosts:
// the closed set of Wasm value kinds, their stack footprints, and the
// untyped raw stack access primitives the interpreter uses to read and
// write them.
package api

import "math"

// ValueType is the runtime representation of a WebAssembly value kind. The
// set is closed: no user-defined kinds exist.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#value-types%E2%91%A0
type ValueType byte

const (
	ValueTypeI32 ValueType = iota
	ValueTypeI64
	ValueTypeF32
	ValueTypeF64
	ValueTypeV128
	ValueTypeFuncRef
	ValueTypeExternRef
)

// String implements fmt.Stringer.
func (v ValueType) String() (name string) {
	switch v {
	case ValueTypeI32:
		name = "i32"
	case ValueTypeI64:
		name = "i64"
	case ValueTypeF32:
		name = "f32"
	case ValueTypeF64:
		name = "f64"
	case ValueTypeV128:
		name = "v128"
	case ValueTypeFuncRef:
		name = "funcref"
	case ValueTypeExternRef:
		name = "externref"
	default:
		name = "unknown"
	}
	return
}

// slotSizes is indexed by ValueType and holds the fixed number of bytes a
// value of that kind occupies on the byte-addressed operand stack. Values
// are stored at their natural size with no per-value tag: the kind is
// always recovered statically from the bytecode that reads or writes them.
var slotSizes = [...]uint32{
	ValueTypeI32:       4,
	ValueTypeI64:       8,
	ValueTypeF32:       4,
	ValueTypeF64:       8,
	ValueTypeV128:      16,
	ValueTypeFuncRef:   8,
	ValueTypeExternRef: 8,
}

// SlotSize returns the in-stack footprint, in bytes, of a value of kind v.
func SlotSize(v ValueType) uint32 {
	return slotSizes[v]
}

// EncodeF32 maps a float32 onto a uint32 keeping the underlying bit pattern,
// e.g. for storage in an operand stack slot, a global, or Table.
func EncodeF32(v float32) uint32 {
	return math.Float32bits(v)
}

// DecodeF32 decodes the value by reversing EncodeF32.
func DecodeF32(bits uint32) float32 {
	return math.Float32frombits(bits)
}

// EncodeF64 maps a float64 onto a uint64 keeping the underlying bit pattern.
func EncodeF64(v float64) uint64 {
	return math.Float64bits(v)
}

// DecodeF64 decodes the value by reversing EncodeF64.
func DecodeF64(bits uint64) float64 {
	return math.Float64frombits(bits)
}

// CanonicalNaN32 is the canonical quiet NaN bit pattern produced whenever a
// binary32 floating point operation's result is NaN (§4.1).
const CanonicalNaN32 uint32 = 0x7fc0_0000

// CanonicalNaN64 is the binary64 equivalent of CanonicalNaN32.
const CanonicalNaN64 uint64 = 0x7ff8_0000_0000_0000

// CanonicalizeNaN32 replaces any NaN payload with the canonical quiet NaN
// bit pattern, leaving non-NaN values untouched. Every binary32 arithmetic
// op in the interpreter routes its result through this.
func CanonicalizeNaN32(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return DecodeF32(CanonicalNaN32)
	}
	return v
}

// CanonicalizeNaN64 is the binary64 equivalent of CanonicalizeNaN32.
func CanonicalizeNaN64(v float64) float64 {
	if math.IsNaN(v) {
		return DecodeF64(CanonicalNaN64)
	}
	return v
}
