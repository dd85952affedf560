// Package wazeroir implements the Bytecode Schema (B) and the Lowering Pass
// (L): a flat, self-delimiting internal instruction format and the single
// linear pass that emits it from a stream of decoder parse events.
//
// The name keeps the teacher's own internal IR package name; unlike the
// teacher's wazeroir (which targets a register-friendly compiler backend),
// this one is a plain byte-addressed stack bytecode, matching the simpler
// threaded-dispatch interpreter this engine uses.
package wazeroir

import (
	"encoding/binary"

	"github.com/clover2123/walrus/internal/wasm"
)

// Op is the tagged discriminant at the start of every bytecode record
// (§4.2).
type Op byte

const (
	OpI32Const Op = iota
	OpI64Const
	OpF32Const
	OpF64Const
	OpLocalGet
	OpLocalSet
	OpDrop
	OpJump
	OpJumpIfTrue
	OpJumpIfFalse
	OpBinary
	OpUnary
	OpCall
	OpEnd
)

// recordSize is the fixed in-buffer footprint of a record with the given
// tag, including its immediates (for Binary/Unary, the 2-byte
// BinaryOp/UnaryOp code).
func recordSize(op Op) int {
	switch op {
	case OpI32Const, OpF32Const:
		return 5 // tag + 4 byte immediate
	case OpI64Const, OpF64Const:
		return 9 // tag + 8 byte immediate
	case OpLocalGet, OpLocalSet:
		return 9 // tag + uint32 offset + uint32 size
	case OpDrop:
		return 5 // tag + uint32 byte count
	case OpJump, OpJumpIfTrue, OpJumpIfFalse:
		return 5 // tag + int32 relative offset
	case OpBinary:
		return 3 // tag + uint16 BinaryOp
	case OpUnary:
		return 3 // tag + uint16 UnaryOp
	case OpCall:
		return 5 // tag + uint32 function index
	case OpEnd:
		return 1 // tag only
	default:
		panic("wazeroir: unknown opcode")
	}
}

// byte order for every multi-byte immediate in the bytecode buffer.
var bo = binary.LittleEndian

// --- encode helpers, used only by the lowering pass (compiler.go) ---

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	bo.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendI32(buf []byte, v int32) []byte {
	return appendU32(buf, uint32(v))
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	bo.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	bo.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

// --- decode helpers, used by this package's tests (the interpreter has its
// own readers over the same little-endian layout) ---

func readU32(b []byte) uint32   { return bo.Uint32(b) }
func readI32(b []byte) int32    { return int32(bo.Uint32(b)) }
func readU64(b []byte) uint64   { return bo.Uint64(b) }
func readU16(b []byte) uint16   { return bo.Uint16(b) }

// ResultKindOfCall returns the value kinds the Call record for a function
// of the given type pushes, in left-to-right declaration order; callers
// write results back onto the operand stack in this order (§4.6).
func ResultKindOfCall(t *wasm.FunctionType) []wasm.ValueType {
	return t.Results
}
