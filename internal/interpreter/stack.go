package interpreter

import (
	"encoding/binary"

	"github.com/clover2123/walrus/api"
)

// bo is the byte order used throughout the operand stack and bytecode
// buffer; it must match internal/wazeroir's encoding.
var bo = binary.LittleEndian

// stack is the byte-addressed, untyped operand stack described in §5: a
// flat byte slice indexed by offset, with no per-slot kind tag. Every
// reader recovers the kind it expects statically from the bytecode record
// currently executing.
type stack struct {
	data []byte
}

func newStack(size uint32) *stack {
	return &stack{data: make([]byte, size)}
}

func (s *stack) readU32(off uint32) uint32 { return bo.Uint32(s.data[off:]) }
func (s *stack) readU64(off uint32) uint64 { return bo.Uint64(s.data[off:]) }

func (s *stack) writeU32(off uint32, v uint32) { bo.PutUint32(s.data[off:], v) }
func (s *stack) writeU64(off uint32, v uint64) { bo.PutUint64(s.data[off:], v) }

func (s *stack) readI32(off uint32) int32 { return int32(s.readU32(off)) }
func (s *stack) readI64(off uint32) int64 { return int64(s.readU64(off)) }
func (s *stack) readF32(off uint32) float32 { return api.DecodeF32(s.readU32(off)) }
func (s *stack) readF64(off uint32) float64 { return api.DecodeF64(s.readU64(off)) }

func (s *stack) writeI32(off uint32, v int32) { s.writeU32(off, uint32(v)) }
func (s *stack) writeI64(off uint32, v int64) { s.writeU64(off, uint64(v)) }
func (s *stack) writeF32(off uint32, v float32) { s.writeU32(off, api.EncodeF32(v)) }
func (s *stack) writeF64(off uint32, v float64) { s.writeU64(off, api.EncodeF64(v)) }

// copyValue moves size bytes (a single value's slot) from one offset to
// another, used for laying out Call arguments and copying back results.
func (s *stack) copyValue(dstOff, srcOff, size uint32) {
	copy(s.data[dstOff:dstOff+size], s.data[srcOff:srcOff+size])
}
