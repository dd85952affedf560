package interpreter

import (
	"math"
	"math/bits"

	"github.com/clover2123/walrus/api"
	"github.com/clover2123/walrus/internal/trap"
	"github.com/clover2123/walrus/internal/wazeroir"
)

// execBinary reads the two operands ending at the top of the operand stack
// (resultOff is where the result's slot begins, which for every binary op is
// also where the left operand began) and writes the result in place,
// following the per-op semantics of §4.1.
func execBinary(s *stack, op wazeroir.BinaryOp, leftOff, rightOff, resultOff uint32) {
	switch op.Operand() {
	case api.ValueTypeI32:
		l, r := s.readI32(leftOff), s.readI32(rightOff)
		writeI32BinaryResult(s, op, l, r, resultOff)
	case api.ValueTypeI64:
		l, r := s.readI64(leftOff), s.readI64(rightOff)
		writeI64BinaryResult(s, op, l, r, resultOff)
	case api.ValueTypeF32:
		l, r := s.readF32(leftOff), s.readF32(rightOff)
		writeF32BinaryResult(s, op, l, r, resultOff)
	case api.ValueTypeF64:
		l, r := s.readF64(leftOff), s.readF64(rightOff)
		writeF64BinaryResult(s, op, l, r, resultOff)
	default:
		panic("interpreter: unreachable binary operand kind")
	}
}

func boolI32(v bool) int32 {
	if v {
		return 1
	}
	return 0
}

func writeI32BinaryResult(s *stack, op wazeroir.BinaryOp, l, r int32, resultOff uint32) {
	ul, ur := uint32(l), uint32(r)
	switch op {
	case wazeroir.I32Add:
		s.writeI32(resultOff, l+r)
	case wazeroir.I32Sub:
		s.writeI32(resultOff, l-r)
	case wazeroir.I32Mul:
		s.writeI32(resultOff, l*r)
	case wazeroir.I32DivS:
		if r == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		if l == math.MinInt32 && r == -1 {
			trap.Raise(trap.NewBuiltin(trap.IntegerOverflow))
		}
		s.writeI32(resultOff, l/r)
	case wazeroir.I32DivU:
		if ur == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		s.writeI32(resultOff, int32(ul/ur))
	case wazeroir.I32RemS:
		if r == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		if l == math.MinInt32 && r == -1 {
			s.writeI32(resultOff, 0)
			return
		}
		s.writeI32(resultOff, l%r)
	case wazeroir.I32RemU:
		if ur == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		s.writeI32(resultOff, int32(ul%ur))
	case wazeroir.I32And:
		s.writeI32(resultOff, l&r)
	case wazeroir.I32Or:
		s.writeI32(resultOff, l|r)
	case wazeroir.I32Xor:
		s.writeI32(resultOff, l^r)
	case wazeroir.I32Shl:
		s.writeI32(resultOff, l<<api.ShiftMask(ur))
	case wazeroir.I32ShrS:
		s.writeI32(resultOff, l>>api.ShiftMask(ur))
	case wazeroir.I32ShrU:
		s.writeI32(resultOff, int32(ul>>api.ShiftMask(ur)))
	case wazeroir.I32Rotl:
		s.writeI32(resultOff, int32(bits.RotateLeft32(ul, int(api.ShiftMask(ur)))))
	case wazeroir.I32Rotr:
		s.writeI32(resultOff, int32(bits.RotateLeft32(ul, -int(api.ShiftMask(ur)))))
	case wazeroir.I32Eq:
		s.writeI32(resultOff, boolI32(l == r))
	case wazeroir.I32Ne:
		s.writeI32(resultOff, boolI32(l != r))
	case wazeroir.I32LtS:
		s.writeI32(resultOff, boolI32(l < r))
	case wazeroir.I32LtU:
		s.writeI32(resultOff, boolI32(ul < ur))
	case wazeroir.I32GtS:
		s.writeI32(resultOff, boolI32(l > r))
	case wazeroir.I32GtU:
		s.writeI32(resultOff, boolI32(ul > ur))
	case wazeroir.I32LeS:
		s.writeI32(resultOff, boolI32(l <= r))
	case wazeroir.I32LeU:
		s.writeI32(resultOff, boolI32(ul <= ur))
	case wazeroir.I32GeS:
		s.writeI32(resultOff, boolI32(l >= r))
	case wazeroir.I32GeU:
		s.writeI32(resultOff, boolI32(ul >= ur))
	default:
		panic("interpreter: unreachable I32 binary op")
	}
}

func writeI64BinaryResult(s *stack, op wazeroir.BinaryOp, l, r int64, resultOff uint32) {
	ul, ur := uint64(l), uint64(r)
	switch op {
	case wazeroir.I64Add:
		s.writeI64(resultOff, l+r)
	case wazeroir.I64Sub:
		s.writeI64(resultOff, l-r)
	case wazeroir.I64Mul:
		s.writeI64(resultOff, l*r)
	case wazeroir.I64DivS:
		if r == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		if l == math.MinInt64 && r == -1 {
			trap.Raise(trap.NewBuiltin(trap.IntegerOverflow))
		}
		s.writeI64(resultOff, l/r)
	case wazeroir.I64DivU:
		if ur == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		s.writeI64(resultOff, int64(ul/ur))
	case wazeroir.I64RemS:
		if r == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		if l == math.MinInt64 && r == -1 {
			s.writeI64(resultOff, 0)
			return
		}
		s.writeI64(resultOff, l%r)
	case wazeroir.I64RemU:
		if ur == 0 {
			trap.Raise(trap.NewBuiltin(trap.IntegerDivideByZero))
		}
		s.writeI64(resultOff, int64(ul%ur))
	case wazeroir.I64And:
		s.writeI64(resultOff, l&r)
	case wazeroir.I64Or:
		s.writeI64(resultOff, l|r)
	case wazeroir.I64Xor:
		s.writeI64(resultOff, l^r)
	case wazeroir.I64Shl:
		s.writeI64(resultOff, l<<api.ShiftMask(ur))
	case wazeroir.I64ShrS:
		s.writeI64(resultOff, l>>api.ShiftMask(ur))
	case wazeroir.I64ShrU:
		s.writeI64(resultOff, int64(ul>>api.ShiftMask(ur)))
	case wazeroir.I64Rotl:
		s.writeI64(resultOff, int64(bits.RotateLeft64(ul, int(api.ShiftMask(ur)))))
	case wazeroir.I64Rotr:
		s.writeI64(resultOff, int64(bits.RotateLeft64(ul, -int(api.ShiftMask(ur)))))
	case wazeroir.I64Eq:
		s.writeI32(resultOff, boolI32(l == r))
	case wazeroir.I64Ne:
		s.writeI32(resultOff, boolI32(l != r))
	case wazeroir.I64LtS:
		s.writeI32(resultOff, boolI32(l < r))
	case wazeroir.I64LtU:
		s.writeI32(resultOff, boolI32(ul < ur))
	case wazeroir.I64GtS:
		s.writeI32(resultOff, boolI32(l > r))
	case wazeroir.I64GtU:
		s.writeI32(resultOff, boolI32(ul > ur))
	case wazeroir.I64LeS:
		s.writeI32(resultOff, boolI32(l <= r))
	case wazeroir.I64LeU:
		s.writeI32(resultOff, boolI32(ul <= ur))
	case wazeroir.I64GeS:
		s.writeI32(resultOff, boolI32(l >= r))
	case wazeroir.I64GeU:
		s.writeI32(resultOff, boolI32(ul >= ur))
	default:
		panic("interpreter: unreachable I64 binary op")
	}
}

func writeF32BinaryResult(s *stack, op wazeroir.BinaryOp, l, r float32, resultOff uint32) {
	switch op {
	case wazeroir.F32Add:
		s.writeF32(resultOff, api.CanonicalizeNaN32(l+r))
	case wazeroir.F32Sub:
		s.writeF32(resultOff, api.CanonicalizeNaN32(l-r))
	case wazeroir.F32Mul:
		s.writeF32(resultOff, api.CanonicalizeNaN32(l*r))
	case wazeroir.F32Div:
		s.writeF32(resultOff, api.CanonicalizeNaN32(l/r))
	case wazeroir.F32Min:
		s.writeF32(resultOff, api.CanonicalizeNaN32(api.MinFloat(l, r)))
	case wazeroir.F32Max:
		s.writeF32(resultOff, api.CanonicalizeNaN32(api.MaxFloat(l, r)))
	case wazeroir.F32Copysign:
		s.writeF32(resultOff, float32(math.Copysign(float64(l), float64(r))))
	case wazeroir.F32Eq:
		s.writeI32(resultOff, boolI32(l == r))
	case wazeroir.F32Ne:
		s.writeI32(resultOff, boolI32(l != r))
	case wazeroir.F32Lt:
		s.writeI32(resultOff, boolI32(l < r))
	case wazeroir.F32Gt:
		s.writeI32(resultOff, boolI32(l > r))
	case wazeroir.F32Le:
		s.writeI32(resultOff, boolI32(l <= r))
	case wazeroir.F32Ge:
		s.writeI32(resultOff, boolI32(l >= r))
	default:
		panic("interpreter: unreachable F32 binary op")
	}
}

func writeF64BinaryResult(s *stack, op wazeroir.BinaryOp, l, r float64, resultOff uint32) {
	switch op {
	case wazeroir.F64Add:
		s.writeF64(resultOff, api.CanonicalizeNaN64(l+r))
	case wazeroir.F64Sub:
		s.writeF64(resultOff, api.CanonicalizeNaN64(l-r))
	case wazeroir.F64Mul:
		s.writeF64(resultOff, api.CanonicalizeNaN64(l*r))
	case wazeroir.F64Div:
		s.writeF64(resultOff, api.CanonicalizeNaN64(l/r))
	case wazeroir.F64Min:
		s.writeF64(resultOff, api.CanonicalizeNaN64(api.MinFloat(l, r)))
	case wazeroir.F64Max:
		s.writeF64(resultOff, api.CanonicalizeNaN64(api.MaxFloat(l, r)))
	case wazeroir.F64Copysign:
		s.writeF64(resultOff, math.Copysign(l, r))
	case wazeroir.F64Eq:
		s.writeI32(resultOff, boolI32(l == r))
	case wazeroir.F64Ne:
		s.writeI32(resultOff, boolI32(l != r))
	case wazeroir.F64Lt:
		s.writeI32(resultOff, boolI32(l < r))
	case wazeroir.F64Gt:
		s.writeI32(resultOff, boolI32(l > r))
	case wazeroir.F64Le:
		s.writeI32(resultOff, boolI32(l <= r))
	case wazeroir.F64Ge:
		s.writeI32(resultOff, boolI32(l >= r))
	default:
		panic("interpreter: unreachable F64 binary op")
	}
}

// execUnary applies op to the operand at operandOff, writing the result at
// resultOff (the two may overlap, since a unary op never grows the stack
// beyond the wider of its operand/result sizes and the lowering pass lays
// them out accordingly).
func execUnary(s *stack, op wazeroir.UnaryOp, operandOff, resultOff uint32) {
	switch op.Operand() {
	case api.ValueTypeI32:
		execUnaryFromI32(s, op, s.readI32(operandOff), resultOff)
	case api.ValueTypeI64:
		execUnaryFromI64(s, op, s.readI64(operandOff), resultOff)
	case api.ValueTypeF32:
		execUnaryFromF32(s, op, s.readF32(operandOff), resultOff)
	case api.ValueTypeF64:
		execUnaryFromF64(s, op, s.readF64(operandOff), resultOff)
	default:
		panic("interpreter: unreachable unary operand kind")
	}
}

func execUnaryFromI32(s *stack, op wazeroir.UnaryOp, v int32, resultOff uint32) {
	switch op {
	case wazeroir.I32Eqz:
		s.writeI32(resultOff, boolI32(v == 0))
	case wazeroir.I32Clz:
		s.writeI32(resultOff, int32(bits.LeadingZeros32(uint32(v))))
	case wazeroir.I32Ctz:
		s.writeI32(resultOff, int32(bits.TrailingZeros32(uint32(v))))
	case wazeroir.I32Popcnt:
		s.writeI32(resultOff, int32(bits.OnesCount32(uint32(v))))
	case wazeroir.I64ExtendI32S:
		s.writeI64(resultOff, int64(v))
	case wazeroir.I64ExtendI32U:
		s.writeI64(resultOff, int64(uint32(v)))
	case wazeroir.I32TruncF32S, wazeroir.I32TruncF32U, wazeroir.I32TruncF64S, wazeroir.I32TruncF64U,
		wazeroir.I64TruncF32S, wazeroir.I64TruncF32U, wazeroir.I64TruncF64S, wazeroir.I64TruncF64U,
		wazeroir.I32TruncSatF32S, wazeroir.I32TruncSatF32U, wazeroir.I32TruncSatF64S, wazeroir.I32TruncSatF64U,
		wazeroir.I64TruncSatF32S, wazeroir.I64TruncSatF32U, wazeroir.I64TruncSatF64S, wazeroir.I64TruncSatF64U:
		panic("interpreter: truncation ops never take an I32 operand")
	case wazeroir.F32ConvertI32S:
		s.writeF32(resultOff, float32(v))
	case wazeroir.F32ConvertI32U:
		s.writeF32(resultOff, float32(uint32(v)))
	case wazeroir.F64ConvertI32S:
		s.writeF64(resultOff, float64(v))
	case wazeroir.F64ConvertI32U:
		s.writeF64(resultOff, float64(uint32(v)))
	case wazeroir.F32ReinterpretI32:
		s.writeF32(resultOff, api.DecodeF32(uint32(v)))
	case wazeroir.I32Extend8S:
		s.writeI32(resultOff, int32(int8(v)))
	case wazeroir.I32Extend16S:
		s.writeI32(resultOff, int32(int16(v)))
	default:
		panic("interpreter: unreachable unary op over I32")
	}
}

func execUnaryFromI64(s *stack, op wazeroir.UnaryOp, v int64, resultOff uint32) {
	switch op {
	case wazeroir.I64Eqz:
		s.writeI32(resultOff, boolI32(v == 0))
	case wazeroir.I64Clz:
		s.writeI64(resultOff, int64(bits.LeadingZeros64(uint64(v))))
	case wazeroir.I64Ctz:
		s.writeI64(resultOff, int64(bits.TrailingZeros64(uint64(v))))
	case wazeroir.I64Popcnt:
		s.writeI64(resultOff, int64(bits.OnesCount64(uint64(v))))
	case wazeroir.I32WrapI64:
		s.writeI32(resultOff, int32(v))
	case wazeroir.F32ConvertI64S:
		s.writeF32(resultOff, float32(v))
	case wazeroir.F32ConvertI64U:
		s.writeF32(resultOff, float32(uint64(v)))
	case wazeroir.F64ConvertI64S:
		s.writeF64(resultOff, float64(v))
	case wazeroir.F64ConvertI64U:
		s.writeF64(resultOff, float64(uint64(v)))
	case wazeroir.F64ReinterpretI64:
		s.writeF64(resultOff, api.DecodeF64(uint64(v)))
	case wazeroir.I64Extend8S:
		s.writeI64(resultOff, int64(int8(v)))
	case wazeroir.I64Extend16S:
		s.writeI64(resultOff, int64(int16(v)))
	case wazeroir.I64Extend32S:
		s.writeI64(resultOff, int64(int32(v)))
	default:
		panic("interpreter: unreachable unary op over I64")
	}
}

func execUnaryFromF32(s *stack, op wazeroir.UnaryOp, v float32, resultOff uint32) {
	switch op {
	case wazeroir.F32Abs:
		s.writeF32(resultOff, float32(math.Abs(float64(v))))
	case wazeroir.F32Neg:
		s.writeF32(resultOff, -v)
	case wazeroir.F32Ceil:
		s.writeF32(resultOff, api.CanonicalizeNaN32(float32(math.Ceil(float64(v)))))
	case wazeroir.F32Floor:
		s.writeF32(resultOff, api.CanonicalizeNaN32(float32(math.Floor(float64(v)))))
	case wazeroir.F32Trunc:
		s.writeF32(resultOff, api.CanonicalizeNaN32(float32(math.Trunc(float64(v)))))
	case wazeroir.F32Nearest:
		s.writeF32(resultOff, api.CanonicalizeNaN32(float32(math.RoundToEven(float64(v)))))
	case wazeroir.F32Sqrt:
		s.writeF32(resultOff, api.CanonicalizeNaN32(float32(math.Sqrt(float64(v)))))
	case wazeroir.F64PromoteF32:
		s.writeF64(resultOff, api.CanonicalizeNaN64(float64(v)))
	case wazeroir.I32TruncF32S:
		s.writeI32(resultOff, truncToInt32(float64(v), math.MinInt32, math.MaxInt32))
	case wazeroir.I32TruncF32U:
		s.writeI32(resultOff, int32(truncToUint32(float64(v), maxUint32)))
	case wazeroir.I64TruncF32S:
		s.writeI64(resultOff, truncToInt64(float64(v), math.MinInt64, math.MaxInt64))
	case wazeroir.I64TruncF32U:
		s.writeI64(resultOff, int64(truncToUint64(float64(v), maxUint64)))
	case wazeroir.I32TruncSatF32S:
		s.writeI32(resultOff, satTruncToInt32(float64(v), math.MinInt32, math.MaxInt32))
	case wazeroir.I32TruncSatF32U:
		s.writeI32(resultOff, int32(satTruncToUint32(float64(v), maxUint32)))
	case wazeroir.I64TruncSatF32S:
		s.writeI64(resultOff, satTruncToInt64(float64(v), math.MinInt64, math.MaxInt64))
	case wazeroir.I64TruncSatF32U:
		s.writeI64(resultOff, int64(satTruncToUint64(float64(v), maxUint64)))
	case wazeroir.I32ReinterpretF32:
		s.writeI32(resultOff, int32(api.EncodeF32(v)))
	default:
		panic("interpreter: unreachable unary op over F32")
	}
}

func execUnaryFromF64(s *stack, op wazeroir.UnaryOp, v float64, resultOff uint32) {
	switch op {
	case wazeroir.F64Abs:
		s.writeF64(resultOff, math.Abs(v))
	case wazeroir.F64Neg:
		s.writeF64(resultOff, -v)
	case wazeroir.F64Ceil:
		s.writeF64(resultOff, api.CanonicalizeNaN64(math.Ceil(v)))
	case wazeroir.F64Floor:
		s.writeF64(resultOff, api.CanonicalizeNaN64(math.Floor(v)))
	case wazeroir.F64Trunc:
		s.writeF64(resultOff, api.CanonicalizeNaN64(math.Trunc(v)))
	case wazeroir.F64Nearest:
		s.writeF64(resultOff, api.CanonicalizeNaN64(math.RoundToEven(v)))
	case wazeroir.F64Sqrt:
		s.writeF64(resultOff, api.CanonicalizeNaN64(math.Sqrt(v)))
	case wazeroir.F32DemoteF64:
		s.writeF32(resultOff, api.CanonicalizeNaN32(float32(v)))
	case wazeroir.I32TruncF64S:
		s.writeI32(resultOff, truncToInt32(v, math.MinInt32, math.MaxInt32))
	case wazeroir.I32TruncF64U:
		s.writeI32(resultOff, int32(truncToUint32(v, maxUint32)))
	case wazeroir.I64TruncF64S:
		s.writeI64(resultOff, truncToInt64(v, math.MinInt64, math.MaxInt64))
	case wazeroir.I64TruncF64U:
		s.writeI64(resultOff, int64(truncToUint64(v, maxUint64)))
	case wazeroir.I32TruncSatF64S:
		s.writeI32(resultOff, satTruncToInt32(v, math.MinInt32, math.MaxInt32))
	case wazeroir.I32TruncSatF64U:
		s.writeI32(resultOff, int32(satTruncToUint32(v, maxUint32)))
	case wazeroir.I64TruncSatF64S:
		s.writeI64(resultOff, satTruncToInt64(v, math.MinInt64, math.MaxInt64))
	case wazeroir.I64TruncSatF64U:
		s.writeI64(resultOff, int64(satTruncToUint64(v, maxUint64)))
	case wazeroir.I64ReinterpretF64:
		s.writeI64(resultOff, int64(api.EncodeF64(v)))
	default:
		panic("interpreter: unreachable unary op over F64")
	}
}

// math does not export unsigned bounds; define the ones truncation needs.
const (
	maxUint32 = 1<<32 - 1
	maxUint64 = 1<<64 - 1
)

// --- truncation, §4.1 ---

func truncToInt32(v float64, lo, hi float64) int32 {
	checkTruncSource(v, lo, hi)
	return int32(math.Trunc(v))
}

func truncToUint32(v float64, hi float64) uint32 {
	checkTruncSource(v, 0, hi)
	return uint32(math.Trunc(v))
}

func truncToInt64(v float64, lo, hi float64) int64 {
	checkTruncSource(v, lo, hi)
	return int64(math.Trunc(v))
}

func truncToUint64(v float64, hi float64) uint64 {
	checkTruncSource(v, 0, hi)
	return uint64(math.Trunc(v))
}

// checkTruncSource raises InvalidConversionToInteger for NaN sources and
// IntegerOverflow for sources whose truncated value falls outside
// [lo, hi], per §4.1. The upper test is t >= hi+1 so that it stays exact
// when hi (2^63-1 or 2^64-1) rounds up to the next power of two as float64.
func checkTruncSource(v float64, lo, hi float64) {
	if math.IsNaN(v) {
		trap.Raise(trap.NewBuiltin(trap.InvalidConversionToInteger))
	}
	t := math.Trunc(v)
	if t < lo || t >= hi+1 {
		trap.Raise(trap.NewBuiltin(trap.IntegerOverflow))
	}
}

// --- saturating truncation, §4.1: never traps; NaN saturates to 0, and
// out-of-range values clamp to the destination's representable bound. ---

func satTruncToInt32(v float64, lo, hi float64) int32 {
	return int32(satClamp(v, lo, hi))
}

func satTruncToUint32(v float64, hi float64) uint32 {
	return uint32(satClamp(v, 0, hi))
}

func satTruncToInt64(v float64, lo, hi float64) int64 {
	c := satClamp(v, lo, hi)
	if c >= hi { // hi is 2^63 as float64, one past math.MaxInt64
		return math.MaxInt64
	}
	return int64(c)
}

func satTruncToUint64(v float64, hi float64) uint64 {
	c := satClamp(v, 0, hi)
	if c >= hi { // hi is 2^64 as float64, one past math.MaxUint64
		return math.MaxUint64
	}
	return uint64(c)
}

func satClamp(v float64, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	t := math.Trunc(v)
	if t < lo {
		return lo
	}
	if t > hi {
		return hi
	}
	return t
}
