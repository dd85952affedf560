package wazeroir

import (
	"github.com/clover2123/walrus/api"
	"github.com/clover2123/walrus/internal/wasm"
)

// BinaryOp identifies which arithmetic, bitwise, or comparison operation a
// BinaryOperation record performs. Both operands share the same kind; for
// comparisons the result is always I32 (§4.1).
type BinaryOp uint16

const (
	I32Add BinaryOp = iota
	I32Sub
	I32Mul
	I32DivS
	I32DivU
	I32RemS
	I32RemU
	I32And
	I32Or
	I32Xor
	I32Shl
	I32ShrS
	I32ShrU
	I32Rotl
	I32Rotr
	I32Eq
	I32Ne
	I32LtS
	I32LtU
	I32GtS
	I32GtU
	I32LeS
	I32LeU
	I32GeS
	I32GeU

	I64Add
	I64Sub
	I64Mul
	I64DivS
	I64DivU
	I64RemS
	I64RemU
	I64And
	I64Or
	I64Xor
	I64Shl
	I64ShrS
	I64ShrU
	I64Rotl
	I64Rotr
	I64Eq
	I64Ne
	I64LtS
	I64LtU
	I64GtS
	I64GtU
	I64LeS
	I64LeU
	I64GeS
	I64GeU

	F32Add
	F32Sub
	F32Mul
	F32Div
	F32Min
	F32Max
	F32Copysign
	F32Eq
	F32Ne
	F32Lt
	F32Gt
	F32Le
	F32Ge

	F64Add
	F64Sub
	F64Mul
	F64Div
	F64Min
	F64Max
	F64Copysign
	F64Eq
	F64Ne
	F64Lt
	F64Gt
	F64Le
	F64Ge
)

// binaryInfo holds the per-opcode static info used by both the lowering
// pass (stack accounting) and the interpreter (operand kind dispatch).
type binaryInfo struct {
	Operand   wasm.ValueType
	IsCompare bool // result is always I32 when true
}

var binaryInfoTable = map[BinaryOp]binaryInfo{
	I32Add: {wasm.ValueTypeI32, false}, I32Sub: {wasm.ValueTypeI32, false}, I32Mul: {wasm.ValueTypeI32, false},
	I32DivS: {wasm.ValueTypeI32, false}, I32DivU: {wasm.ValueTypeI32, false},
	I32RemS: {wasm.ValueTypeI32, false}, I32RemU: {wasm.ValueTypeI32, false},
	I32And: {wasm.ValueTypeI32, false}, I32Or: {wasm.ValueTypeI32, false}, I32Xor: {wasm.ValueTypeI32, false},
	I32Shl: {wasm.ValueTypeI32, false}, I32ShrS: {wasm.ValueTypeI32, false}, I32ShrU: {wasm.ValueTypeI32, false},
	I32Rotl: {wasm.ValueTypeI32, false}, I32Rotr: {wasm.ValueTypeI32, false},
	I32Eq: {wasm.ValueTypeI32, true}, I32Ne: {wasm.ValueTypeI32, true},
	I32LtS: {wasm.ValueTypeI32, true}, I32LtU: {wasm.ValueTypeI32, true},
	I32GtS: {wasm.ValueTypeI32, true}, I32GtU: {wasm.ValueTypeI32, true},
	I32LeS: {wasm.ValueTypeI32, true}, I32LeU: {wasm.ValueTypeI32, true},
	I32GeS: {wasm.ValueTypeI32, true}, I32GeU: {wasm.ValueTypeI32, true},

	I64Add: {wasm.ValueTypeI64, false}, I64Sub: {wasm.ValueTypeI64, false}, I64Mul: {wasm.ValueTypeI64, false},
	I64DivS: {wasm.ValueTypeI64, false}, I64DivU: {wasm.ValueTypeI64, false},
	I64RemS: {wasm.ValueTypeI64, false}, I64RemU: {wasm.ValueTypeI64, false},
	I64And: {wasm.ValueTypeI64, false}, I64Or: {wasm.ValueTypeI64, false}, I64Xor: {wasm.ValueTypeI64, false},
	I64Shl: {wasm.ValueTypeI64, false}, I64ShrS: {wasm.ValueTypeI64, false}, I64ShrU: {wasm.ValueTypeI64, false},
	I64Rotl: {wasm.ValueTypeI64, false}, I64Rotr: {wasm.ValueTypeI64, false},
	I64Eq: {wasm.ValueTypeI64, true}, I64Ne: {wasm.ValueTypeI64, true},
	I64LtS: {wasm.ValueTypeI64, true}, I64LtU: {wasm.ValueTypeI64, true},
	I64GtS: {wasm.ValueTypeI64, true}, I64GtU: {wasm.ValueTypeI64, true},
	I64LeS: {wasm.ValueTypeI64, true}, I64LeU: {wasm.ValueTypeI64, true},
	I64GeS: {wasm.ValueTypeI64, true}, I64GeU: {wasm.ValueTypeI64, true},

	F32Add: {wasm.ValueTypeF32, false}, F32Sub: {wasm.ValueTypeF32, false}, F32Mul: {wasm.ValueTypeF32, false},
	F32Div: {wasm.ValueTypeF32, false}, F32Min: {wasm.ValueTypeF32, false}, F32Max: {wasm.ValueTypeF32, false},
	F32Copysign: {wasm.ValueTypeF32, false},
	F32Eq:       {wasm.ValueTypeF32, true}, F32Ne: {wasm.ValueTypeF32, true},
	F32Lt: {wasm.ValueTypeF32, true}, F32Gt: {wasm.ValueTypeF32, true},
	F32Le: {wasm.ValueTypeF32, true}, F32Ge: {wasm.ValueTypeF32, true},

	F64Add: {wasm.ValueTypeF64, false}, F64Sub: {wasm.ValueTypeF64, false}, F64Mul: {wasm.ValueTypeF64, false},
	F64Div: {wasm.ValueTypeF64, false}, F64Min: {wasm.ValueTypeF64, false}, F64Max: {wasm.ValueTypeF64, false},
	F64Copysign: {wasm.ValueTypeF64, false},
	F64Eq:       {wasm.ValueTypeF64, true}, F64Ne: {wasm.ValueTypeF64, true},
	F64Lt: {wasm.ValueTypeF64, true}, F64Gt: {wasm.ValueTypeF64, true},
	F64Le: {wasm.ValueTypeF64, true}, F64Ge: {wasm.ValueTypeF64, true},
}

// StackEffect returns the result kind, bytes pushed, and bytes popped for a
// BinaryOperation of kind op, per the static info table described in §4.2.
func (op BinaryOp) StackEffect() (result wasm.ValueType, grow, shrink uint32) {
	info := binaryInfoTable[op]
	operandSize := wasmSlotSize(info.Operand)
	shrink = operandSize * 2
	if info.IsCompare {
		return wasm.ValueTypeI32, 4, shrink
	}
	return info.Operand, operandSize, shrink
}

// Operand is the shared operand kind of both sides of op.
func (op BinaryOp) Operand() wasm.ValueType { return binaryInfoTable[op].Operand }

// UnaryOp identifies a unary arithmetic, bitwise, conversion, or
// reinterpret operation.
type UnaryOp uint16

const (
	I32Eqz UnaryOp = iota
	I32Clz
	I32Ctz
	I32Popcnt
	I64Eqz
	I64Clz
	I64Ctz
	I64Popcnt

	F32Abs
	F32Neg
	F32Ceil
	F32Floor
	F32Trunc
	F32Nearest
	F32Sqrt
	F64Abs
	F64Neg
	F64Ceil
	F64Floor
	F64Trunc
	F64Nearest
	F64Sqrt

	I32WrapI64
	I64ExtendI32S
	I64ExtendI32U

	I32TruncF32S
	I32TruncF32U
	I32TruncF64S
	I32TruncF64U
	I64TruncF32S
	I64TruncF32U
	I64TruncF64S
	I64TruncF64U

	I32TruncSatF32S
	I32TruncSatF32U
	I32TruncSatF64S
	I32TruncSatF64U
	I64TruncSatF32S
	I64TruncSatF32U
	I64TruncSatF64S
	I64TruncSatF64U

	F32ConvertI32S
	F32ConvertI32U
	F32ConvertI64S
	F32ConvertI64U
	F64ConvertI32S
	F64ConvertI32U
	F64ConvertI64S
	F64ConvertI64U

	F32DemoteF64
	F64PromoteF32

	I32ReinterpretF32
	I64ReinterpretF64
	F32ReinterpretI32
	F64ReinterpretI64

	I32Extend8S
	I32Extend16S
	I64Extend8S
	I64Extend16S
	I64Extend32S
)

type unaryInfo struct {
	Operand wasm.ValueType
	Result  wasm.ValueType
}

var unaryInfoTable = map[UnaryOp]unaryInfo{
	I32Eqz: {wasm.ValueTypeI32, wasm.ValueTypeI32}, I32Clz: {wasm.ValueTypeI32, wasm.ValueTypeI32},
	I32Ctz: {wasm.ValueTypeI32, wasm.ValueTypeI32}, I32Popcnt: {wasm.ValueTypeI32, wasm.ValueTypeI32},
	I64Eqz: {wasm.ValueTypeI64, wasm.ValueTypeI32}, I64Clz: {wasm.ValueTypeI64, wasm.ValueTypeI64},
	I64Ctz: {wasm.ValueTypeI64, wasm.ValueTypeI64}, I64Popcnt: {wasm.ValueTypeI64, wasm.ValueTypeI64},

	F32Abs: {wasm.ValueTypeF32, wasm.ValueTypeF32}, F32Neg: {wasm.ValueTypeF32, wasm.ValueTypeF32},
	F32Ceil: {wasm.ValueTypeF32, wasm.ValueTypeF32}, F32Floor: {wasm.ValueTypeF32, wasm.ValueTypeF32},
	F32Trunc: {wasm.ValueTypeF32, wasm.ValueTypeF32}, F32Nearest: {wasm.ValueTypeF32, wasm.ValueTypeF32},
	F32Sqrt: {wasm.ValueTypeF32, wasm.ValueTypeF32},
	F64Abs:  {wasm.ValueTypeF64, wasm.ValueTypeF64}, F64Neg: {wasm.ValueTypeF64, wasm.ValueTypeF64},
	F64Ceil: {wasm.ValueTypeF64, wasm.ValueTypeF64}, F64Floor: {wasm.ValueTypeF64, wasm.ValueTypeF64},
	F64Trunc: {wasm.ValueTypeF64, wasm.ValueTypeF64}, F64Nearest: {wasm.ValueTypeF64, wasm.ValueTypeF64},
	F64Sqrt: {wasm.ValueTypeF64, wasm.ValueTypeF64},

	I32WrapI64:    {wasm.ValueTypeI64, wasm.ValueTypeI32},
	I64ExtendI32S: {wasm.ValueTypeI32, wasm.ValueTypeI64},
	I64ExtendI32U: {wasm.ValueTypeI32, wasm.ValueTypeI64},

	I32TruncF32S: {wasm.ValueTypeF32, wasm.ValueTypeI32}, I32TruncF32U: {wasm.ValueTypeF32, wasm.ValueTypeI32},
	I32TruncF64S: {wasm.ValueTypeF64, wasm.ValueTypeI32}, I32TruncF64U: {wasm.ValueTypeF64, wasm.ValueTypeI32},
	I64TruncF32S: {wasm.ValueTypeF32, wasm.ValueTypeI64}, I64TruncF32U: {wasm.ValueTypeF32, wasm.ValueTypeI64},
	I64TruncF64S: {wasm.ValueTypeF64, wasm.ValueTypeI64}, I64TruncF64U: {wasm.ValueTypeF64, wasm.ValueTypeI64},

	I32TruncSatF32S: {wasm.ValueTypeF32, wasm.ValueTypeI32}, I32TruncSatF32U: {wasm.ValueTypeF32, wasm.ValueTypeI32},
	I32TruncSatF64S: {wasm.ValueTypeF64, wasm.ValueTypeI32}, I32TruncSatF64U: {wasm.ValueTypeF64, wasm.ValueTypeI32},
	I64TruncSatF32S: {wasm.ValueTypeF32, wasm.ValueTypeI64}, I64TruncSatF32U: {wasm.ValueTypeF32, wasm.ValueTypeI64},
	I64TruncSatF64S: {wasm.ValueTypeF64, wasm.ValueTypeI64}, I64TruncSatF64U: {wasm.ValueTypeF64, wasm.ValueTypeI64},

	F32ConvertI32S: {wasm.ValueTypeI32, wasm.ValueTypeF32}, F32ConvertI32U: {wasm.ValueTypeI32, wasm.ValueTypeF32},
	F32ConvertI64S: {wasm.ValueTypeI64, wasm.ValueTypeF32}, F32ConvertI64U: {wasm.ValueTypeI64, wasm.ValueTypeF32},
	F64ConvertI32S: {wasm.ValueTypeI32, wasm.ValueTypeF64}, F64ConvertI32U: {wasm.ValueTypeI32, wasm.ValueTypeF64},
	F64ConvertI64S: {wasm.ValueTypeI64, wasm.ValueTypeF64}, F64ConvertI64U: {wasm.ValueTypeI64, wasm.ValueTypeF64},

	F32DemoteF64:  {wasm.ValueTypeF64, wasm.ValueTypeF32},
	F64PromoteF32: {wasm.ValueTypeF32, wasm.ValueTypeF64},

	I32ReinterpretF32: {wasm.ValueTypeF32, wasm.ValueTypeI32},
	I64ReinterpretF64: {wasm.ValueTypeF64, wasm.ValueTypeI64},
	F32ReinterpretI32: {wasm.ValueTypeI32, wasm.ValueTypeF32},
	F64ReinterpretI64: {wasm.ValueTypeI64, wasm.ValueTypeF64},

	I32Extend8S:  {wasm.ValueTypeI32, wasm.ValueTypeI32},
	I32Extend16S: {wasm.ValueTypeI32, wasm.ValueTypeI32},
	I64Extend8S:  {wasm.ValueTypeI64, wasm.ValueTypeI64},
	I64Extend16S: {wasm.ValueTypeI64, wasm.ValueTypeI64},
	I64Extend32S: {wasm.ValueTypeI64, wasm.ValueTypeI64},
}

// StackEffect returns the result kind, bytes pushed, and bytes popped for a
// UnaryOperation of kind op.
func (op UnaryOp) StackEffect() (result wasm.ValueType, grow, shrink uint32) {
	info := unaryInfoTable[op]
	return info.Result, wasmSlotSize(info.Result), wasmSlotSize(info.Operand)
}

func (op UnaryOp) Operand() wasm.ValueType { return unaryInfoTable[op].Operand }
func (op UnaryOp) Result() wasm.ValueType  { return unaryInfoTable[op].Result }

func wasmSlotSize(v wasm.ValueType) uint32 {
	return api.SlotSize(v)
}
