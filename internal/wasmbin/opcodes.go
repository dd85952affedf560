package wasmbin

import "github.com/clover2123/walrus/internal/wazeroir"

// binaryOpcodes maps the binary format's single-byte numeric opcodes to
// this engine's BinaryOp enum, per the standard instruction encoding
// (https://webassembly.github.io/spec/core/binary/instructions.html).
var binaryOpcodes = map[byte]wazeroir.BinaryOp{
	0x46: wazeroir.I32Eq, 0x47: wazeroir.I32Ne,
	0x48: wazeroir.I32LtS, 0x49: wazeroir.I32LtU,
	0x4a: wazeroir.I32GtS, 0x4b: wazeroir.I32GtU,
	0x4c: wazeroir.I32LeS, 0x4d: wazeroir.I32LeU,
	0x4e: wazeroir.I32GeS, 0x4f: wazeroir.I32GeU,

	0x51: wazeroir.I64Eq, 0x52: wazeroir.I64Ne,
	0x53: wazeroir.I64LtS, 0x54: wazeroir.I64LtU,
	0x55: wazeroir.I64GtS, 0x56: wazeroir.I64GtU,
	0x57: wazeroir.I64LeS, 0x58: wazeroir.I64LeU,
	0x59: wazeroir.I64GeS, 0x5a: wazeroir.I64GeU,

	0x5b: wazeroir.F32Eq, 0x5c: wazeroir.F32Ne,
	0x5d: wazeroir.F32Lt, 0x5e: wazeroir.F32Gt,
	0x5f: wazeroir.F32Le, 0x60: wazeroir.F32Ge,

	0x61: wazeroir.F64Eq, 0x62: wazeroir.F64Ne,
	0x63: wazeroir.F64Lt, 0x64: wazeroir.F64Gt,
	0x65: wazeroir.F64Le, 0x66: wazeroir.F64Ge,

	0x6a: wazeroir.I32Add, 0x6b: wazeroir.I32Sub, 0x6c: wazeroir.I32Mul,
	0x6d: wazeroir.I32DivS, 0x6e: wazeroir.I32DivU,
	0x6f: wazeroir.I32RemS, 0x70: wazeroir.I32RemU,
	0x71: wazeroir.I32And, 0x72: wazeroir.I32Or, 0x73: wazeroir.I32Xor,
	0x74: wazeroir.I32Shl, 0x75: wazeroir.I32ShrS, 0x76: wazeroir.I32ShrU,
	0x77: wazeroir.I32Rotl, 0x78: wazeroir.I32Rotr,

	0x7c: wazeroir.I64Add, 0x7d: wazeroir.I64Sub, 0x7e: wazeroir.I64Mul,
	0x7f: wazeroir.I64DivS, 0x80: wazeroir.I64DivU,
	0x81: wazeroir.I64RemS, 0x82: wazeroir.I64RemU,
	0x83: wazeroir.I64And, 0x84: wazeroir.I64Or, 0x85: wazeroir.I64Xor,
	0x86: wazeroir.I64Shl, 0x87: wazeroir.I64ShrS, 0x88: wazeroir.I64ShrU,
	0x89: wazeroir.I64Rotl, 0x8a: wazeroir.I64Rotr,

	0x92: wazeroir.F32Add, 0x93: wazeroir.F32Sub, 0x94: wazeroir.F32Mul,
	0x95: wazeroir.F32Div, 0x96: wazeroir.F32Min, 0x97: wazeroir.F32Max,
	0x98: wazeroir.F32Copysign,

	0xa0: wazeroir.F64Add, 0xa1: wazeroir.F64Sub, 0xa2: wazeroir.F64Mul,
	0xa3: wazeroir.F64Div, 0xa4: wazeroir.F64Min, 0xa5: wazeroir.F64Max,
	0xa6: wazeroir.F64Copysign,
}

// unaryOpcodes maps the binary format's single-byte unary opcodes to this
// engine's UnaryOp enum.
var unaryOpcodes = map[byte]wazeroir.UnaryOp{
	0x45: wazeroir.I32Eqz,
	0x50: wazeroir.I64Eqz,

	0x67: wazeroir.I32Clz, 0x68: wazeroir.I32Ctz, 0x69: wazeroir.I32Popcnt,
	0x79: wazeroir.I64Clz, 0x7a: wazeroir.I64Ctz, 0x7b: wazeroir.I64Popcnt,

	0x8b: wazeroir.F32Abs, 0x8c: wazeroir.F32Neg, 0x8d: wazeroir.F32Ceil,
	0x8e: wazeroir.F32Floor, 0x8f: wazeroir.F32Trunc, 0x90: wazeroir.F32Nearest,
	0x91: wazeroir.F32Sqrt,

	0x99: wazeroir.F64Abs, 0x9a: wazeroir.F64Neg, 0x9b: wazeroir.F64Ceil,
	0x9c: wazeroir.F64Floor, 0x9d: wazeroir.F64Trunc, 0x9e: wazeroir.F64Nearest,
	0x9f: wazeroir.F64Sqrt,

	0xa7: wazeroir.I32WrapI64,
	0xa8: wazeroir.I32TruncF32S, 0xa9: wazeroir.I32TruncF32U,
	0xaa: wazeroir.I32TruncF64S, 0xab: wazeroir.I32TruncF64U,
	0xac: wazeroir.I64ExtendI32S, 0xad: wazeroir.I64ExtendI32U,
	0xae: wazeroir.I64TruncF32S, 0xaf: wazeroir.I64TruncF32U,
	0xb0: wazeroir.I64TruncF64S, 0xb1: wazeroir.I64TruncF64U,
	0xb2: wazeroir.F32ConvertI32S, 0xb3: wazeroir.F32ConvertI32U,
	0xb4: wazeroir.F32ConvertI64S, 0xb5: wazeroir.F32ConvertI64U,
	0xb6: wazeroir.F32DemoteF64,
	0xb7: wazeroir.F64ConvertI32S, 0xb8: wazeroir.F64ConvertI32U,
	0xb9: wazeroir.F64ConvertI64S, 0xba: wazeroir.F64ConvertI64U,
	0xbb: wazeroir.F64PromoteF32,
	0xbc: wazeroir.I32ReinterpretF32, 0xbd: wazeroir.I64ReinterpretF64,
	0xbe: wazeroir.F32ReinterpretI32, 0xbf: wazeroir.F64ReinterpretI64,

	0xc0: wazeroir.I32Extend8S, 0xc1: wazeroir.I32Extend16S,
	0xc2: wazeroir.I64Extend8S, 0xc3: wazeroir.I64Extend16S, 0xc4: wazeroir.I64Extend32S,
}

// isSignExtendOpcode reports whether op is one of the five sign-extension
// instructions gated by Features.SignExtensionOps.
func isSignExtendOpcode(op byte) bool {
	return op >= 0xc0 && op <= 0xc4
}

// truncSatOpcodes maps the 0xfc-prefixed sub-opcode space's saturating
// truncation instructions.
var truncSatOpcodes = map[uint32]wazeroir.UnaryOp{
	0: wazeroir.I32TruncSatF32S, 1: wazeroir.I32TruncSatF32U,
	2: wazeroir.I32TruncSatF64S, 3: wazeroir.I32TruncSatF64U,
	4: wazeroir.I64TruncSatF32S, 5: wazeroir.I64TruncSatF32U,
	6: wazeroir.I64TruncSatF64S, 7: wazeroir.I64TruncSatF64U,
}
