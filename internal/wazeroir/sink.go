package wazeroir

import "github.com/clover2123/walrus/internal/wasm"

// ModuleSink is the parse-event interface the binary decoder (an external
// collaborator, §1/§6) drives to populate a Module and lower each
// function's body into bytecode. A Compiler implements this interface.
//
// Events arrive in the order family described in §4.4: module begin, type
// declarations, imports, function declarations, exports, the optional
// start-function marker, then each function body as BeginBody,
// local declarations, a stream of expression events, and EndBody.
//
// Index parameters are asserted against the next expected sequential
// index: a mismatch means the decoder produced a structurally malformed
// stream, which per §4.4 is a programming error, not a recoverable error.
type ModuleSink interface {
	BeginModule(version uint32)
	Type(index uint32, params, results []wasm.ValueType)
	ImportFunc(index uint32, moduleName, field string, typeIndex uint32)
	FunctionDecl(index uint32, typeIndex uint32)
	Export(name string, kind wasm.ExternKind, index uint32)
	StartFunction(index uint32)

	BeginBody(index uint32)
	LocalDecl(runLength uint32, kind wasm.ValueType)

	I32Const(v int32)
	I64Const(v int64)
	F32Const(bits uint32)
	F64Const(bits uint64)
	LocalGet(index uint32)
	LocalSet(index uint32)
	Drop()
	Binary(op BinaryOp)
	Unary(op UnaryOp)
	If(resultKind *wasm.ValueType)
	Else()
	Loop(resultKind *wasm.ValueType)
	Br(depth uint32)
	BrIf(depth uint32)
	Call(index uint32)
	End()

	EndBody(index uint32)
	EndModule()
}
