package wazeroir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clover2123/walrus/internal/wasm"
)

var (
	i32 = wasm.ValueTypeI32
	f64 = wasm.ValueTypeF64
)

func i32p(v wasm.ValueType) *wasm.ValueType { return &v }

// compile lowers a single-function module built by build and returns the
// resulting Function.
func compile(t *testing.T, paramTypes, resultTypes []wasm.ValueType, build func(c *Compiler)) *wasm.Function {
	t.Helper()
	m := wasm.NewModule(1)
	c := NewCompiler(m)
	c.BeginModule(1)
	c.Type(0, paramTypes, resultTypes)
	c.FunctionDecl(0, 0)
	c.BeginBody(0)
	build(c)
	c.EndBody(0)
	c.EndModule()
	return m.FunctionAt(0)
}

func TestCompileConstAndBinary(t *testing.T) {
	fn := compile(t, nil, []wasm.ValueType{i32}, func(c *Compiler) {
		c.I32Const(1)
		c.I32Const(2)
		c.Binary(I32Add)
		c.End()
	})

	expected := []byte{byte(OpI32Const)}
	expected = appendI32(expected, 1)
	expected = append(expected, byte(OpI32Const))
	expected = appendI32(expected, 2)
	expected = append(expected, byte(OpBinary))
	expected = appendU16(expected, uint16(I32Add))
	expected = append(expected, byte(OpEnd))

	require.Equal(t, expected, fn.Body)
	require.Equal(t, uint32(8), fn.RequiredStackSize) // two I32 operands live at once, high-water mark
}

func TestCompileLocalOffsetsParamsThenLocals(t *testing.T) {
	fn := compile(t, []wasm.ValueType{i32, f64}, nil, func(c *Compiler) {
		c.LocalDecl(1, i32)
		c.End()
	})

	off, size := fn.LocalOffset(0)
	require.Equal(t, uint32(0), off)
	require.Equal(t, uint32(4), size)

	off, size = fn.LocalOffset(1)
	require.Equal(t, uint32(4), off)
	require.Equal(t, uint32(8), size)

	off, size = fn.LocalOffset(2) // first declared local, after the two params
	require.Equal(t, uint32(12), off)
	require.Equal(t, uint32(4), size)
}

func TestCompileIfElsePatchesBothBranches(t *testing.T) {
	fn := compile(t, []wasm.ValueType{i32}, []wasm.ValueType{i32}, func(c *Compiler) {
		c.LocalGet(0)
		c.If(i32p(i32))
		c.I32Const(1)
		c.Else()
		c.I32Const(0)
		c.End()
		c.End()
	})

	// Layout: LocalGet(9) JumpIfFalse(5) I32Const(5) Jump(5) I32Const(5) End(1)
	jumpIfFalsePos := uint32(9)
	require.Equal(t, byte(OpJumpIfFalse), fn.Body[jumpIfFalsePos])
	elseJumpPos := jumpIfFalsePos + 5 + 5 // past the then-branch's I32Const
	require.Equal(t, byte(OpJump), fn.Body[elseJumpPos])

	// JumpIfFalse must land exactly at the Else branch's first instruction.
	jumpIfFalseOffset := readI32(fn.Body[jumpIfFalsePos+1:])
	require.Equal(t, int32(elseJumpPos+5)-int32(jumpIfFalsePos), jumpIfFalseOffset)

	// The Else branch's Jump must land past the whole construct, at End.
	endPos := elseJumpPos + 5 + 5
	require.Equal(t, byte(OpEnd), fn.Body[endPos])
	elseJumpOffset := readI32(fn.Body[elseJumpPos+1:])
	require.Equal(t, int32(endPos)-int32(elseJumpPos), elseJumpOffset)
}

func TestCompileIfWithoutElsePatchesToEnd(t *testing.T) {
	fn := compile(t, []wasm.ValueType{i32}, nil, func(c *Compiler) {
		c.LocalGet(0)
		c.If(nil)
		c.I32Const(1)
		c.Drop()
		c.End()
		c.End()
	})

	jumpIfFalsePos := uint32(9)
	offset := readI32(fn.Body[jumpIfFalsePos+1:])
	target := uint32(int32(jumpIfFalsePos) + offset)
	require.Equal(t, byte(OpEnd), fn.Body[target])
}

func TestCompileLoopBranchTargetsHeader(t *testing.T) {
	fn := compile(t, []wasm.ValueType{i32}, nil, func(c *Compiler) {
		c.Loop(nil)
		c.LocalGet(0)
		c.BrIf(0)
		c.End()
		c.End()
	})

	// The loop header is byte 0 (Loop emits no bytecode of its own).
	// LocalGet is 9 bytes; BrIf with no intervening drop lowers to a bare
	// JumpIfTrue.
	brIfPos := uint32(9)
	require.Equal(t, byte(OpJumpIfTrue), fn.Body[brIfPos])
	offset := readI32(fn.Body[brIfPos+1:])
	require.Equal(t, int32(0)-int32(brIfPos), offset)
}

func TestCompileBrDropsInterveningBlockResult(t *testing.T) {
	// (if (result i32) (then (if (result i32) (then i32.const 1) (else
	// br 1)) ) (else i32.const 0))  -- the inner br 1 targets the outer
	// if, skipping (dropping) the inner if's own i32 result.
	fn := compile(t, []wasm.ValueType{i32}, []wasm.ValueType{i32}, func(c *Compiler) {
		c.LocalGet(0)
		c.If(i32p(i32)) // outer, depth 1 from inside inner
		c.LocalGet(0)
		c.If(i32p(i32)) // inner, depth 0 from its own body
		c.I32Const(1)
		c.Else()
		c.Br(1) // branch past the inner if, to the outer if's End
		c.End()
		c.Else()
		c.I32Const(0)
		c.End()
		c.End()
	})
	require.NotNil(t, fn.Body)

	// The inner if's own result size (4 bytes) must be dropped before the
	// Br's Jump, since Br(1) targets the outer block and the inner if's
	// result was never going to be produced on this path.
	found := false
	for i := 0; i+5 <= len(fn.Body); i++ {
		if Op(fn.Body[i]) == OpDrop && readU32(fn.Body[i+1:]) == 4 {
			found = true
			break
		}
	}
	require.True(t, found, "expected a Drop(4) before the Br's Jump")
}

func TestCompileCallStackEffect(t *testing.T) {
	m := wasm.NewModule(1)
	c := NewCompiler(m)
	c.BeginModule(1)
	c.Type(0, []wasm.ValueType{i32}, []wasm.ValueType{i32})
	c.FunctionDecl(0, 0) // callee
	c.FunctionDecl(1, 0) // caller
	c.BeginBody(0)
	c.LocalGet(0)
	c.End()
	c.EndBody(0)
	c.BeginBody(1)
	c.LocalGet(0)
	c.Call(0)
	c.End()
	c.EndBody(1)
	c.EndModule()

	caller := m.FunctionAt(1)
	require.Equal(t, uint32(4), caller.Type().ParamStackSize())
	require.Equal(t, uint32(8), caller.RequiredStackSize) // param + the pushed argument; the call then swaps it for its result
}
