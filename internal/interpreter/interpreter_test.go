package interpreter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clover2123/walrus/internal/wasm"
	"github.com/clover2123/walrus/internal/wazeroir"
)

// noImports is a Resolver for modules with no imported functions.
type noImports struct{}

func (noImports) ResolveImport(uint32) (HostFunction, bool) { return nil, false }

func i32(t wasm.ValueType) *wasm.ValueType { return &t }

func buildModule(t *testing.T, build func(c *wazeroir.Compiler, m *wasm.Module)) *wasm.Module {
	t.Helper()
	m := wasm.NewModule(1)
	c := wazeroir.NewCompiler(m)
	c.BeginModule(1)
	build(c, m)
	c.EndModule()
	return m
}

func putI32(b []byte, off uint32, v int32) {
	bo.PutUint32(b[off:], uint32(v))
}

func getI32(b []byte, off uint32) int32 {
	return int32(bo.Uint32(b[off:]))
}

// TestAdd lowers and runs `(func (param i32 i32) (result i32) local.get 0
// local.get 1 i32.add)`.
func TestAdd(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
		c.FunctionDecl(0, 0)
		c.BeginBody(0)
		c.LocalGet(0)
		c.LocalGet(1)
		c.Binary(wazeroir.I32Add)
		c.End()
		c.EndBody(0)
	})

	it := New(m, noImports{}, nil)
	args := make([]byte, 8)
	putI32(args, 0, 7)
	putI32(args, 4, 35)

	results, err := it.Call(0, args)
	require.NoError(t, err)
	require.Equal(t, int32(42), getI32(results, 0))
}

// TestSignedDivTraps exercises the trap path for a signed divide by zero.
func TestSignedDivTraps(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
		c.FunctionDecl(0, 0)
		c.BeginBody(0)
		c.LocalGet(0)
		c.LocalGet(1)
		c.Binary(wazeroir.I32DivS)
		c.End()
		c.EndBody(0)
	})

	it := New(m, noImports{}, nil)
	args := make([]byte, 8)
	putI32(args, 0, 10)
	putI32(args, 4, 0)

	_, err := it.Call(0, args)
	require.Error(t, err)
}

// TestSignedDivOverflowTraps exercises div_s(minSigned, -1).
func TestSignedDivOverflowTraps(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
		c.FunctionDecl(0, 0)
		c.BeginBody(0)
		c.LocalGet(0)
		c.LocalGet(1)
		c.Binary(wazeroir.I32DivS)
		c.End()
		c.EndBody(0)
	})

	it := New(m, noImports{}, nil)
	args := make([]byte, 8)
	putI32(args, 0, math.MinInt32)
	putI32(args, 4, -1)

	_, err := it.Call(0, args)
	require.Error(t, err)
}

// TestIfElse lowers `(func (param i32) (result i32) local.get 0 (if
// (result i32) (then i32.const 1) (else i32.const 0)))`.
func TestIfElse(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
		c.FunctionDecl(0, 0)
		c.BeginBody(0)
		c.LocalGet(0)
		c.If(i32(wasm.ValueTypeI32))
		c.I32Const(1)
		c.Else()
		c.I32Const(0)
		c.End()
		c.End()
		c.EndBody(0)
	})

	it := New(m, noImports{}, nil)

	args := make([]byte, 4)
	putI32(args, 0, 1)
	results, err := it.Call(0, args)
	require.NoError(t, err)
	require.Equal(t, int32(1), getI32(results, 0))

	putI32(args, 0, 0)
	results, err = it.Call(0, args)
	require.NoError(t, err)
	require.Equal(t, int32(0), getI32(results, 0))
}

// TestLoopBrIf lowers a loop that counts a parameter down to zero and
// returns the number of iterations taken, exercising Loop + BrIf with an
// intervening local.set.
func TestLoopBrIf(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})
		c.FunctionDecl(0, 0)
		c.BeginBody(0)
		c.LocalDecl(1, wasm.ValueTypeI32) // local 1: iteration counter

		c.Loop(nil)
		// counter += 1
		c.LocalGet(1)
		c.I32Const(1)
		c.Binary(wazeroir.I32Add)
		c.LocalSet(1)
		// param -= 1
		c.LocalGet(0)
		c.I32Const(1)
		c.Binary(wazeroir.I32Sub)
		c.LocalSet(0)
		// if param != 0, branch back to loop header
		c.LocalGet(0)
		c.I32Const(0)
		c.Binary(wazeroir.I32Ne)
		c.BrIf(0)
		c.End() // end loop

		c.LocalGet(1)
		c.End()
		c.EndBody(0)
	})

	it := New(m, noImports{}, nil)
	args := make([]byte, 4)
	putI32(args, 0, 5)

	results, err := it.Call(0, args)
	require.NoError(t, err)
	require.Equal(t, int32(5), getI32(results, 0))
}

// TestTruncSat exercises i32.trunc_sat_f64_s never trapping on NaN or
// out-of-range input.
func TestTruncSat(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeF64}, []wasm.ValueType{wasm.ValueTypeI32})
		c.FunctionDecl(0, 0)
		c.BeginBody(0)
		c.LocalGet(0)
		c.Unary(wazeroir.I32TruncSatF64S)
		c.End()
		c.EndBody(0)
	})

	it := New(m, noImports{}, nil)

	args := make([]byte, 8)
	bo.PutUint64(args, mathFloat64bits(math.NaN()))
	results, err := it.Call(0, args)
	require.NoError(t, err)
	require.Equal(t, int32(0), getI32(results, 0))

	bo.PutUint64(args, mathFloat64bits(1e20))
	results, err = it.Call(0, args)
	require.NoError(t, err)
	require.Equal(t, int32(math.MaxInt32), getI32(results, 0))
}

func mathFloat64bits(v float64) uint64 { return math.Float64bits(v) }

// TestCallRoundTrip exercises cross-function Call: a caller function
// invokes a callee that doubles its argument, then adds one.
func TestCallRoundTrip(t *testing.T) {
	m := buildModule(t, func(c *wazeroir.Compiler, m *wasm.Module) {
		c.Type(0, []wasm.ValueType{wasm.ValueTypeI32}, []wasm.ValueType{wasm.ValueTypeI32})

		// function 0: callee, doubles its argument.
		c.FunctionDecl(0, 0)
		// function 1: caller, calls function 0 then adds one.
		c.FunctionDecl(1, 0)

		c.BeginBody(0)
		c.LocalGet(0)
		c.LocalGet(0)
		c.Binary(wazeroir.I32Add)
		c.End()
		c.EndBody(0)

		c.BeginBody(1)
		c.LocalGet(0)
		c.Call(0)
		c.I32Const(1)
		c.Binary(wazeroir.I32Add)
		c.End()
		c.EndBody(1)
	})

	it := New(m, noImports{}, nil)
	args := make([]byte, 4)
	putI32(args, 0, 20)

	results, err := it.Call(1, args)
	require.NoError(t, err)
	require.Equal(t, int32(41), getI32(results, 0))
}
