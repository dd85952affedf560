// Package interpreter is the Interpreter (I): a threaded-dispatch
// stack machine that runs the bytecode internal/wazeroir's Compiler emits.
package interpreter

import (
	"go.uber.org/zap"

	"github.com/clover2123/walrus/internal/trap"
	"github.com/clover2123/walrus/internal/wasm"
	"github.com/clover2123/walrus/internal/wazeroir"
)

// HostFunction is the signature an imported function must satisfy to be
// callable from bytecode: it receives the raw argument bytes (laid out
// per the callee's FunctionType, params first) and returns the raw result
// bytes laid out the same way.
type HostFunction func(args []byte) (results []byte)

// Resolver resolves an import's combined function index to either a local
// callee (handled by the Interpreter itself) or a host function.
type Resolver interface {
	ResolveImport(index uint32) (HostFunction, bool)
}

// Interpreter runs a single Module's functions against a Resolver that
// supplies imported functions. It holds no mutable state of its own beyond
// its logger: every Call allocates a fresh operand stack sized to the
// callee's RequiredStackSize (§5).
type Interpreter struct {
	module   *wasm.Module
	resolver Resolver
	log      *zap.Logger
}

// New returns an Interpreter ready to run functions of module, resolving
// imports via resolver. log may be nil, in which case a no-op logger is
// used.
func New(module *wasm.Module, resolver Resolver, log *zap.Logger) *Interpreter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Interpreter{module: module, resolver: resolver, log: log}
}

// Call invokes the local function at the combined index with argBytes laid
// out per its FunctionType's params (in declaration order, each at its
// natural slot size) and returns its results laid out the same way over
// its result kinds. A Trap raised during execution is recovered here and
// returned as err; any other panic propagates, since it indicates a
// programming error rather than a modeled execution outcome.
func (it *Interpreter) Call(index uint32, argBytes []byte) (results []byte, err error) {
	defer func() {
		r := recover()
		tr, werr, ok := trap.Recover(r)
		if !ok {
			panic(r)
		}
		if tr != nil {
			it.log.Debug("trap", zap.Uint32("index", index), zap.String("reason", tr.Error()), zap.Any("frames", tr.Frames))
			err = werr
		}
	}()
	return it.call(index, argBytes)
}

// CallInternal is Call without its own trap-recovery boundary: a Trap panic
// raised while running index continues unwinding into whichever enclosing
// Call installed the nearest boundary instead of being caught here. The
// root package's Runtime uses this to re-enter a module's own Interpreter
// when resolving another module's cross-module import, so a trap in the
// callee still surfaces at the original caller's Call.
func (it *Interpreter) CallInternal(index uint32, argBytes []byte) []byte {
	out, _ := it.call(index, argBytes)
	return out
}

func (it *Interpreter) call(index uint32, argBytes []byte) ([]byte, error) {
	if it.module.IsImportedFunction(index) {
		fn, ok := it.resolver.ResolveImport(index)
		if !ok {
			trap.Raise(trap.NewUser("unresolved_import", index))
		}
		return fn(argBytes), nil
	}

	fn := it.module.FunctionAt(index)
	if fn.Host != nil {
		return fn.Host(argBytes), nil
	}
	s := newStack(fn.RequiredStackSize)
	copy(s.data[:len(argBytes)], argBytes)

	it.log.Debug("entering function", zap.Uint32("index", index), zap.String("name", fn.DebugName))

	sp := it.run(fn, s)

	t := fn.Type()
	resultStart := sp - t.ResultStackSize()
	out := make([]byte, t.ResultStackSize())
	copy(out, s.data[resultStart:sp])
	return out, nil
}

// activation is one function invocation's control state: its bytecode
// cursor (pc), the byte-offset of its operand stack frame base (bp, always
// 0 in this design since each call gets its own stack), and the current
// stack-top offset (sp).
type activation struct {
	pc uint32
	bp uint32
	sp uint32
}

// run executes fn's bytecode against s until it reaches the function's
// terminating End record, returning the final stack-top offset (the start
// of the activation's results area can be derived from it via
// fn.Type().ResultStackSize()).
func (it *Interpreter) run(fn *wasm.Function, s *stack) uint32 {
	act := activation{pc: 0, bp: 0, sp: fn.Type().ParamStackSize() + fn.RequiredStackSizeDueToLocal}
	body := fn.Body

	defer func() {
		if r := recover(); r != nil {
			if tr, isTrap := r.(*trap.Trap); isTrap {
				tr.WithFrame(trapFrame(fn, act.pc))
				panic(tr)
			}
			panic(r)
		}
	}()

	for {
		tag := wazeroir.Op(body[act.pc])
		switch tag {
		case wazeroir.OpI32Const:
			v := readI32At(body, act.pc+1)
			s.writeI32(act.sp, v)
			act.sp += 4
			act.pc += 5

		case wazeroir.OpI64Const:
			v := readU64At(body, act.pc+1)
			s.writeI64(act.sp, int64(v))
			act.sp += 8
			act.pc += 9

		case wazeroir.OpF32Const:
			v := readU32At(body, act.pc+1)
			s.writeU32(act.sp, v)
			act.sp += 4
			act.pc += 5

		case wazeroir.OpF64Const:
			v := readU64At(body, act.pc+1)
			s.writeU64(act.sp, v)
			act.sp += 8
			act.pc += 9

		case wazeroir.OpLocalGet:
			off := readU32At(body, act.pc+1)
			size := readU32At(body, act.pc+5)
			s.copyValue(act.sp, act.bp+off, size)
			act.sp += size
			act.pc += 9

		case wazeroir.OpLocalSet:
			off := readU32At(body, act.pc+1)
			size := readU32At(body, act.pc+5)
			act.sp -= size
			s.copyValue(act.bp+off, act.sp, size)
			act.pc += 9

		case wazeroir.OpDrop:
			size := readU32At(body, act.pc+1)
			act.sp -= size
			act.pc += 5

		case wazeroir.OpJump:
			off := readI32At(body, act.pc+1)
			act.pc = uint32(int32(act.pc) + off)

		case wazeroir.OpJumpIfTrue:
			act.sp -= 4
			cond := s.readI32(act.sp)
			off := readI32At(body, act.pc+1)
			if cond != 0 {
				act.pc = uint32(int32(act.pc) + off)
			} else {
				act.pc += 5
			}

		case wazeroir.OpJumpIfFalse:
			act.sp -= 4
			cond := s.readI32(act.sp)
			off := readI32At(body, act.pc+1)
			if cond == 0 {
				act.pc = uint32(int32(act.pc) + off)
			} else {
				act.pc += 5
			}

		case wazeroir.OpBinary:
			opCode := wazeroir.BinaryOp(readU16At(body, act.pc+1))
			_, _, shrink := opCode.StackEffect()
			operandSize := shrink / 2
			leftOff := act.sp - shrink
			rightOff := act.sp - operandSize
			resultOff := leftOff
			execBinary(s, opCode, leftOff, rightOff, resultOff)
			_, grow, _ := opCode.StackEffect()
			act.sp = leftOff + grow
			act.pc += 3

		case wazeroir.OpUnary:
			opCode := wazeroir.UnaryOp(readU16At(body, act.pc+1))
			_, grow, shrink := opCode.StackEffect()
			operandOff := act.sp - shrink
			resultOff := operandOff
			execUnary(s, opCode, operandOff, resultOff)
			act.sp = operandOff + grow
			act.pc += 3

		case wazeroir.OpCall:
			callee := readU32At(body, act.pc+1)
			t := it.module.FunctionTypeOf(callee)
			argStart := act.sp - t.ParamStackSize()
			argBytes := make([]byte, t.ParamStackSize())
			copy(argBytes, s.data[argStart:act.sp])

			resultBytes, _ := it.call(callee, argBytes)
			copy(s.data[argStart:argStart+uint32(len(resultBytes))], resultBytes)
			act.sp = argStart + uint32(len(resultBytes))
			act.pc += 5

		case wazeroir.OpEnd:
			return act.sp

		default:
			panic("interpreter: unknown opcode in bytecode stream")
		}
	}
}

func trapFrame(fn *wasm.Function, pc uint32) trap.Frame {
	index := uint32(len(fn.Module.Imports))
	for i, f := range fn.Module.Functions {
		if f == fn {
			index += uint32(i)
			break
		}
	}
	return trap.Frame{FunctionIndex: index, ProgramCounter: pc, DebugName: fn.DebugName}
}

func readI32At(b []byte, off uint32) int32 { return int32(bo.Uint32(b[off:])) }
func readU32At(b []byte, off uint32) uint32 { return bo.Uint32(b[off:]) }
func readU64At(b []byte, off uint32) uint64 { return bo.Uint64(b[off:]) }
func readU16At(b []byte, off uint32) uint16 { return bo.Uint16(b[off:]) }
