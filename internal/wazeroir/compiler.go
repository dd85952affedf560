package wazeroir

import (
	"fmt"

	"github.com/clover2123/walrus/api"
	"github.com/clover2123/walrus/internal/wasm"
)

// blockKind discriminates the two control-stack entry shapes of §3: a
// structured if/else and a loop. There is no generic "block" kind: the
// decoder (internal/wasmbin) does not forward a bare block to the lowering
// pass, so only if/else and loop entries are ever pushed.
type blockKind int

const (
	blockIfElse blockKind = iota
	blockLoop
)

// block is a lowering-time-only control-stack entry (§3).
type block struct {
	kind       blockKind
	resultKind *wasm.ValueType // nil means void

	// position is the byte-offset at which the block began in the
	// bytecode buffer: for IfElse, the position of its JumpIfFalse
	// record; for Loop, the position of the loop header (the first
	// record of the loop body).
	position uint32

	// elseEnd is, once an Else has been seen, the byte-offset
	// immediately after the Else's Jump record (i.e. where the Else
	// branch's own instructions start). Zero means no Else seen yet.
	elseEnd uint32

	// pendingExits holds the byte-offset of every forward Jump/JumpIfTrue/
	// JumpIfFalse record (emitted by Br/BrIf) that targets this block and
	// is still waiting for the block's End to be reached, so it can be
	// patched to land there. Only used for blockIfElse: a branch to a
	// Loop targets its already-known header instead (§4.4: branching to
	// a loop re-enters it; branching to an if/else exits past it).
	pendingExits []uint32
}

// Compiler is the Lowering Pass (L): a ModuleSink that, driven by decoder
// parse events, populates a Module's types/imports/exports/functions and
// emits each function's bytecode buffer while computing its
// RequiredStackSize and resolving forward branches.
//
// A Compiler instance lowers exactly one Module; construct a fresh one per
// module via NewCompiler.
type Compiler struct {
	module *wasm.Module

	// per-function lowering state, reset in BeginBody.
	cur          *wasm.Function
	curType      *wasm.FunctionType
	buf          []byte
	stackSoFar   uint32
	lastPushSize uint32 // size of the value most recently pushed; used by Drop
	locals       []wasm.ValueType
	controlStack []*block
}

// NewCompiler returns a Compiler that lowers parse events into module.
// module should be freshly constructed (wasm.NewModule) and empty.
func NewCompiler(module *wasm.Module) *Compiler {
	return &Compiler{module: module}
}

func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("wazeroir: malformed decoder event stream: "+format, args...))
	}
}

// --- module-level events ---

func (c *Compiler) BeginModule(version uint32) {
	c.module.Version = version
}

func (c *Compiler) Type(index uint32, params, results []wasm.ValueType) {
	assertf(index == uint32(len(c.module.Types)), "Type: out-of-order index %d", index)
	c.module.AddType(&wasm.FunctionType{Params: params, Results: results})
}

func (c *Compiler) ImportFunc(index uint32, moduleName, field string, typeIndex uint32) {
	assertf(index == uint32(len(c.module.Imports)), "ImportFunc: out-of-order index %d", index)
	assertf(int(typeIndex) < len(c.module.Types), "ImportFunc: type index %d out of range", typeIndex)
	c.module.AddImport(moduleName, field, typeIndex)
}

func (c *Compiler) FunctionDecl(index uint32, typeIndex uint32) {
	expected := uint32(len(c.module.Imports) + len(c.module.Functions))
	assertf(index == expected, "FunctionDecl: out-of-order index %d", index)
	assertf(int(typeIndex) < len(c.module.Types), "FunctionDecl: type index %d out of range", typeIndex)
	c.module.AddFunction(typeIndex)
}

func (c *Compiler) Export(name string, kind wasm.ExternKind, index uint32) {
	c.module.AddExport(name, kind, index)
}

func (c *Compiler) StartFunction(index uint32) {
	assertf(index < c.module.FunctionCount(), "StartFunction: index %d out of range", index)
	c.module.SetStartFunction(index)
}

func (c *Compiler) EndModule() {}

// --- body-level events ---

func (c *Compiler) BeginBody(index uint32) {
	fn := c.module.FunctionAt(index)
	assertf(fn != nil, "BeginBody: index %d does not name a local function", index)
	c.cur = fn
	c.curType = fn.Type()
	c.buf = c.buf[:0]
	c.locals = nil
	c.controlStack = c.controlStack[:0]
	c.lastPushSize = 0

	c.stackSoFar = c.curType.ParamStackSize()
	c.cur.RequiredStackSize = c.stackSoFar
}

func (c *Compiler) LocalDecl(runLength uint32, kind wasm.ValueType) {
	for i := uint32(0); i < runLength; i++ {
		c.locals = append(c.locals, kind)
	}
	c.cur.Locals = c.locals

	sz := api.SlotSize(kind) * runLength
	c.cur.RequiredStackSizeDueToLocal += sz
	c.growBy(sz)
}

func (c *Compiler) EndBody(index uint32) {
	assertf(c.cur == c.module.FunctionAt(index), "EndBody: index %d mismatch", index)
	assertf(len(c.controlStack) == 0, "EndBody: unterminated block(s)")
	c.cur.Body = append([]byte(nil), c.buf...)
	assertf(c.cur.RequiredStackSize >= c.curType.ParamStackSize()+c.cur.RequiredStackSizeDueToLocal,
		"EndBody: RequiredStackSize invariant violated")
}

// growBy accounts for a push of sz bytes without a corresponding pop,
// tracking the running high-water mark.
func (c *Compiler) growBy(sz uint32) {
	c.stackSoFar += sz
	if c.stackSoFar > c.cur.RequiredStackSize {
		c.cur.RequiredStackSize = c.stackSoFar
	}
}

// tick is the per-instruction stack accounting step: subtract the bytes
// the instruction pops from the running stackSoFar, then add the bytes it
// pushes and raise RequiredStackSize to the new high-water mark, so
// RequiredStackSize is the deepest the operand stack actually gets. grow is
// also recorded as the size of the value this instruction just produced
// (used by a later bare Drop event).
func (c *Compiler) tick(grow, shrink uint32) {
	c.stackSoFar -= shrink
	c.growBy(grow)
	c.lastPushSize = grow
}

func (c *Compiler) currentOffset() uint32 { return uint32(len(c.buf)) }

func (c *Compiler) emitOp(op Op) { c.buf = append(c.buf, byte(op)) }

func (c *Compiler) patchI32At(recordPos uint32, value int32) {
	bo.PutUint32(c.buf[recordPos+1:recordPos+5], uint32(value))
}

// --- value-producing / value-consuming events ---

func (c *Compiler) I32Const(v int32) {
	c.tick(4, 0)
	c.emitOp(OpI32Const)
	c.buf = appendI32(c.buf, v)
}

func (c *Compiler) I64Const(v int64) {
	c.tick(8, 0)
	c.emitOp(OpI64Const)
	c.buf = appendU64(c.buf, uint64(v))
}

func (c *Compiler) F32Const(bits uint32) {
	c.tick(4, 0)
	c.emitOp(OpF32Const)
	c.buf = appendU32(c.buf, bits)
}

func (c *Compiler) F64Const(bits uint64) {
	c.tick(8, 0)
	c.emitOp(OpF64Const)
	c.buf = appendU64(c.buf, bits)
}

func (c *Compiler) LocalGet(index uint32) {
	offset, size := c.cur.LocalOffset(index)
	c.tick(size, 0)
	c.emitOp(OpLocalGet)
	c.buf = appendU32(c.buf, offset)
	c.buf = appendU32(c.buf, size)
}

func (c *Compiler) LocalSet(index uint32) {
	offset, size := c.cur.LocalOffset(index)
	c.tick(0, size)
	c.emitOp(OpLocalSet)
	c.buf = appendU32(c.buf, offset)
	c.buf = appendU32(c.buf, size)
}

// Drop discards the single most-recently-pushed value, whose size is
// tracked from the preceding event's push (the decoder is assumed to have
// type-checked the module, so by the time Drop is reported the size of the
// value being discarded is already known from context).
func (c *Compiler) Drop() {
	sz := c.lastPushSize
	c.tick(0, sz)
	c.emitOp(OpDrop)
	c.buf = appendU32(c.buf, sz)
}

func (c *Compiler) Binary(op BinaryOp) {
	_, grow, shrink := op.StackEffect()
	c.tick(grow, shrink)
	c.emitOp(OpBinary)
	c.buf = appendU16(c.buf, uint16(op))
}

func (c *Compiler) Unary(op UnaryOp) {
	_, grow, shrink := op.StackEffect()
	c.tick(grow, shrink)
	c.emitOp(OpUnary)
	c.buf = appendU16(c.buf, uint16(op))
}

func (c *Compiler) Call(index uint32) {
	t := c.module.FunctionTypeOf(index)
	c.tick(t.ResultStackSize(), t.ParamStackSize())
	c.emitOp(OpCall)
	c.buf = appendU32(c.buf, index)
}

// --- structured control ---

// If emits a JumpIfFalse with a placeholder offset and pushes an IfElse
// descriptor, per §4.4.
func (c *Compiler) If(resultKind *wasm.ValueType) {
	c.tick(0, 4) // pops the I32 condition
	pos := c.currentOffset()
	c.emitOp(OpJumpIfFalse)
	c.buf = appendI32(c.buf, 0) // placeholder, patched at Else or End
	c.controlStack = append(c.controlStack, &block{kind: blockIfElse, resultKind: resultKind, position: pos})
}

// Else emits a Jump with a placeholder offset, records the Else branch's
// start, and patches the If's JumpIfFalse to land here.
func (c *Compiler) Else() {
	top := c.controlStack[len(c.controlStack)-1]
	c.emitOp(OpJump)
	c.buf = appendI32(c.buf, 0) // placeholder, patched at End
	top.elseEnd = c.currentOffset()
	c.patchI32At(top.position, int32(top.elseEnd)-int32(top.position))
}

// Loop pushes a Loop descriptor at the current offset (the loop header);
// no bytecode is emitted for Loop itself.
func (c *Compiler) Loop(resultKind *wasm.ValueType) {
	c.controlStack = append(c.controlStack, &block{kind: blockLoop, resultKind: resultKind, position: c.currentOffset()})
}

// blockAt returns the control-stack entry `depth` levels above the
// innermost currently-open block; depth 0 is the innermost block itself.
func (c *Compiler) blockAt(depth uint32) *block {
	idx := len(c.controlStack) - 1 - int(depth)
	assertf(idx >= 0, "branch depth %d exceeds open block count %d", depth, len(c.controlStack))
	return c.controlStack[idx]
}

// interveningDropSize sums the slot sizes of the non-void result kinds of
// every block strictly between the current position and the branch target
// at depth (exclusive of the target itself), mirroring the original
// engine's dropStackValuesBeforeBrIfNeeds (see DESIGN.md: Br/BrIf drop
// semantics).
func (c *Compiler) interveningDropSize(depth uint32) uint32 {
	var size uint32
	for i := uint32(0); i < depth; i++ {
		b := c.controlStack[len(c.controlStack)-1-int(i)]
		if b.resultKind != nil {
			size += api.SlotSize(*b.resultKind)
		}
	}
	return size
}

// emitJumpTo emits a branch record of kind tag targeting block: an
// immediate backward offset if target is a Loop (branching to a loop
// re-enters it at its header, §4.4's "continue" reading of a loop label),
// or a deferred forward patch resolved once the If/Else block's End is
// reached (branching to an if/else exits past it, a "break" reading) —
// see DESIGN.md's note on why this target is the block's End and not its
// opening position.
func (c *Compiler) emitJumpTo(target *block, tag Op) {
	pos := c.currentOffset()
	c.emitOp(tag)
	c.buf = appendI32(c.buf, 0)
	if target.kind == blockLoop {
		c.patchI32At(pos, int32(target.position)-int32(pos))
		return
	}
	target.pendingExits = append(target.pendingExits, pos)
}

// Br emits an unconditional branch to the block at depth, dropping any
// intervening blocks' result values first (§4.4; see DESIGN.md for the
// drop-semantics caveat flagged in §9).
func (c *Compiler) Br(depth uint32) {
	target := c.blockAt(depth)
	dropSize := c.interveningDropSize(depth)
	if dropSize > 0 {
		c.tick(0, dropSize)
		c.emitOp(OpDrop)
		c.buf = appendU32(c.buf, dropSize)
	}
	c.emitJumpTo(target, OpJump)
}

// BrIf emits a conditional branch to the block at depth. When there is
// nothing to drop, a single JumpIfTrue suffices. When there is, the branch
// is split into "JumpIfFalse(fallthrough); Drop; Jump(target)" so the drop
// only executes on the taken path (§4.4).
func (c *Compiler) BrIf(depth uint32) {
	target := c.blockAt(depth)
	dropSize := c.interveningDropSize(depth)
	c.tick(0, 4) // pops the I32 condition, taken or not

	if dropSize == 0 {
		c.emitJumpTo(target, OpJumpIfTrue)
		return
	}

	pos := c.currentOffset()
	c.emitOp(OpJumpIfFalse)
	c.buf = appendI32(c.buf, 0) // placeholder: patched below to land past the Jump
	c.emitOp(OpDrop)
	c.buf = appendU32(c.buf, dropSize)
	c.emitJumpTo(target, OpJump)
	c.patchI32At(pos, int32(c.currentOffset())-int32(pos))
}

// End closes the innermost open block (patching its forward branches), or,
// if no block is open, emits the function's terminating End record.
func (c *Compiler) End() {
	if len(c.controlStack) == 0 {
		c.emitOp(OpEnd)
		return
	}

	top := c.controlStack[len(c.controlStack)-1]
	c.controlStack = c.controlStack[:len(c.controlStack)-1]

	if top.resultKind != nil {
		c.lastPushSize = api.SlotSize(*top.resultKind)
	} else {
		c.lastPushSize = 0
	}

	switch top.kind {
	case blockIfElse:
		if top.elseEnd != 0 {
			// Patch the Else's own Jump record (it sits 5 bytes before
			// elseEnd: tag(1) + int32 offset(4)).
			jumpPos := top.elseEnd - 5
			c.patchI32At(jumpPos, int32(c.currentOffset())-int32(jumpPos))
		} else {
			c.patchI32At(top.position, int32(c.currentOffset())-int32(top.position))
		}
		endPos := c.currentOffset()
		for _, p := range top.pendingExits {
			c.patchI32At(p, int32(endPos)-int32(p))
		}
	case blockLoop:
		// Backward edges already target the header; nothing to patch.
	}
}
