// Package wasm is the Module IR (M): the write-once-during-lowering,
// read-only-thereafter representation of a parsed Wasm module, plus the
// Store that owns instantiated modules (store.go).
package wasm

import (
	"strings"

	"github.com/clover2123/walrus/api"
)

// ValueType re-exports api.ValueType so callers of this package do not need
// to import api directly for module-shape declarations.
type ValueType = api.ValueType

const (
	ValueTypeI32       = api.ValueTypeI32
	ValueTypeI64       = api.ValueTypeI64
	ValueTypeF32       = api.ValueTypeF32
	ValueTypeF64       = api.ValueTypeF64
	ValueTypeV128      = api.ValueTypeV128
	ValueTypeFuncRef   = api.ValueTypeFuncRef
	ValueTypeExternRef = api.ValueTypeExternRef
)

// FunctionType is an ordered sequence of parameter kinds and an ordered
// sequence of result kinds (§3).
type FunctionType struct {
	Params  []ValueType
	Results []ValueType

	// paramStackSize and resultStackSize are derived quantities, computed
	// once and cached since they are consulted on every Call lowered
	// against this type.
	paramStackSize  uint32
	resultStackSize uint32
	cached          bool
}

// cache computes and memoizes ParamStackSize/ResultStackSize. Safe to call
// repeatedly; idempotent.
func (t *FunctionType) cache() {
	if t.cached {
		return
	}
	for _, p := range t.Params {
		t.paramStackSize += api.SlotSize(p)
	}
	for _, r := range t.Results {
		t.resultStackSize += api.SlotSize(r)
	}
	t.cached = true
}

// ParamStackSize is the sum of parameter slot sizes.
func (t *FunctionType) ParamStackSize() uint32 {
	t.cache()
	return t.paramStackSize
}

// ResultStackSize is the sum of result slot sizes.
func (t *FunctionType) ResultStackSize() uint32 {
	t.cache()
	return t.resultStackSize
}

// String renders a FunctionType canonically so structurally equal types
// compare equal as strings; the Store uses this to dedupe FunctionTypeIDs.
func (t *FunctionType) String() string {
	var b strings.Builder
	for _, p := range t.Params {
		b.WriteString(p.String())
	}
	b.WriteByte('_')
	for _, r := range t.Results {
		b.WriteString(r.String())
	}
	return b.String()
}

// EqualsSignature reports whether t has exactly the given params/results,
// used when validating an import against the exporting module's type.
func (t *FunctionType) EqualsSignature(params, results []ValueType) bool {
	return sliceEq(t.Params, params) && sliceEq(t.Results, results)
}

func sliceEq(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Function is a module-defined function: the "Module function" of §3. It
// owns its bytecode buffer and local list. It is populated write-once by
// the lowering pass (internal/wazeroir) and is read-only afterward.
type Function struct {
	// Module is the owning Module; set once at construction.
	Module *Module

	// TypeIndex indexes Module.Types for this function's signature.
	TypeIndex uint32

	// Locals holds the declared local kinds in declaration order,
	// excluding parameters (§4.5: parameters are laid out first).
	Locals []ValueType

	// Body is the emitted bytecode buffer (internal/wazeroir's record format),
	// nil until the lowering pass runs.
	Body []byte

	// RequiredStackSize is the maximum operand-stack depth, in bytes, this
	// body ever reaches, including its param and local area. Invariant:
	// RequiredStackSize >= ParamStackSize + RequiredStackSizeDueToLocal.
	RequiredStackSize uint32

	// RequiredStackSizeDueToLocal is the sum of local slot sizes,
	// excluding parameters.
	RequiredStackSizeDueToLocal uint32

	// DebugName augments traps and logs; optional.
	DebugName string

	// Host, when non-nil, marks this Function as host-implemented: calling
	// it runs this Go func directly against the raw argument bytes instead
	// of dispatching Body. Populated by ModuleBuilder for functions exported
	// from Go rather than decoded from a Wasm binary; Body is left nil.
	Host func(args []byte) []byte
}

// Type resolves this function's signature via its owning Module.
func (f *Function) Type() *FunctionType {
	return f.Module.Types[f.TypeIndex]
}

// LocalOffset resolves a local index (where indices < len(params) address
// parameters) to its byte offset from the activation's bp and its slot
// size, per §4.5.
func (f *Function) LocalOffset(index uint32) (offset uint32, size uint32) {
	t := f.Type()
	if int(index) < len(t.Params) {
		for i := uint32(0); i < index; i++ {
			offset += api.SlotSize(t.Params[i])
		}
		return offset, api.SlotSize(t.Params[index])
	}
	k := int(index) - len(t.Params)
	offset = t.ParamStackSize()
	for i := 0; i < k; i++ {
		offset += api.SlotSize(f.Locals[i])
	}
	return offset, api.SlotSize(f.Locals[k])
}

// ExternKind discriminates the kind of item an Import or Export refers to.
// Only ExternKindFunc is operationally exercised by this core (memory and
// table instructions are a stated Non-goal, and globals are not modeled),
// but the decoder must still recognize the other kinds to skip them
// structurally rather than fail to parse a well-formed module.
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
)

// Import is a function import resolved by (Module, Field) at instantiation
// time; it carries a function-type index (§3).
type Import struct {
	Kind      ExternKind
	Module    string
	Field     string
	TypeIndex uint32
}

// Export maps a name to an (kind, item-index) pair (§3).
type Export struct {
	Name string
	Kind ExternKind
	// Index is into the combined import+local function index space for
	// ExternKindFunc.
	Index uint32
}

// Module is the immutable-after-lowering IR described in §3/§4.3. Imports
// and locally declared functions share a single ordered function array:
// imports first (in declared order), then locally declared functions.
type Module struct {
	Version uint32

	Types []*FunctionType

	// Imports holds function imports in declared order. Import i occupies
	// function index i in the combined function index space.
	Imports []*Import

	// Functions holds the locally declared functions, in declared order.
	// Function i occupies function index len(Imports)+i in the combined
	// function index space.
	Functions []*Function

	Exports map[string]*Export

	// StartFunctionIndex is the optional start-function marker (combined
	// index space). SeenStart distinguishes "no start function" (false)
	// from "start function is index 0" (true, StartFunctionIndex == 0).
	StartFunctionIndex uint32
	SeenStart          bool
}

// NewModule returns an empty Module ready for the lowering pass to
// populate via its builder methods below.
func NewModule(version uint32) *Module {
	return &Module{Version: version, Exports: map[string]*Export{}}
}

// FunctionCount is the size of the combined import+local function index
// space.
func (m *Module) FunctionCount() uint32 {
	return uint32(len(m.Imports) + len(m.Functions))
}

// TypeIndexOfFunction resolves the FunctionType index for a function in the
// combined index space, whether it is an import or a local function.
func (m *Module) TypeIndexOfFunction(index uint32) uint32 {
	if int(index) < len(m.Imports) {
		return m.Imports[index].TypeIndex
	}
	return m.Functions[int(index)-len(m.Imports)].TypeIndex
}

// FunctionTypeOf is a convenience wrapper around TypeIndexOfFunction +
// Types lookup.
func (m *Module) FunctionTypeOf(index uint32) *FunctionType {
	return m.Types[m.TypeIndexOfFunction(index)]
}

// IsImportedFunction reports whether index (combined index space) names an
// imported function rather than a locally declared one.
func (m *Module) IsImportedFunction(index uint32) bool {
	return int(index) < len(m.Imports)
}

// AddType appends a function type and returns its index.
func (m *Module) AddType(t *FunctionType) uint32 {
	m.Types = append(m.Types, t)
	return uint32(len(m.Types) - 1)
}

// AddImport appends a function import and returns its combined function
// index.
func (m *Module) AddImport(moduleName, field string, typeIndex uint32) uint32 {
	m.Imports = append(m.Imports, &Import{Kind: ExternKindFunc, Module: moduleName, Field: field, TypeIndex: typeIndex})
	return uint32(len(m.Imports) - 1)
}

// AddFunction declares a new local function with the given signature and
// returns its combined function index. The function's Body/RequiredStackSize
// fields are filled in later by the lowering pass.
func (m *Module) AddFunction(typeIndex uint32) (index uint32, fn *Function) {
	fn = &Function{Module: m, TypeIndex: typeIndex}
	m.Functions = append(m.Functions, fn)
	return uint32(len(m.Imports)+len(m.Functions)) - 1, fn
}

// AddExport records an export; last writer for a given name wins, matching
// the teacher's ModuleBuilder overwrite semantics.
func (m *Module) AddExport(name string, kind ExternKind, index uint32) {
	m.Exports[name] = &Export{Name: name, Kind: kind, Index: index}
}

// SetStartFunction records the module's start-function marker.
func (m *Module) SetStartFunction(index uint32) {
	m.StartFunctionIndex = index
	m.SeenStart = true
}

// FunctionAt returns the local Function for a combined function index, or
// nil if index names an import.
func (m *Module) FunctionAt(index uint32) *Function {
	if m.IsImportedFunction(index) {
		return nil
	}
	return m.Functions[int(index)-len(m.Imports)]
}
