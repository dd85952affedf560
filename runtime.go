package walrus

import (
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/clover2123/walrus/internal/interpreter"
	"github.com/clover2123/walrus/internal/wasm"
	"github.com/clover2123/walrus/internal/wasmbin"
	"github.com/clover2123/walrus/internal/wazeroir"
)

// CompiledModule is the result of decoding and lowering a binary Wasm
// module: a frozen wasm.Module ready for Runtime.Instantiate. It carries no
// Store-bound state, so one CompiledModule may be instantiated into several
// Runtimes, mirroring the teacher's own compile/instantiate split.
type CompiledModule struct {
	module *wasm.Module
}

// Runtime owns a Store of instantiated modules and the RuntimeConfig that
// governs decoding and logging for everything compiled or instantiated
// through it.
type Runtime struct {
	cfg   *runtimeConfig
	store *wasm.Store
	log   *zap.Logger

	// interpreters holds the Interpreter built by Instantiate for each
	// instantiated module name, reused across calls so Instance.ExportedFunction.Call
	// does not pay interpreter construction cost per invocation.
	interpreters map[string]*interpreter.Interpreter
}

// NewRuntime returns a Runtime governed by cfg. A nil cfg is equivalent to
// NewRuntimeConfig().
func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	rc := cfg.(*runtimeConfig)
	return &Runtime{
		cfg:          rc,
		store:        wasm.NewStore(rc.log),
		log:          rc.log,
		interpreters: map[string]*interpreter.Interpreter{},
	}
}

// CompileModule decodes and lowers a binary Wasm module, applying this
// Runtime's feature configuration to the decoder. The result is immutable
// and may be instantiated multiple times under different names.
func (r *Runtime) CompileModule(binary []byte) (*CompiledModule, error) {
	module := wasm.NewModule(0)
	c := wazeroir.NewCompiler(module)
	if err := wasmbin.DecodeWithFeatures(binary, c, r.cfg.decoderFeatures()); err != nil {
		return nil, errors.Wrap(err, "walrus: compiling module")
	}
	return &CompiledModule{module: module}, nil
}

// Instance is a module bound into this Runtime's Store, ready to have its
// exported functions called.
type Instance struct {
	r    *Runtime
	name string
	inst *wasm.ModuleInstance
}

// Instantiate registers compiled under name in this Runtime's Store,
// resolving its function imports against modules already instantiated in
// the same Runtime, and runs its start function (if any). name must be
// unique within this Runtime.
func (r *Runtime) Instantiate(name string, compiled *CompiledModule) (*Instance, error) {
	inst, err := r.store.Instantiate(compiled.module, name)
	if err != nil {
		return nil, err
	}

	it := interpreter.New(compiled.module, &moduleResolver{r: r, moduleName: name}, r.log)
	r.interpreters[name] = it

	instance := &Instance{r: r, name: name, inst: inst}

	if compiled.module.SeenStart {
		r.log.Debug("running start function", zap.String("module", name))
		if _, err := it.Call(compiled.module.StartFunctionIndex, nil); err != nil {
			return nil, errors.Wrapf(err, "walrus: start function of module %q", name)
		}
	}

	return instance, nil
}

// ExportedFunction looks up a function export by name, returning ok=false
// if no such function export exists.
func (in *Instance) ExportedFunction(name string) (*ExportedFunction, bool) {
	index, ok := in.inst.FunctionIndex(name)
	if !ok {
		return nil, false
	}
	return &ExportedFunction{in: in, index: index}, true
}

// ExportedFunction is a callable handle to one of an Instance's function
// exports.
type ExportedFunction struct {
	in    *Instance
	index uint32
}

// Call marshals args against this function's declared parameter kinds,
// runs it, and unmarshals its results. A Trap raised during execution
// surfaces as a non-nil error (see internal/trap).
func (f *ExportedFunction) Call(args ...interface{}) ([]interface{}, error) {
	t := f.in.inst.Module.FunctionTypeOf(f.index)
	argBytes, err := encodeValues(t.Params, args)
	if err != nil {
		return nil, err
	}

	it := f.in.r.interpreters[f.in.name]
	resultBytes, err := it.Call(f.index, argBytes)
	if err != nil {
		return nil, err
	}
	return decodeValues(t.Results, resultBytes), nil
}

// moduleResolver implements interpreter.Resolver for a single module's
// imports, looking up the imported module's export in the shared Store and
// dispatching into it via CallInternal so a Trap raised in the callee
// continues unwinding to the importing module's own Interpreter.Call
// boundary rather than being caught partway.
type moduleResolver struct {
	r          *Runtime
	moduleName string
}

func (mr *moduleResolver) ResolveImport(index uint32) (interpreter.HostFunction, bool) {
	self, ok := mr.r.store.Module(mr.moduleName)
	if !ok {
		return nil, false
	}
	imp := self.Module.Imports[index]

	exporter, ok := mr.r.store.Module(imp.Module)
	if !ok {
		return nil, false
	}
	export, ok := exporter.Module.Exports[imp.Field]
	if !ok || export.Kind != wasm.ExternKindFunc {
		return nil, false
	}

	if fn := exporter.Module.FunctionAt(export.Index); fn != nil && fn.Host != nil {
		return interpreter.HostFunction(fn.Host), true
	}

	calleeIt, ok := mr.r.interpreters[imp.Module]
	if !ok {
		return nil, false
	}
	calleeIndex := export.Index
	return func(args []byte) []byte {
		return calleeIt.CallInternal(calleeIndex, args)
	}, true
}

// reflectFuncKinds derives a wasm.FunctionType from a Go function's
// reflected signature, used by ModuleBuilder.ExportFunction.
func reflectFuncKinds(t reflect.Type) (*wasm.FunctionType, error) {
	if t.Kind() != reflect.Func {
		return nil, errors.Errorf("walrus: host function must be a func, got %s", t.Kind())
	}
	if t.IsVariadic() {
		return nil, errors.New("walrus: host function must not be variadic")
	}
	params := make([]wasm.ValueType, t.NumIn())
	for i := range params {
		vt, err := valueTypeOf(t.In(i))
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %d", i)
		}
		params[i] = vt
	}
	results := make([]wasm.ValueType, t.NumOut())
	for i := range results {
		vt, err := valueTypeOf(t.Out(i))
		if err != nil {
			return nil, errors.Wrapf(err, "result %d", i)
		}
		results[i] = vt
	}
	return &wasm.FunctionType{Params: params, Results: results}, nil
}
