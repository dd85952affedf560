package walrus

import (
	"reflect"

	"github.com/pkg/errors"

	"github.com/clover2123/walrus/internal/wasm"
)

// ModuleBuilder defines a module entirely in Go, for functions that other
// Wasm modules import. Only function exports are supported: this engine has
// no memory or table model (a stated Non-goal), so ModuleBuilder does not
// offer ExportMemory/ExportGlobal/ExportTable the way the teacher's did.
//
// Ex. Below defines a module named "env" with one exported function:
//
//	env, err := r.NewModuleBuilder().
//		ExportFunction("double", func(x int32) int32 { return x * 2 }).
//		Instantiate("env")
//
// Notes:
//   - ModuleBuilder is mutable. ExportFunction returns the same instance for
//     chaining.
//   - ExportFunction defers reflection errors until Instantiate, so a chain
//     of calls can be built up before any error is surfaced.
type ModuleBuilder interface {
	// ExportFunction adds a function written in Go, exported under name.
	// goFunc must be a non-variadic func whose parameter and result types
	// are each one of int32, int64, float32, float64.
	ExportFunction(name string, goFunc interface{}) ModuleBuilder

	// Instantiate builds the accumulated exports into a Module and
	// registers it in the owning Runtime's Store under moduleName.
	Instantiate(moduleName string) (*Instance, error)
}

type moduleBuilder struct {
	r    *Runtime
	errs []error

	module *wasm.Module
}

// NewModuleBuilder returns a ModuleBuilder bound to r's Store.
func (r *Runtime) NewModuleBuilder() ModuleBuilder {
	return &moduleBuilder{r: r, module: wasm.NewModule(0)}
}

func (b *moduleBuilder) ExportFunction(name string, goFunc interface{}) ModuleBuilder {
	fn := reflect.ValueOf(goFunc)
	ft, err := reflectFuncKinds(fn.Type())
	if err != nil {
		b.errs = append(b.errs, errors.Wrapf(err, "walrus: exporting host function %q", name))
		return b
	}

	typeIndex := b.module.AddType(ft)
	index, mfn := b.module.AddFunction(typeIndex)
	mfn.DebugName = name
	mfn.Host = wrapHostFunc(fn, ft)
	b.module.AddExport(name, wasm.ExternKindFunc, index)

	return b
}

// wrapHostFunc adapts a reflected Go function to the wasm.Function.Host
// signature: decode args off the byte-addressed parameter area per ft,
// call goFunc via reflection, and re-encode its results the same way.
func wrapHostFunc(fn reflect.Value, ft *wasm.FunctionType) func([]byte) []byte {
	return func(args []byte) []byte {
		decoded := decodeValues(ft.Params, args)
		in := make([]reflect.Value, len(decoded))
		for i, v := range decoded {
			in[i] = reflect.ValueOf(v)
		}
		out := fn.Call(in)
		results := make([]interface{}, len(out))
		for i, v := range out {
			results[i] = v.Interface()
		}
		encoded, err := encodeValues(ft.Results, results)
		if err != nil {
			// A host function's own result types were already validated
			// against ft by reflectFuncKinds; a mismatch here means the
			// function returned a value of a type it was not declared to.
			panic(errors.Wrap(err, "walrus: host function returned unexpected type"))
		}
		return encoded
	}
}

func (b *moduleBuilder) Instantiate(moduleName string) (*Instance, error) {
	if len(b.errs) > 0 {
		return nil, errors.Wrapf(b.errs[0], "walrus: building module %q", moduleName)
	}
	return b.r.Instantiate(moduleName, &CompiledModule{module: b.module})
}
