// Package wasmtext is test-only scaffolding: it builds *wasm.Module values
// directly from Go struct literals, skipping both the binary decoder and
// any textual Wasm format, so unit tests elsewhere can construct a module
// shape without hand-assembling LEB128 bytes. Grounded in the teacher's own
// requireModuleText test helper, generalized from parsing S-expression text
// to driving the lowering Compiler's sink interface directly.
package wasmtext

import (
	"github.com/clover2123/walrus/internal/wasm"
	"github.com/clover2123/walrus/internal/wazeroir"
)

// FuncSpec describes one function to declare in a Builder module.
type FuncSpec struct {
	Params  []wasm.ValueType
	Results []wasm.ValueType
	Locals  []wasm.ValueType
	Export  string // empty means not exported

	// Build emits this function's body against c, which has already had
	// BeginBody/LocalDecl called for it; Build must call c.End() but not
	// c.EndBody().
	Build func(c *wazeroir.Compiler)
}

// ImportSpec describes one function import to declare in a Builder module.
type ImportSpec struct {
	Module, Field string
	Params        []wasm.ValueType
	Results       []wasm.ValueType
}

// Build lowers a module made of the given imports and functions, in order,
// via internal/wazeroir's Compiler, and returns the resulting *wasm.Module.
// Type indices are assigned implicitly: one fresh FunctionType per import
// and per function, in declaration order.
func Build(imports []ImportSpec, funcs []FuncSpec) *wasm.Module {
	m := wasm.NewModule(1)
	c := wazeroir.NewCompiler(m)
	c.BeginModule(1)

	typeIndex := uint32(0)
	for _, imp := range imports {
		c.Type(typeIndex, imp.Params, imp.Results)
		c.ImportFunc(uint32(len(m.Imports)), imp.Module, imp.Field, typeIndex)
		typeIndex++
	}

	funcIndexBase := uint32(len(imports))
	for i, f := range funcs {
		c.Type(typeIndex, f.Params, f.Results)
		funcIndex := funcIndexBase + uint32(i)
		c.FunctionDecl(funcIndex, typeIndex)
		typeIndex++
	}

	for i, f := range funcs {
		funcIndex := funcIndexBase + uint32(i)
		c.BeginBody(funcIndex)
		for _, l := range f.Locals {
			c.LocalDecl(1, l)
		}
		f.Build(c)
		c.EndBody(funcIndex)
		if f.Export != "" {
			c.Export(f.Export, wasm.ExternKindFunc, funcIndex)
		}
	}

	c.EndModule()
	return m
}
