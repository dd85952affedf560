package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func oneFuncModule(name string, export string, paramResult ValueType) *Module {
	m := NewModule(1)
	m.AddType(&FunctionType{Params: []ValueType{paramResult}, Results: []ValueType{paramResult}})
	_, fn := m.AddFunction(0)
	fn.Body = []byte{0}
	m.AddExport(export, ExternKindFunc, 0)
	return m
}

func TestInstantiateRejectsDuplicateName(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Instantiate(oneFuncModule("a", "f", ValueTypeI32), "math")
	require.NoError(t, err)

	_, err = s.Instantiate(oneFuncModule("a", "f", ValueTypeI32), "math")
	require.Error(t, err)
}

func TestResolveImportsValidatesSignature(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Instantiate(oneFuncModule("provider", "double", ValueTypeI32), "provider")
	require.NoError(t, err)

	importer := NewModule(1)
	importer.AddType(&FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}})
	importer.AddImport("provider", "double", 0)

	_, err = s.Instantiate(importer, "importer")
	require.NoError(t, err)
}

func TestResolveImportsRejectsSignatureMismatch(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Instantiate(oneFuncModule("provider", "double", ValueTypeF64), "provider")
	require.NoError(t, err)

	importer := NewModule(1)
	importer.AddType(&FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}})
	importer.AddImport("provider", "double", 0)

	_, err = s.Instantiate(importer, "importer")
	require.Error(t, err)
}

func TestResolveImportsRejectsMissingModule(t *testing.T) {
	s := NewStore(nil)
	importer := NewModule(1)
	importer.AddType(&FunctionType{})
	importer.AddImport("missing", "fn", 0)

	_, err := s.Instantiate(importer, "importer")
	require.Error(t, err)
}

func TestFunctionTypeIDDedup(t *testing.T) {
	s := NewStore(nil)
	t1 := &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}}
	t2 := &FunctionType{Params: []ValueType{ValueTypeI32}, Results: []ValueType{ValueTypeI32}}
	require.Equal(t, s.getFunctionTypeID(t1), s.getFunctionTypeID(t2))

	t3 := &FunctionType{Params: []ValueType{ValueTypeI64}}
	require.NotEqual(t, s.getFunctionTypeID(t1), s.getFunctionTypeID(t3))
}

func TestModuleInstanceFunctionIndex(t *testing.T) {
	s := NewStore(nil)
	inst, err := s.Instantiate(oneFuncModule("a", "f", ValueTypeI32), "math")
	require.NoError(t, err)

	idx, ok := inst.FunctionIndex("f")
	require.True(t, ok)
	require.Equal(t, uint32(0), idx)

	_, ok = inst.FunctionIndex("missing")
	require.False(t, ok)
}
