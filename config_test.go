package walrus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRuntimeConfig_Defaults(t *testing.T) {
	cfg := NewRuntimeConfig().(*runtimeConfig)
	require.False(t, cfg.signExtensionOps)
	require.False(t, cfg.nonTrappingFloatToIntConversion)
	require.False(t, cfg.multiValue)
	require.NotNil(t, cfg.log)
}

func TestRuntimeConfig_FeatureToggle(t *testing.T) {
	base := NewRuntimeConfig()
	withSignExt := base.WithFeatureSignExtensionOps(true)

	require.False(t, base.(*runtimeConfig).signExtensionOps, "WithFeatureSignExtensionOps must not mutate the receiver")
	require.True(t, withSignExt.(*runtimeConfig).signExtensionOps)

	withAll := withSignExt.
		WithFeatureNonTrappingFloatToIntConversion(true).
		WithFeatureMultiValue(true).(*runtimeConfig)
	require.True(t, withAll.signExtensionOps)
	require.True(t, withAll.nonTrappingFloatToIntConversion)
	require.True(t, withAll.multiValue)
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(body)))...)
	return append(out, body...)
}

// buildAddModule hand-assembles the binary form of:
//
//	(module
//	  (func (export "add") (param i32 i32) (result i32)
//	    local.get 0
//	    local.get 1
//	    i32.add))
func buildAddModule() []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d)
	b = append(b, 0x01, 0x00, 0x00, 0x00)

	typeSection := uleb(1)
	typeSection = append(typeSection, 0x60)
	typeSection = append(typeSection, uleb(2)...)
	typeSection = append(typeSection, 0x7f, 0x7f)
	typeSection = append(typeSection, uleb(1)...)
	typeSection = append(typeSection, 0x7f)
	b = append(b, section(0x01, typeSection)...)

	funcSection := uleb(1)
	funcSection = append(funcSection, uleb(0)...)
	b = append(b, section(0x03, funcSection)...)

	exportSection := uleb(1)
	name := "add"
	exportSection = append(exportSection, uleb(uint32(len(name)))...)
	exportSection = append(exportSection, []byte(name)...)
	exportSection = append(exportSection, 0x00)
	exportSection = append(exportSection, uleb(0)...)
	b = append(b, section(0x07, exportSection)...)

	var funcBody []byte
	funcBody = append(funcBody, uleb(0)...)
	funcBody = append(funcBody, 0x20, 0x00)
	funcBody = append(funcBody, 0x20, 0x01)
	funcBody = append(funcBody, 0x6a)
	funcBody = append(funcBody, 0x0b)

	codeSection := uleb(1)
	codeSection = append(codeSection, uleb(uint32(len(funcBody)))...)
	codeSection = append(codeSection, funcBody...)
	b = append(b, section(0x0a, codeSection)...)

	return b
}

// buildCallsDoubleModule hand-assembles:
//
//	(module
//	  (import "env" "double" (func $double (param i32) (result i32)))
//	  (func (export "quadruple") (param i32) (result i32)
//	    local.get 0
//	    call $double
//	    call $double))
func buildCallsDoubleModule() []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d)
	b = append(b, 0x01, 0x00, 0x00, 0x00)

	typeSection := uleb(1)
	typeSection = append(typeSection, 0x60)
	typeSection = append(typeSection, uleb(1)...)
	typeSection = append(typeSection, 0x7f)
	typeSection = append(typeSection, uleb(1)...)
	typeSection = append(typeSection, 0x7f)
	b = append(b, section(0x01, typeSection)...)

	importSection := uleb(1)
	importSection = appendName(importSection, "env")
	importSection = appendName(importSection, "double")
	importSection = append(importSection, 0x00)
	importSection = append(importSection, uleb(0)...)
	b = append(b, section(0x02, importSection)...)

	funcSection := uleb(1)
	funcSection = append(funcSection, uleb(0)...)
	b = append(b, section(0x03, funcSection)...)

	exportSection := uleb(1)
	exportSection = appendName(exportSection, "quadruple")
	exportSection = append(exportSection, 0x00)
	exportSection = append(exportSection, uleb(1)...)
	b = append(b, section(0x07, exportSection)...)

	var funcBody []byte
	funcBody = append(funcBody, uleb(0)...)
	funcBody = append(funcBody, 0x20, 0x00)
	funcBody = append(funcBody, 0x10, 0x00)
	funcBody = append(funcBody, 0x10, 0x00)
	funcBody = append(funcBody, 0x0b)

	codeSection := uleb(1)
	codeSection = append(codeSection, uleb(uint32(len(funcBody)))...)
	codeSection = append(codeSection, funcBody...)
	b = append(b, section(0x0a, codeSection)...)

	return b
}

func appendName(b []byte, name string) []byte {
	b = append(b, uleb(uint32(len(name)))...)
	return append(b, []byte(name)...)
}

func TestRuntime_CompileAndCall(t *testing.T) {
	r := NewRuntime(NewRuntimeConfig())

	compiled, err := r.CompileModule(buildAddModule())
	require.NoError(t, err)

	instance, err := r.Instantiate("math", compiled)
	require.NoError(t, err)

	add, ok := instance.ExportedFunction("add")
	require.True(t, ok)

	results, err := add.Call(int32(7), int32(35))
	require.NoError(t, err)
	require.Equal(t, []interface{}{int32(42)}, results)
}

func TestRuntime_RejectsDuplicateInstanceName(t *testing.T) {
	r := NewRuntime(NewRuntimeConfig())
	compiled, err := r.CompileModule(buildAddModule())
	require.NoError(t, err)

	_, err = r.Instantiate("math", compiled)
	require.NoError(t, err)

	_, err = r.Instantiate("math", compiled)
	require.Error(t, err)
}

func TestModuleBuilder_HostFunctionCrossModuleCall(t *testing.T) {
	r := NewRuntime(NewRuntimeConfig())

	_, err := r.NewModuleBuilder().
		ExportFunction("double", func(x int32) int32 { return x * 2 }).
		Instantiate("env")
	require.NoError(t, err)

	compiled, err := r.CompileModule(buildCallsDoubleModule())
	require.NoError(t, err)
	caller, err := r.Instantiate("caller", compiled)
	require.NoError(t, err)

	quadruple, ok := caller.ExportedFunction("quadruple")
	require.True(t, ok)

	results, err := quadruple.Call(int32(5))
	require.NoError(t, err)
	require.Equal(t, []interface{}{int32(20)}, results)
}

func TestModuleBuilder_RejectsUnsupportedSignature(t *testing.T) {
	r := NewRuntime(NewRuntimeConfig())

	_, err := r.NewModuleBuilder().
		ExportFunction("bad", func(x string) int32 { return 0 }).
		Instantiate("env")
	require.Error(t, err)
}

func TestRuntime_MultiValueGatedByFeature(t *testing.T) {
	r := NewRuntime(NewRuntimeConfig())

	body := buildTwoResultTypeModule()
	_, err := r.CompileModule(body)
	require.Error(t, err, "multi-value results should be rejected when the feature is off")

	r2 := NewRuntime(NewRuntimeConfig().WithFeatureMultiValue(true))
	_, err = r2.CompileModule(body)
	require.NoError(t, err)
}

// buildTwoResultTypeModule hand-assembles a module declaring a single type
// with two results and no functions, just enough to exercise the type
// section's multi-value gate.
func buildTwoResultTypeModule() []byte {
	var b []byte
	b = append(b, 0x00, 0x61, 0x73, 0x6d)
	b = append(b, 0x01, 0x00, 0x00, 0x00)

	typeSection := uleb(1)
	typeSection = append(typeSection, 0x60)
	typeSection = append(typeSection, uleb(0)...)
	typeSection = append(typeSection, uleb(2)...)
	typeSection = append(typeSection, 0x7f, 0x7f)
	b = append(b, section(0x01, typeSection)...)

	return b
}
