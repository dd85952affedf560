package wasmbin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clover2123/walrus/internal/wasm"
	"github.com/clover2123/walrus/internal/wazeroir"
)

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

func sleb(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
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
	b = append(b, 0x00, 0x61, 0x73, 0x6d) // magic
	b = append(b, 0x01, 0x00, 0x00, 0x00) // version 1

	typeSection := uleb(1)
	typeSection = append(typeSection, 0x60)
	typeSection = append(typeSection, uleb(2)...)
	typeSection = append(typeSection, 0x7f, 0x7f)
	typeSection = append(typeSection, uleb(1)...)
	typeSection = append(typeSection, 0x7f)
	b = append(b, section(sectionType, typeSection)...)

	funcSection := uleb(1)
	funcSection = append(funcSection, uleb(0)...)
	b = append(b, section(sectionFunction, funcSection)...)

	exportSection := uleb(1)
	name := "add"
	exportSection = append(exportSection, uleb(uint32(len(name)))...)
	exportSection = append(exportSection, []byte(name)...)
	exportSection = append(exportSection, externKindFunc)
	exportSection = append(exportSection, uleb(0)...)
	b = append(b, section(sectionExport, exportSection)...)

	var funcBody []byte
	funcBody = append(funcBody, uleb(0)...) // no locals
	funcBody = append(funcBody, 0x20, 0x00) // local.get 0
	funcBody = append(funcBody, 0x20, 0x01) // local.get 1
	funcBody = append(funcBody, 0x6a)       // i32.add
	funcBody = append(funcBody, 0x0b)       // end

	codeSection := uleb(1)
	codeSection = append(codeSection, uleb(uint32(len(funcBody)))...)
	codeSection = append(codeSection, funcBody...)
	b = append(b, section(sectionCode, codeSection)...)

	return b
}

func TestDecodeDrivesSinkAndLowers(t *testing.T) {
	m := wasm.NewModule(0)
	c := wazeroir.NewCompiler(m)

	err := Decode(buildAddModule(), c)
	require.NoError(t, err)

	require.Len(t, m.Types, 1)
	require.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.Types[0].Params)
	require.Len(t, m.Functions, 1)
	require.NotNil(t, m.Exports["add"])

	fn := m.FunctionAt(0)
	require.NotEmpty(t, fn.Body)
	require.Equal(t, byte(wazeroir.OpLocalGet), fn.Body[0])
}

func TestLEB128RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 127, 128, 300, 1 << 20} {
		got, n, err := readVaruint32(uleb(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(uleb(v)), n)
	}
	for _, v := range []int64{0, -1, 63, -64, 1000, -1000} {
		got, n, err := readVarint64(sleb(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
		require.Equal(t, len(sleb(v)), n)
	}
}
