// Package wasmbin is the minimal binary decoder: it reads the subset of
// the WebAssembly binary format this engine's module IR and bytecode
// lowering pass need (types, function imports, function declarations,
// exports, the start section, and function bodies) and drives a
// wazeroir.ModuleSink with the resulting parse events. Table, memory,
// global, and data/element sections are skipped structurally (read past,
// not interpreted) since this core has no memory or table model (a stated
// Non-goal).
package wasmbin

import (
	"go.uber.org/multierr"

	"github.com/pkg/errors"

	"github.com/clover2123/walrus/internal/wasm"
	"github.com/clover2123/walrus/internal/wazeroir"
)

const (
	magic            = 0x6d736100 // "\0asm"
	sectionType      = 0x01
	sectionImport    = 0x02
	sectionFunction  = 0x03
	sectionTable     = 0x04
	sectionMemory    = 0x05
	sectionGlobal    = 0x06
	sectionExport    = 0x07
	sectionStart     = 0x08
	sectionElement   = 0x09
	sectionCode      = 0x0a
	sectionData      = 0x0b
)

const (
	externKindFunc   = 0x00
	externKindTable  = 0x01
	externKindMemory = 0x02
	externKindGlobal = 0x03
)

// Features gates optional instruction availability during decoding,
// mirroring the host-configurable RuntimeConfig feature flags in the root
// package: a module using a gated opcode while the corresponding feature is
// off fails to decode rather than silently lowering it.
type Features struct {
	// SignExtensionOps gates extend8_s/extend16_s/extend32_s (§4.1).
	SignExtensionOps bool
	// NonTrappingFloatToIntConversion gates the trunc_sat family (§4.1).
	NonTrappingFloatToIntConversion bool
	// MultiValue allows function types with more than one result.
	MultiValue bool
}

// DefaultFeatures enables every instruction this engine's lowering pass and
// interpreter support; it is what bare Decode uses.
var DefaultFeatures = Features{SignExtensionOps: true, NonTrappingFloatToIntConversion: true, MultiValue: true}

// Decode parses a binary Wasm module from b and drives sink with the
// resulting parse events, with DefaultFeatures. Non-fatal per-section
// problems are accumulated with go.uber.org/multierr rather than aborting
// decoding at the first one: each section stops at its own first problem,
// and the returned error holds one problem per failing section.
func Decode(b []byte, sink wazeroir.ModuleSink) error {
	return DecodeWithFeatures(b, sink, DefaultFeatures)
}

// DecodeWithFeatures is Decode with an explicit feature set.
func DecodeWithFeatures(b []byte, sink wazeroir.ModuleSink, features Features) error {
	d := &decoder{buf: b, sink: sink, features: features}
	return d.decodeModule()
}

type decoder struct {
	buf      []byte
	pos      int
	sink     wazeroir.ModuleSink
	features Features

	// functionTypeIndices holds, for each locally declared function in
	// declaration order, the type index read from the Function section;
	// the Code section consumes this in lockstep.
	functionTypeIndices []uint32
	importCount         uint32
}

func (d *decoder) decodeModule() error {
	if len(d.buf) < 8 {
		return errors.New("wasmbin: truncated module header")
	}
	if bo.Uint32(d.buf[0:4]) != magic {
		return errors.New("wasmbin: bad magic number")
	}
	version := bo.Uint32(d.buf[4:8])
	d.pos = 8
	d.sink.BeginModule(version)

	var errs error
	for d.pos < len(d.buf) {
		id := d.buf[d.pos]
		d.pos++
		size, n, err := readVaruint32(d.buf[d.pos:])
		if err != nil {
			return errors.Wrap(err, "wasmbin: reading section size")
		}
		d.pos += n
		sectionEnd := d.pos + int(size)
		if sectionEnd > len(d.buf) {
			return errors.New("wasmbin: section overruns module")
		}
		body := d.buf[d.pos:sectionEnd]

		switch id {
		case sectionType:
			errs = multierr.Append(errs, d.decodeTypeSection(body))
		case sectionImport:
			errs = multierr.Append(errs, d.decodeImportSection(body))
		case sectionFunction:
			errs = multierr.Append(errs, d.decodeFunctionSection(body))
		case sectionExport:
			errs = multierr.Append(errs, d.decodeExportSection(body))
		case sectionStart:
			errs = multierr.Append(errs, d.decodeStartSection(body))
		case sectionCode:
			errs = multierr.Append(errs, d.decodeCodeSection(body))
		case sectionTable, sectionMemory, sectionGlobal, sectionElement, sectionData:
			// Out of scope: structurally skipped.
		default:
			errs = multierr.Append(errs, errors.Errorf("wasmbin: unknown section id %d", id))
		}
		d.pos = sectionEnd
	}
	if errs != nil {
		return errs
	}
	d.sink.EndModule()
	return nil
}

func (d *decoder) valueType(b byte) (wasm.ValueType, error) {
	switch b {
	case 0x7f:
		return wasm.ValueTypeI32, nil
	case 0x7e:
		return wasm.ValueTypeI64, nil
	case 0x7d:
		return wasm.ValueTypeF32, nil
	case 0x7c:
		return wasm.ValueTypeF64, nil
	case 0x7b:
		return wasm.ValueTypeV128, nil
	case 0x70:
		return wasm.ValueTypeFuncRef, nil
	case 0x6f:
		return wasm.ValueTypeExternRef, nil
	default:
		return 0, errors.Errorf("wasmbin: unknown value type byte 0x%x", b)
	}
}

func (d *decoder) decodeTypeSection(body []byte) error {
	pos := 0
	count, n, err := readVaruint32(body[pos:])
	if err != nil {
		return err
	}
	pos += n
	for i := uint32(0); i < count; i++ {
		if body[pos] != 0x60 {
			return errors.New("wasmbin: function type must start with 0x60")
		}
		pos++
		params, np, err := d.valueTypeVec(body[pos:])
		if err != nil {
			return err
		}
		pos += np
		results, nr, err := d.valueTypeVec(body[pos:])
		if err != nil {
			return err
		}
		pos += nr
		if len(results) > 1 && !d.features.MultiValue {
			return errors.Errorf("wasmbin: type %d declares %d results but multi-value is disabled", i, len(results))
		}
		d.sink.Type(i, params, results)
	}
	return nil
}

func (d *decoder) valueTypeVec(body []byte) ([]wasm.ValueType, int, error) {
	count, n, err := readVaruint32(body)
	if err != nil {
		return nil, 0, err
	}
	pos := n
	out := make([]wasm.ValueType, count)
	for i := uint32(0); i < count; i++ {
		vt, err := d.valueType(body[pos])
		if err != nil {
			return nil, 0, err
		}
		out[i] = vt
		pos++
	}
	return out, pos, nil
}

func readName(body []byte) (string, int, error) {
	l, n, err := readVaruint32(body)
	if err != nil {
		return "", 0, err
	}
	pos := n
	if pos+int(l) > len(body) {
		return "", 0, errors.New("wasmbin: truncated name")
	}
	return string(body[pos : pos+int(l)]), pos + int(l), nil
}

func (d *decoder) decodeImportSection(body []byte) error {
	pos := 0
	count, n, err := readVaruint32(body[pos:])
	if err != nil {
		return err
	}
	pos += n
	index := uint32(0)
	for i := uint32(0); i < count; i++ {
		moduleName, nm, err := readName(body[pos:])
		if err != nil {
			return err
		}
		pos += nm
		field, nf, err := readName(body[pos:])
		if err != nil {
			return err
		}
		pos += nf
		kind := body[pos]
		pos++
		switch kind {
		case externKindFunc:
			typeIndex, nt, err := readVaruint32(body[pos:])
			if err != nil {
				return err
			}
			pos += nt
			d.sink.ImportFunc(index, moduleName, field, typeIndex)
			index++
		case externKindTable:
			pos += skipTableType(body[pos:])
		case externKindMemory:
			pos += skipLimits(body[pos:])
		case externKindGlobal:
			pos += 2 // valtype byte + mutability byte
		default:
			return errors.Errorf("wasmbin: unknown import kind %d", kind)
		}
	}
	d.importCount = index
	return nil
}

func skipTableType(body []byte) int {
	pos := 1 // element type byte
	pos += skipLimits(body[pos:])
	return pos
}

func skipLimits(body []byte) int {
	pos := 0
	flags := body[pos]
	pos++
	_, n, _ := readVaruint32(body[pos:])
	pos += n
	if flags&0x01 != 0 {
		_, n, _ := readVaruint32(body[pos:])
		pos += n
	}
	return pos
}

func (d *decoder) decodeFunctionSection(body []byte) error {
	pos := 0
	count, n, err := readVaruint32(body[pos:])
	if err != nil {
		return err
	}
	pos += n
	for i := uint32(0); i < count; i++ {
		typeIndex, nt, err := readVaruint32(body[pos:])
		if err != nil {
			return err
		}
		pos += nt
		d.functionTypeIndices = append(d.functionTypeIndices, typeIndex)
		d.sink.FunctionDecl(d.importCount+i, typeIndex)
	}
	return nil
}

func (d *decoder) decodeExportSection(body []byte) error {
	pos := 0
	count, n, err := readVaruint32(body[pos:])
	if err != nil {
		return err
	}
	pos += n
	for i := uint32(0); i < count; i++ {
		name, nn, err := readName(body[pos:])
		if err != nil {
			return err
		}
		pos += nn
		kindByte := body[pos]
		pos++
		index, ni, err := readVaruint32(body[pos:])
		if err != nil {
			return err
		}
		pos += ni
		d.sink.Export(name, wasm.ExternKind(kindByte), index)
	}
	return nil
}

func (d *decoder) decodeStartSection(body []byte) error {
	index, _, err := readVaruint32(body)
	if err != nil {
		return err
	}
	d.sink.StartFunction(index)
	return nil
}

func (d *decoder) decodeCodeSection(body []byte) error {
	pos := 0
	count, n, err := readVaruint32(body[pos:])
	if err != nil {
		return err
	}
	pos += n
	for i := uint32(0); i < count; i++ {
		bodySize, nb, err := readVaruint32(body[pos:])
		if err != nil {
			return err
		}
		pos += nb
		funcBody := body[pos : pos+int(bodySize)]
		pos += int(bodySize)

		funcIndex := d.importCount + i
		d.sink.BeginBody(funcIndex)
		if err := d.decodeFunctionBody(funcBody); err != nil {
			return errors.Wrapf(err, "wasmbin: function %d", funcIndex)
		}
		d.sink.EndBody(funcIndex)
	}
	return nil
}

func (d *decoder) decodeFunctionBody(body []byte) error {
	pos := 0
	localGroupCount, n, err := readVaruint32(body[pos:])
	if err != nil {
		return err
	}
	pos += n
	for i := uint32(0); i < localGroupCount; i++ {
		runLength, nr, err := readVaruint32(body[pos:])
		if err != nil {
			return err
		}
		pos += nr
		vt, err := d.valueType(body[pos])
		if err != nil {
			return err
		}
		pos++
		d.sink.LocalDecl(runLength, vt)
	}

	return d.decodeExpression(body[pos:])
}
