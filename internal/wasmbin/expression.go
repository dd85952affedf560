package wasmbin

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/clover2123/walrus/internal/wasm"
)

var bo = binary.LittleEndian

// blockType decodes a structured-instruction block type immediate: 0x40
// means void, otherwise it is a single value type, per the binary format's
// "simple" block type encoding (multi-value block types are a stated
// Non-goal).
func (d *decoder) blockType(body []byte) (*wasm.ValueType, int, error) {
	if body[0] == 0x40 {
		return nil, 1, nil
	}
	vt, err := d.valueType(body[0])
	if err != nil {
		return nil, 0, err
	}
	return &vt, 1, nil
}

// decodeExpression decodes one function body's instruction stream (the
// bytes between its local declarations and its terminating 0x0b), driving
// d.sink with Br/BrIf depths expressed the same way the binary format
// expresses them: relative to the innermost currently open structured
// instruction.
func (d *decoder) decodeExpression(body []byte) error {
	pos := 0
	// open records, for each structured instruction still open, whether it
	// is a bare block, whose matching end must not reach the sink either.
	var open []bool
	for pos < len(body) {
		op := body[pos]
		pos++
		switch op {
		case 0x02: // block -- not separately modeled; treated as a
			// label-less sequence since this core never targets a plain
			// block with Br/BrIf except through if/loop (a stated
			// Non-goal simplification: unreachable for modules this
			// engine's lowering pass fully supports).
			_, n, err := d.blockType(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			open = append(open, true)
		case 0x03: // loop
			bt, n, err := d.blockType(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			open = append(open, false)
			d.sink.Loop(bt)
		case 0x04: // if
			bt, n, err := d.blockType(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			open = append(open, false)
			d.sink.If(bt)
		case 0x05: // else
			d.sink.Else()
		case 0x0b: // end
			if k := len(open); k > 0 {
				bare := open[k-1]
				open = open[:k-1]
				if bare {
					break
				}
			}
			d.sink.End()
			if pos == len(body) {
				return nil
			}
		case 0x0c: // br
			depth, n, err := readVaruint32(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.Br(depth)
		case 0x0d: // br_if
			depth, n, err := readVaruint32(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.BrIf(depth)
		case 0x10: // call
			index, n, err := readVaruint32(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.Call(index)
		case 0x1a: // drop
			d.sink.Drop()
		case 0x20: // local.get
			index, n, err := readVaruint32(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.LocalGet(index)
		case 0x21: // local.set
			index, n, err := readVaruint32(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.LocalSet(index)
		case 0x41: // i32.const
			v, n, err := readVarint32(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.I32Const(v)
		case 0x42: // i64.const
			v, n, err := readVarint64(body[pos:])
			if err != nil {
				return err
			}
			pos += n
			d.sink.I64Const(v)
		case 0x43: // f32.const
			d.sink.F32Const(bo.Uint32(body[pos:]))
			pos += 4
		case 0x44: // f64.const
			d.sink.F64Const(bo.Uint64(body[pos:]))
			pos += 8
		default:
			if binOp, ok := binaryOpcodes[op]; ok {
				d.sink.Binary(binOp)
				continue
			}
			if unOp, ok := unaryOpcodes[op]; ok {
				if isSignExtendOpcode(op) && !d.features.SignExtensionOps {
					return errors.Errorf("wasmbin: opcode 0x%x requires sign-extension-ops, which is disabled", op)
				}
				d.sink.Unary(unOp)
				continue
			}
			if op == 0xfc {
				// The trunc_sat prefix opcode (multi-byte encoding).
				if !d.features.NonTrappingFloatToIntConversion {
					return errors.New("wasmbin: trunc_sat opcode requires nontrapping-float-to-int-conversion, which is disabled")
				}
				sub, n, err := readVaruint32(body[pos:])
				if err != nil {
					return err
				}
				pos += n
				unOp, ok := truncSatOpcodes[sub]
				if !ok {
					return errors.Errorf("wasmbin: unknown 0xfc sub-opcode %d", sub)
				}
				d.sink.Unary(unOp)
				continue
			}
			return errors.Errorf("wasmbin: unknown opcode 0x%x", op)
		}
	}
	return errors.New("wasmbin: function body missing terminating end")
}
