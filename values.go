package walrus

import (
	"encoding/binary"
	"reflect"

	"github.com/pkg/errors"

	"github.com/clover2123/walrus/api"
	"github.com/clover2123/walrus/internal/wasm"
)

var bo = binary.LittleEndian

// goTypeOf returns the Go type a host function parameter or result of kind v
// is marshaled as at the ModuleBuilder/ExportedFunction boundary.
func goTypeOf(v wasm.ValueType) reflect.Type {
	switch v {
	case wasm.ValueTypeI32:
		return reflect.TypeOf(int32(0))
	case wasm.ValueTypeI64:
		return reflect.TypeOf(int64(0))
	case wasm.ValueTypeF32:
		return reflect.TypeOf(float32(0))
	case wasm.ValueTypeF64:
		return reflect.TypeOf(float64(0))
	default:
		return nil
	}
}

// valueTypeOf is the reverse of goTypeOf, used by ModuleBuilder.ExportFunction
// to derive a FunctionType from a Go function's reflected signature.
func valueTypeOf(t reflect.Type) (wasm.ValueType, error) {
	switch t.Kind() {
	case reflect.Int32:
		return wasm.ValueTypeI32, nil
	case reflect.Int64:
		return wasm.ValueTypeI64, nil
	case reflect.Float32:
		return wasm.ValueTypeF32, nil
	case reflect.Float64:
		return wasm.ValueTypeF64, nil
	default:
		return 0, errors.Errorf("walrus: unsupported host function type %s (want int32, int64, float32 or float64)", t)
	}
}

// encodeValues lays args out on a fresh byte slice per kinds, in order, each
// at its natural slot size (§3), for use as an activation's parameter area.
func encodeValues(kinds []wasm.ValueType, args []interface{}) ([]byte, error) {
	if len(args) != len(kinds) {
		return nil, errors.Errorf("walrus: expected %d argument(s), got %d", len(kinds), len(args))
	}
	var size uint32
	for _, k := range kinds {
		size += api.SlotSize(k)
	}
	out := make([]byte, size)
	var off uint32
	for i, k := range kinds {
		if err := encodeValueAt(out, off, k, args[i]); err != nil {
			return nil, errors.Wrapf(err, "walrus: argument %d", i)
		}
		off += api.SlotSize(k)
	}
	return out, nil
}

func encodeValueAt(buf []byte, off uint32, k wasm.ValueType, v interface{}) error {
	switch k {
	case wasm.ValueTypeI32:
		x, ok := v.(int32)
		if !ok {
			return errors.Errorf("expected int32, got %T", v)
		}
		bo.PutUint32(buf[off:], uint32(x))
	case wasm.ValueTypeI64:
		x, ok := v.(int64)
		if !ok {
			return errors.Errorf("expected int64, got %T", v)
		}
		bo.PutUint64(buf[off:], uint64(x))
	case wasm.ValueTypeF32:
		x, ok := v.(float32)
		if !ok {
			return errors.Errorf("expected float32, got %T", v)
		}
		bo.PutUint32(buf[off:], api.EncodeF32(x))
	case wasm.ValueTypeF64:
		x, ok := v.(float64)
		if !ok {
			return errors.Errorf("expected float64, got %T", v)
		}
		bo.PutUint64(buf[off:], api.EncodeF64(x))
	default:
		return errors.Errorf("walrus: value kind %s is not host-callable", k)
	}
	return nil
}

// decodeValues is the reverse of encodeValues, reading results laid out in
// declaration order off of buf.
func decodeValues(kinds []wasm.ValueType, buf []byte) []interface{} {
	out := make([]interface{}, len(kinds))
	var off uint32
	for i, k := range kinds {
		out[i] = decodeValueAt(buf, off, k)
		off += api.SlotSize(k)
	}
	return out
}

func decodeValueAt(buf []byte, off uint32, k wasm.ValueType) interface{} {
	switch k {
	case wasm.ValueTypeI32:
		return int32(bo.Uint32(buf[off:]))
	case wasm.ValueTypeI64:
		return int64(bo.Uint64(buf[off:]))
	case wasm.ValueTypeF32:
		return api.DecodeF32(bo.Uint32(buf[off:]))
	case wasm.ValueTypeF64:
		return api.DecodeF64(bo.Uint64(buf[off:]))
	default:
		return nil
	}
}
