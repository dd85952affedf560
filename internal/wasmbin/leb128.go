package wasmbin

import "github.com/pkg/errors"

// readVaruint32 decodes an unsigned LEB128-encoded uint32 starting at b[0],
// returning the value and the number of bytes consumed.
func readVaruint32(b []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < len(b); i++ {
		byt := b[i]
		result |= uint32(byt&0x7f) << shift
		if byt&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, 0, errors.New("wasmbin: varuint32 too long")
		}
	}
	return 0, 0, errors.New("wasmbin: truncated varuint32")
}

// readVaruint64 is the uint64 equivalent of readVaruint32.
func readVaruint64(b []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(b); i++ {
		byt := b[i]
		result |= uint64(byt&0x7f) << shift
		if byt&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 70 {
			return 0, 0, errors.New("wasmbin: varuint64 too long")
		}
	}
	return 0, 0, errors.New("wasmbin: truncated varuint64")
}

// readVarint32 decodes a signed LEB128-encoded int32.
func readVarint32(b []byte) (int32, int, error) {
	var result int64
	var shift uint
	var i int
	for ; i < len(b); i++ {
		byt := b[i]
		result |= int64(byt&0x7f) << shift
		shift += 7
		if byt&0x80 == 0 {
			if shift < 32 && byt&0x40 != 0 {
				result |= -1 << shift
			}
			return int32(result), i + 1, nil
		}
		if shift >= 35 {
			return 0, 0, errors.New("wasmbin: varint32 too long")
		}
	}
	return 0, 0, errors.New("wasmbin: truncated varint32")
}

// readVarint64 is the int64 equivalent of readVarint32.
func readVarint64(b []byte) (int64, int, error) {
	var result int64
	var shift uint
	var i int
	for ; i < len(b); i++ {
		byt := b[i]
		result |= int64(byt&0x7f) << shift
		shift += 7
		if byt&0x80 == 0 {
			if shift < 64 && byt&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
		if shift >= 70 {
			return 0, 0, errors.New("wasmbin: varint64 too long")
		}
	}
	return 0, 0, errors.New("wasmbin: truncated varint64")
}
