package valuecodec

import (
	"bytes"
	"fmt"
	"math"
	"math/big"

	"github.com/paldbgo/paldb/internal/bitio"
)

func readValue(r *bytes.Reader, reg *Registry) (any, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("valuecodec: reading tag: %w", err)
	}
	tag := Tag(tagByte)

	switch tag {
	case TagNull:
		return nil, nil
	case TagBoolTrue:
		return true, nil
	case TagBoolFalse:
		return false, nil
	case TagByte:
		b, err := r.ReadByte()
		return int8(b), err
	case TagShort:
		v, err := readFixed16(r)
		return int16(v), err
	case TagChar:
		v, err := readFixed16(r)
		return Char(v), err
	case TagIntM1:
		return int32(-1), nil
	case TagInt0:
		return int32(0), nil
	case TagInt1:
		return int32(1), nil
	case TagInt1B, TagInt2B, TagInt3B, TagInt4B:
		n := int(tag-TagInt1B) + 1
		v, err := readIntBytes(r, n)
		return int32(v), err
	case TagLongM1:
		return int64(-1), nil
	case TagLong0:
		return int64(0), nil
	case TagLong1:
		return int64(1), nil
	case TagLong1B, TagLong2B, TagLong3B, TagLong4B, TagLong5B, TagLong6B, TagLong7B, TagLong8B:
		n := int(tag-TagLong1B) + 1
		v, err := readIntBytes(r, n)
		return v, err
	case TagFloat:
		v, err := readFixed32(r)
		return math.Float32frombits(v), err
	case TagDouble:
		v, err := readFixed64(r)
		return math.Float64frombits(v), err
	case TagString:
		return bitio.ReadUTF(r)
	case TagBigInteger:
		return readBigInt(r)
	case TagBigDecimal:
		return readBigDecimal(r)
	case TagClassName:
		s, err := bitio.ReadUTF(r)
		return ClassName(s), err
	case TagEnum:
		return readEnum(r)
	case TagArrayBool:
		return readBoolArray(r)
	case TagArrayByte:
		return readByteArray(r)
	case TagArrayShort:
		return readShortArray(r)
	case TagArrayChar:
		return readCharArray(r)
	case TagArrayInt:
		return readIntArray(r)
	case TagArrayLong:
		return readLongArray(r)
	case TagArrayFloat:
		return readFloatArray(r)
	case TagArrayDouble:
		return readDoubleArray(r)
	case TagArrayString:
		return readStringArray(r)
	case TagArrayObject:
		return readObjectArray(r, reg)
	case TagCustom:
		return readCustom(r, reg)
	default:
		return nil, fmt.Errorf("valuecodec: unknown tag %d", tag)
	}
}

func readFixed16(r *bytes.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := ioReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func readFixed32(r *bytes.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := ioReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

func readFixed64(r *bytes.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := ioReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

func readIntBytes(r *bytes.Reader, n int) (int64, error) {
	buf := make([]byte, n)
	if _, err := ioReadFull(r, buf); err != nil {
		return 0, err
	}
	// Sign-extend from the top bit of the first byte.
	var v int64
	if buf[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range buf {
		v = v<<8 | int64(b)&0xff
	}
	return v, nil
}

func ioReadFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		b, err := r.ReadByte()
		if err != nil {
			return n, fmt.Errorf("valuecodec: short read: %w", err)
		}
		buf[n] = b
		n++
	}
	return n, nil
}

func readBigInt(r *bytes.Reader) (*big.Int, error) {
	signByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	n, err := bitio.UnpackInt(r)
	if err != nil {
		return nil, err
	}
	abs := make([]byte, n)
	if _, err := ioReadFull(r, abs); err != nil {
		return nil, err
	}
	v := new(big.Int).SetBytes(abs)
	if int8(signByte) < 0 {
		v.Neg(v)
	}
	return v, nil
}

func readBigDecimal(r *bytes.Reader) (BigDecimal, error) {
	scaleBits, err := readFixed32(r)
	if err != nil {
		return BigDecimal{}, err
	}
	scale := int32(scaleBits)

	signByte, err := r.ReadByte()
	if err != nil {
		return BigDecimal{}, err
	}
	n, err := bitio.UnpackInt(r)
	if err != nil {
		return BigDecimal{}, err
	}
	abs := make([]byte, n)
	if _, err := ioReadFull(r, abs); err != nil {
		return BigDecimal{}, err
	}
	v := new(big.Int).SetBytes(abs)
	if int8(signByte) < 0 {
		v.Neg(v)
	}
	return BigDecimal{Unscaled: v, Scale: scale}, nil
}

func readEnum(r *bytes.Reader) (EnumRef, error) {
	typeName, err := bitio.ReadUTF(r)
	if err != nil {
		return EnumRef{}, err
	}
	ordinal, err := bitio.UnpackInt(r)
	if err != nil {
		return EnumRef{}, err
	}
	return EnumRef{Type: typeName, Ordinal: ordinal}, nil
}

func readCount(r *bytes.Reader) (int, error) {
	n, err := bitio.UnpackInt(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("valuecodec: negative array length %d", n)
	}
	return int(n), nil
}

func readBoolArray(r *bytes.Reader) ([]bool, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = b != 0
	}
	return out, nil
}

func readByteArray(r *bytes.Reader) ([]byte, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := ioReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readShortArray(r *bytes.Reader) ([]int16, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]int16, n)
	for i := range out {
		v, err := readFixed16(r)
		if err != nil {
			return nil, err
		}
		out[i] = int16(v)
	}
	return out, nil
}

func readCharArray(r *bytes.Reader) ([]Char, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]Char, n)
	for i := range out {
		v, err := readFixed16(r)
		if err != nil {
			return nil, err
		}
		out[i] = Char(v)
	}
	return out, nil
}

func readIntArray(r *bytes.Reader) ([]int32, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := readFixed32(r)
		if err != nil {
			return nil, err
		}
		out[i] = int32(v)
	}
	return out, nil
}

func readLongArray(r *bytes.Reader) ([]int64, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]int64, n)
	for i := range out {
		v, err := readFixed64(r)
		if err != nil {
			return nil, err
		}
		out[i] = int64(v)
	}
	return out, nil
}

func readFloatArray(r *bytes.Reader) ([]float32, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		v, err := readFixed32(r)
		if err != nil {
			return nil, err
		}
		out[i] = math.Float32frombits(v)
	}
	return out, nil
}

func readDoubleArray(r *bytes.Reader) ([]float64, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v, err := readFixed64(r)
		if err != nil {
			return nil, err
		}
		out[i] = math.Float64frombits(v)
	}
	return out, nil
}

func readStringArray(r *bytes.Reader) ([]string, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := bitio.ReadUTF(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func readObjectArray(r *bytes.Reader, reg *Registry) ([]any, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]any, n)
	for i := range out {
		v, err := readValue(r, reg)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readCustom(r *bytes.Reader, reg *Registry) (any, error) {
	if reg == nil {
		return nil, fmt.Errorf("valuecodec: encountered custom-serialized value with no registry configured")
	}
	index, err := bitio.UnpackInt(r)
	if err != nil {
		return nil, err
	}
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, n)
	if _, err := ioReadFull(r, payload); err != nil {
		return nil, err
	}
	ser, err := reg.ByIndex(int(index))
	if err != nil {
		return nil, err
	}
	return ser.Decode(payload)
}
