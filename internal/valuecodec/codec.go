// Package valuecodec implements spec.md §4.4's "pluggable value/key codec
// layer": two sibling encoders sharing the same narrowest-width integer and
// UTF string primitives. SerializeValue/Deserialize produce the typed,
// self-describing value format — a leading tag byte selects the decode path
// for primitives, strings, big integers/decimals, class and enum
// references, typed and nested arrays, and user-registered custom types.
// SerializeKey/DeserializeKey (key.go) produce the untagged key format:
// spec.md §4.4 is explicit that "no tag is written for the key (the key is
// stored raw in the index slot for collision checks)", so index probing
// compares SerializeKey's output byte-for-byte without ever decoding it.
package valuecodec

import (
	"bytes"
	"fmt"
	"math"
	"math/big"

	"github.com/paldbgo/paldb/internal/bitio"
)

// SerializeValue encodes v into PalDB's self-describing tagged wire format.
// reg may be nil if no custom serializers are registered.
func SerializeValue(v any, reg *Registry) ([]byte, error) {
	var buf []byte
	buf, err := appendValue(buf, v, reg)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Deserialize decodes a value previously produced by SerializeValue.
func Deserialize(data []byte, reg *Registry) (any, error) {
	r := bytes.NewReader(data)
	return readValue(r, reg)
}

func appendValue(buf []byte, v any, reg *Registry) ([]byte, error) {
	if v == nil {
		return append(buf, byte(TagNull)), nil
	}

	switch val := v.(type) {
	case bool:
		if val {
			return append(buf, byte(TagBoolTrue)), nil
		}
		return append(buf, byte(TagBoolFalse)), nil
	case int8:
		return append(buf, byte(TagByte), byte(val)), nil
	case byte:
		return append(buf, byte(TagByte), val), nil
	case int16:
		return appendFixed16(buf, TagShort, uint16(val)), nil
	case Char:
		return appendFixed16(buf, TagChar, uint16(val)), nil
	case int32:
		return appendInt(buf, val), nil
	case int:
		return appendInt(buf, int32(val)), nil
	case int64:
		return appendLong(buf, val), nil
	case float32:
		return appendFixed32(buf, TagFloat, math.Float32bits(val)), nil
	case float64:
		return appendFixed64(buf, TagDouble, math.Float64bits(val)), nil
	case string:
		return appendString(buf, val)
	case *big.Int:
		return appendBigInt(buf, TagBigInteger, val)
	case BigDecimal:
		return appendBigDecimal(buf, val)
	case ClassName:
		return appendClassName(buf, val)
	case EnumRef:
		return appendEnum(buf, val)
	case []bool:
		return appendBoolArray(buf, val), nil
	case []byte:
		return appendByteArray(buf, val), nil
	case []int16:
		return appendShortArray(buf, val), nil
	case []Char:
		return appendCharArray(buf, val), nil
	case []int32:
		return appendIntArray(buf, val), nil
	case []int64:
		return appendLongArray(buf, val), nil
	case []float32:
		return appendFloatArray(buf, val), nil
	case []float64:
		return appendDoubleArray(buf, val), nil
	case []string:
		return appendStringArray(buf, val)
	case []any:
		if demoted, ok := demoteArray(val); ok {
			return appendValue(buf, demoted, reg)
		}
		return appendObjectArray(buf, val, reg)
	}

	if reg != nil {
		if idx, ser, ok := reg.Lookup(v); ok {
			return appendCustom(buf, idx, ser, v)
		}
	}

	return nil, fmt.Errorf("valuecodec: unsupported type %T", v)
}

func appendFixed16(buf []byte, tag Tag, v uint16) []byte {
	return append(buf, byte(tag), byte(v>>8), byte(v))
}

func appendFixed32(buf []byte, tag Tag, v uint32) []byte {
	return append(buf, byte(tag), byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendFixed64(buf []byte, tag Tag, v uint64) []byte {
	buf = append(buf, byte(tag))
	for shift := 56; shift >= 0; shift -= 8 {
		buf = append(buf, byte(v>>uint(shift)))
	}
	return buf
}

// appendInt picks the narrowest representation for v: short-form tags for
// -1/0/1 (no payload), then the smallest of 1/2/3/4 bytes that losslessly
// holds it.
func appendInt(buf []byte, v int32) []byte {
	switch v {
	case -1:
		return append(buf, byte(TagIntM1))
	case 0:
		return append(buf, byte(TagInt0))
	case 1:
		return append(buf, byte(TagInt1))
	}

	n := intWidth(v)
	tag := TagInt1B + Tag(n-1)
	buf = append(buf, byte(tag))
	return appendIntBytes(buf, int64(v), n)
}

func intWidth(v int32) int {
	for n := 1; n <= 4; n++ {
		lo, hi := signedRange(n)
		if int64(v) >= lo && int64(v) <= hi {
			return n
		}
	}
	return 4
}

func appendLong(buf []byte, v int64) []byte {
	switch v {
	case -1:
		return append(buf, byte(TagLongM1))
	case 0:
		return append(buf, byte(TagLong0))
	case 1:
		return append(buf, byte(TagLong1))
	}

	n := longWidth(v)
	tag := TagLong1B + Tag(n-1)
	buf = append(buf, byte(tag))
	return appendIntBytes(buf, v, n)
}

func longWidth(v int64) int {
	for n := 1; n <= 8; n++ {
		if n == 8 {
			return 8
		}
		lo, hi := signedRange(n)
		if v >= lo && v <= hi {
			return n
		}
	}
	return 8
}

func signedRange(n int) (lo, hi int64) {
	bits := uint(n * 8)
	if bits >= 64 {
		return math.MinInt64, math.MaxInt64
	}
	hi = int64(1)<<(bits-1) - 1
	lo = -(int64(1) << (bits - 1))
	return lo, hi
}

func appendIntBytes(buf []byte, v int64, n int) []byte {
	for shift := (n - 1) * 8; shift >= 0; shift -= 8 {
		buf = append(buf, byte(v>>uint(shift)))
	}
	return buf
}

func appendString(buf []byte, s string) ([]byte, error) {
	buf = append(buf, byte(TagString))
	var out bytes.Buffer
	if err := bitio.WriteUTF(&out, s); err != nil {
		return nil, err
	}
	return append(buf, out.Bytes()...), nil
}

func appendBigInt(buf []byte, tag Tag, v *big.Int) ([]byte, error) {
	buf = append(buf, byte(tag))
	sign := int8(v.Sign())
	buf = append(buf, byte(sign))
	abs := v.Bytes()
	lenBuf, err := bitio.PackInt(nil, int32(len(abs)))
	if err != nil {
		return nil, err
	}
	buf = append(buf, lenBuf...)
	return append(buf, abs...), nil
}

func appendBigDecimal(buf []byte, d BigDecimal) ([]byte, error) {
	buf = append(buf, byte(TagBigDecimal))
	buf = appendScale(buf, d.Scale)
	unscaled := d.Unscaled
	if unscaled == nil {
		unscaled = big.NewInt(0)
	}
	sign := int8(unscaled.Sign())
	buf = append(buf, byte(sign))
	abs := unscaled.Bytes()
	lenBuf, err := bitio.PackInt(nil, int32(len(abs)))
	if err != nil {
		return nil, err
	}
	buf = append(buf, lenBuf...)
	return append(buf, abs...), nil
}

func appendScale(buf []byte, scale int32) []byte {
	return append(buf, byte(scale>>24), byte(scale>>16), byte(scale>>8), byte(scale))
}

func appendClassName(buf []byte, c ClassName) ([]byte, error) {
	buf = append(buf, byte(TagClassName))
	var out bytes.Buffer
	if err := bitio.WriteUTF(&out, string(c)); err != nil {
		return nil, err
	}
	return append(buf, out.Bytes()...), nil
}

func appendEnum(buf []byte, e EnumRef) ([]byte, error) {
	buf = append(buf, byte(TagEnum))
	var out bytes.Buffer
	if err := bitio.WriteUTF(&out, e.Type); err != nil {
		return nil, err
	}
	buf = append(buf, out.Bytes()...)
	ordBuf, err := bitio.PackInt(nil, e.Ordinal)
	if err != nil {
		return nil, err
	}
	return append(buf, ordBuf...), nil
}

func appendCount(buf []byte, n int) ([]byte, error) {
	return bitio.PackInt(buf, int32(n))
}

func appendBoolArray(buf []byte, v []bool) []byte {
	buf = append(buf, byte(TagArrayBool))
	buf, _ = appendCount(buf, len(v))
	for _, b := range v {
		if b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}
	return buf
}

func appendByteArray(buf []byte, v []byte) []byte {
	buf = append(buf, byte(TagArrayByte))
	buf, _ = appendCount(buf, len(v))
	return append(buf, v...)
}

func appendShortArray(buf []byte, v []int16) []byte {
	buf = append(buf, byte(TagArrayShort))
	buf, _ = appendCount(buf, len(v))
	for _, s := range v {
		buf = append(buf, byte(uint16(s)>>8), byte(s))
	}
	return buf
}

func appendCharArray(buf []byte, v []Char) []byte {
	buf = append(buf, byte(TagArrayChar))
	buf, _ = appendCount(buf, len(v))
	for _, c := range v {
		buf = append(buf, byte(c>>8), byte(c))
	}
	return buf
}

func appendIntArray(buf []byte, v []int32) []byte {
	buf = append(buf, byte(TagArrayInt))
	buf, _ = appendCount(buf, len(v))
	for _, i := range v {
		buf = append(buf, byte(uint32(i)>>24), byte(uint32(i)>>16), byte(uint32(i)>>8), byte(i))
	}
	return buf
}

func appendLongArray(buf []byte, v []int64) []byte {
	buf = append(buf, byte(TagArrayLong))
	buf, _ = appendCount(buf, len(v))
	for _, l := range v {
		for shift := 56; shift >= 0; shift -= 8 {
			buf = append(buf, byte(uint64(l)>>uint(shift)))
		}
	}
	return buf
}

func appendFloatArray(buf []byte, v []float32) []byte {
	buf = append(buf, byte(TagArrayFloat))
	buf, _ = appendCount(buf, len(v))
	for _, f := range v {
		bits := math.Float32bits(f)
		buf = append(buf, byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits))
	}
	return buf
}

func appendDoubleArray(buf []byte, v []float64) []byte {
	buf = append(buf, byte(TagArrayDouble))
	buf, _ = appendCount(buf, len(v))
	for _, d := range v {
		bits := math.Float64bits(d)
		for shift := 56; shift >= 0; shift -= 8 {
			buf = append(buf, byte(bits>>uint(shift)))
		}
	}
	return buf
}

func appendStringArray(buf []byte, v []string) ([]byte, error) {
	buf = append(buf, byte(TagArrayString))
	buf, _ = appendCount(buf, len(v))
	var out bytes.Buffer
	for _, s := range v {
		if err := bitio.WriteUTF(&out, s); err != nil {
			return nil, err
		}
	}
	return append(buf, out.Bytes()...), nil
}

// appendObjectArray encodes a heterogeneous array where each element is
// fully self-describing (its own tag). Nested arrays are supported because
// an element that is itself a slice recurses through appendValue, forming
// a tree exactly as deep as the caller's data.
func appendObjectArray(buf []byte, v []any, reg *Registry) ([]byte, error) {
	buf = append(buf, byte(TagArrayObject))
	buf, _ = appendCount(buf, len(v))
	var err error
	for _, elem := range v {
		buf, err = appendValue(buf, elem, reg)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// demoteArray implements spec.md §4.4: "arrays of boxed integers are
// demoted to their primitive counterparts when no element is null; when
// null elements exist they are replaced by the type's zero value." A
// heterogeneous array (mixed concrete types once nils are set aside) is
// left alone and falls through to the Object[] encoding.
func demoteArray(v []any) (any, bool) {
	if len(v) == 0 {
		return nil, false
	}

	var kind string
	for _, elem := range v {
		if elem == nil {
			continue
		}
		var observed string
		switch elem.(type) {
		case bool:
			observed = "bool"
		case int32, int:
			observed = "int32"
		case int64:
			observed = "int64"
		case float32:
			observed = "float32"
		case float64:
			observed = "float64"
		case string:
			observed = "string"
		default:
			return nil, false
		}
		if kind == "" {
			kind = observed
		} else if kind != observed {
			return nil, false
		}
	}
	if kind == "" {
		// all-nil array: nothing to demote to, fall through to Object[].
		return nil, false
	}

	switch kind {
	case "bool":
		out := make([]bool, len(v))
		for i, elem := range v {
			if elem != nil {
				out[i] = elem.(bool)
			}
		}
		return out, true
	case "int32":
		out := make([]int32, len(v))
		for i, elem := range v {
			if elem == nil {
				continue
			}
			if n, ok := elem.(int); ok {
				out[i] = int32(n)
			} else {
				out[i] = elem.(int32)
			}
		}
		return out, true
	case "int64":
		out := make([]int64, len(v))
		for i, elem := range v {
			if elem != nil {
				out[i] = elem.(int64)
			}
		}
		return out, true
	case "float32":
		out := make([]float32, len(v))
		for i, elem := range v {
			if elem != nil {
				out[i] = elem.(float32)
			}
		}
		return out, true
	case "float64":
		out := make([]float64, len(v))
		for i, elem := range v {
			if elem != nil {
				out[i] = elem.(float64)
			}
		}
		return out, true
	case "string":
		out := make([]string, len(v))
		for i, elem := range v {
			if elem != nil {
				out[i] = elem.(string)
			}
		}
		return out, true
	}
	return nil, false
}

func appendCustom(buf []byte, index int, ser CustomSerializer, v any) ([]byte, error) {
	payload, err := ser.Encode(v)
	if err != nil {
		return nil, err
	}
	buf = append(buf, byte(TagCustom))
	buf, err = bitio.PackInt(buf, int32(index))
	if err != nil {
		return nil, err
	}
	buf, err = appendCount(buf, len(payload))
	if err != nil {
		return nil, err
	}
	return append(buf, payload...), nil
}
