package valuecodec

import (
	"bytes"
	"fmt"
	"math"

	"github.com/paldbgo/paldb/internal/bitio"
)

// SerializeKey encodes key into the untagged wire form spec.md §4.4 mandates
// for the index slot: "no tag is written for the key". It reuses the same
// narrowest-width integer encoders as the value codec (appendIntBytes,
// intWidth/longWidth) and the same UTF string framing, just without the
// leading Tag byte — spec.md §8's `put(245, 6)` worked example requires key
// 245 to occupy exactly 2 bytes (its 2-byte short form), not the 3 bytes a
// tagged encoding would need.
func SerializeKey(key any) ([]byte, error) {
	switch v := key.(type) {
	case string:
		var out bytes.Buffer
		if err := bitio.WriteUTF(&out, v); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	case []byte:
		return append([]byte(nil), v...), nil
	case bool:
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case int8:
		return []byte{byte(v)}, nil
	case byte:
		return []byte{v}, nil
	case int16:
		return appendIntBytes(nil, int64(v), 2), nil
	case Char:
		return appendIntBytes(nil, int64(v), 2), nil
	case int32:
		return appendIntBytes(nil, int64(v), intWidth(v)), nil
	case int:
		return appendIntBytes(nil, int64(int32(v)), intWidth(int32(v))), nil
	case int64:
		return appendIntBytes(nil, v, longWidth(v)), nil
	case float32:
		return appendIntBytes(nil, int64(math.Float32bits(v)), 4), nil
	case float64:
		return appendIntBytes(nil, int64(math.Float64bits(v)), 8), nil
	}
	return nil, fmt.Errorf("valuecodec: unsupported key type %T", key)
}

// DeserializeKey reverses SerializeKey for the Reader's iteration path.
// Because the wire carries no tag, the original Go type cannot always be
// recovered exactly: this is the Open Question spec.md leaves unresolved
// by omitting a deserialize_key operation altogether (only deserialize(V)
// is specified, and "Serialized Key" is documented as an opaque byte
// sequence, spec.md §3). This implementation resolves it with a best-effort
// heuristic ordered by how the codec actually produces bytes: first try the
// self-delimiting UTF string framing (valid only if it consumes every
// byte), then fall back to interpreting the bytes as a big-endian two's
// complement integer (int32 up to 4 bytes, int64 up to 8), and finally
// return raw bytes for anything wider. Callers that need exact fidelity
// should keep using GetRaw/PutRaw with their own length-prefixed keys.
func DeserializeKey(data []byte) (any, error) {
	if s, ok := tryDecodeKeyString(data); ok {
		return s, nil
	}
	switch {
	case len(data) == 0:
		return []byte{}, nil
	case len(data) <= 4:
		return int32(decodeKeyInt(data)), nil
	case len(data) <= 8:
		return decodeKeyInt(data), nil
	default:
		return append([]byte(nil), data...), nil
	}
}

func tryDecodeKeyString(data []byte) (string, bool) {
	r := bytes.NewReader(data)
	s, err := bitio.ReadUTF(r)
	if err != nil || r.Len() != 0 {
		return "", false
	}
	// Only accept bytes WriteUTF would have produced: a non-minimal varint
	// (e.g. 0x80 0x00) decodes but is never what SerializeKey emits for a
	// string.
	var canonical bytes.Buffer
	if err := bitio.WriteUTF(&canonical, s); err != nil || !bytes.Equal(canonical.Bytes(), data) {
		return "", false
	}
	return s, true
}

// decodeKeyInt sign-extends data (1-8 bytes, big-endian two's complement)
// into an int64.
func decodeKeyInt(data []byte) int64 {
	var v int64
	if len(data) > 0 && data[0]&0x80 != 0 {
		v = -1
	}
	for _, b := range data {
		v = (v << 8) | int64(b)
	}
	return v
}
