// Package bitio provides the little/big-endian fixed-width codecs and the
// varint and UTF-style string wire formats shared by the value codec, the
// index builder and the reader's metadata parser.
package bitio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrNegative is returned by PackInt/PackLong when asked to encode a
// negative value; the wire format has no sign bit.
var ErrNegative = errors.New("bitio: varint encoding requires a non-negative value")

// ErrVarintTooLong is returned by UnpackInt/UnpackLong when no terminating
// (high-bit-clear) byte is found within the maximum byte budget for the
// target width, signalling a corrupt stream rather than a short read.
var ErrVarintTooLong = errors.New("bitio: varint has no terminating byte")

const (
	maxIntVarintBytes  = 5
	maxLongVarintBytes = 10
)

// PackInt appends v to out using 7-bits-per-byte varint encoding, 1 to 5
// bytes for a 32-bit non-negative value. The continuation bit (0x80) is set
// on every byte but the last.
func PackInt(out []byte, v int32) ([]byte, error) {
	if v < 0 {
		return out, ErrNegative
	}
	return appendUvarint(out, uint64(v)), nil
}

// PackLong appends v to out using the same scheme, 1 to 10 bytes for a
// 64-bit non-negative value.
func PackLong(out []byte, v int64) ([]byte, error) {
	if v < 0 {
		return out, ErrNegative
	}
	return appendUvarint(out, uint64(v)), nil
}

func appendUvarint(out []byte, v uint64) []byte {
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

// UnpackInt reads a varint-encoded 32-bit value from r.
func UnpackInt(r io.ByteReader) (int32, error) {
	v, err := unpackUvarint(r, maxIntVarintBytes)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// UnpackLong reads a varint-encoded 64-bit value from r.
func UnpackLong(r io.ByteReader) (int64, error) {
	v, err := unpackUvarint(r, maxLongVarintBytes)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func unpackUvarint(r io.ByteReader, maxBytes int) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, ErrVarintTooLong
}

// WriteInt writes v as a fixed-width big-endian 32-bit integer.
func WriteInt(w io.Writer, v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadInt reads a fixed-width big-endian 32-bit integer.
func ReadInt(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// WriteLong writes v as a fixed-width big-endian 64-bit integer.
func WriteLong(w io.Writer, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

// ReadLong reads a fixed-width big-endian 64-bit integer.
func ReadLong(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// WriteUTF writes s as a varint-encoded length followed by one varint per
// code unit (rune). This is not modified UTF-8: every code unit, ASCII or
// not, costs at least one byte and the wire is self-delimiting by code-unit
// count rather than by byte count.
func WriteUTF(w io.Writer, s string) error {
	runes := []rune(s)
	buf, err := PackInt(nil, int32(len(runes)))
	if err != nil {
		return err
	}
	for _, r := range runes {
		buf, err = PackInt(buf, r)
		if err != nil {
			return err
		}
	}
	_, err = w.Write(buf)
	return err
}

// ReadUTF reads a string encoded by WriteUTF.
func ReadUTF(r io.ByteReader) (string, error) {
	n, err := UnpackInt(r)
	if err != nil {
		return "", fmt.Errorf("bitio: reading utf length: %w", err)
	}
	if n < 0 {
		return "", fmt.Errorf("bitio: negative utf length %d", n)
	}
	runes := make([]rune, n)
	for i := range runes {
		v, err := UnpackInt(r)
		if err != nil {
			return "", fmt.Errorf("bitio: reading utf code unit %d: %w", i, err)
		}
		runes[i] = v
	}
	return string(runes), nil
}
