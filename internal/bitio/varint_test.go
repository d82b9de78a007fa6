package bitio

import (
	"bytes"
	"testing"
)

func TestPackUnpackIntRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    int32
	}{
		{"zero", 0},
		{"one", 1},
		{"127", 127},
		{"128", 128},
		{"245", 245},
		{"16384", 16384},
		{"max", 1<<31 - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := PackInt(nil, tt.v)
			if err != nil {
				t.Fatal(err)
			}
			got, err := UnpackInt(bytes.NewReader(buf))
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.v {
				t.Fatalf("got %d, want %d", got, tt.v)
			}
		})
	}
}

func TestPackIntRejectsNegative(t *testing.T) {
	if _, err := PackInt(nil, -1); err != ErrNegative {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
	if _, err := PackLong(nil, -1); err != ErrNegative {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}

func TestPackIntMinimalLength(t *testing.T) {
	// 245 must take exactly 2 bytes (7 bits per byte).
	buf, err := PackInt(nil, 245)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 2 {
		t.Fatalf("expected 2-byte encoding for 245, got %d bytes", len(buf))
	}

	buf, err = PackInt(nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(buf) != 1 {
		t.Fatalf("expected 1-byte encoding for 1, got %d bytes", len(buf))
	}
}

func TestUnpackIntDetectsMissingTerminator(t *testing.T) {
	// 5 continuation bytes with no terminator.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80}
	if _, err := UnpackInt(bytes.NewReader(buf)); err != ErrVarintTooLong {
		t.Fatalf("expected ErrVarintTooLong, got %v", err)
	}
}

func TestPackUnpackLongRoundTrip(t *testing.T) {
	values := []int64{0, 1, 245, 1 << 40, 1<<63 - 1}
	for _, v := range values {
		buf, err := PackLong(nil, v)
		if err != nil {
			t.Fatal(err)
		}
		got, err := UnpackLong(bytes.NewReader(buf))
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("got %d, want %d", got, v)
		}
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteInt(&buf, -12345); err != nil {
		t.Fatal(err)
	}
	if err := WriteLong(&buf, 1<<50); err != nil {
		t.Fatal(err)
	}

	gotInt, err := ReadInt(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if gotInt != -12345 {
		t.Fatalf("got %d, want -12345", gotInt)
	}

	gotLong, err := ReadLong(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if gotLong != 1<<50 {
		t.Fatalf("got %d, want %d", gotLong, int64(1<<50))
	}
}

func TestUTFRoundTrip(t *testing.T) {
	tests := []string{"", "foo", "PALDB", "héllo wörld", "日本語"}

	for _, s := range tests {
		var buf bytes.Buffer
		if err := WriteUTF(&buf, s); err != nil {
			t.Fatal(err)
		}
		got, err := ReadUTF(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Fatalf("got %q, want %q", got, s)
		}
	}
}

func TestMagicPrefixShape(t *testing.T) {
	// The file magic is "PALDB" preceded by its varint length (5), per spec.md §8 scenario 1.
	var buf bytes.Buffer
	if err := WriteUTF(&buf, "PALDB"); err != nil {
		t.Fatal(err)
	}
	got := buf.Bytes()
	if got[0] != 0x05 {
		t.Fatalf("expected leading length byte 0x05, got %#x", got[0])
	}
}
