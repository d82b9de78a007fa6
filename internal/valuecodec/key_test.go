package valuecodec

import "testing"

func TestSerializeKeyIntNarrowestWidth(t *testing.T) {
	tests := []struct {
		v    int32
		want int
	}{
		{1, 1},
		{245, 2},
		{127, 1},
		{128, 2},
		{32767, 2},
		{32768, 3},
	}
	for _, tt := range tests {
		got, err := SerializeKey(tt.v)
		if err != nil {
			t.Fatalf("SerializeKey(%d): %v", tt.v, err)
		}
		if len(got) != tt.want {
			t.Fatalf("SerializeKey(%d): got %d bytes, want %d", tt.v, len(got), tt.want)
		}
	}
}

func TestSerializeKeyHasNoTagByte(t *testing.T) {
	keyBytes, err := SerializeKey(int32(245))
	if err != nil {
		t.Fatal(err)
	}
	// A tagged encoding would need 3 bytes (1 tag + 2 payload); the untagged
	// key form must be exactly the 2-byte payload (spec.md §8 put(245, 6)).
	if len(keyBytes) != 2 {
		t.Fatalf("got %d bytes, want 2 (untagged short form)", len(keyBytes))
	}
}

func TestDeserializeKeyIntRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 245, -245, 32767, -32768, 1 << 20} {
		data, err := SerializeKey(v)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DeserializeKey(data)
		if err != nil {
			t.Fatal(err)
		}
		if got != v {
			t.Fatalf("DeserializeKey(SerializeKey(%d)) = %v", v, got)
		}
	}
}

func TestDeserializeKeyStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "a", "hello world", "12-character"} {
		data, err := SerializeKey(s)
		if err != nil {
			t.Fatal(err)
		}
		got, err := DeserializeKey(data)
		if err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Fatalf("DeserializeKey(SerializeKey(%q)) = %v", s, got)
		}
	}
}

func TestSerializeKeyRejectsUnsupportedType(t *testing.T) {
	if _, err := SerializeKey(BigDecimal{}); err == nil {
		t.Fatal("expected error for unsupported key type")
	}
}
