package valuecodec

import (
	"math/big"
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	data, err := SerializeValue(v, nil)
	if err != nil {
		t.Fatalf("serialize %#v: %v", v, err)
	}
	got, err := Deserialize(data, nil)
	if err != nil {
		t.Fatalf("deserialize %#v: %v", v, err)
	}
	return got
}

func TestRoundTripPrimitives(t *testing.T) {
	tests := []any{
		nil,
		true,
		false,
		int8(-5),
		int16(-300),
		Char(65),
		int32(-1),
		int32(0),
		int32(1),
		int32(245),
		int32(-70000),
		int64(-1),
		int64(0),
		int64(1),
		int64(1 << 40),
		float32(3.25),
		float64(-2.5),
		"",
		"foo",
		"héllo",
	}

	for _, tt := range tests {
		got := roundTrip(t, tt)
		if !reflect.DeepEqual(got, tt) {
			t.Fatalf("got %#v (%T), want %#v (%T)", got, got, tt, tt)
		}
	}
}

func TestIntNarrowestWidth(t *testing.T) {
	tests := []struct {
		v            int32
		wantPayload0 Tag // tag of first byte
	}{
		{0, TagInt0},
		{1, TagInt1},
		{-1, TagIntM1},
		{245, TagInt2B},
		{127, TagInt1B},
		{128, TagInt2B},
	}
	for _, tt := range tests {
		data, err := SerializeValue(tt.v, nil)
		if err != nil {
			t.Fatal(err)
		}
		if Tag(data[0]) != tt.wantPayload0 {
			t.Fatalf("v=%d: got tag %d, want %d", tt.v, data[0], tt.wantPayload0)
		}
	}
}

func TestRoundTripBigInt(t *testing.T) {
	vals := []*big.Int{
		big.NewInt(0),
		big.NewInt(-12345),
		new(big.Int).SetBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}),
	}
	for _, v := range vals {
		got := roundTrip(t, v).(*big.Int)
		if got.Cmp(v) != 0 {
			t.Fatalf("got %v, want %v", got, v)
		}
	}
}

func TestRoundTripBigDecimal(t *testing.T) {
	d := BigDecimal{Unscaled: big.NewInt(31415), Scale: 4}
	got := roundTrip(t, d).(BigDecimal)
	if got.Scale != d.Scale || got.Unscaled.Cmp(d.Unscaled) != 0 {
		t.Fatalf("got %+v, want %+v", got, d)
	}
}

func TestRoundTripClassNameAndEnum(t *testing.T) {
	cn := ClassName("com.example.Widget")
	if got := roundTrip(t, cn); got != cn {
		t.Fatalf("got %v, want %v", got, cn)
	}

	e := EnumRef{Type: "com.example.Color", Ordinal: 2}
	got := roundTrip(t, e).(EnumRef)
	if got != e {
		t.Fatalf("got %+v, want %+v", got, e)
	}
}

func TestRoundTripTypedArrays(t *testing.T) {
	if got := roundTrip(t, []bool{true, false, true}); !reflect.DeepEqual(got, []bool{true, false, true}) {
		t.Fatalf("bool[] mismatch: %v", got)
	}
	if got := roundTrip(t, []byte{1, 2, 3}); !reflect.DeepEqual(got, []byte{1, 2, 3}) {
		t.Fatalf("byte[] mismatch: %v", got)
	}
	if got := roundTrip(t, []int32{-1, 0, 1, 99999}); !reflect.DeepEqual(got, []int32{-1, 0, 1, 99999}) {
		t.Fatalf("int[] mismatch: %v", got)
	}
	if got := roundTrip(t, []string{"a", "bb", ""}); !reflect.DeepEqual(got, []string{"a", "bb", ""}) {
		t.Fatalf("string[] mismatch: %v", got)
	}
}

func TestObjectArrayDemotion(t *testing.T) {
	// Homogeneous, no nulls: demoted to []int32.
	data, err := SerializeValue([]any{int32(1), int32(2), int32(3)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if Tag(data[0]) != TagArrayInt {
		t.Fatalf("expected demotion to TagArrayInt, got tag %d", data[0])
	}

	// Round-trips back as the demoted []int32.
	got, err := Deserialize(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []int32{1, 2, 3}) {
		t.Fatalf("got %v", got)
	}

	// Null present: substituted with zero value, still demoted.
	dataWithNull, err := SerializeValue([]any{int32(1), nil, int32(3)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	gotWithNull, err := Deserialize(dataWithNull, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gotWithNull, []int32{1, 0, 3}) {
		t.Fatalf("expected null demoted to zero value, got %v", gotWithNull)
	}
}

func TestNestedObjectArray(t *testing.T) {
	nested := []any{
		[]any{int32(1), int32(2)},
		[]any{"a", "b"},
	}
	data, err := SerializeValue(nested, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Deserialize(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	outer, ok := got.([]any)
	if !ok || len(outer) != 2 {
		t.Fatalf("expected top-level Object[] of length 2, got %#v", got)
	}
	if !reflect.DeepEqual(outer[0], []int32{1, 2}) {
		t.Fatalf("first nested array mismatch: %#v", outer[0])
	}
	if !reflect.DeepEqual(outer[1], []string{"a", "b"}) {
		t.Fatalf("second nested array mismatch: %#v", outer[1])
	}
}

type upperCaseSerializer struct{}

func (upperCaseSerializer) Encode(v any) ([]byte, error) {
	return []byte(v.(customUpper)), nil
}

func (upperCaseSerializer) Decode(payload []byte) (any, error) {
	return customUpper(payload), nil
}

type customUpper string

func TestCustomSerializer(t *testing.T) {
	reg := NewRegistry()
	reg.Register("customUpper", func(v any) bool {
		_, ok := v.(customUpper)
		return ok
	}, upperCaseSerializer{})

	v := customUpper("HELLO")
	data, err := SerializeValue(v, reg)
	if err != nil {
		t.Fatal(err)
	}
	if Tag(data[0]) != TagCustom {
		t.Fatalf("expected TagCustom, got %d", data[0])
	}

	got, err := Deserialize(data, reg)
	if err != nil {
		t.Fatal(err)
	}
	if got != v {
		t.Fatalf("got %v, want %v", got, v)
	}
}

func TestDeserializeUnknownCustomWithoutRegistryFails(t *testing.T) {
	reg := NewRegistry()
	reg.Register("customUpper", func(v any) bool {
		_, ok := v.(customUpper)
		return ok
	}, upperCaseSerializer{})

	data, err := SerializeValue(customUpper("X"), reg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Deserialize(data, nil); err == nil {
		t.Fatal("expected error decoding custom value without a registry")
	}
}
