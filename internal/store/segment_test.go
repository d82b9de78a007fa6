package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapped.bin")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMappedFileSliceWithinSegment(t *testing.T) {
	path := writeTestFile(t, 1024)
	mf, err := openMapped(path, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.close()

	got, err := mf.slice(10, 20)
	if err != nil {
		t.Fatal(err)
	}
	for i, b := range got {
		if b != byte(10+i) {
			t.Fatalf("byte %d: got %d, want %d", i, b, byte(10+i))
		}
	}
}

func TestMappedFileSliceAcrossSegments(t *testing.T) {
	path := writeTestFile(t, 4096)
	// Force a tiny segment size so a read straddles a boundary.
	mf, err := openMapped(path, 100)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.close()

	got, err := mf.slice(95, 20) // spans segments [0] and [1]
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
	for i, b := range got {
		if b != byte(95+i) {
			t.Fatalf("byte %d: got %d, want %d", i, b, byte(95+i))
		}
	}
}

func TestMappedFileSliceOutOfRange(t *testing.T) {
	path := writeTestFile(t, 64)
	mf, err := openMapped(path, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.close()

	if _, err := mf.slice(60, 10); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestMappedFileEmptyFile(t *testing.T) {
	path := writeTestFile(t, 0)
	mf, err := openMapped(path, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer mf.close()

	if _, err := mf.slice(0, 1); err == nil {
		t.Fatal("expected error reading from empty file")
	}
}
