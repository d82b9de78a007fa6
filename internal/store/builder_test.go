package store

import (
	"os"
	"path/filepath"
	"testing"
)

func buildAndOpen(t *testing.T, put func(b *Builder), opts BuildOptions) *Store {
	t.Helper()

	b, err := NewBuilder(t.TempDir(), opts.AllowDuplicates)
	if err != nil {
		t.Fatal(err)
	}
	put(b)

	out := filepath.Join(t.TempDir(), "out.paldb")
	if err := Build(b, out, opts); err != nil {
		t.Fatalf("Build: %v", err)
	}

	s, err := Open(out, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBuildRoundTrip(t *testing.T) {
	s := buildAndOpen(t, func(b *Builder) {
		if err := b.Put([]byte("abc"), []byte("1")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put([]byte("xyz"), []byte("2")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put([]byte("ab"), []byte("short")); err != nil {
			t.Fatal(err)
		}
	}, BuildOptions{LoadFactor: 0.75})

	v, ok, err := s.Get([]byte("abc"))
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("abc: got %q ok=%v err=%v", v, ok, err)
	}
	v, ok, err = s.Get([]byte("xyz"))
	if err != nil || !ok || string(v) != "2" {
		t.Fatalf("xyz: got %q ok=%v err=%v", v, ok, err)
	}
	v, ok, err = s.Get([]byte("ab"))
	if err != nil || !ok || string(v) != "short" {
		t.Fatalf("ab: got %q ok=%v err=%v", v, ok, err)
	}

	_, ok, err = s.Get([]byte("ZZZ"))
	if err != nil || ok {
		t.Fatalf("missing key: got ok=%v err=%v", ok, err)
	}

	if s.Metadata().KeyCount != 3 {
		t.Fatalf("KeyCount = %d, want 3", s.Metadata().KeyCount)
	}
}

func TestBuildValueDedup(t *testing.T) {
	s := buildAndOpen(t, func(b *Builder) {
		if err := b.Put([]byte("aaa"), []byte("same")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put([]byte("bbb"), []byte("same")); err != nil {
			t.Fatal(err)
		}
	}, BuildOptions{LoadFactor: 0.75})

	va, _, _ := s.Get([]byte("aaa"))
	vb, _, _ := s.Get([]byte("bbb"))
	if string(va) != "same" || string(vb) != "same" {
		t.Fatalf("deduped values mismatch: %q %q", va, vb)
	}
}

func TestBuildDuplicateKeyRejected(t *testing.T) {
	b, err := NewBuilder(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put([]byte("key"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := b.Put([]byte("key"), []byte("2")); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out.paldb")
	err = Build(b, out, BuildOptions{AllowDuplicates: false, LoadFactor: 0.75})
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestBuildDuplicateLastWriteWins(t *testing.T) {
	s := buildAndOpen(t, func(b *Builder) {
		if err := b.Put([]byte("key"), []byte("first")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put([]byte("key"), []byte("second")); err != nil {
			t.Fatal(err)
		}
	}, BuildOptions{AllowDuplicates: true, LoadFactor: 0.75})

	v, ok, err := s.Get([]byte("key"))
	if err != nil || !ok || string(v) != "second" {
		t.Fatalf("got %q ok=%v err=%v, want \"second\"", v, ok, err)
	}
	if s.Metadata().KeyCount != 1 {
		t.Fatalf("KeyCount = %d, want 1", s.Metadata().KeyCount)
	}
}

func TestBuildTombstoneRemovesKey(t *testing.T) {
	s := buildAndOpen(t, func(b *Builder) {
		if err := b.Put([]byte("key"), []byte("value")); err != nil {
			t.Fatal(err)
		}
		if err := b.Put([]byte("key"), nil); err != nil {
			t.Fatal(err)
		}
	}, BuildOptions{AllowDuplicates: true, LoadFactor: 0.75})

	_, ok, err := s.Get([]byte("key"))
	if err != nil || ok {
		t.Fatalf("tombstoned key should be absent, got ok=%v err=%v", ok, err)
	}
	if s.Metadata().KeyCount != 0 {
		t.Fatalf("KeyCount = %d, want 0 after tombstone cancellation", s.Metadata().KeyCount)
	}
}

func TestBuildTombstoneWithoutPriorPutStaysVacant(t *testing.T) {
	s := buildAndOpen(t, func(b *Builder) {
		if err := b.Put([]byte("ghost"), nil); err != nil {
			t.Fatal(err)
		}
	}, BuildOptions{LoadFactor: 0.75})

	_, ok, err := s.Get([]byte("ghost"))
	if err != nil || ok {
		t.Fatalf("never-live tombstone should be absent, got ok=%v err=%v", ok, err)
	}
	if s.Metadata().KeyCount != 0 {
		t.Fatalf("KeyCount = %d, want 0", s.Metadata().KeyCount)
	}
}

func TestBuildBloomFilterEnabled(t *testing.T) {
	s := buildAndOpen(t, func(b *Builder) {
		for i := 0; i < 200; i++ {
			key := []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
			if err := b.Put(key, []byte("v")); err != nil {
				t.Fatal(err)
			}
		}
	}, BuildOptions{LoadFactor: 0.75, BloomFalsePositiveRate: 0.01})

	if !s.Metadata().BloomEnabled {
		t.Fatal("expected bloom filter to be enabled")
	}
	for i := 0; i < 200; i++ {
		key := []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
		_, ok, err := s.Get(key)
		if err != nil || !ok {
			t.Fatalf("key %d: got ok=%v err=%v", i, ok, err)
		}
	}
}

func TestBuildEmptyProducesValidFile(t *testing.T) {
	b, err := NewBuilder(t.TempDir(), false)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "empty.paldb")
	if err := Build(b, out, BuildOptions{LoadFactor: 0.75}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	s, err := Open(out, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	if s.Metadata().KeyCount != 0 {
		t.Fatalf("KeyCount = %d, want 0", s.Metadata().KeyCount)
	}
}

func TestBuilderCloseRemovesScratchDir(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBuilder(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	scratch := b.Dir()
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("expected scratch dir removed, stat err=%v", err)
	}
}
