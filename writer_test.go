package paldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paldbgo/paldb/internal/store"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Put("alice", int32(30)))
	require.NoError(t, w.Put("bob", "engineer"))
	require.NoError(t, w.Put(int32(42), []byte{1, 2, 3}))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(30), v)

	v, ok, err = r.Get("bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "engineer", v)

	v, ok, err = r.Get(int32(42))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, v)

	_, ok, err = r.Get("nobody")
	require.NoError(t, err)
	require.False(t, ok)

	require.EqualValues(t, 3, r.Size())
}

func TestWriterDuplicateKeyRejectedByDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Put("k", "v1"))
	require.NoError(t, w.Put("k", "v2"))

	err = w.Close()
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestWriterDuplicatesAllowedLastWriteWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path, WithDuplicatesEnabled(true))
	require.NoError(t, err)
	require.NoError(t, w.Put("k", "v1"))
	require.NoError(t, w.Put("k", "v2"))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)
}

func TestWriterCloseTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Close(), ErrStoreClosed)
}

func TestWriterPutAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.Put("k", "v"), ErrStoreClosed)
}

func TestWriterPutAllMismatchedLengths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path)
	require.NoError(t, err)
	err = w.PutAll([]any{"a", "b"}, []any{"1"})
	require.Error(t, err)
	w.Abort()
}

func TestWriterCompressionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path, WithCompression(true))
	require.NoError(t, err)
	big := make([]byte, 4096)
	require.NoError(t, w.Put("blob", big))
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get("blob")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, big, v)
}

func TestWriterBloomFilterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path, WithBloomFilter(0.01))
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		require.NoError(t, w.Put(int32(i), int32(i*i)))
	}
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 500; i++ {
		v, ok, err := r.Get(int32(i))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int32(i*i), v)
	}
}

// TestWriterKeyLengthPartitioning is spec.md §8's worked example 3: two int
// keys whose untagged narrowest-width encodings land at different lengths
// (1 for key 1, 2 for key 245, since 245 needs a 2-byte short form) must
// produce exactly two metadata length entries sized 1 and 2 — not 3, which
// is what a tagged encoding would produce for 245.
func TestWriterKeyLengthPartitioning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.paldb")
	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Put(int32(1), int32(1)))
	require.NoError(t, w.Put(int32(245), int32(6)))
	require.NoError(t, w.Close())

	s, err := store.Open(path, 1<<20)
	require.NoError(t, err)
	defer s.Close()

	var lengths []int32
	for _, e := range s.Metadata().Lengths {
		lengths = append(lengths, e.Length)
	}
	require.ElementsMatch(t, []int32{1, 2}, lengths)

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	v, ok, err := r.Get(int32(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(1), v)

	v, ok, err = r.Get(int32(245))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int32(6), v)

	_, ok, err = r.Get(int32(0))
	require.NoError(t, err)
	require.False(t, ok)
}
