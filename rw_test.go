package paldb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRWPutGetBeforeFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.paldb")
	rw, err := OpenRW(path)
	require.NoError(t, err)
	defer rw.Close()

	require.NoError(t, rw.Put("k", "v"))
	v, err := rw.Get("k", nil)
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestRWFlushPersistsAndSwapsReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.paldb")
	rw, err := OpenRW(path)
	require.NoError(t, err)
	defer rw.Close()

	require.NoError(t, rw.Put("k1", "v1"))
	require.NoError(t, rw.Put("k2", "v2"))
	require.NoError(t, rw.Flush())

	v, err := rw.Get("k1", nil)
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	r2, err := Open(path)
	require.NoError(t, err)
	defer r2.Close()
	v2, ok, err := r2.Get("k2")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v2)
}

func TestRWRemoveThenFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.paldb")
	rw, err := OpenRW(path)
	require.NoError(t, err)
	defer rw.Close()

	require.NoError(t, rw.Put("k", "v"))
	require.NoError(t, rw.Flush())
	require.NoError(t, rw.Remove("k"))
	require.NoError(t, rw.Flush())

	v, err := rw.Get("k", "gone")
	require.NoError(t, err)
	require.Equal(t, "gone", v)
}

func TestRWReopenAfterFlushPreservesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.paldb")
	rw, err := OpenRW(path)
	require.NoError(t, err)
	require.NoError(t, rw.Put("k", "v"))
	require.NoError(t, rw.Flush())
	require.NoError(t, rw.Close())

	rw2, err := OpenRW(path)
	require.NoError(t, err)
	defer rw2.Close()
	v, err := rw2.Get("k", nil)
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestRWAutoFlushOnBufferSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.paldb")
	rw, err := OpenRW(path, WithWriteBufferSize(2), WithWriteAutoFlush(true))
	require.NoError(t, err)
	defer rw.Close()

	require.NoError(t, rw.Put("a", "1"))
	require.NoError(t, rw.Put("b", "2")) // should trigger an auto-flush

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.EqualValues(t, 2, r.Size())
}
