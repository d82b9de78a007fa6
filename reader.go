package paldb

import (
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/paldbgo/paldb/internal/store"
	"github.com/paldbgo/paldb/internal/valuecodec"
)

// Reader opens a built store file for concurrent, lock-free reads.
// Per spec.md §5 "Reader discipline": after Open, all state is
// immutable; any number of goroutines may call Get, Stream, and
// StreamKeys concurrently.
type Reader struct {
	s      *store.Store
	reg    *valuecodec.Registry
	comp   *compressor
	closed atomic.Bool
}

// Open maps path and parses its metadata header.
func Open(path string, opts ...Option) (*Reader, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	s, err := store.Open(path, cfg.MmapSegmentSize)
	if err != nil {
		return nil, translateStoreErr(err)
	}

	comp, err := newCompressor(s.Metadata().CompressionEnabled)
	if err != nil {
		s.Close()
		return nil, err
	}

	if err := checkSerializerNames(s.Metadata().CustomSerializerNames, cfg.registry()); err != nil {
		s.Close()
		return nil, err
	}

	cfg.Logger.Infow("paldb: opened store",
		"path", path,
		"key_count", s.Metadata().KeyCount,
		"lengths", len(s.Metadata().Lengths),
		"bloom_enabled", s.Metadata().BloomEnabled,
		"compression_enabled", s.Metadata().CompressionEnabled,
	)

	return &Reader{s: s, reg: cfg.registry(), comp: comp}, nil
}

// checkSerializerNames confirms this Reader registered the same custom
// serializers, in the same order, as the Writer that built the file. A
// mismatch means a stored TagCustom index would decode with the wrong
// serializer, so this is a hard error rather than a log line (spec.md §4.4).
func checkSerializerNames(stored []string, reg *valuecodec.Registry) error {
	got := reg.Names()
	if len(stored) != len(got) {
		return fmt.Errorf("%w: store has %d custom serializer(s) registered, opener has %d", ErrSerializerMismatch, len(stored), len(got))
	}
	for i, name := range stored {
		if got[i] != name {
			return fmt.Errorf("%w: position %d is %q in the store, %q in the opener", ErrSerializerMismatch, i, name, got[i])
		}
	}
	return nil
}

func (r *Reader) checkOpen() error {
	if r.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

// Get decodes and returns the value stored for key, or ok=false if
// absent or removed.
func (r *Reader) Get(key any) (value any, ok bool, err error) {
	if err := r.checkOpen(); err != nil {
		return nil, false, err
	}

	keyBytes, err := valuecodec.SerializeKey(key)
	if err != nil {
		return nil, false, fmt.Errorf("paldb: %w: %v", ErrUnsupportedType, err)
	}

	raw, found, err := r.s.Get(keyBytes)
	if err != nil {
		return nil, false, translateStoreErr(err)
	}
	if !found {
		return nil, false, nil
	}

	raw, err = r.comp.decompress(raw)
	if err != nil {
		return nil, false, err
	}

	decoded, err := valuecodec.Deserialize(raw, r.reg)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decoding value: %v", ErrCorruption, err)
	}
	return decoded, true, nil
}

// GetOrDefault is Get with def substituted for a missing key.
func (r *Reader) GetOrDefault(key, def any) (any, error) {
	v, ok, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	return v, nil
}

// MustGet is Get that raises ErrNotFound instead of ok=false, for
// callers at the API edge who prefer exception-driven control flow
// (spec.md §9 design note).
func (r *Reader) MustGet(key any) (any, error) {
	v, ok, err := r.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, key)
	}
	return v, nil
}

// GetRaw looks up key using its already-serialized bytes and returns the
// raw, still-encoded value bytes, bypassing the value codec.
func (r *Reader) GetRaw(keyBytes []byte) ([]byte, bool, error) {
	if err := r.checkOpen(); err != nil {
		return nil, false, err
	}
	raw, found, err := r.s.Get(keyBytes)
	if err != nil {
		return nil, false, translateStoreErr(err)
	}
	if !found {
		return nil, false, nil
	}
	raw, err = r.comp.decompress(raw)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Size returns the store's post-dedup/tombstone global key count
// (spec.md §6 size()).
func (r *Reader) Size() int64 {
	return r.s.Metadata().KeyCount
}

// Stream returns a lazy, finite, non-restartable sequence of decoded
// (key, value) pairs across every sub-index in key-length order (spec.md
// §4.6.3). Decode failures terminate the sequence early rather than
// panicking; the error itself is not reported, and slots that cannot be
// read are skipped.
func (r *Reader) Stream() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for keyBytes, valueBytes := range r.s.All() {
			key, err := valuecodec.DeserializeKey(keyBytes)
			if err != nil {
				return
			}
			plain, err := r.comp.decompress(valueBytes)
			if err != nil {
				return
			}
			value, err := valuecodec.Deserialize(plain, r.reg)
			if err != nil {
				return
			}
			if !yield(key, value) {
				return
			}
		}
	}
}

// StreamKeys is Stream without value decoding.
func (r *Reader) StreamKeys() iter.Seq[any] {
	return func(yield func(any) bool) {
		for keyBytes := range r.s.AllKeys() {
			key, err := valuecodec.DeserializeKey(keyBytes)
			if err != nil {
				return
			}
			if !yield(key) {
				return
			}
		}
	}
}

// Close releases the underlying mapping. After Close, Get, GetOrDefault,
// MustGet, GetRaw and a second Close fail with ErrStoreClosed; Size still
// returns the count read at Open, and Stream and StreamKeys do not check
// for Close.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrStoreClosed
	}
	r.comp.close()
	return translateStoreErr(r.s.Close())
}
