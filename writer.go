package paldb

import (
	"fmt"
	"sync"
	"time"

	"github.com/paldbgo/paldb/internal/store"
	"github.com/paldbgo/paldb/internal/valuecodec"
)

// writerState tracks the Writer's position in the Open → Putting →
// Building → Merging → Closed state machine (spec.md §4.5).
type writerState int

const (
	stateOpen writerState = iota
	statePutting
	stateBuilding
	stateMerging
	stateClosed
)

// Writer stages puts for a single output file and materializes the index
// on Close. Single-threaded: spec.md §5 "Writer discipline" forbids
// concurrent use. Every Put, PutRaw, Close and Abort still takes the
// Writer's mutex for the duration of the call.
type Writer struct {
	mu     sync.Mutex
	state  writerState
	path   string
	config *Config
	reg    *valuecodec.Registry
	build  *store.Builder
	comp   *compressor
}

// NewWriter opens path for a fresh build. The file is not created until
// Close succeeds; any partial output is never visible under path.
func NewWriter(path string, opts ...Option) (*Writer, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	b, err := store.NewBuilder(cfg.ScratchDir, cfg.DuplicatesEnabled)
	if err != nil {
		return nil, fmt.Errorf("paldb: %w", err)
	}

	comp, err := newCompressor(cfg.CompressionEnabled)
	if err != nil {
		b.Close()
		return nil, err
	}

	return &Writer{
		state:  statePutting,
		path:   path,
		config: cfg,
		reg:    cfg.registry(),
		build:  b,
		comp:   comp,
	}, nil
}

func (w *Writer) checkOpen() error {
	if w.state == stateClosed {
		return ErrStoreClosed
	}
	return nil
}

// Put stages (key, value). value == nil stages a tombstone, removing any
// earlier put for key in this same build (spec.md §3, §4.5.1).
func (w *Writer) Put(key, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return err
	}

	keyBytes, err := valuecodec.SerializeKey(key)
	if err != nil {
		return fmt.Errorf("paldb: %w: %v", ErrUnsupportedType, err)
	}

	var valueBytes []byte
	if value != nil {
		valueBytes, err = valuecodec.SerializeValue(value, w.reg)
		if err != nil {
			return fmt.Errorf("paldb: %w: %v", ErrUnsupportedType, err)
		}
	}

	if err := w.build.Put(keyBytes, w.comp.compress(valueBytes)); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// PutRaw stages a record using already-serialized key and value bytes,
// bypassing the value codec entirely (spec.md §6 put_raw). Compression,
// if enabled, still applies to valueBytes.
func (w *Writer) PutRaw(keyBytes, valueBytes []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := w.build.Put(keyBytes, w.comp.compress(valueBytes)); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// PutAll stages parallel slices of keys and values in one call (spec.md
// §6 put_all). len(keys) must equal len(values).
func (w *Writer) PutAll(keys, values []any) error {
	if len(keys) != len(values) {
		return fmt.Errorf("paldb: put_all: %d keys but %d values", len(keys), len(values))
	}
	for i := range keys {
		if err := w.Put(keys[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

// putRawPrecompressed stages a record whose value bytes are already in
// their final on-disk form (e.g. copied verbatim from another store
// during an RW facade rebuild) and must not be compressed again.
func (w *Writer) putRawPrecompressed(keyBytes, valueBytes []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := w.build.Put(keyBytes, valueBytes); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// Remove stages a tombstone for key, equivalent to Put(key, nil).
func (w *Writer) Remove(key any) error {
	return w.Put(key, nil)
}

// Close drives the Building/Merging phases: replaying every per-length
// temp stream into an open-addressed index, optionally building a bloom
// filter, checking free disk space, and atomically installing the
// finished file at path (spec.md §4.5.2, §4.5.3). Close must be called
// exactly once; subsequent calls fail with ErrStoreClosed.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateClosed {
		return ErrStoreClosed
	}

	w.state = stateBuilding
	w.config.Logger.Infow("paldb: building index", "path", w.path)

	bloomRate := 0.0
	if w.config.BloomFilterEnabled {
		bloomRate = w.config.BloomFilterErrorFactor
	}

	w.state = stateMerging
	start := time.Now()
	err := store.Build(w.build, w.path, store.BuildOptions{
		AllowDuplicates:        w.config.DuplicatesEnabled,
		BloomFalsePositiveRate: bloomRate,
		LoadFactor:             w.config.LoadFactor,
		CompressionEnabled:     w.config.CompressionEnabled,
		CustomSerializerNames:  w.reg.Names(),
	})
	w.state = stateClosed
	w.comp.close()

	if err != nil {
		w.config.Logger.Errorw("paldb: build failed", "path", w.path, "error", err)
		return translateStoreErr(err)
	}

	w.config.Logger.Infow("paldb: build complete", "path", w.path, "elapsed", time.Since(start))
	return nil
}

// Abort discards all staged records without building an output file,
// for callers that hit an unrelated error mid-Put and need to release
// the Writer's scratch directory without materializing a partial index.
func (w *Writer) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == stateClosed {
		return nil
	}
	w.state = stateClosed
	w.comp.close()
	return w.build.Close()
}

func translateStoreErr(err error) error {
	// internal/store's sentinels are the same values re-exported by
	// errors.go, so no remapping is needed; this indirection exists so
	// call sites read naturally and a future divergence has one place
	// to add translation.
	return err
}
