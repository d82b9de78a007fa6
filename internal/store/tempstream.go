package store

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paldbgo/paldb/internal/bitio"
)

// tombstoneLive and tombstoneRemoved are the two varint values the index
// temp stream's trailing flag can take (spec.md §4.5.1 step 4).
const (
	tombstoneLive    = 0
	tombstoneRemoved = 1
)

// lengthStream accumulates the records seen for one key length during the
// Put phase: a temp index stream of [key][packed_offset][tombstone_flag]
// triples in insertion order, and a temp data stream holding the
// deduplicated value bytes those offsets point into. This mirrors the
// teacher's per-segment rotating append stream (segmentmanager/disk.go)
// scaled down to "one append-only scratch file per key length, no
// rotation" since a build's temp data never needs to outlive the process.
type lengthStream struct {
	length int32

	indexFile *os.File
	indexBuf  *bufio.Writer

	dataFile *os.File
	dataBuf  *bufio.Writer
	dataLen  int64 // current end offset of the data file

	keyCount       int64
	actualKeyCount int64
	maxOffsetBytes int32

	hasLastValue bool
	lastValue    []byte
	lastOffset   int64
}

// Builder stages records for every observed key length. Build (builder.go)
// replays these streams into the per-length indexes and concatenates the
// final file; Builder.Close only removes the scratch directory.
type Builder struct {
	dir                string
	streams            map[int32]*lengthStream
	order              []int32 // first-seen order, not used for output (lengths are emitted ascending) but kept for cleanup
	disallowDuplicates bool
}

// NewBuilder creates a scratch directory under baseDir (or the default
// temp directory if baseDir is empty) to stage per-length streams.
func NewBuilder(baseDir string, duplicatesEnabled bool) (*Builder, error) {
	dir, err := os.MkdirTemp(baseDir, "paldb-build-*")
	if err != nil {
		return nil, fmt.Errorf("store: creating scratch directory: %w", err)
	}
	return &Builder{
		dir:                dir,
		streams:            make(map[int32]*lengthStream),
		disallowDuplicates: !duplicatesEnabled,
	}, nil
}

// Dir returns the scratch directory path, for diagnostics/logging only.
func (b *Builder) Dir() string { return b.dir }

func (b *Builder) streamFor(length int32) (*lengthStream, error) {
	if s, ok := b.streams[length]; ok {
		return s, nil
	}

	indexPath := filepath.Join(b.dir, fmt.Sprintf("index-%d.tmp", length))
	dataPath := filepath.Join(b.dir, fmt.Sprintf("data-%d.tmp", length))

	indexFile, err := os.Create(indexPath)
	if err != nil {
		return nil, fmt.Errorf("store: creating index temp stream for length %d: %w", length, err)
	}
	dataFile, err := os.Create(dataPath)
	if err != nil {
		indexFile.Close()
		return nil, fmt.Errorf("store: creating data temp stream for length %d: %w", length, err)
	}

	// Reserve the first byte of the data stream so offset 0 can mean
	// "vacant" (spec.md §3 invariant 3, §4.5.1 step 1).
	if _, err := dataFile.Write([]byte{0x00}); err != nil {
		indexFile.Close()
		dataFile.Close()
		return nil, fmt.Errorf("store: writing data sentinel for length %d: %w", length, err)
	}

	s := &lengthStream{
		length:    length,
		indexFile: indexFile,
		indexBuf:  bufio.NewWriter(indexFile),
		dataFile:  dataFile,
		dataBuf:   bufio.NewWriter(dataFile),
		dataLen:   1,
	}
	b.streams[length] = s
	b.order = append(b.order, length)
	return s, nil
}

// Put stages one record. value == nil means a tombstone (spec.md §3
// "Writing a tombstone causes the slot to be left vacant at build time").
func (b *Builder) Put(key, value []byte) error {
	length := int32(len(key))
	s, err := b.streamFor(length)
	if err != nil {
		return err
	}

	tombstone := value == nil

	var offset int64
	if !tombstone {
		if s.hasLastValue && bytes.Equal(s.lastValue, value) {
			offset = s.lastOffset
		} else {
			offset = s.dataLen
			lenBuf, err := bitio.PackLong(nil, int64(len(value)))
			if err != nil {
				return err
			}
			if _, err := s.dataBuf.Write(lenBuf); err != nil {
				return fmt.Errorf("store: writing value length: %w", err)
			}
			if _, err := s.dataBuf.Write(value); err != nil {
				return fmt.Errorf("store: writing value bytes: %w", err)
			}
			s.dataLen += int64(len(lenBuf)) + int64(len(value))
			s.lastValue = append(s.lastValue[:0], value...)
			s.hasLastValue = true
			s.lastOffset = offset
		}
	}

	if _, err := s.indexBuf.Write(key); err != nil {
		return fmt.Errorf("store: writing index key: %w", err)
	}

	offsetBuf, err := bitio.PackLong(nil, offset)
	if err != nil {
		return err
	}
	if int32(len(offsetBuf)) > s.maxOffsetBytes {
		s.maxOffsetBytes = int32(len(offsetBuf))
	}
	if _, err := s.indexBuf.Write(offsetBuf); err != nil {
		return fmt.Errorf("store: writing packed offset: %w", err)
	}

	flag := tombstoneLive
	if tombstone {
		flag = tombstoneRemoved
	}
	flagBuf, err := bitio.PackInt(nil, int32(flag))
	if err != nil {
		return err
	}
	if _, err := s.indexBuf.Write(flagBuf); err != nil {
		return fmt.Errorf("store: writing tombstone flag: %w", err)
	}

	s.keyCount++
	s.actualKeyCount++

	return nil
}

// Lengths returns the observed key lengths, ascending, the order spec.md
// §4.5.3 requires for the metadata table and on-disk region layout.
func (b *Builder) Lengths() []int32 {
	out := make([]int32, 0, len(b.streams))
	for l := range b.streams {
		out = append(out, l)
	}
	sortInt32s(out)
	return out
}

func sortInt32s(s []int32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// flushAndReplay finalizes the index and data temp streams for length l and
// returns a reader positioned at the start of the replayable index stream,
// plus the data file (caller keeps it open for the final concatenation).
func (b *Builder) flushAndReplay(l int32) (*lengthStream, *bufio.Reader, error) {
	s, ok := b.streams[l]
	if !ok {
		return nil, nil, fmt.Errorf("store: no stream staged for length %d", l)
	}
	if err := s.indexBuf.Flush(); err != nil {
		return nil, nil, err
	}
	if err := s.dataBuf.Flush(); err != nil {
		return nil, nil, err
	}
	if _, err := s.indexFile.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}
	return s, bufio.NewReader(s.indexFile), nil
}

// Close removes the scratch directory and every temp file in it. Safe to
// call more than once and safe to call after a partial build failure
// (spec.md §4.5.3 "best-effort cleanup").
func (b *Builder) Close() error {
	for _, s := range b.streams {
		s.indexFile.Close()
		s.dataFile.Close()
	}
	return os.RemoveAll(b.dir)
}
