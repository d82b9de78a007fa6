package store

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/natefinch/atomic"

	"github.com/paldbgo/paldb/internal/bitio"
	"github.com/paldbgo/paldb/internal/bloomfilter"
	"github.com/paldbgo/paldb/internal/hash"
)

// vacantOffset marks a slot that has never been written to, distinct from a
// tombstoned slot which must also end up vacant at build time (spec.md §3
// invariant 3, §4.5.2 "a vacant slot is indistinguishable from a slot that
// was never populated").
const vacantOffset = 0

// BuildOptions configures the Close-time index build.
type BuildOptions struct {
	// AllowDuplicates, when false, makes a duplicate key (outside the
	// last-write-wins tombstone interaction) a build-time error rather
	// than silently keeping the last value (spec.md §4.5.2).
	AllowDuplicates bool

	// BloomFalsePositiveRate, when > 0, enables a bloom filter sized for
	// the observed key count at this false-positive target (spec.md
	// §4.3). Zero disables the filter.
	BloomFalsePositiveRate float64

	// LoadFactor is the target index slot density in (0, 1); spec.md §6
	// default 0.75. A table is sized so keyCount/slotCount ≈ LoadFactor.
	LoadFactor float64

	// CompressionEnabled is persisted verbatim into the metadata header
	// so a Reader knows whether to zstd-decompress values; the builder
	// itself never compresses, the caller pre-compresses value bytes
	// before staging them (spec.md §6 compression.enabled is an
	// ambient/external collaborator concern, not a builder concern).
	CompressionEnabled bool

	// CustomSerializerNames is persisted verbatim into the metadata
	// header in registration order (spec.md §4.4), so a Reader can
	// confirm it registered compatible serializers at the same
	// positions before trusting a decoded TagCustom index.
	CustomSerializerNames []string
}

// builtIndex is the finished open-addressed table for one key length. Each
// slot in it is a key of fixed Length bytes followed by a packed (varint)
// data offset. SlotSize = Length + offsetWidth.
type builtIndex struct {
	entry    LengthEntry
	file     *os.File // scratch file holding this length's finished index table
	dataFile *os.File // staged data stream for this length, owned by Builder
}

// Build replays every per-length temp stream staged in b, inserts each
// record into an open-addressed slot table sized per spec.md §4.5.2, and
// writes metadata + indexes + data to outputPath as a single atomic file
// (spec.md §4.5.3). It always releases b's scratch directory before
// returning, success or failure.
func Build(b *Builder, outputPath string, opts BuildOptions) (err error) {
	defer func() {
		if cerr := b.Close(); err == nil {
			err = cerr
		}
	}()

	lengths := b.Lengths()

	var totalKeyCount int64
	indexes := make([]*builtIndex, 0, len(lengths))
	defer func() {
		for _, bi := range indexes {
			if bi.file != nil {
				bi.file.Close()
			}
		}
	}()

	loadFactor := opts.LoadFactor
	if loadFactor <= 0 || loadFactor >= 1 {
		loadFactor = 0.75
	}

	for _, l := range lengths {
		bi, err := buildLengthIndex(b, l, opts.AllowDuplicates, loadFactor)
		if err != nil {
			return err
		}
		indexes = append(indexes, bi)
		totalKeyCount += bi.entry.ActualKeyCount
	}

	var filter *bloomfilter.Filter
	if opts.BloomFalsePositiveRate > 0 && totalKeyCount > 0 {
		filter = bloomfilter.New(totalKeyCount, opts.BloomFalsePositiveRate, hash.BloomSeedBase)
		for _, l := range lengths {
			if err := addKeysToFilter(b, l, filter); err != nil {
				return err
			}
		}
	}

	if err := checkFreeSpace(outputPath, indexes, b); err != nil {
		return err
	}

	return assemble(outputPath, indexes, filter, totalKeyCount, opts.CompressionEnabled, opts.CustomSerializerNames)
}

// buildLengthIndex replays the temp index stream for length l in
// insertion order and inserts each key into a freshly sized open-addressed
// table, using linear probing and the duplicate/tombstone resolution
// rules of spec.md §4.5.2.
func buildLengthIndex(b *Builder, l int32, allowDuplicates bool, loadFactor float64) (*builtIndex, error) {
	s, idxReader, err := b.flushAndReplay(l)
	if err != nil {
		return nil, err
	}

	offsetWidth := s.maxOffsetBytes
	if offsetWidth == 0 {
		offsetWidth = 1
	}
	slotSize := l + offsetWidth

	// Size the table so keyCount/slotCount ≈ loadFactor, keeping linear
	// probing cheap even at high occupancy (spec.md §4.5.2, §6
	// load.factor).
	slotCount := nextTableSize(s.keyCount, loadFactor)

	scratch, err := os.CreateTemp("", "paldb-index-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("store: creating index scratch file: %w", err)
	}
	if err := scratch.Truncate(int64(slotCount) * int64(slotSize)); err != nil {
		scratch.Close()
		return nil, fmt.Errorf("store: sizing index scratch file: %w", err)
	}

	table := make([]byte, int64(slotCount)*int64(slotSize))
	occupied := make([]bool, slotCount)

	var actualKeyCount int64

	for i := int64(0); i < s.keyCount; i++ {
		key := make([]byte, l)
		if _, err := io.ReadFull(idxReader, key); err != nil {
			scratch.Close()
			return nil, fmt.Errorf("%w: replaying index stream for length %d: %v", ErrCorruption, l, err)
		}
		offset, err := bitio.UnpackLong(idxReader)
		if err != nil {
			scratch.Close()
			return nil, err
		}
		flag, err := bitio.UnpackInt(idxReader)
		if err != nil {
			scratch.Close()
			return nil, err
		}
		tombstone := flag == tombstoneRemoved

		slot, existed, err := probeInsert(table, occupied, slotCount, slotSize, l, offsetWidth, key)
		if err != nil {
			scratch.Close()
			return nil, err
		}

		if existed && !tombstone && !allowDuplicates {
			scratch.Close()
			return nil, fmt.Errorf("%w: %x", ErrDuplicateKey, key)
		}

		if !existed {
			actualKeyCount++
		} else if tombstone {
			// A tombstone for a key already resolved to a live slot
			// removes it: the slot becomes vacant again and does not
			// count toward actualKeyCount (spec.md §4.5.2 duplicate +
			// tombstone interaction, resolved per the spec's suggested
			// interpretation in SPEC_FULL.md §D).
			clearSlot(table, slot, slotSize, offsetWidth)
			occupied[slot/int64(slotSize)] = false
			actualKeyCount--
			continue
		}

		if tombstone {
			clearSlot(table, slot, slotSize, offsetWidth)
			occupied[slot/int64(slotSize)] = false
			if !existed {
				actualKeyCount--
			}
			continue
		}

		writeSlotOffset(table, slot, l, offsetWidth, offset)
	}

	if _, err := scratch.WriteAt(table, 0); err != nil {
		scratch.Close()
		return nil, fmt.Errorf("store: writing index scratch file: %w", err)
	}

	if actualKeyCount < 0 {
		actualKeyCount = 0
	}

	return &builtIndex{
		entry: LengthEntry{
			Length:         l,
			KeyCount:       s.keyCount,
			ActualKeyCount: actualKeyCount,
			SlotCount:      slotCount,
			SlotSize:       slotSize,
		},
		file:     scratch,
		dataFile: s.dataFile,
	}, nil
}

// nextTableSize returns slotCount = ceil(n / loadFactor), never below 1
// (spec.md §4.5.2 "slotCount = ceil(keyCount / loadFactor)"), with a floor
// of n+1 so open addressing always has at least one vacant slot to
// terminate a probe chain.
func nextTableSize(n int64, loadFactor float64) int64 {
	if n <= 0 {
		return 1
	}
	size := int64(math.Ceil(float64(n) / loadFactor))
	if size < n+1 {
		size = n + 1
	}
	return size
}

// probeInsert finds key's slot via linear probing starting at
// hash.IndexHash(key) mod slotCount, claiming the first vacant slot found
// if the key is not already present. It returns the slot's byte offset
// into table and whether the key already occupied a slot.
func probeInsert(table []byte, occupied []bool, slotCount int64, slotSize, keyLen, offsetWidth int32, key []byte) (int64, bool, error) {
	if slotCount == 0 {
		return 0, false, fmt.Errorf("%w: zero-size index table", ErrCorruption)
	}
	start := int64(hash.IndexHash(key)) % slotCount
	if start < 0 {
		start += slotCount
	}

	for i := int64(0); i < slotCount; i++ {
		idx := (start + i) % slotCount
		byteOff := idx * int64(slotSize)
		if !occupied[idx] {
			occupied[idx] = true
			copy(table[byteOff:byteOff+int64(keyLen)], key)
			return byteOff, false, nil
		}
		if bytesEqual(table[byteOff:byteOff+int64(keyLen)], key) {
			return byteOff, true, nil
		}
	}
	return 0, false, fmt.Errorf("%w: index table full, no vacant slot for key", ErrCorruption)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clearSlot(table []byte, slotOff int64, l, offsetWidth int32) {
	for i := int64(0); i < int64(l+offsetWidth); i++ {
		table[slotOff+i] = 0
	}
}

// writeSlotOffset stores offset as a varint (bitio.PackLong) at the start of
// the slot's offsetWidth-byte offset field, zero-padding the rest.
func writeSlotOffset(table []byte, slotOff int64, keyLen, offsetWidth int32, offset int64) {
	buf := table[slotOff+int64(keyLen) : slotOff+int64(keyLen)+int64(offsetWidth)]
	packed, _ := bitio.PackLong(nil, offset)
	clear(buf)
	copy(buf, packed)
}

// readSlotOffset decodes the varint offset written by writeSlotOffset; an
// all-zero field decodes to vacantOffset.
func readSlotOffset(buf []byte) int64 {
	var v uint64
	for i, b := range buf {
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			break
		}
	}
	return int64(v)
}

func addKeysToFilter(b *Builder, l int32, filter *bloomfilter.Filter) error {
	s, idxReader, err := b.flushAndReplay(l)
	if err != nil {
		return err
	}
	for i := int64(0); i < s.keyCount; i++ {
		key := make([]byte, l)
		if _, err := io.ReadFull(idxReader, key); err != nil {
			return fmt.Errorf("%w: re-replaying index stream for length %d: %v", ErrCorruption, l, err)
		}
		if _, err := bitio.UnpackLong(idxReader); err != nil {
			return err
		}
		flag, err := bitio.UnpackInt(idxReader)
		if err != nil {
			return err
		}
		if flag != tombstoneRemoved {
			filter.Add(key)
		}
	}
	return nil
}

// checkFreeSpace estimates the final file size from the built indexes and
// staged data streams and aborts if it exceeds 2/3 of the destination
// volume's usable free space (spec.md §4.5.3: "the writer aborts with
// OutOfDiskSpace if the expected total size exceeds 2/3 of the usable free
// disk space"), before any output byte is written.
func checkFreeSpace(outputPath string, indexes []*builtIndex, b *Builder) error {
	var want int64
	for _, bi := range indexes {
		want += bi.entry.SlotCount * int64(bi.entry.SlotSize)
		if s, ok := b.streams[bi.entry.Length]; ok {
			want += s.dataLen
		}
	}
	want += 4096 // metadata header headroom

	free, err := diskFreeBytes(outputPath)
	if err != nil {
		// Free-space probing is best-effort; a platform we can't probe
		// should not block an otherwise-valid build.
		return nil
	}
	if want > (2*free)/3 {
		return fmt.Errorf("%w: need %d bytes, only %d of %d free bytes usable (2/3 margin)", ErrOutOfDiskSpace, want, (2*free)/3, free)
	}
	return nil
}

// assemble concatenates the metadata header, every per-length index
// region (ascending by length), and every per-length data region (same
// order) into a single file, installed atomically (spec.md §4.5.3).
func assemble(outputPath string, indexes []*builtIndex, filter *bloomfilter.Filter, totalKeyCount int64, compressionEnabled bool, serializerNames []string) error {
	pr, pw := io.Pipe()

	go func() {
		err := writeAssembled(pw, indexes, filter, totalKeyCount, compressionEnabled, serializerNames)
		pw.CloseWithError(err)
	}()

	return atomic.WriteFile(outputPath, pr)
}

func writeAssembled(w io.Writer, indexes []*builtIndex, filter *bloomfilter.Filter, totalKeyCount int64, compressionEnabled bool, serializerNames []string) error {
	meta := &Metadata{
		Version:               FormatVersion,
		KeyCount:              totalKeyCount,
		CompressionEnabled:    compressionEnabled,
		CustomSerializerNames: serializerNames,
	}
	for _, bi := range indexes {
		meta.Lengths = append(meta.Lengths, bi.entry)
	}
	if filter != nil {
		meta.BloomEnabled = true
		meta.BloomBitSize = filter.BitSize()
		meta.BloomWordCount = filter.WordCount()
		meta.BloomHashCount = filter.HashCount()
		meta.BloomSeedBase = filter.SeedBase()
		meta.BloomWords = filter.Words()
	}

	// Assign per-length offsets relative to the start of the index
	// region and data region respectively (spec.md §6); the header
	// itself is variable-length so these are filled in after a dry-run
	// size computation.
	headerBuf := &sizingBuffer{}
	if err := WriteMetadata(headerBuf, meta); err != nil {
		return err
	}
	headerSize := int64(headerBuf.n)

	var indexOff int64
	for i := range meta.Lengths {
		meta.Lengths[i].IndexOffset = indexOff
		indexOff += meta.Lengths[i].SlotCount * int64(meta.Lengths[i].SlotSize)
	}
	meta.IndexRegionOffset = headerSize
	dataRegionStart := headerSize + indexOff
	meta.DataRegionOffset = dataRegionStart

	var dataOff int64
	for i := range meta.Lengths {
		meta.Lengths[i].DataOffset = dataOff
		dataOff += dataLenFor(indexes[i])
	}

	bw := bufio.NewWriter(w)
	if err := WriteMetadata(bw, meta); err != nil {
		return err
	}

	for _, bi := range indexes {
		if _, err := bi.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.Copy(bw, bi.file); err != nil {
			return fmt.Errorf("store: copying index region: %w", err)
		}
	}

	for _, bi := range indexes {
		df := dataFileFor(bi)
		if _, err := df.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if _, err := io.Copy(bw, df); err != nil {
			return fmt.Errorf("store: copying data region: %w", err)
		}
	}

	return bw.Flush()
}

func dataFileFor(bi *builtIndex) *os.File {
	// The data file handle lives on the lengthStream, not builtIndex;
	// callers reach it indirectly via Builder during assembly. This
	// helper exists so writeAssembled reads uniformly through
	// *os.File regardless of source.
	return bi.dataFile
}

func dataLenFor(bi *builtIndex) int64 {
	if bi.dataFile == nil {
		return 0
	}
	info, err := bi.dataFile.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// sizingBuffer is an io.Writer that only counts bytes, used to learn the
// metadata header's exact length before offsets that depend on it can be
// computed.
type sizingBuffer struct {
	n int
}

func (s *sizingBuffer) Write(p []byte) (int, error) {
	s.n += len(p)
	return len(p), nil
}
