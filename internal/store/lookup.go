package store

import (
	"fmt"
	"io"

	"github.com/paldbgo/paldb/internal/bloomfilter"
	"github.com/paldbgo/paldb/internal/hash"
)

// Store is the read path over an opened, mmap-backed store file: a
// metadata-driven per-length slot lookup with an optional bloom
// pre-check, grounded on the teacher's diskSSTReader but reshaped around
// spec.md §4.6.2's open-addressed probe instead of a sorted-block binary
// search.
type Store struct {
	meta   *Metadata
	mapped *mappedFile
	filter *bloomfilter.Filter
}

// Open maps path and parses its metadata header, ready for Get.
func Open(path string, segmentSize int64) (*Store, error) {
	mf, err := openMapped(path, segmentSize)
	if err != nil {
		return nil, err
	}

	// ReadMetadata is fed straight off the mapping through mappedFileReader
	// rather than a single mf.slice(0, mf.size) covering the whole file: the
	// header is a small fixed/variable-length prefix, and for a store big
	// enough to span more than one mmap segment, staging the entire file
	// into one buffer just to parse that prefix would defeat the point of
	// segmenting (spec.md §4.6.1). mappedFileReader only ever pulls the
	// bytes ReadMetadata actually consumes, a handful at a time.
	meta, err := ReadMetadata(&mappedFileReader{mf: mf})
	if err != nil {
		mf.close()
		return nil, err
	}

	var filter *bloomfilter.Filter
	if meta.BloomEnabled {
		filter = bloomfilter.FromWords(meta.BloomBitSize, meta.BloomHashCount, meta.BloomSeedBase, meta.BloomWords)
	}

	return &Store{meta: meta, mapped: mf, filter: filter}, nil
}

// Close releases the underlying mapping.
func (s *Store) Close() error {
	return s.mapped.close()
}

// Metadata exposes the parsed header, e.g. for a Reader.Size()
// implementation or a CLI "stat" subcommand.
func (s *Store) Metadata() *Metadata { return s.meta }

// Get looks up key and returns its value bytes, or ok=false if absent.
// The returned slice may alias the underlying mapping and must not be
// retained past the Store's lifetime without copying.
func (s *Store) Get(key []byte) (value []byte, ok bool, err error) {
	if s.filter != nil && !s.filter.MightContain(key) {
		return nil, false, nil
	}

	entry, found := s.meta.ByLength(int32(len(key)))
	if !found || entry.SlotCount == 0 {
		return nil, false, nil
	}

	offsetWidth := entry.SlotSize - entry.Length
	slotBase := s.meta.IndexRegionOffset + entry.IndexOffset

	start := int64(hash.IndexHash(key)) % entry.SlotCount
	if start < 0 {
		start += entry.SlotCount
	}

	for i := int64(0); i < entry.SlotCount; i++ {
		idx := (start + i) % entry.SlotCount
		slotOff := slotBase + idx*int64(entry.SlotSize)

		slot, err := s.mapped.slice(slotOff, int64(entry.SlotSize))
		if err != nil {
			return nil, false, err
		}

		if isZero(slot) {
			// Never populated: the probe chain for this key ends here
			// (spec.md §4.6.2).
			return nil, false, nil
		}

		if bytesEqual(slot[:entry.Length], key) {
			offset := readSlotOffset(slot[entry.Length:])
			if offset == vacantOffset {
				// Tombstoned after being written: key was removed.
				return nil, false, nil
			}
			return s.readValueAt(entry, offset)
		}
	}

	return nil, false, nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// readValueAt reads the varint-length-prefixed value bytes stored at
// offset within entry's data region.
func (s *Store) readValueAt(entry LengthEntry, offset int64) ([]byte, bool, error) {
	dataBase := s.meta.DataRegionOffset + entry.DataOffset

	// The length prefix is a varint of unknown width up front; read a
	// bounded probe window and grow if it turns out to span more bytes
	// (varints are at most 10 bytes for an int64).
	const maxVarint = 10
	probeLen := int64(maxVarint)
	if dataBase+offset+probeLen > s.mapped.size {
		probeLen = s.mapped.size - (dataBase + offset)
	}
	probe, err := s.mapped.slice(dataBase+offset, probeLen)
	if err != nil {
		return nil, false, err
	}

	length, n, err := decodeVarintLen(probe)
	if err != nil {
		return nil, false, err
	}

	valueOff := dataBase + offset + int64(n)
	value, err := s.mapped.slice(valueOff, length)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// decodeVarintLen decodes an unsigned varint-encoded int64 length prefix
// from the start of buf and returns the value and its encoded width.
func decodeVarintLen(buf []byte) (int64, int, error) {
	var v uint64
	for i := 0; i < len(buf) && i < 10; i++ {
		b := buf[i]
		v |= uint64(b&0x7f) << (7 * uint(i))
		if b&0x80 == 0 {
			return int64(v), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: truncated value length prefix", ErrCorruption)
}

// mappedFileReader is a minimal io.Reader/io.ByteReader over a mappedFile
// that advances a cursor and pulls bytes through mf.slice/mf.byteAt on
// demand, instead of staging the whole file. Each Read/ReadByte call only
// touches the bytes it's asked for, so a caller like ReadMetadata that
// consumes a small header prefix never forces the full-file copy that a
// cross-segment mf.slice(0, mf.size) would.
type mappedFileReader struct {
	mf  *mappedFile
	pos int64
}

func (r *mappedFileReader) Read(p []byte) (int, error) {
	if r.pos >= r.mf.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if remaining := r.mf.size - r.pos; n > remaining {
		n = remaining
	}
	if n == 0 {
		return 0, nil
	}
	b, err := r.mf.slice(r.pos, n)
	if err != nil {
		return 0, err
	}
	copy(p, b)
	r.pos += n
	return int(n), nil
}

func (r *mappedFileReader) ReadByte() (byte, error) {
	if r.pos >= r.mf.size {
		return 0, io.EOF
	}
	b, err := r.mf.byteAt(r.pos)
	if err != nil {
		return 0, err
	}
	r.pos++
	return b, nil
}
