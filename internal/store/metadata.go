// Package store implements the on-disk engine that underlies Writer and
// Reader: the per-key-length open-addressed index builder (grounded on the
// teacher's sst.diskSSTWriter block/footer writer), the metadata header,
// and the segmented memory-mapped lookup path.
package store

import (
	"bufio"
	"fmt"
	"io"

	"github.com/paldbgo/paldb/internal/bitio"
	"github.com/paldbgo/paldb/internal/hash"
)

// FormatVersion is the only version label this implementation writes or
// accepts, spec.md §6.
const FormatVersion = "PALDB_V1"

// Magic is the fixed 5-byte ASCII prefix every store file begins with.
const Magic = "PALDB"

// LengthEntry is one row of the per-key-length table persisted in the
// metadata header (spec.md §3 "Per-Length Sub-Index", §6).
type LengthEntry struct {
	Length         int32
	KeyCount       int64
	ActualKeyCount int64
	SlotCount      int64
	SlotSize       int32
	IndexOffset    int64
	DataOffset     int64
}

// Metadata is the fully parsed header of a store file.
type Metadata struct {
	Version string
	BuiltAt int64

	// KeyCount is the global count after duplicate/tombstone resolution
	// (spec.md §4.5.3).
	KeyCount int64

	BloomEnabled   bool
	BloomBitSize   uint64
	BloomWordCount uint32
	BloomHashCount uint32
	BloomSeedBase  uint32
	BloomWords     []uint64

	// CompressionEnabled records whether values in the data region are
	// zstd-compressed (spec.md §6 compression.enabled). Like
	// CustomSerializerNames, this is an addition beyond spec.md §6's
	// literal byte table: compression is an external collaborator in
	// spec.md's own words, and a reader must know whether it ran to
	// decode values at all.
	CompressionEnabled bool

	// CustomSerializerNames preserves registration order so a reader can
	// confirm it registered equivalent serializers at the same positions
	// before trusting a TagCustom index read from a value (spec.md §4.4).
	// This is an addition this implementation persists alongside the
	// bloom header; spec.md §6's literal byte table predates custom
	// serializer support and does not enumerate it.
	CustomSerializerNames []string

	Lengths []LengthEntry

	IndexRegionOffset int64
	DataRegionOffset  int64
}

// MaxKeyLength returns the largest key length present in the metadata, or 0
// if there are none.
func (m *Metadata) MaxKeyLength() int32 {
	var max int32
	for _, e := range m.Lengths {
		if e.Length > max {
			max = e.Length
		}
	}
	return max
}

// ByLength returns the entry for key length l, if present.
func (m *Metadata) ByLength(l int32) (LengthEntry, bool) {
	for _, e := range m.Lengths {
		if e.Length == l {
			return e, true
		}
	}
	return LengthEntry{}, false
}

// WriteMetadata serializes m in the exact field order spec.md §6 mandates.
func WriteMetadata(w io.Writer, m *Metadata) error {
	bw := bufio.NewWriter(w)

	if err := bitio.WriteUTF(bw, Magic); err != nil {
		return fmt.Errorf("store: writing magic: %w", err)
	}
	if err := bitio.WriteUTF(bw, m.Version); err != nil {
		return fmt.Errorf("store: writing version: %w", err)
	}
	if err := bitio.WriteLong(bw, m.BuiltAt); err != nil {
		return err
	}
	if err := bitio.WriteLong(bw, m.KeyCount); err != nil {
		return err
	}

	if err := bitio.WriteInt(bw, int32(m.BloomBitSize)); err != nil {
		return err
	}
	if err := bitio.WriteInt(bw, int32(m.BloomWordCount)); err != nil {
		return err
	}
	if err := bitio.WriteInt(bw, int32(m.BloomHashCount)); err != nil {
		return err
	}
	if err := bitio.WriteInt(bw, int32(m.BloomSeedBase)); err != nil {
		return err
	}
	for _, word := range m.BloomWords {
		if err := bitio.WriteLong(bw, int64(word)); err != nil {
			return err
		}
	}

	compressionFlag := int32(0)
	if m.CompressionEnabled {
		compressionFlag = 1
	}
	if err := bitio.WriteInt(bw, compressionFlag); err != nil {
		return err
	}

	if err := bitio.WriteInt(bw, int32(len(m.CustomSerializerNames))); err != nil {
		return err
	}
	for _, name := range m.CustomSerializerNames {
		if err := bitio.WriteUTF(bw, name); err != nil {
			return err
		}
	}

	if err := bitio.WriteInt(bw, int32(len(m.Lengths))); err != nil {
		return err
	}
	if err := bitio.WriteInt(bw, m.MaxKeyLength()); err != nil {
		return err
	}
	for _, e := range m.Lengths {
		if err := bitio.WriteInt(bw, e.Length); err != nil {
			return err
		}
		if err := bitio.WriteLong(bw, e.KeyCount); err != nil {
			return err
		}
		if err := bitio.WriteLong(bw, e.ActualKeyCount); err != nil {
			return err
		}
		if err := bitio.WriteLong(bw, e.SlotCount); err != nil {
			return err
		}
		if err := bitio.WriteInt(bw, e.SlotSize); err != nil {
			return err
		}
		if err := bitio.WriteLong(bw, e.IndexOffset); err != nil {
			return err
		}
		if err := bitio.WriteLong(bw, e.DataOffset); err != nil {
			return err
		}
	}

	if err := bitio.WriteLong(bw, m.IndexRegionOffset); err != nil {
		return err
	}
	if err := bitio.WriteLong(bw, m.DataRegionOffset); err != nil {
		return err
	}

	return bw.Flush()
}

// byteReader is the minimal surface bitio's decoders need: sequential byte
// reads for varints/UTF strings and bulk reads for fixed-width integers.
type byteReader interface {
	io.Reader
	io.ByteReader
}

func asByteReader(r io.Reader) byteReader {
	if br, ok := r.(byteReader); ok {
		return br
	}
	return bufio.NewReader(r)
}

// ReadMetadata parses a metadata header written by WriteMetadata, rejecting
// any file whose magic or version does not match (spec.md §3 invariant 6,
// §7 Corruption).
func ReadMetadata(r io.Reader) (*Metadata, error) {
	br := asByteReader(r)

	magic, err := bitio.ReadUTF(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading magic: %v", ErrCorruption, err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorruption, magic)
	}

	version, err := bitio.ReadUTF(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading version: %v", ErrCorruption, err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %q", ErrCorruption, version)
	}

	m := &Metadata{Version: version}

	if m.BuiltAt, err = bitio.ReadLong(br); err != nil {
		return nil, fmt.Errorf("%w: reading built_at: %v", ErrCorruption, err)
	}
	if m.KeyCount, err = bitio.ReadLong(br); err != nil {
		return nil, fmt.Errorf("%w: reading key_count: %v", ErrCorruption, err)
	}

	bitSize, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading bloom bit size: %v", ErrCorruption, err)
	}
	wordCount, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading bloom word count: %v", ErrCorruption, err)
	}
	hashCount, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading bloom hash count: %v", ErrCorruption, err)
	}
	seedBase, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading bloom seed base: %v", ErrCorruption, err)
	}
	m.BloomBitSize = uint64(bitSize)
	m.BloomWordCount = uint32(wordCount)
	m.BloomHashCount = uint32(hashCount)
	m.BloomSeedBase = uint32(seedBase)
	m.BloomEnabled = wordCount > 0
	if m.BloomSeedBase == 0 && m.BloomEnabled {
		m.BloomSeedBase = hash.BloomSeedBase
	}

	m.BloomWords = make([]uint64, wordCount)
	for i := range m.BloomWords {
		v, err := bitio.ReadLong(br)
		if err != nil {
			return nil, fmt.Errorf("%w: reading bloom word %d: %v", ErrCorruption, i, err)
		}
		m.BloomWords[i] = uint64(v)
	}

	compressionFlag, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading compression flag: %v", ErrCorruption, err)
	}
	m.CompressionEnabled = compressionFlag != 0

	nameCount, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading custom serializer count: %v", ErrCorruption, err)
	}
	m.CustomSerializerNames = make([]string, nameCount)
	for i := range m.CustomSerializerNames {
		name, err := bitio.ReadUTF(br)
		if err != nil {
			return nil, fmt.Errorf("%w: reading custom serializer name %d: %v", ErrCorruption, i, err)
		}
		m.CustomSerializerNames[i] = name
	}

	lengthCount, err := bitio.ReadInt(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading length count: %v", ErrCorruption, err)
	}
	if _, err := bitio.ReadInt(br); err != nil { // max_key_length, recomputable
		return nil, fmt.Errorf("%w: reading max key length: %v", ErrCorruption, err)
	}

	m.Lengths = make([]LengthEntry, lengthCount)
	for i := range m.Lengths {
		e := &m.Lengths[i]
		if e.Length, err = bitio.ReadInt(br); err != nil {
			return nil, fmt.Errorf("%w: reading entry %d length: %v", ErrCorruption, i, err)
		}
		if e.KeyCount, err = bitio.ReadLong(br); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		if e.ActualKeyCount, err = bitio.ReadLong(br); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		if e.SlotCount, err = bitio.ReadLong(br); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		if e.SlotSize, err = bitio.ReadInt(br); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		if e.IndexOffset, err = bitio.ReadLong(br); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
		if e.DataOffset, err = bitio.ReadLong(br); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
		}
	}

	if m.IndexRegionOffset, err = bitio.ReadLong(br); err != nil {
		return nil, fmt.Errorf("%w: reading index region offset: %v", ErrCorruption, err)
	}
	if m.DataRegionOffset, err = bitio.ReadLong(br); err != nil {
		return nil, fmt.Errorf("%w: reading data region offset: %v", ErrCorruption, err)
	}

	return m, nil
}
