// Package bloomfilter implements the optional approximate membership
// structure embedded in a PalDB store's metadata header (spec.md §4.3).
//
// Bits are held in a bits-and-blooms/bitset.BitSet, the same 64-bit-word
// storage primitive the teacher's sst package got from bloom/v3 — used here
// directly instead of through bloom/v3, because the wire format PalDB
// persists (bit-size, word-count, hash-count, then the raw words) must be
// reproducible by the reader without any library-specific envelope.
package bloomfilter

import (
	"math"

	"github.com/bits-and-blooms/bitset"

	"github.com/paldbgo/paldb/internal/hash"
)

// Filter is a Bloom filter sized for a known (or estimated) number of
// elements and a target false-positive rate.
type Filter struct {
	bits     *bitset.BitSet
	m        uint64 // bit-size
	k        uint32 // hash-function count
	seedBase uint32
}

// DefaultSeed is the seed used to build the bloom filter's k hash functions
// when the caller does not override it (spec.md §4.2).
const DefaultSeed = hash.BloomSeedBase

// New returns a filter sized for expectedElements with target false
// positive rate p, per spec.md §4.3:
//
//	m = max(64, ceil(-n*ln(p) / ln(2)^2))
//	k = max(1, round((m/n) * ln(2)))
func New(expectedElements int64, p float64, seedBase uint32) *Filter {
	n := float64(expectedElements)
	if n < 1 {
		n = 1
	}

	m := uint64(math.Ceil(-n * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}

	k := uint32(math.Round((float64(m) / n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	return &Filter{
		bits:     bitset.New(uint(m)),
		m:        m,
		k:        k,
		seedBase: seedBase,
	}
}

// FromWords reconstructs a filter from its persisted metadata fields, as
// read back by the reader from the store's header.
func FromWords(bitSize uint64, hashCount uint32, seedBase uint32, words []uint64) *Filter {
	return &Filter{
		bits:     bitset.From(words),
		m:        bitSize,
		k:        hashCount,
		seedBase: seedBase,
	}
}

// Add inserts key into the filter.
func (f *Filter) Add(key []byte) {
	for i := uint32(0); i < f.k; i++ {
		bit := uint64(hash.BloomHash(key, i, f.seedBase)) % f.m
		f.bits.Set(uint(bit))
	}
}

// MightContain reports whether key may be present. A false return is a
// definite miss; a true return may be a false positive.
func (f *Filter) MightContain(key []byte) bool {
	for i := uint32(0); i < f.k; i++ {
		bit := uint64(hash.BloomHash(key, i, f.seedBase)) % f.m
		if !f.bits.Test(uint(bit)) {
			return false
		}
	}
	return true
}

// BitSize returns m, the number of bits backing the filter.
func (f *Filter) BitSize() uint64 { return f.m }

// HashCount returns k, the number of hash functions used per key.
func (f *Filter) HashCount() uint32 { return f.k }

// SeedBase returns the base seed used to derive the k hash functions.
func (f *Filter) SeedBase() uint32 { return f.seedBase }

// Words returns the underlying 64-bit words, in the order spec.md §6
// requires them to be persisted.
func (f *Filter) Words() []uint64 {
	return f.bits.Bytes()
}

// WordCount returns the number of 64-bit words backing the filter.
func (f *Filter) WordCount() uint32 {
	return uint32(len(f.bits.Bytes()))
}
