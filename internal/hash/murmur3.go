// Package hash provides the 32-bit Murmur3 hash used to place keys into
// index slots and bloom filter bits. Hashing is delegated to
// spaolacci/murmur3, which implements the same x86 32-bit variant (constants
// 0xcc9e2d51, 0x1b873593, finalization mix 0x85ebca6b/0xc2b2ae35) that the
// store's on-disk format is defined against, so values written by this
// package are byte-for-byte reproducible by any other implementation of the
// same algorithm.
package hash

import "github.com/spaolacci/murmur3"

// IndexSeed is the seed used by the index builder and the reader's probe
// loop for every sub-index, regardless of key length.
const IndexSeed = 42

// BloomSeedBase is the default seed used to derive the bloom filter's k
// independent hash functions as Murmur3(bytes, BloomSeedBase+i).
const BloomSeedBase = 104729

// Sum32 returns the unsigned 32-bit Murmur3 hash of data under seed,
// matching spec.md §4.2 bit-for-bit.
func Sum32(data []byte, seed uint32) uint32 {
	return murmur3.Sum32WithSeed(data, seed)
}

// IndexHash hashes a serialized key the way the builder and the reader's
// probe loop do: Murmur3 with IndexSeed, folded to a non-negative 32-bit
// value (the high bit of the result never carries sign information here
// since Sum32 already returns unsigned, but probe math takes this function's
// result as the starting slot hash and masks via modulo, so no extra
// treatment is required).
func IndexHash(key []byte) uint32 {
	return Sum32(key, IndexSeed)
}

// BloomHash returns the i'th of a bloom filter's k hash functions applied to
// data: Murmur3 of data under seed seedBase+i.
func BloomHash(data []byte, i uint32, seedBase uint32) uint32 {
	return Sum32(data, seedBase+i)
}
