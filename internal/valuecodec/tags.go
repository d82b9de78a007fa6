package valuecodec

import "math/big"

// Tag is the single leading byte that governs how a serialized value is
// decoded (spec.md §4.4). The exact ordinal values are not load-bearing
// across implementations (unlike the varint and Murmur3 wire shapes), but
// they must stay stable across writes/reads performed by this package, so
// they are declared once here and never renumbered.
type Tag byte

const (
	TagNull Tag = iota
	TagBoolTrue
	TagBoolFalse
	TagByte
	TagShort
	TagChar
	TagIntM1
	TagInt0
	TagInt1
	TagInt1B
	TagInt2B
	TagInt3B
	TagInt4B
	TagLongM1
	TagLong0
	TagLong1
	TagLong1B
	TagLong2B
	TagLong3B
	TagLong4B
	TagLong5B
	TagLong6B
	TagLong7B
	TagLong8B
	TagFloat
	TagDouble
	TagString
	TagBigInteger
	TagBigDecimal
	TagClassName
	TagEnum
	TagArrayBool
	TagArrayByte
	TagArrayShort
	TagArrayChar
	TagArrayInt
	TagArrayLong
	TagArrayFloat
	TagArrayDouble
	TagArrayString
	TagArrayObject
	TagCustom
)

// Char is a 16-bit code unit, mirroring the Java `char` primitive the
// original format distinguishes from both byte and short.
type Char uint16

// ClassName is a bare type-name reference with no associated value,
// spec.md §4.4's "class name" tag.
type ClassName string

// EnumRef is a reference to an enum constant by declaring type and ordinal
// position, spec.md §4.4's "enum ordinal reference" tag.
type EnumRef struct {
	Type    string
	Ordinal int32
}

// BigDecimal pairs an arbitrary-precision unscaled integer with a base-10
// scale, the same representation java.math.BigDecimal uses internally.
type BigDecimal struct {
	Unscaled *big.Int
	Scale    int32
}
