package paldb

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/paldbgo/paldb/internal/valuecodec"
)

// Config collects the recognized configuration keys from spec.md §6's
// "Configuration surface" table as typed fields, built with functional
// options the way the teacher configures its disk segment manager
// (segmentmanager.DiskSegmentManagerOption, WithMaxSegmentSize).
type Config struct {
	// MmapSegmentSize is the size of each mapped segment ("mmap.segment.size").
	MmapSegmentSize int64

	// MmapDataEnabled toggles mapping the data region vs. positional
	// reads ("mmap.data.enabled"). Positional reads are not yet wired;
	// false is rejected by NewConfig until that path exists.
	MmapDataEnabled bool

	// LoadFactor controls index slot density ("load.factor"), must lie
	// in (0, 1).
	LoadFactor float64

	// CompressionEnabled enables zstd compression of value bytes
	// ("compression.enabled").
	CompressionEnabled bool

	// BloomFilterEnabled embeds a bloom filter in the metadata region
	// ("bloom.filter.enabled").
	BloomFilterEnabled bool

	// BloomFilterErrorFactor is the target false-positive rate
	// ("bloom.filter.error.factor").
	BloomFilterErrorFactor float64

	// DuplicatesEnabled selects last-write-wins vs. fail-on-duplicate
	// ("duplicates.enabled").
	DuplicatesEnabled bool

	// WriteBufferSize is the RW facade's overlay trigger
	// ("write.buffer.size").
	WriteBufferSize int32

	// WriteAutoFlushEnabled toggles the RW facade's auto-rebuild
	// ("write.auto.flush.enabled").
	WriteAutoFlushEnabled bool

	// Logger receives structured diagnostics from Writer.Close,
	// Reader.Open, and RW.Flush. A no-op logger is used if nil.
	Logger *zap.SugaredLogger

	// ScratchDir overrides the parent directory for the Writer's temp
	// staging files; empty uses the OS default.
	ScratchDir string

	serializers *valuecodec.Registry
}

// Option mutates a Config during construction.
type Option func(*Config)

// WithMmapSegmentSize overrides the default 1 GiB segment size.
func WithMmapSegmentSize(n int64) Option {
	return func(c *Config) { c.MmapSegmentSize = n }
}

// WithMmapDataEnabled toggles data-region memory mapping.
func WithMmapDataEnabled(enabled bool) Option {
	return func(c *Config) { c.MmapDataEnabled = enabled }
}

// WithLoadFactor overrides the default 0.75 index slot density.
func WithLoadFactor(f float64) Option {
	return func(c *Config) { c.LoadFactor = f }
}

// WithCompression enables zstd value compression.
func WithCompression(enabled bool) Option {
	return func(c *Config) { c.CompressionEnabled = enabled }
}

// WithBloomFilter enables an embedded bloom filter at the given target
// false-positive rate.
func WithBloomFilter(errorFactor float64) Option {
	return func(c *Config) {
		c.BloomFilterEnabled = true
		c.BloomFilterErrorFactor = errorFactor
	}
}

// WithBloomFilterIf enables an embedded bloom filter only when enabled is
// true, at the given target false-positive rate. Used by the RW facade
// to carry a caller's bloom preference through each rebuild.
func WithBloomFilterIf(enabled bool, errorFactor float64) Option {
	return func(c *Config) {
		if enabled {
			c.BloomFilterEnabled = true
			c.BloomFilterErrorFactor = errorFactor
		}
	}
}

// WithDuplicatesEnabled selects last-write-wins semantics.
func WithDuplicatesEnabled(enabled bool) Option {
	return func(c *Config) { c.DuplicatesEnabled = enabled }
}

// WithWriteBufferSize overrides the RW facade's overlay trigger.
func WithWriteBufferSize(n int32) Option {
	return func(c *Config) { c.WriteBufferSize = n }
}

// WithWriteAutoFlush toggles the RW facade's auto-rebuild.
func WithWriteAutoFlush(enabled bool) Option {
	return func(c *Config) { c.WriteAutoFlushEnabled = enabled }
}

// WithLogger attaches a *zap.SugaredLogger. Passing nil restores the
// no-op default.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithScratchDir overrides the Writer's temp staging directory.
func WithScratchDir(dir string) Option {
	return func(c *Config) { c.ScratchDir = dir }
}

// RegisterSerializer registers a custom serializer for values matching
// predicate, tried in registration order ahead of the falling through to
// ErrUnsupportedType (spec.md §4.4, §9 design note). name is persisted in
// the store's metadata so a Reader can confirm compatible registrations
// before trusting a decoded TagCustom index.
func RegisterSerializer(name string, predicate func(v any) bool, codec ValueSerializer) Option {
	return func(c *Config) {
		if c.serializers == nil {
			c.serializers = valuecodec.NewRegistry()
		}
		c.serializers.Register(name, predicate, serializerAdapter{codec})
	}
}

// ValueSerializer is the custom-type encode/decode pair a caller
// registers for values the built-in codec has no tag for.
type ValueSerializer interface {
	Encode(v any) ([]byte, error)
	Decode(payload []byte) (any, error)
}

type serializerAdapter struct {
	ValueSerializer
}

// NewConfig builds a Config from defaults (spec.md §6) plus opts, applied
// in order.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		MmapSegmentSize:        1 << 30,
		MmapDataEnabled:        true,
		LoadFactor:             0.75,
		CompressionEnabled:     false,
		BloomFilterEnabled:     false,
		BloomFilterErrorFactor: 0.01,
		DuplicatesEnabled:      false,
		WriteBufferSize:        100000,
		WriteAutoFlushEnabled:  true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.LoadFactor <= 0 || c.LoadFactor >= 1 {
		return nil, fmt.Errorf("paldb: load factor %v must be in (0, 1)", c.LoadFactor)
	}
	if !c.MmapDataEnabled {
		return nil, fmt.Errorf("paldb: positional (non-mmap) data reads are not implemented")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}

	return c, nil
}

// withRegistry installs an already-built registry verbatim, used by the RW
// facade to carry a caller's custom serializers through each Flush rebuild
// without re-registering them by hand.
func withRegistry(reg *valuecodec.Registry) Option {
	return func(c *Config) { c.serializers = reg }
}

func (c *Config) registry() *valuecodec.Registry {
	if c.serializers == nil {
		return valuecodec.NewRegistry()
	}
	return c.serializers
}
