package paldb

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressor wraps value bytes with zstd when a Config enables
// compression.enabled (spec.md §6), grounded on the same
// klauspost/compress dependency used for this purpose elsewhere in the
// example pack. Compression applies only to value bytes in the data
// region; keys are never compressed since their encoded byte length
// drives the per-length sub-index bucketing (spec.md §3).
type compressor struct {
	enabled bool
	enc     *zstd.Encoder
	dec     *zstd.Decoder
}

func newCompressor(enabled bool) (*compressor, error) {
	c := &compressor{enabled: enabled}
	if !enabled {
		return c, nil
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("paldb: initializing zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("paldb: initializing zstd decoder: %w", err)
	}
	c.enc = enc
	c.dec = dec
	return c, nil
}

func (c *compressor) compress(value []byte) []byte {
	if !c.enabled || value == nil {
		return value
	}
	return c.enc.EncodeAll(value, nil)
}

func (c *compressor) decompress(value []byte) ([]byte, error) {
	if !c.enabled || value == nil {
		return value, nil
	}
	out, err := c.dec.DecodeAll(value, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing value: %v", ErrCorruption, err)
	}
	return out, nil
}

func (c *compressor) close() {
	if !c.enabled {
		return
	}
	c.enc.Close()
	c.dec.Close()
}
