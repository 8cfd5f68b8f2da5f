// Package compress provides optional whole-payload compression applied
// before encryption on upload and reversed after decryption on download.
package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Algorithm represents a compression algorithm
type Algorithm string

const (
	AlgorithmZstd Algorithm = "zstd"
	AlgorithmNone Algorithm = "none"
)

// Compressor handles payload compression and decompression
type Compressor struct {
	algorithm Algorithm
	level     int
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// New creates a new Compressor with the specified algorithm and level
func New(algorithm Algorithm, level int) (*Compressor, error) {
	c := &Compressor{
		algorithm: algorithm,
		level:     level,
	}

	if algorithm == AlgorithmZstd {
		zstdLevel := zstd.EncoderLevelFromZstd(level)
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		c.encoder = encoder

		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		c.decoder = decoder
	}

	return c, nil
}

// NewDefault creates a Compressor with zstd at level 3
func NewDefault() (*Compressor, error) {
	return New(AlgorithmZstd, 3)
}

// Compress compresses a payload
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZstd:
		return c.encoder.EncodeAll(data, nil), nil
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s", c.algorithm)
	}
}

// Decompress decompresses a payload
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZstd:
		return c.decoder.DecodeAll(data, nil)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s", c.algorithm)
	}
}

// Close releases compressor resources
func (c *Compressor) Close() {
	if c.encoder != nil {
		c.encoder.Close()
	}
	if c.decoder != nil {
		c.decoder.Close()
	}
}
