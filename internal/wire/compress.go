package wire

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression names accepted by ParseCompression.
const (
	CompressionLZ4  = "lz4"
	CompressionZstd = "zstd"
)

// Compressor compresses frame payloads. Both ends of a link must use the
// same implementation.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	// Decompress fails with ErrCompression if the output would exceed limit bytes.
	Decompress(data []byte, limit int64) ([]byte, error)
}

// ParseCompression returns the compressor registered under name.
func ParseCompression(name string) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CompressionLZ4:
		return LZ4(), nil
	case CompressionZstd:
		return NewZstd()
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

// LZ4 returns the default compressor using the LZ4 frame format.
func LZ4() Compressor {
	return lz4Compressor{}
}

type lz4Compressor struct{}

func (lz4Compressor) Name() string { return CompressionLZ4 }

func (lz4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%w: lz4 compress: %v", ErrCompression, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: lz4 compress: %v", ErrCompression, err)
	}
	return buf.Bytes(), nil
}

func (lz4Compressor) Decompress(data []byte, limit int64) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	return readLimited(r, limit, CompressionLZ4)
}

type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstd returns a zstd compressor at the default level. The encoder and
// decoder are safe for concurrent use.
func NewZstd() (Compressor, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(DefaultMaxBatchBytes)))
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &zstdCompressor{encoder: encoder, decoder: decoder}, nil
}

func (*zstdCompressor) Name() string { return CompressionZstd }

func (c *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *zstdCompressor) Decompress(data []byte, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBatchBytes
	}
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decompress: %v", ErrCompression, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: zstd payload exceeds %d bytes", ErrCompression, limit)
	}
	return out, nil
}

func readLimited(r io.Reader, limit int64, name string) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxBatchBytes
	}
	out, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %s decompress: %v", ErrCompression, name, err)
	}
	if int64(len(out)) > limit {
		return nil, fmt.Errorf("%w: %s payload exceeds %d bytes", ErrCompression, name, limit)
	}
	return out, nil
}
