package wulfpack

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Content-Encoding tokens of the built-in envelopes.
const (
	EncodingSnappy = "snappy"
	EncodingZstd   = "zstd"
	EncodingLZ4    = "lz4"
)

// Compressor is a reversible whole-body compression envelope.
// Decompress(Compress(b)) must equal b for every b, including the empty slice.
// Implementations must be safe for concurrent use.
type Compressor interface {
	// Encoding returns the Content-Encoding token announcing the envelope.
	Encoding() string

	// Compress wraps data in the envelope.
	Compress(data []byte) ([]byte, error)

	// Decompress removes the envelope. Input that is not a valid block fails.
	Decompress(data []byte) ([]byte, error)
}

// Snappy is the default envelope: a raw Snappy block, prefixed with the
// varint-encoded uncompressed length and carrying no further framing.
type Snappy struct{}

// Encoding returns "snappy".
func (Snappy) Encoding() string { return EncodingSnappy }

// Compress encodes data as a single Snappy block.
func (Snappy) Compress(data []byte) ([]byte, error) {
	return s2.EncodeSnappy(nil, data), nil
}

// Decompress decodes a single Snappy block.
func (Snappy) Decompress(data []byte) ([]byte, error) {
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, &DecodeError{Format: FormatProtobuf, Err: fmt.Errorf("snappy decompression: %w", err)}
	}
	return out, nil
}

var _ Compressor = Snappy{}

// zstdEncoder and zstdDecoder are reused across calls.
// zstd.Encoder and zstd.Decoder are safe for concurrent use with EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithZeroFrames(true))
	if err != nil {
		panic("wulfpack: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("wulfpack: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd is a zstd frame envelope. Better ratio than Snappy for large text-like payloads.
type Zstd struct{}

// Encoding returns "zstd".
func (Zstd) Encoding() string { return EncodingZstd }

// Compress encodes data as a single zstd frame. Empty input still yields a frame.
func (Zstd) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

// Decompress decodes zstd frames.
func (Zstd) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: FormatProtobuf, Err: errors.New("zstd decompression: empty input")}
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, &DecodeError{Format: FormatProtobuf, Err: fmt.Errorf("zstd decompression: %w", err)}
	}
	return out, nil
}

var _ Compressor = Zstd{}

// LZ4 is an LZ4 frame envelope. The frame carries its own header, so no
// out-of-band length is needed to decode it.
type LZ4 struct{}

// Encoding returns "lz4".
func (LZ4) Encoding() string { return EncodingLZ4 }

// Compress encodes data as a single LZ4 frame.
func (LZ4) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, &EncodeError{Format: FormatProtobuf, Err: fmt.Errorf("lz4 compression: %w", err)}
	}
	if err := w.Close(); err != nil {
		return nil, &EncodeError{Format: FormatProtobuf, Err: fmt.Errorf("lz4 compression: %w", err)}
	}
	return buf.Bytes(), nil
}

// Decompress decodes a single LZ4 frame.
func (LZ4) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: FormatProtobuf, Err: errors.New("lz4 decompression: empty input")}
	}
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, &DecodeError{Format: FormatProtobuf, Err: fmt.Errorf("lz4 decompression: %w", err)}
	}
	return out, nil
}

var _ Compressor = LZ4{}

// Compressors returns the built-in envelopes keyed by Content-Encoding token.
func Compressors() map[string]Compressor {
	return map[string]Compressor{
		EncodingSnappy: Snappy{},
		EncodingZstd:   Zstd{},
		EncodingLZ4:    LZ4{},
	}
}

// ParseCompressor returns the built-in envelope for a Content-Encoding token.
func ParseCompressor(encoding string) (Compressor, error) {
	c, ok := Compressors()[strings.ToLower(strings.TrimSpace(encoding))]
	if !ok {
		return nil, fmt.Errorf("unknown content encoding: %q", encoding)
	}
	return c, nil
}
