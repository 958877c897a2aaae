package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the codec used for an archive payload.
type Compression uint8

const (
	// CompressionNone stores the content as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, good for cold data).
	CompressionZSTD Compression = 2
	// CompressionSnappy uses the Snappy block format.
	CompressionSnappy Compression = 3
	// CompressionS2 uses the S2 block format, a faster Snappy extension.
	CompressionS2 Compression = 4
	// CompressionGzip uses gzip; slowest, but readable by any tool.
	CompressionGzip Compression = 5
)

var compressionNames = map[Compression]string{
	CompressionNone:   "none",
	CompressionLZ4:    "lz4",
	CompressionZSTD:   "zstd",
	CompressionSnappy: "snappy",
	CompressionS2:     "s2",
	CompressionGzip:   "gzip",
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression returns the compression kind for its name (case-insensitive).
func ParseCompression(name string) (Compression, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range compressionNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, name)
}

// maxPrealloc bounds the initial output capacity relative to the input for
// streaming codecs, so a forged header cannot force a large allocation.
const maxPrealloc = 16

func preallocSize(srcLen, size int) int {
	return min(size, srcLen*maxPrealloc)
}

type codec interface {
	compress(src []byte) ([]byte, error)
	decompress(src []byte, size int) ([]byte, error)
}

func codecFor(c Compression) (codec, error) {
	switch c {
	case CompressionNone:
		return noneCodec{}, nil
	case CompressionLZ4:
		return lz4Codec{}, nil
	case CompressionZSTD:
		return zstdCodec{}, nil
	case CompressionSnappy:
		return snappyCodec{}, nil
	case CompressionS2:
		return s2Codec{}, nil
	case CompressionGzip:
		return gzipCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, uint8(c))
	}
}

type noneCodec struct{}

func (noneCodec) compress(src []byte) ([]byte, error) { return src, nil }

func (noneCodec) decompress(src []byte, _ int) ([]byte, error) {
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) compress(src []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(src)))

	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // Incompressible
	}
	return dst[:n], nil
}

func (lz4Codec) decompress(src []byte, size int) ([]byte, error) {
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// ZSTD encoder/decoder pools
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

type zstdCodec struct{}

func (zstdCodec) compress(src []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)

	return enc.EncodeAll(src, nil), nil
}

func (zstdCodec) decompress(src []byte, size int) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(src, make([]byte, 0, preallocSize(len(src), size)))
	if err != nil {
		return nil, err
	}
	if len(out) > size {
		return nil, errors.New("zstd: decoded length mismatch")
	}
	return out, nil
}

type snappyCodec struct{}

func (snappyCodec) compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) decompress(src []byte, size int) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, errors.New("snappy: decoded length mismatch")
	}
	return snappy.Decode(make([]byte, n), src)
}

type s2Codec struct{}

func (s2Codec) compress(src []byte) ([]byte, error) {
	return s2.Encode(nil, src), nil
}

func (s2Codec) decompress(src []byte, size int) ([]byte, error) {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, errors.New("s2: decoded length mismatch")
	}
	return s2.Decode(make([]byte, n), src)
}

type gzipCodec struct{}

func (gzipCodec) compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gzipCodec) decompress(src []byte, size int) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := bytes.NewBuffer(make([]byte, 0, preallocSize(len(src), size)))
	// Read at most one byte past the declared size so oversized streams are detected.
	if _, err := io.Copy(out, io.LimitReader(r, int64(size)+1)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
