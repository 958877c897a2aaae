package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/bookcache/internal/hash"
)

var (
	// ErrCorrupt is returned when an archive header or its lengths are invalid.
	ErrCorrupt = errors.New("archive: corrupt archive")
	// ErrChecksum is returned when the decoded content does not match the stored checksum.
	ErrChecksum = errors.New("archive: checksum mismatch")
	// ErrUnknownCompression is returned for an unsupported compression kind.
	ErrUnknownCompression = errors.New("archive: unknown compression")
	// ErrTooLarge is returned when content exceeds the 4 GiB format limit or
	// the size limit given to DecodeWithLimit.
	ErrTooLarge = errors.New("archive: content too large")
)

const (
	// HeaderSize is the fixed archive header length in bytes.
	HeaderSize = 20

	// Version is the current archive format version.
	Version uint8 = 1

	// DefaultMaxContentSize is the largest content Decode accepts.
	DefaultMaxContentSize int64 = 1 << 30
)

var magic = [4]byte{'B', 'K', 'A', 'R'}

// Header describes an encoded archive.
type Header struct {
	Version          uint8
	Compression      Compression
	UncompressedSize uint32
	StoredSize       uint32
	Checksum         uint32
}

// Encode packs content with the given compression.
func Encode(content []byte, c Compression) ([]byte, error) {
	if uint64(len(content)) > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	codec, err := codecFor(c)
	if err != nil {
		return nil, err
	}

	payload := content
	stored := CompressionNone

	if c != CompressionNone && len(content) > 0 {
		compressed, err := codec.compress(content)
		if err != nil {
			return nil, fmt.Errorf("archive: %s compress: %w", c, err)
		}
		// If compression doesn't help (ratio > 0.9), store uncompressed
		if len(compressed) > 0 && float64(len(compressed)) <= float64(len(content))*0.9 {
			payload = compressed
			stored = c
		}
	}

	out := make([]byte, HeaderSize+len(payload))
	putHeader(out, Header{
		Version:          Version,
		Compression:      stored,
		UncompressedSize: uint32(len(content)),
		StoredSize:       uint32(len(payload)),
		Checksum:         hash.CRC32C(content),
	})
	copy(out[HeaderSize:], payload)

	return out, nil
}

// Decode unpacks an archive produced by Encode and verifies its checksum.
// The returned slice is freshly allocated. Content larger than
// DefaultMaxContentSize is rejected with ErrTooLarge.
func Decode(data []byte) ([]byte, error) {
	return DecodeWithLimit(data, DefaultMaxContentSize)
}

// DecodeWithLimit is like Decode but rejects archives whose declared content
// size exceeds maxSize. A non-positive maxSize disables the limit.
//
// Declared sizes are checked before anything is allocated.
func DecodeWithLimit(data []byte, maxSize int64) ([]byte, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	if uint64(len(data)-HeaderSize) != uint64(h.StoredSize) {
		return nil, fmt.Errorf("%w: stored size %d, have %d bytes", ErrCorrupt, h.StoredSize, len(data)-HeaderSize)
	}

	if maxSize > 0 && int64(h.UncompressedSize) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrTooLarge, h.UncompressedSize, maxSize)
	}

	if ratio := maxExpansion(h.Compression); ratio > 0 &&
		uint64(h.UncompressedSize) > uint64(h.StoredSize)*ratio {
		return nil, fmt.Errorf("%w: %d bytes cannot expand to %d with %s",
			ErrCorrupt, h.StoredSize, h.UncompressedSize, h.Compression)
	}

	codec, err := codecFor(h.Compression)
	if err != nil {
		return nil, err
	}

	content, err := codec.decompress(data[HeaderSize:], int(h.UncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s decompress: %w", ErrCorrupt, h.Compression, err)
	}

	if uint64(len(content)) != uint64(h.UncompressedSize) {
		return nil, fmt.Errorf("%w: decompressed size mismatch", ErrCorrupt)
	}

	if hash.CRC32C(content) != h.Checksum {
		return nil, ErrChecksum
	}

	return content, nil
}

// ReadHeader parses and validates the fixed-size archive header.
func ReadHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is too small for header", ErrCorrupt, len(data))
	}

	if [4]byte(data[0:4]) != magic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}

	h := Header{
		Version:          data[4],
		Compression:      Compression(data[5]),
		UncompressedSize: binary.LittleEndian.Uint32(data[8:]),
		StoredSize:       binary.LittleEndian.Uint32(data[12:]),
		Checksum:         binary.LittleEndian.Uint32(data[16:]),
	}

	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, h.Version)
	}

	return h, nil
}

// maxExpansion is the largest output/input ratio a codec can produce, or 0
// when the codec has no practical bound and relies on the size limit.
func maxExpansion(c Compression) uint64 {
	switch c {
	case CompressionNone:
		return 1
	case CompressionLZ4:
		// A match length byte of 255 adds at most 255 output bytes.
		return 255
	case CompressionGzip:
		// Deflate peaks at 258 bytes per 2 bits.
		return 1032
	default:
		return 0
	}
}

func putHeader(dst []byte, h Header) {
	copy(dst[0:4], magic[:])
	dst[4] = h.Version
	dst[5] = byte(h.Compression)
	binary.LittleEndian.PutUint16(dst[6:], 0)
	binary.LittleEndian.PutUint32(dst[8:], h.UncompressedSize)
	binary.LittleEndian.PutUint32(dst[12:], h.StoredSize)
	binary.LittleEndian.PutUint32(dst[16:], h.Checksum)
}
