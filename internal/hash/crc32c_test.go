package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C_StreamingMatchesOneShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	h := NewCRC32C()
	_, _ = h.Write(data[:10])
	_, _ = h.Write(data[10:])

	assert.Equal(t, CRC32C(data), h.Sum32())
	assert.NotEqual(t, CRC32C(data), CRC32C(data[1:]))
}

func TestCRC32C_KnownValue(t *testing.T) {
	// RFC 3720 test vector: 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))
}
