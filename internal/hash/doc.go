// Package hash provides the checksum used by book archives.
//
// All archive checksums use CRC32-Castagnoli (CRC32C): it is hardware
// accelerated on x86 (SSE4.2) and ARM (CRC extension) and detects all
// single-bit, double-bit, and odd-bit errors.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
