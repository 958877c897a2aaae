// Package archive implements the packed on-store format of a book.
//
// A book archive is a single self-describing block:
//
//	┌──────────┬─────────┬─────────────┬──────────┬──────────────┬─────────────┬─────────┬─────────┐
//	│ "BKAR"   │ version │ compression │ reserved │ uncompressed │ stored size │ CRC32C  │ payload │
//	│ 4 bytes  │ u8      │ u8          │ u16      │ u32          │ u32         │ u32     │ ...     │
//	└──────────┴─────────┴─────────────┴──────────┴──────────────┴─────────────┴─────────┴─────────┘
//
// All integers are little endian. The checksum covers the uncompressed
// content, so a successful Decode guarantees the original bytes.
//
// Encode falls back to CompressionNone when the chosen codec does not shrink
// the payload below 90% of its original size.
//
//	packed, err := archive.Encode(content, archive.CompressionZSTD)
//	...
//	content, err := archive.Decode(packed)
package archive
