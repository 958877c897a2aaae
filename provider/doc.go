// Package provider defines how books are materialized on a cache miss.
//
// A Provider turns a name into a *book.Book. The cache calls it only on a
// miss, so it may be slow: decompress an archive, fetch from object storage,
// or build content on the fly.
//
// # Implementations
//
//   - Func: adapts a plain function
//   - MapProvider: in-memory map, for tests and demos
//   - ArchiveProvider: reads packed archives from a blobstore.BlobStore
//
// Unknown names must yield an error matching ErrNotFound.
package provider
