// Package blobstore provides the storage abstraction behind archive providers.
//
// BlobStore is the interface for reading and writing packed book archives.
// Implementations must be safe for concurrent use and report missing blobs
// with an error matching ErrNotFound.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory map, for tests and demos
//   - LocalStore: local filesystem with mmap reads
//   - billyfs.Store: any go-billy filesystem (osfs, memfs, chroot)
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible storage
//   - redis.Store: Redis strings
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
