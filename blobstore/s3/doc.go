// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("books/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	p := provider.NewArchiveProvider(store)
//	c, err := bookcache.New(64<<20, p)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large archives
//   - CRC32C integrity checks on single-part uploads
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
