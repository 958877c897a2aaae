package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/bookcache/archive"
	"github.com/hupe1980/bookcache/blobstore"
	"github.com/hupe1980/bookcache/book"
	"github.com/hupe1980/bookcache/resource"
)

// DefaultSuffix is appended to book names to form blob names.
const DefaultSuffix = ".bkar"

// ArchiveProvider materializes books from packed archives in a BlobStore.
type ArchiveProvider struct {
	store   blobstore.BlobStore
	suffix  string
	rc      *resource.Controller
	maxSize int64
}

// ArchiveOption configures an ArchiveProvider.
type ArchiveOption func(*ArchiveProvider)

// WithSuffix overrides DefaultSuffix. An empty suffix maps names to blobs 1:1.
func WithSuffix(suffix string) ArchiveOption {
	return func(p *ArchiveProvider) { p.suffix = suffix }
}

// WithResourceController limits concurrent loads and read throughput.
func WithResourceController(rc *resource.Controller) ArchiveOption {
	return func(p *ArchiveProvider) { p.rc = rc }
}

// WithMaxBookSize rejects archives declaring more than n bytes of content
// before decompressing them. The default is archive.DefaultMaxContentSize;
// a non-positive n disables the check.
func WithMaxBookSize(n int64) ArchiveOption {
	return func(p *ArchiveProvider) { p.maxSize = n }
}

// NewArchiveProvider creates a provider reading from store.
func NewArchiveProvider(store blobstore.BlobStore, opts ...ArchiveOption) *ArchiveProvider {
	p := &ArchiveProvider{
		store:   store,
		suffix:  DefaultSuffix,
		maxSize: archive.DefaultMaxContentSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BlobName returns the blob name that holds the archive for a book.
func (p *ArchiveProvider) BlobName(name string) string {
	return name + p.suffix
}

// Materialize opens, reads, and decodes the archive for name.
// A missing blob yields an error matching both ErrNotFound and
// blobstore.ErrNotFound.
func (p *ArchiveProvider) Materialize(ctx context.Context, name string) (*book.Book, error) {
	if err := p.rc.AcquireLoad(ctx); err != nil {
		return nil, err
	}
	defer p.rc.ReleaseLoad()

	blob, err := p.store.Open(ctx, p.BlobName(name))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("provider: book %q: %w (%w)", name, ErrNotFound, err)
		}
		return nil, fmt.Errorf("provider: open %q: %w", name, err)
	}
	defer func() { _ = blob.Close() }()

	r := resource.NewRateLimitedReader(ctx, blobstore.NewReader(ctx, blob), p.rc)
	data, err := blobstore.ReadFrom(r, blob.Size())
	if err != nil {
		return nil, fmt.Errorf("provider: read %q: %w", name, err)
	}

	content, err := archive.DecodeWithLimit(data, p.maxSize)
	if err != nil {
		return nil, fmt.Errorf("provider: decode %q: %w", name, err)
	}

	// Decode always returns a fresh slice.
	return book.Wrap(name, content), nil
}

// Pack encodes content and stores it as the archive for name.
func (p *ArchiveProvider) Pack(ctx context.Context, name string, content []byte, c archive.Compression) error {
	data, err := archive.Encode(content, c)
	if err != nil {
		return fmt.Errorf("provider: encode %q: %w", name, err)
	}
	if err := p.store.Put(ctx, p.BlobName(name), data); err != nil {
		return fmt.Errorf("provider: put %q: %w", name, err)
	}
	return nil
}

// Names lists the books available in the store.
func (p *ArchiveProvider) Names(ctx context.Context) ([]string, error) {
	blobs, err := p.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(blobs))
	for _, b := range blobs {
		if p.suffix != "" && !strings.HasSuffix(b, p.suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(b, p.suffix))
	}
	return names, nil
}
