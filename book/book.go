// Package book defines the immutable unit stored by the cache.
package book

// Book is an immutable named blob of content.
//
// A *Book is the handle returned to callers. It stays valid after the cache
// evicts it; the garbage collector reclaims it once the last reference is gone.
// Callers must treat Content() as read-only.
type Book struct {
	name    string
	content []byte
}

// New creates a Book. The content is copied so later writes to the caller's
// slice cannot change the book.
func New(name string, content []byte) *Book {
	c := make([]byte, len(content))
	copy(c, content)
	return &Book{name: name, content: c}
}

// Wrap creates a Book that takes ownership of content without copying.
// Use it when content is freshly allocated, e.g. by a decompressor.
func Wrap(name string, content []byte) *Book {
	return &Book{name: name, content: content}
}

// Name returns the unique book name.
func (b *Book) Name() string { return b.name }

// Content returns the book content. The slice must not be modified.
func (b *Book) Content() []byte { return b.content }

// Size returns len(Content()) in bytes.
func (b *Book) Size() int64 { return int64(len(b.content)) }

// String implements fmt.Stringer.
func (b *Book) String() string { return b.name }
