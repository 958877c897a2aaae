package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/bookcache/book"
)

// ErrNotFound is returned when no content exists for a name.
var ErrNotFound = errors.New("book not found")

// Provider materializes books by name.
// Implementations must be safe for concurrent use.
type Provider interface {
	Materialize(ctx context.Context, name string) (*book.Book, error)
}

// Func adapts an ordinary function to the Provider interface.
type Func func(ctx context.Context, name string) (*book.Book, error)

// Materialize calls f(ctx, name).
func (f Func) Materialize(ctx context.Context, name string) (*book.Book, error) {
	return f(ctx, name)
}

// MapProvider serves books from an in-memory map.
type MapProvider struct {
	mu    sync.RWMutex
	books map[string][]byte
	loads atomic.Int64
}

// NewMapProvider creates a provider seeded with the given contents.
// The map is copied.
func NewMapProvider(contents map[string][]byte) *MapProvider {
	books := make(map[string][]byte, len(contents))
	for name, content := range contents {
		books[name] = content
	}
	return &MapProvider{books: books}
}

// Set adds or replaces the content for name.
func (p *MapProvider) Set(name string, content []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.books[name] = content
}

// Delete removes name.
func (p *MapProvider) Delete(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.books, name)
}

// Materialize returns a fresh book copied from the stored content.
func (p *MapProvider) Materialize(ctx context.Context, name string) (*book.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.loads.Add(1)

	p.mu.RLock()
	content, ok := p.books[name]
	p.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return book.New(name, content), nil
}

// Loads returns how many times Materialize has been called.
func (p *MapProvider) Loads() int64 {
	return p.loads.Load()
}
