package cache

import (
	"container/list"
	"sync"

	"github.com/hupe1980/bookcache/book"
	"github.com/hupe1980/bookcache/resource"
)

// LRU is a byte-bounded least-recently-used set of books.
// It is safe for concurrent use.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[string]*list.Element
	order    *list.List // front = least recently used
	rc       *resource.Controller
}

// NewLRU creates an LRU holding at most capacity bytes of content.
// If rc is provided, it will be used to track memory usage.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		rc:       rc,
	}
}

// Get returns a cached book and marks it most recently used.
func (c *LRU) Get(name string) (*book.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[name]; ok {
		c.order.MoveToBack(ent)
		return ent.Value.(*book.Book), true
	}
	return nil, false
}

// Peek returns a cached book without touching its recency.
func (c *LRU) Peek(name string) (*book.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[name]; ok {
		return ent.Value.(*book.Book), true
	}
	return nil, false
}

// Add inserts a freshly materialized book.
func (c *LRU) Add(b *book.Book) AddResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if already exists
	if ent, ok := c.items[b.Name()]; ok {
		c.order.MoveToBack(ent)
		return AddResult{Book: ent.Value.(*book.Book), Cached: true}
	}

	bookSize := b.Size()

	if bookSize > c.capacity {
		dropped, droppedBytes := c.clear()
		return AddResult{Book: b, Reset: true, Dropped: dropped, DroppedBytes: droppedBytes}
	}

	// Victims are chosen before reserving memory; a denied reservation evicts nothing.
	var (
		victims []*list.Element
		freed   int64
	)
	for e := c.order.Front(); e != nil && c.size-freed+bookSize > c.capacity; e = e.Next() {
		victims = append(victims, e)
		freed += e.Value.(*book.Book).Size()
	}

	// Victim memory moves to the new book; only the difference is reserved.
	if err := c.rc.AcquireMemory(bookSize - freed); err != nil {
		return AddResult{Book: b, Rejected: true}
	}
	c.rc.ReleaseMemory(freed - bookSize)

	var evicted []*book.Book
	for _, e := range victims {
		evicted = append(evicted, c.unlink(e))
	}

	c.items[b.Name()] = c.order.PushBack(b)
	c.size += bookSize

	return AddResult{Book: b, Cached: true, Evicted: evicted}
}

// Purge drops every cached book and returns how many books and bytes were removed.
func (c *LRU) Purge() (int, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.clear()
}

// Contains reports whether name is cached without touching its recency.
func (c *LRU) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[name]
	return ok
}

// Names returns the cached names from least to most recently used.
func (c *LRU) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		names = append(names, e.Value.(*book.Book).Name())
	}
	return names
}

// Len returns the number of cached books.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Size returns the current size of the cache in bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the configured byte budget.
func (c *LRU) Capacity() int64 {
	return c.capacity
}

// Must be called with lock held.
func (c *LRU) clear() (int, int64) {
	dropped, droppedBytes := c.order.Len(), c.size

	c.rc.ReleaseMemory(c.size)
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0

	return dropped, droppedBytes
}

// unlink removes e from the index and order without touching the
// resource controller. Must be called with lock held.
func (c *LRU) unlink(e *list.Element) *book.Book {
	c.order.Remove(e)
	b := e.Value.(*book.Book)
	delete(c.items, b.Name())
	c.size -= b.Size()
	return b
}
