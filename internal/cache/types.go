package cache

import "github.com/hupe1980/bookcache/book"

// AddResult reports what Add did.
type AddResult struct {
	// Book is the book to hand to the caller. If the name was already cached
	// (a concurrent load won the race), this is the cached instance.
	Book *book.Book

	// Cached is true if Book is resident after the call.
	Cached bool

	// Evicted lists books removed from the front to make room, oldest first.
	Evicted []*book.Book

	// Reset is true if an oversized book dropped the whole cache.
	Reset bool

	// Dropped and DroppedBytes describe what the reset removed.
	Dropped      int
	DroppedBytes int64

	// Rejected is true if the resource controller denied the memory.
	Rejected bool
}

// EvictedBytes returns the total size of the evicted books.
func (r AddResult) EvictedBytes() int64 {
	var n int64
	for _, b := range r.Evicted {
		n += b.Size()
	}
	return n
}
