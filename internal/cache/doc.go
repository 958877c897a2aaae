// Package cache implements the byte-budgeted LRU set of books behind
// bookcache.Cache.
//
// # Layout
//
// The LRU keeps three pieces of state under one mutex:
//
//   - items: name -> list element (the index)
//   - order: doubly linked list of *book.Book, front = least recently used
//   - size:  running sum of book sizes in order
//
// Lookups relocate the hit element to the back in O(1). Insertions evict
// from the front until the new book fits.
//
// # Oversized Books
//
// A book larger than the whole capacity can never share the budget, so Add
// drops every cached book and returns the oversized one uncached.
//
// # Memory Accounting
//
// When a resource.Controller is attached, cached bytes are acquired from it on
// insertion and released on eviction. A denied acquisition leaves the book
// uncached.
package cache
