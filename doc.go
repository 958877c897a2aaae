// Package bookcache provides a bounded-memory LRU cache for immutable books.
//
// A book is a named, read-only blob of content. Books are produced by a
// provider.Provider, which may be slow (decompressing an archive, fetching
// from object storage). The cache keeps recently used books in memory under
// a byte budget and evicts the least recently used ones to make room.
//
// # Quick Start
//
//	store := blobstore.NewLocalStore("./books")
//	c, err := bookcache.New(64<<20, provider.NewArchiveProvider(store))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b, err := c.GetBook(ctx, "moby-dick")
//	if errors.Is(err, bookcache.ErrNotFound) {
//	    // no such book
//	}
//
// # Eviction
//
// On a miss the cache evicts from the least recently used end until the new
// book fits. A book larger than the whole budget clears the cache and is
// returned without being cached. A hit makes the book the most recently
// used. Books handed out stay valid after eviction.
//
// # Load Modes
//
//	// Default: every GetBook is serialized, including the provider call.
//	c, _ := bookcache.New(max, p)
//
//	// Concurrent misses for one name share a provider call;
//	// different names load in parallel.
//	c, _ := bookcache.New(max, p, bookcache.WithLoadMode(bookcache.LoadCoalesced))
//
// # Configuration
//
// Settings can be read from the environment (BOOKCACHE_MAX_BYTES,
// BOOKCACHE_LOAD_MODE, BOOKCACHE_WARM_CONCURRENCY) and optional .env files:
//
//	s, err := bookcache.LoadSettings()
//	c, err := bookcache.NewFromSettings(s, p)
//
// # Observability
//
// Use WithLogger for structured logging and WithMetricsCollector to plug in
// a metrics backend. Stats returns hit, miss, eviction, and reset counters.
package bookcache
