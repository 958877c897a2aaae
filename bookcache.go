package bookcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/bookcache/book"
	"github.com/hupe1980/bookcache/internal/cache"
	"github.com/hupe1980/bookcache/provider"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Cache is a byte-bounded LRU cache of books in front of a Provider.
// It is safe for concurrent use.
type Cache struct {
	lru      *cache.LRU
	provider provider.Provider
	opts     options

	// loadMu serializes GetBook in LoadSerialized mode.
	loadMu sync.Mutex
	flight singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	resets    atomic.Int64
}

// Stats is a point-in-time snapshot of cache counters and occupancy.
//
// Every GetBook call that returns is counted once in Hits or Misses, except
// calls rejected for an empty name and coalesced callers that stop waiting
// because their own context is done (a load such a caller started is still
// counted when it completes). In LoadCoalesced mode a caller that
// joins another caller's in-flight load is a hit if it gets the book and a
// miss if the load fails, so Misses can exceed the number of provider calls.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Resets    int64
	Items     int
	Bytes     int64
	MaxBytes  int64
}

// New creates a cache holding at most maxBytes of book content.
func New(maxBytes int64, p provider.Provider, optFns ...Option) (*Cache, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxBytes, maxBytes)
	}
	if p == nil {
		return nil, ErrNilProvider
	}

	o := applyOptions(optFns)

	return &Cache{
		lru:      cache.NewLRU(maxBytes, o.rc),
		provider: p,
		opts:     o,
	}, nil
}

// NewFromSettings creates a cache from Settings. Explicit options are
// applied after the ones derived from s.
func NewFromSettings(s Settings, p provider.Provider, optFns ...Option) (*Cache, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return New(s.MaxBytes, p, append(s.Options(), optFns...)...)
}

// GetBook returns the book for name, materializing it through the provider
// on a miss.
//
// A hit moves the book to the most recently used position. A book larger
// than the byte budget clears the cache and is returned uncached. Provider
// errors are returned unchanged and leave the cache untouched.
func (c *Cache) GetBook(ctx context.Context, name string) (*book.Book, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	if c.opts.loadMode == LoadCoalesced {
		return c.getCoalesced(ctx, name)
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if b, ok := c.lru.Get(name); ok {
		c.recordHit(ctx, b)
		return b, nil
	}
	return c.load(ctx, name)
}

// getCoalesced collapses concurrent misses for one name into a single
// provider call.
//
// The flight is detached from the cancellation of the caller that started
// it, so one caller giving up cannot fail the others. Each caller still
// stops waiting when its own ctx is done; the load then completes in the
// background and is cached. Callers that join a flight count as hits when
// they receive the book and as misses when the load fails.
func (c *Cache) getCoalesced(ctx context.Context, name string) (*book.Book, error) {
	if b, ok := c.lru.Get(name); ok {
		c.recordHit(ctx, b)
		return b, nil
	}

	// led is only written by the flight this caller started; the channel
	// receive below orders the read after it.
	var led bool
	flightCtx := context.WithoutCancel(ctx)
	start := time.Now()

	ch := c.flight.DoChan(name, func() (any, error) {
		led = true
		// A flight that finished between our lookup and DoChan may have
		// inserted the book already.
		if b, ok := c.lru.Get(name); ok {
			c.recordHit(flightCtx, b)
			return b, nil
		}
		return c.load(flightCtx, name)
	})

	select {
	case res := <-ch:
		if !led {
			c.recordJoined(ctx, name, time.Since(start), res.Val, res.Err)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*book.Book), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// recordJoined accounts for a caller served by another caller's flight.
func (c *Cache) recordJoined(ctx context.Context, name string, d time.Duration, v any, err error) {
	if err != nil {
		c.misses.Add(1)
		c.opts.metricsCollector.RecordMiss(d, err)
		c.opts.logger.LogMiss(ctx, name, 0, err)
		return
	}
	c.recordHit(ctx, v.(*book.Book))
}

// load materializes name and inserts it.
func (c *Cache) load(ctx context.Context, name string) (*book.Book, error) {
	start := time.Now()
	b, err := c.provider.Materialize(ctx, name)
	if err == nil && b == nil {
		err = fmt.Errorf("%w: %q", ErrNilBook, name)
	}

	c.misses.Add(1)
	c.opts.metricsCollector.RecordMiss(time.Since(start), err)
	if err != nil {
		c.opts.logger.LogMiss(ctx, name, 0, err)
		return nil, err
	}
	c.opts.logger.LogMiss(ctx, name, b.Size(), nil)

	res := c.lru.Add(b)
	c.observe(ctx, b, res)
	return res.Book, nil
}

func (c *Cache) recordHit(ctx context.Context, b *book.Book) {
	c.hits.Add(1)
	c.opts.metricsCollector.RecordHit()
	c.opts.logger.LogHit(ctx, b.Name(), b.Size())
}

func (c *Cache) observe(ctx context.Context, b *book.Book, res cache.AddResult) {
	if res.Reset {
		c.resets.Add(1)
		c.opts.metricsCollector.RecordReset(res.Dropped, res.DroppedBytes)
		c.opts.logger.LogReset(ctx, b.Name(), b.Size(), c.lru.Capacity(), res.Dropped, res.DroppedBytes)
	}
	if n := len(res.Evicted); n > 0 {
		bytes := res.EvictedBytes()
		c.evictions.Add(int64(n))
		c.opts.metricsCollector.RecordEviction(n, bytes)
		c.opts.logger.LogEviction(ctx, b.Name(), n, bytes)
	}
	if res.Rejected {
		c.opts.logger.LogRejected(ctx, b.Name(), b.Size())
	}
}

// Warm loads names in parallel through GetBook and returns the first error.
// Books that do not fit still go through the normal eviction rules, so
// warming more than the budget leaves only the most recent ones resident.
func (c *Cache) Warm(ctx context.Context, names ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.warmConcurrency)

	for _, name := range names {
		g.Go(func() error {
			_, err := c.GetBook(gctx, name)
			return err
		})
	}

	err := g.Wait()
	c.opts.logger.LogWarm(ctx, len(names), err)
	return err
}

// Peek returns the cached book for name without promoting it and without
// calling the provider.
func (c *Cache) Peek(name string) (*book.Book, bool) {
	return c.lru.Peek(name)
}

// Contains reports whether name is cached, without promoting it.
func (c *Cache) Contains(name string) bool {
	return c.lru.Contains(name)
}

// Len returns the number of cached books.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Size returns the cached bytes.
func (c *Cache) Size() int64 {
	return c.lru.Size()
}

// MaxBytes returns the byte budget.
func (c *Cache) MaxBytes() int64 {
	return c.lru.Capacity()
}

// Names returns the cached names from least to most recently used.
func (c *Cache) Names() []string {
	return c.lru.Names()
}

// Purge drops every cached book. Handles already returned stay valid.
func (c *Cache) Purge() {
	dropped, bytes := c.lru.Purge()
	c.opts.logger.Info("cache purged", "dropped", dropped, "dropped_bytes", bytes)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Resets:    c.resets.Load(),
		Items:     c.lru.Len(),
		Bytes:     c.lru.Size(),
		MaxBytes:  c.lru.Capacity(),
	}
}
