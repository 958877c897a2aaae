package bookcache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hupe1980/bookcache/archive"
	"github.com/hupe1980/bookcache/book"
	"github.com/hupe1980/bookcache/internal/faulty"
	"github.com/hupe1980/bookcache/provider"
	"github.com/hupe1980/bookcache/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loadModes = []LoadMode{LoadSerialized, LoadCoalesced}

// sizedProvider serves name -> content of the registered size.
func sizedProvider(sizes map[string]int) *provider.MapProvider {
	contents := make(map[string][]byte, len(sizes))
	for name, n := range sizes {
		contents[name] = bytes.Repeat([]byte(name[:1]), n)
	}
	return provider.NewMapProvider(contents)
}

func newCache(t *testing.T, maxBytes int64, p provider.Provider, opts ...Option) *Cache {
	t.Helper()
	c, err := New(maxBytes, p, opts...)
	require.NoError(t, err)
	return c
}

func checkBudget(t *testing.T, c *Cache) {
	t.Helper()
	assert.LessOrEqual(t, c.Size(), c.MaxBytes())
	assert.Len(t, c.Names(), c.Len())

	var sum int64
	for _, name := range c.Names() {
		b, ok := c.Peek(name)
		require.True(t, ok)
		sum += b.Size()
	}
	assert.Equal(t, sum, c.Size())
}

func TestNew_Validation(t *testing.T) {
	p := provider.NewMapProvider(nil)

	_, err := New(0, p)
	assert.ErrorIs(t, err, ErrInvalidMaxBytes)

	_, err = New(-5, p)
	assert.ErrorIs(t, err, ErrInvalidMaxBytes)

	_, err = New(10, nil)
	assert.ErrorIs(t, err, ErrNilProvider)

	c, err := New(10, p, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.MaxBytes())
}

func TestGetBook(t *testing.T) {
	for _, mode := range loadModes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()

			t.Run("EmptyName", func(t *testing.T) {
				p := sizedProvider(map[string]int{"A": 4})
				c := newCache(t, 10, p, WithLoadMode(mode))

				_, err := c.GetBook(ctx, "")
				assert.ErrorIs(t, err, ErrEmptyName)
				assert.Zero(t, p.Loads())
				assert.Zero(t, c.Len())
			})

			t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
				c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "B": 4, "C": 4}), WithLoadMode(mode))

				for _, name := range []string{"A", "B", "C"} {
					b, err := c.GetBook(ctx, name)
					require.NoError(t, err)
					assert.Equal(t, name, b.Name())
					checkBudget(t, c)
				}

				assert.Equal(t, []string{"B", "C"}, c.Names())
				assert.Equal(t, int64(8), c.Size())
				assert.False(t, c.Contains("A"))
			})

			t.Run("OversizedClearsCache", func(t *testing.T) {
				c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "B": 4, "C": 4, "D": 20}), WithLoadMode(mode))

				for _, name := range []string{"A", "B", "C"} {
					_, err := c.GetBook(ctx, name)
					require.NoError(t, err)
				}

				d, err := c.GetBook(ctx, "D")
				require.NoError(t, err)
				assert.Equal(t, int64(20), d.Size())
				assert.Zero(t, c.Len())
				assert.Zero(t, c.Size())
				assert.False(t, c.Contains("D"))
				assert.Equal(t, int64(1), c.Stats().Resets)
			})

			t.Run("ExactFit", func(t *testing.T) {
				c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "E": 10}), WithLoadMode(mode))

				_, err := c.GetBook(ctx, "A")
				require.NoError(t, err)
				_, err = c.GetBook(ctx, "E")
				require.NoError(t, err)

				assert.Equal(t, []string{"E"}, c.Names())
				assert.Equal(t, int64(10), c.Size())
			})

			t.Run("HitPromotes", func(t *testing.T) {
				p := sizedProvider(map[string]int{"A": 4, "B": 4, "C": 4, "D": 4})
				c := newCache(t, 12, p, WithLoadMode(mode))

				for _, name := range []string{"A", "B", "C"} {
					_, err := c.GetBook(ctx, name)
					require.NoError(t, err)
				}

				first, ok := c.Peek("A")
				require.True(t, ok)

				a, err := c.GetBook(ctx, "A")
				require.NoError(t, err)
				assert.Same(t, first, a, "a hit returns the cached handle")
				assert.Equal(t, []string{"B", "C", "A"}, c.Names())
				assert.Equal(t, int64(3), p.Loads())

				// B is now least recently used.
				_, err = c.GetBook(ctx, "D")
				require.NoError(t, err)
				assert.Equal(t, []string{"C", "A", "D"}, c.Names())
			})

			t.Run("HandleSurvivesEviction", func(t *testing.T) {
				c := newCache(t, 4, sizedProvider(map[string]int{"A": 4, "B": 4}), WithLoadMode(mode))

				a, err := c.GetBook(ctx, "A")
				require.NoError(t, err)

				_, err = c.GetBook(ctx, "B")
				require.NoError(t, err)
				require.False(t, c.Contains("A"))

				assert.Equal(t, "A", a.Name())
				assert.Equal(t, []byte("AAAA"), a.Content())
			})

			t.Run("NotFoundLeavesCacheUntouched", func(t *testing.T) {
				c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "B": 4}), WithLoadMode(mode))

				for _, name := range []string{"A", "B"} {
					_, err := c.GetBook(ctx, name)
					require.NoError(t, err)
				}
				before := c.Names()

				_, err := c.GetBook(ctx, "missing")
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNotFound)
				assert.ErrorIs(t, err, provider.ErrNotFound)

				assert.Equal(t, before, c.Names())
				assert.Equal(t, int64(8), c.Size())
			})

			t.Run("ProviderErrorUnchanged", func(t *testing.T) {
				boom := errors.New("boom")
				c := newCache(t, 10, provider.Func(func(context.Context, string) (*book.Book, error) {
					return nil, boom
				}), WithLoadMode(mode))

				_, err := c.GetBook(ctx, "x")
				assert.Same(t, boom, err)
				assert.Zero(t, c.Len())
			})

			t.Run("NilBook", func(t *testing.T) {
				c := newCache(t, 10, provider.Func(func(context.Context, string) (*book.Book, error) {
					return nil, nil
				}), WithLoadMode(mode))

				_, err := c.GetBook(ctx, "x")
				assert.ErrorIs(t, err, ErrNilBook)
				assert.Zero(t, c.Len())
			})

			t.Run("EmptyBookIsCached", func(t *testing.T) {
				c := newCache(t, 10, provider.NewMapProvider(map[string][]byte{"empty": nil}), WithLoadMode(mode))

				b, err := c.GetBook(ctx, "empty")
				require.NoError(t, err)
				assert.Zero(t, b.Size())
				assert.True(t, c.Contains("empty"))
				assert.Zero(t, c.Size())
			})
		})
	}
}

func TestGetBook_RandomizedBudget(t *testing.T) {
	for _, mode := range loadModes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			rng := rand.New(rand.NewSource(42))

			sizes := make(map[string]int)
			for i := range 50 {
				sizes[fmt.Sprintf("b%02d", i)] = rng.Intn(40)
			}
			c := newCache(t, 64, sizedProvider(sizes), WithLoadMode(mode))

			for range 1000 {
				name := fmt.Sprintf("b%02d", rng.Intn(50))
				b, err := c.GetBook(ctx, name)
				require.NoError(t, err)
				assert.Equal(t, int64(sizes[name]), b.Size())
				checkBudget(t, c)

				// The requested book is most recently used unless it was oversized.
				names := c.Names()
				if len(names) > 0 && c.Contains(name) {
					assert.Equal(t, name, names[len(names)-1])
				}
			}
		})
	}
}

func TestGetBook_Concurrent(t *testing.T) {
	for _, mode := range loadModes {
		t.Run(mode.String(), func(t *testing.T) {
			ctx := context.Background()
			sizes := make(map[string]int)
			for i := range 20 {
				sizes[fmt.Sprintf("b%02d", i)] = 1 + i%7
			}
			c := newCache(t, 32, sizedProvider(sizes), WithLoadMode(mode))

			var wg sync.WaitGroup
			for g := range 8 {
				wg.Add(1)
				go func(seed int64) {
					defer wg.Done()
					rng := rand.New(rand.NewSource(seed))
					for range 200 {
						name := fmt.Sprintf("b%02d", rng.Intn(20))
						b, err := c.GetBook(ctx, name)
						if assert.NoError(t, err) {
							assert.Equal(t, int64(sizes[name]), b.Size())
						}
					}
				}(int64(g))
			}
			wg.Wait()

			checkBudget(t, c)
			stats := c.Stats()
			assert.Equal(t, int64(8*200), stats.Hits+stats.Misses)
		})
	}
}

func TestGetBook_CoalescesSameName(t *testing.T) {
	var calls atomic.Int64
	release := make(chan struct{})

	p := provider.Func(func(_ context.Context, name string) (*book.Book, error) {
		calls.Add(1)
		<-release
		return book.New(name, []byte("content")), nil
	})
	c := newCache(t, 100, p, WithLoadMode(LoadCoalesced))

	const n = 16
	results := make([]*book.Book, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := c.GetBook(context.Background(), "shared")
			assert.NoError(t, err)
			results[i] = b
		}()
	}

	// Give the goroutines a moment to join the flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, b := range results {
		assert.Same(t, results[0], b)
	}
	assert.True(t, c.Contains("shared"))
}

func TestGetBook_CoalescedCallerCancelDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	p := provider.Func(func(ctx context.Context, name string) (*book.Book, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return book.New(name, []byte("content")), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := newCache(t, 100, p, WithLoadMode(LoadCoalesced))

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := c.GetBook(ctxA, "A")
		errA <- err
	}()
	<-started

	type result struct {
		b   *book.Book
		err error
	}
	resB := make(chan result, 1)
	go func() {
		b, err := c.GetBook(context.Background(), "A")
		resB <- result{b, err}
	}()

	// Let B join the flight before A gives up.
	time.Sleep(50 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	r := <-resB
	require.NoError(t, r.err)
	assert.Equal(t, []byte("content"), r.b.Content())
	assert.Equal(t, int64(1), calls.Load())
	assert.True(t, c.Contains("A"))

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestGetBook_CoalescedWaiterHonorsOwnContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	p := provider.Func(func(_ context.Context, name string) (*book.Book, error) {
		close(started)
		<-release
		return book.New(name, []byte("late")), nil
	})
	c := newCache(t, 100, p, WithLoadMode(LoadCoalesced))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	go func() {
		<-started
		<-ctx.Done()
		close(release)
	}()

	_, err := c.GetBook(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The detached load still lands in the cache.
	assert.Eventually(t, func() bool { return c.Contains("slow") }, time.Second, 5*time.Millisecond)
}

func TestGetBook_CoalescedJoinersShareFailure(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	boom := errors.New("boom")

	p := provider.Func(func(_ context.Context, _ string) (*book.Book, error) {
		close(started)
		<-release
		return nil, boom
	})
	c := newCache(t, 100, p, WithLoadMode(LoadCoalesced))

	errs := make(chan error, 2)
	go func() {
		_, err := c.GetBook(context.Background(), "bad")
		errs <- err
	}()
	<-started
	go func() {
		_, err := c.GetBook(context.Background(), "bad")
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.ErrorIs(t, <-errs, boom)
	assert.ErrorIs(t, <-errs, boom)
	assert.False(t, c.Contains("bad"))

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Misses)
	assert.Zero(t, stats.Hits)
}

func TestGetBook_CoalescedLoadsDifferentNamesInParallel(t *testing.T) {
	var inFlight atomic.Int64
	both := make(chan struct{})
	var once sync.Once

	p := provider.Func(func(_ context.Context, name string) (*book.Book, error) {
		if inFlight.Add(1) == 2 {
			once.Do(func() { close(both) })
		}
		select {
		case <-both:
			return book.New(name, []byte(name)), nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("loads were not concurrent")
		}
	})
	c := newCache(t, 100, p, WithLoadMode(LoadCoalesced))

	var wg sync.WaitGroup
	for _, name := range []string{"x", "y"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetBook(context.Background(), name)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"x", "y"}, c.Names())
}

func TestGetBook_SerializedLoadsOneAtATime(t *testing.T) {
	var inFlight, peak atomic.Int64

	p := provider.Func(func(_ context.Context, name string) (*book.Book, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return book.New(name, []byte(name)), nil
	})
	c := newCache(t, 1000, p)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetBook(context.Background(), fmt.Sprintf("n%d", i))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), peak.Load())
	assert.Equal(t, 8, c.Len())
}

func TestGetBook_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	var got any
	c := newCache(t, 10, provider.Func(func(ctx context.Context, name string) (*book.Book, error) {
		got = ctx.Value(key{})
		return book.New(name, nil), nil
	}))

	_, err := c.GetBook(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestGetBook_ResourceControllerDenies(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 5})
	c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "B": 4}), WithResourceController(rc))

	_, err := c.GetBook(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rc.MemoryUsage())

	b, err := c.GetBook(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, "B", b.Name())
	assert.False(t, c.Contains("B"))
	assert.Equal(t, []string{"A"}, c.Names())

	c.Purge()
	assert.Zero(t, rc.MemoryUsage())
}

func TestWarm(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadsAll", func(t *testing.T) {
		p := sizedProvider(map[string]int{"A": 2, "B": 2, "C": 2})
		c := newCache(t, 10, p, WithWarmConcurrency(2))

		require.NoError(t, c.Warm(ctx, "A", "B", "C"))
		assert.ElementsMatch(t, []string{"A", "B", "C"}, c.Names())
		assert.Equal(t, int64(3), p.Loads())

		// Already cached: no further loads.
		require.NoError(t, c.Warm(ctx, "A", "B"))
		assert.Equal(t, int64(3), p.Loads())
	})

	t.Run("ReturnsError", func(t *testing.T) {
		c := newCache(t, 10, sizedProvider(map[string]int{"A": 2}), WithLoadMode(LoadCoalesced))

		err := c.Warm(ctx, "A", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Empty", func(t *testing.T) {
		c := newCache(t, 10, sizedProvider(nil))
		assert.NoError(t, c.Warm(ctx))
	})
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "B": 4}))

	a, err := c.GetBook(ctx, "A")
	require.NoError(t, err)
	_, err = c.GetBook(ctx, "B")
	require.NoError(t, err)

	c.Purge()
	assert.Zero(t, c.Len())
	assert.Zero(t, c.Size())
	assert.Empty(t, c.Names())
	assert.Equal(t, []byte("AAAA"), a.Content())
}

func TestPeekDoesNotPromoteOrLoad(t *testing.T) {
	ctx := context.Background()
	p := sizedProvider(map[string]int{"A": 4, "B": 4})
	c := newCache(t, 10, p)

	_, ok := c.Peek("A")
	assert.False(t, ok)
	assert.Zero(t, p.Loads())

	for _, name := range []string{"A", "B"} {
		_, err := c.GetBook(ctx, name)
		require.NoError(t, err)
	}

	_, ok = c.Peek("A")
	assert.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, c.Names())
}

func TestStatsAndMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	c := newCache(t, 10, sizedProvider(map[string]int{"A": 4, "B": 4, "C": 4, "D": 20}), WithMetricsCollector(metrics))

	for _, name := range []string{"A", "A", "B", "C", "missing", "D"} {
		_, _ = c.GetBook(ctx, name)
	}

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(5), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(1), stats.Resets)
	assert.Zero(t, stats.Items)
	assert.Zero(t, stats.Bytes)
	assert.Equal(t, int64(10), stats.MaxBytes)

	m := metrics.GetStats()
	assert.Equal(t, int64(1), m.HitCount)
	assert.Equal(t, int64(5), m.MissCount)
	assert.Equal(t, int64(1), m.MissErrors)
	assert.Equal(t, int64(1), m.EvictionCount)
	assert.Equal(t, int64(4), m.EvictedBytes)
	assert.Equal(t, int64(1), m.ResetCount)
	assert.Equal(t, int64(2), m.ResetBooks)
	assert.Equal(t, int64(8), m.ResetBytes)
	assert.InDelta(t, 1.0/6.0, m.HitRatio(), 1e-9)
}

func TestGetBook_ArchiveStoreFailureLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	store := faulty.NewStore(nil)
	p := provider.NewArchiveProvider(store)
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, p.Pack(ctx, name, bytes.Repeat([]byte(name), 4), archive.CompressionLZ4))
	}

	c := newCache(t, 10, p)
	for _, name := range []string{"A", "B"} {
		_, err := c.GetBook(ctx, name)
		require.NoError(t, err)
	}

	store.AddRule("C", faulty.Fault{FailOnOpen: true})
	_, err := c.GetBook(ctx, "C")
	assert.ErrorIs(t, err, faulty.ErrInjected)
	assert.Equal(t, []string{"A", "B"}, c.Names())
	assert.Equal(t, int64(8), c.Size())

	store.ClearRules()
	_, err = c.GetBook(ctx, "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, c.Names())
	assert.Equal(t, int64(4), store.Opens())
}
