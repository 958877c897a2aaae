// Package resource implements the Controller for global limits shared by
// caches and providers.
//
// The Controller manages three resource types:
//
//   - Memory: track and limit bytes held by caches (non-blocking, fail-fast)
//   - Loads: limit concurrent materializations (e.g. during a cache warm-up)
//   - IO: rate-limit provider reads so warm-ups don't starve foreground reads
//
// # Memory
//
// Memory tracking uses a weighted semaphore for the hard limit and an atomic
// counter for usage. AcquireMemory never blocks:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB shared by all caches
//	})
//
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded - don't cache
//	}
//	defer rc.ReleaseMemory(n)
//
// # Loads
//
//	if err := rc.AcquireLoad(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseLoad()
//
// # IO
//
// A token bucket limits read throughput in bytes per second:
//
//	reader := resource.NewRateLimitedReader(ctx, blobReader, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
