package bookcache

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/bookcache/resource"
)

// LoadMode selects how misses are materialized.
type LoadMode int

const (
	// LoadSerialized holds a cache-wide lock across the provider call.
	// All GetBook calls run one at a time.
	LoadSerialized LoadMode = iota

	// LoadCoalesced calls the provider without holding the cache lock.
	// Concurrent misses for the same name share one provider call;
	// different names load in parallel.
	LoadCoalesced
)

var loadModeNames = [...]string{
	LoadSerialized: "serialized",
	LoadCoalesced:  "coalesced",
}

func (m LoadMode) String() string {
	if int(m) >= 0 && int(m) < len(loadModeNames) {
		return loadModeNames[m]
	}
	return fmt.Sprintf("LoadMode(%d)", int(m))
}

// UnmarshalText implements encoding.TextUnmarshaler so LoadMode can be read
// from the environment.
func (m *LoadMode) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range loadModeNames {
		if s == name {
			*m = LoadMode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown load mode %q", s)
}

// DefaultWarmConcurrency is the number of parallel loads used by Warm.
const DefaultWarmConcurrency = 4

type options struct {
	loadMode         LoadMode
	metricsCollector MetricsCollector
	logger           *Logger
	rc               *resource.Controller
	warmConcurrency  int
}

// Option configures a Cache.
type Option func(*options)

// WithLoadMode selects the miss handling strategy. Default: LoadSerialized.
func WithLoadMode(mode LoadMode) Option {
	return func(o *options) {
		o.loadMode = mode
	}
}

// WithMetricsCollector configures a custom metrics collector.
// Pass nil to disable metrics collection (uses NoopMetricsCollector).
//
// Example:
//
//	metrics := &bookcache.BasicMetricsCollector{}
//	c, _ := bookcache.New(64<<20, p, bookcache.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Hit ratio: %.2f\n", stats.HitRatio())
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := bookcache.NewJSONLogger(slog.LevelInfo)
//	c, _ := bookcache.New(64<<20, p, bookcache.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController accounts cached bytes against a shared controller.
// When the controller denies memory, the book is returned uncached.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithWarmConcurrency sets how many books Warm loads in parallel.
func WithWarmConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.warmConcurrency = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		loadMode:         LoadSerialized,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		warmConcurrency:  DefaultWarmConcurrency,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
