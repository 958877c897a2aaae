package bookcache

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bookcache-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// WithName adds a book name field to the logger.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("name", name),
	}
}

// LogHit logs a cache hit.
func (l *Logger) LogHit(ctx context.Context, name string, size int64) {
	l.DebugContext(ctx, "cache hit",
		"name", name,
		"size", size,
	)
}

// LogMiss logs a cache miss and the outcome of the provider call.
// Provider errors are expected (unknown names) and stay at debug level.
func (l *Logger) LogMiss(ctx context.Context, name string, size int64, err error) {
	if err != nil {
		l.DebugContext(ctx, "materialize failed",
			"name", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache miss",
			"name", name,
			"size", size,
		)
	}
}

// LogEviction logs books evicted to make room for name.
func (l *Logger) LogEviction(ctx context.Context, name string, evicted int, bytes int64) {
	l.DebugContext(ctx, "evicted books",
		"for", name,
		"count", evicted,
		"bytes", bytes,
	)
}

// LogReset logs a full reset caused by an oversized book.
func (l *Logger) LogReset(ctx context.Context, name string, size, maxBytes int64, dropped int, droppedBytes int64) {
	l.InfoContext(ctx, "oversized book cleared cache",
		"name", name,
		"size", size,
		"max_bytes", maxBytes,
		"dropped", dropped,
		"dropped_bytes", droppedBytes,
	)
}

// LogRejected logs a book that could not be cached because the memory
// controller denied the reservation.
func (l *Logger) LogRejected(ctx context.Context, name string, size int64) {
	l.WarnContext(ctx, "memory limit denied caching",
		"name", name,
		"size", size,
	)
}

// LogWarm logs the result of a warm-up.
func (l *Logger) LogWarm(ctx context.Context, requested int, err error) {
	if err != nil {
		l.WarnContext(ctx, "warm failed",
			"requested", requested,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "warm completed",
			"requested", requested,
		)
	}
}
