package bookcache

import (
	"errors"

	"github.com/hupe1980/bookcache/provider"
)

var (
	// ErrNotFound is returned when the provider has no content for a name.
	// It is the same value as provider.ErrNotFound.
	ErrNotFound = provider.ErrNotFound

	// ErrEmptyName is returned by GetBook for an empty name.
	ErrEmptyName = errors.New("book name must not be empty")

	// ErrInvalidMaxBytes is returned when the byte budget is not positive.
	ErrInvalidMaxBytes = errors.New("max bytes must be positive")

	// ErrNilProvider is returned by New when no provider is given.
	ErrNilProvider = errors.New("provider must not be nil")

	// ErrNilBook is returned when a provider reports success without a book.
	ErrNilBook = errors.New("provider returned nil book")

	// ErrParsingSettings wraps errors from reading settings from the environment.
	ErrParsingSettings = errors.New("failed to parse settings from environment")
)
