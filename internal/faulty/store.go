package faulty

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/bookcache/blobstore"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailOnOpen    bool
	FailOnPut     bool
	FailReadAfter int64 // Fail reads that reach past this offset. -1 to disable.
	FailOnClose   bool
	Err           error // Defaults to ErrInjected.
}

// Store is a BlobStore wrapper that can inject errors.
type Store struct {
	blobstore.BlobStore

	mu      sync.Mutex
	rules   map[string]Fault // name pattern -> fault
	Default Fault

	opens atomic.Int64
}

// NewStore wraps inner (or a fresh MemoryStore if nil).
func NewStore(inner blobstore.BlobStore) *Store {
	if inner == nil {
		inner = blobstore.NewMemoryStore()
	}
	return &Store{
		BlobStore: inner,
		rules:     make(map[string]Fault),
		Default:   Fault{FailReadAfter: -1},
	}
}

// AddRule adds a fault for blob names containing pattern.
// When several patterns match, the longest wins.
func (s *Store) AddRule(pattern string, fault Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[pattern] = fault
}

// ClearRules removes all rules.
func (s *Store) ClearRules() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make(map[string]Fault)
}

// Opens returns how many times Open was called.
func (s *Store) Opens() int64 {
	return s.opens.Load()
}

func (s *Store) faultFor(name string) Fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	fault := s.Default
	best := -1
	for pattern, rule := range s.rules {
		if strings.Contains(name, pattern) && len(pattern) > best {
			fault, best = rule, len(pattern)
		}
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	return fault
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.opens.Add(1)

	fault := s.faultFor(name)
	if fault.FailOnOpen {
		return nil, fault.Err
	}

	b, err := s.BlobStore.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &blob{Blob: b, fault: fault}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if fault := s.faultFor(name); fault.FailOnPut {
		return fault.Err
	}
	return s.BlobStore.Put(ctx, name, data)
}

type blob struct {
	blobstore.Blob
	fault Fault
}

func (b *blob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if b.fault.FailReadAfter >= 0 && off+int64(len(p)) > b.fault.FailReadAfter {
		return 0, b.fault.Err
	}
	return b.Blob.ReadAt(ctx, p, off)
}

func (b *blob) Close() error {
	err := b.Blob.Close()
	if b.fault.FailOnClose {
		return b.fault.Err
	}
	return err
}
