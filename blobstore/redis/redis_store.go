package redis

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/hupe1980/bookcache/blobstore"
	goredis "github.com/redis/go-redis/v9"
)

// Store implements blobstore.BlobStore on top of Redis string values.
type Store struct {
	db            goredis.UniversalClient
	prefix        string
	scanBatchSize int64
}

var _ blobstore.BlobStore = (*Store)(nil)

// NewStore creates a store. prefix is prepended to every key (e.g. "books:").
func NewStore(client goredis.UniversalClient, prefix string) *Store {
	return &Store{
		db:            client,
		prefix:        prefix,
		scanBatchSize: 1000,
	}
}

// NewStoreWithConfig creates a store using the scan batch size from cfg.
func NewStoreWithConfig(client goredis.UniversalClient, prefix string, cfg Config) *Store {
	s := NewStore(client, prefix)
	if cfg.ScanBatchSize > 0 {
		s.scanBatchSize = cfg.ScanBatchSize
	}
	return s
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

// Open checks that the key exists and records its length.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)

	var exists, size *goredis.IntCmd
	_, err := s.db.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		exists = p.Exists(ctx, key)
		size = p.StrLen(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if exists.Val() == 0 {
		return nil, blobstore.ErrNotFound
	}

	return &redisBlob{db: s.db, key: key, size: size.Val()}, nil
}

// Put stores the blob with no expiration.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return s.db.Set(ctx, s.key(name), data, 0).Err()
}

// Delete removes a blob.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.db.Del(ctx, s.key(name)).Err()
}

// List returns all blob names with the given prefix using SCAN.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.key(prefix)) + "*"

	var (
		names  []string
		cursor uint64
	)
	for {
		batch, next, err := s.db.Scan(ctx, cursor, match, s.scanBatchSize).Result()
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			names = append(names, strings.TrimPrefix(k, s.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	// SCAN may return a key more than once.
	sort.Strings(names)
	return compact(names), nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\', '^', '-':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func compact(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

type redisBlob struct {
	db   goredis.UniversalClient
	key  string
	size int64
}

func (b *redisBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	end := off + int64(len(p)) - 1
	if end >= b.size {
		end = b.size - 1
	}

	data, err := b.db.GetRange(ctx, b.key, off, end).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, blobstore.ErrNotFound
		}
		return 0, err
	}
	if len(data) == 0 {
		// The key vanished or shrank after Open.
		return 0, blobstore.ErrNotFound
	}

	n := copy(p, data)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *redisBlob) Size() int64 {
	return b.size
}

func (b *redisBlob) Close() error {
	return nil
}
