package billyfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/hupe1980/bookcache/blobstore"
)

const tempPrefix = ".tmp-"

// Store implements blobstore.BlobStore on a billy.Filesystem.
type Store struct {
	bfs billy.Filesystem
}

var _ blobstore.BlobStore = (*Store)(nil)

// New wraps an existing billy filesystem.
func New(bfs billy.Filesystem) *Store {
	return &Store{bfs: bfs}
}

// NewLocal creates a store rooted at dir on the local disk.
func NewLocal(dir string) *Store {
	return New(osfs.New(dir))
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Store {
	return New(memfs.New())
}

// Unwrap returns the underlying filesystem.
func (s *Store) Unwrap() billy.Filesystem {
	return s.bfs
}

// normalize converts names to clean slash-separated relative paths.
func normalize(name string) string {
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Open opens a blob for reading.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := normalize(name)
	info, err := s.bfs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, blobstore.ErrNotFound
	}

	f, err := s.bfs.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &billyBlob{f: f, size: info.Size()}, nil
}

// Put writes to a temp file and renames it into place.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := normalize(name)
	dir := path.Dir(p)
	if err := s.bfs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := s.bfs.TempFile(dir, tempPrefix)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.bfs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.bfs.Remove(tmpName)
		return err
	}
	if err := s.bfs.Rename(tmpName, p); err != nil {
		_ = s.bfs.Remove(tmpName)
		return err
	}
	return nil
}

// Delete removes a blob.
func (s *Store) Delete(_ context.Context, name string) error {
	err := s.bfs.Remove(normalize(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List returns all blobs matching the prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string

	err := util.Walk(s.bfs, "", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), tempPrefix) {
			return nil
		}
		rel := normalize(p)
		if strings.HasPrefix(rel, prefix) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

// billyBlob serializes access to the file; not every billy.File
// implementation has a concurrency-safe ReadAt.
type billyBlob struct {
	mu   sync.Mutex
	f    billy.File
	size int64
}

func (b *billyBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if off >= b.size {
		return 0, io.EOF
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.f.ReadAt(p, off)
}

func (b *billyBlob) Size() int64 {
	return b.size
}

func (b *billyBlob) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.f.Close()
}
