package minio

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hupe1980/bookcache/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestMinIO starts a MinIO container and returns a store backed by it.
func setupTestMinIO(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	minioC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("MinIO container not available: %v", err)
	}
	t.Cleanup(func() { _ = minioC.Terminate(ctx) })

	endpoint, err := minioC.Endpoint(ctx, "")
	require.NoError(t, err, "failed to get container endpoint")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err, "failed to create MinIO client")

	bucket := "test-bookcache"
	require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))

	return NewStore(client, bucket, "test-prefix/")
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("boom")))
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "bucket", "books/")
	assert.Equal(t, "books/a.bkar", s.key("a.bkar"))
	assert.Equal(t, "books", s.key(""))

	s = NewStore(nil, "bucket", "")
	assert.Equal(t, "a.bkar", s.key("a.bkar"))
}

func TestIntegration_MinioStore(t *testing.T) {
	store := setupTestMinIO(t)
	ctx := context.Background()

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "test.bkar", data))

	t.Run("Open and ReadAt", func(t *testing.T) {
		blob, err := store.Open(ctx, "test.bkar")
		require.NoError(t, err)
		defer func() { _ = blob.Close() }()
		require.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, "minio", string(buf))

		tail := make([]byte, 10)
		n, err = blob.ReadAt(ctx, tail, 12)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, "world", string(tail[:n]))

		all, err := blobstore.ReadAll(ctx, blob)
		require.NoError(t, err)
		assert.Equal(t, data, all)
	})

	t.Run("List", func(t *testing.T) {
		names, err := store.List(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"test.bkar"}, names)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Open(ctx, "missing.bkar")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "test.bkar"))
		_, err := store.Open(ctx, "test.bkar")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		// Deleting twice is fine.
		require.NoError(t, store.Delete(ctx, "test.bkar"))
	})
}
