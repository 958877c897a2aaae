package redis

import (
	"context"
	"io"
	"testing"

	"github.com/hupe1980/bookcache/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestRedis(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redis container not available: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	endpoint, err := redisC.Endpoint(ctx, "redis")
	require.NoError(t, err)

	client, err := Connect(ctx, Config{ConnectionURL: endpoint + "/0", RetryAttempts: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client, "books:")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "books:", escapeGlob("books:"))
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
}

func TestCompact(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, compact([]string{"a", "a", "b", "c", "c"}))
	assert.Nil(t, compact(nil))
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{ConnectionURL: "://bad"})
	assert.ErrorIs(t, err, ErrFailedToParseConnString)
}

func TestIntegration_RedisStore(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	data := []byte("hello redis world")
	require.NoError(t, store.Put(ctx, "a.bkar", data))
	require.NoError(t, store.Put(ctx, "b.bkar", []byte("b")))

	t.Run("ReadAt", func(t *testing.T) {
		blob, err := store.Open(ctx, "a.bkar")
		require.NoError(t, err)
		require.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		assert.Equal(t, "redis", string(buf[:n]))

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
		assert.Equal(t, []string{"a.bkar", "b.bkar"}, names)

		names, err = store.List(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"b.bkar"}, names)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Open(ctx, "missing.bkar")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "a.bkar"))
		_, err := store.Open(ctx, "a.bkar")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})
}
