// Package redis provides a BlobStore that keeps book archives in Redis strings.
//
// Reads use GETRANGE so partial fetches do not transfer the whole value.
//
//	client, err := redis.Connect(ctx, redis.Config{ConnectionURL: "redis://localhost:6379/0"})
//	store := redis.NewStore(client, "books:")
package redis
