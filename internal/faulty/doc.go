// Package faulty provides a BlobStore wrapper that injects errors, for tests.
package faulty
