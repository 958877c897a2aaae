// Package billyfs adapts any go-billy filesystem to blobstore.BlobStore.
//
// Use osfs for a directory on disk, memfs for tests, or chroot to scope
// a store to a subtree of a larger filesystem.
package billyfs
