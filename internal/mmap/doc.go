// Package mmap provides read-only memory-mapped file access.
//
// LocalStore maps archive files instead of reading them so that the decoder
// works directly on the page cache:
//
//	m, err := mmap.Open("novel.bk")
//	if err != nil { ... }
//	defer m.Close()
//
//	data := m.Bytes() // valid until Close
//
// Unix uses mmap(2) via golang.org/x/sys/unix; Windows uses
// CreateFileMapping/MapViewOfFile.
package mmap
