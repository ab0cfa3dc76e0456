// Package membackend is a toy sessionfs.Backend: a fixed, in-memory
// directory tree, standing in for the network round-trips a real remote
// filesystem would make. It exists so cmd/vfsdemo and cmd/vfsfused can
// run sessionfs without a live server.
package membackend

import (
	"bytes"
	"io"
	"strings"

	"github.com/complyue/vfscache/vfsdemo/sessionfs"
)

// Backend is the fixed demo tree: "/pub" holds a small readme and a
// "big" file large enough to exercise more than one linear read.
type Backend struct {
	dirs  map[string][]sessionfs.BackendEntry
	files map[string][]byte
}

// New builds the fixed demo tree.
func New() *Backend {
	big := bytes.Repeat([]byte("0123456789abcdef"), 4096) // 64 KiB
	b := &Backend{
		dirs: map[string][]sessionfs.BackendEntry{
			"": {
				{Name: "pub", IsDir: true},
			},
			"pub": {
				{Name: "readme.txt", Size: 13},
				{Name: "big", Size: int64(len(big))},
			},
		},
		files: map[string][]byte{
			"pub/readme.txt": []byte("hello, world!"),
			"pub/big":        big,
		},
	}
	return b
}

// List implements sessionfs.Backend.
func (b *Backend) List(dirPath string) ([]sessionfs.BackendEntry, error) {
	dirPath = strings.Trim(dirPath, "/")
	entries, ok := b.dirs[dirPath]
	if !ok {
		return nil, nil
	}
	return entries, nil
}

// Open implements sessionfs.Backend.
func (b *Backend) Open(path string) (io.ReadCloser, error) {
	path = strings.Trim(path, "/")
	body, ok := b.files[path]
	if !ok {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}
