// Package vfs provides the filesystem abstraction the sync engine operates
// through. All vault state lives behind this interface so every component,
// including the native version-control backend, works identically against
// an on-disk vault and an in-memory one used in tests.
package vfs

import (
	"io/fs"
	"os"
	"path/filepath"
)

// File represents an open file handle supporting basic I/O operations.
// Implementations should behave consistently with the standard library.
type File interface {
	Close() error
	Name() string
	Read(p []byte) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Stat() (fs.FileInfo, error)
	Write(p []byte) (n int, err error)
}

// Filesystem is the set of operations the sync engine needs from a vault
// root. It is satisfied by the billy-backed FS in this package.
type Filesystem interface {
	// Create creates or truncates the named file and opens it for writing.
	Create(name string) (File, error)

	// Open opens the named file for reading.
	Open(name string) (File, error)

	// Exists reports whether the named path exists.
	Exists(path string) (bool, error)

	// Stat returns file info for the named path.
	Stat(name string) (os.FileInfo, error)

	// ReadDir reads the named directory and returns its entries.
	ReadDir(dirname string) ([]os.FileInfo, error)

	// ReadFile reads the named file and returns its contents.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to the named file, creating it if necessary.
	WriteFile(filename string, data []byte, perm os.FileMode) error

	// MkdirAll creates the named directory along with any parents.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes the named file or empty directory.
	Remove(name string) error

	// Rename renames (moves) oldpath to newpath.
	Rename(oldpath, newpath string) error

	// Walk walks the file tree rooted at root, calling walkFn for each
	// file or directory, including root.
	Walk(root string, walkFn filepath.WalkFunc) error
}
