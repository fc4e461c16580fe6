package vfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FS implements Filesystem using go-billy. The same implementation backs
// both OS-rooted vaults and in-memory vaults.
type FS struct {
	fs billy.Filesystem
}

// NewFS wraps an existing go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{fs: fsys}
}

// NewOS creates a filesystem rooted at the given OS path.
func NewOS(root string) *FS {
	return &FS{fs: osfs.New(root)}
}

// NewMemory creates an in-memory filesystem.
func NewMemory() *FS {
	return &FS{fs: memfs.New()}
}

// Raw returns the underlying go-billy filesystem. The native backend uses
// this to hand storage directly to go-git.
//
//nolint:ireturn // returning the interface exposes the adapter target.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

// Create implements Filesystem.Create.
//
//nolint:ireturn // API returns the File interface by design.
func (b *FS) Create(name string) (File, error) {
	f, err := b.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("vfs: create %q: %w", name, err)
	}
	return &file{file: f, fs: b}, nil
}

// Open implements Filesystem.Open.
//
//nolint:ireturn // API returns the File interface by design.
func (b *FS) Open(name string) (File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("vfs: open %q: %w", name, err)
	}
	return &file{file: f, fs: b}, nil
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("vfs: stat %q: %w", path, err)
	}
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("vfs: stat %q: %w", name, err)
	}
	return info, nil
}

// ReadDir implements Filesystem.ReadDir.
func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("vfs: readdir %q: %w", dirname, err)
	}
	return list, nil
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("vfs: readfile %q: %w", path, err)
	}
	return bts, nil
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, filename, data, perm); err != nil {
		return fmt.Errorf("vfs: writefile %q: %w", filename, err)
	}
	return nil
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("vfs: mkdirall %q: %w", path, err)
	}
	return nil
}

// Remove implements Filesystem.Remove.
func (b *FS) Remove(name string) error {
	if err := b.fs.Remove(name); err != nil {
		return fmt.Errorf("vfs: remove %q: %w", name, err)
	}
	return nil
}

// Rename implements Filesystem.Rename.
func (b *FS) Rename(oldpath, newpath string) error {
	if err := b.fs.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("vfs: rename %q -> %q: %w", oldpath, newpath, err)
	}
	return nil
}

// Walk implements Filesystem.Walk.
func (b *FS) Walk(root string, walkFn filepath.WalkFunc) error {
	if err := util.Walk(b.fs, root, walkFn); err != nil {
		return fmt.Errorf("vfs: walk %q: %w", root, err)
	}
	return nil
}
