package vfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/go-git/go-billy/v5"
)

// file wraps a go-billy file handle and satisfies the File interface.
// billy.File has no Stat, so it is answered through the owning filesystem.
type file struct {
	file billy.File
	fs   *FS
}

var _ File = (*file)(nil)

// Close implements File.Close.
func (f *file) Close() error {
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("vfs: close %q: %w", f.file.Name(), err)
	}
	return nil
}

// Name implements File.Name.
func (f *file) Name() string {
	return f.file.Name()
}

// Read implements File.Read.
func (f *file) Read(p []byte) (n int, err error) {
	n, err = f.file.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, io.EOF
		}
		return n, fmt.Errorf("vfs: read %q: %w", f.file.Name(), err)
	}
	return n, nil
}

// Seek implements File.Seek.
func (f *file) Seek(offset int64, whence int) (int64, error) {
	pos, err := f.file.Seek(offset, whence)
	if err != nil {
		return pos, fmt.Errorf("vfs: seek %q off=%d whence=%d: %w", f.file.Name(), offset, whence, err)
	}
	return pos, nil
}

// Stat implements File.Stat.
func (f *file) Stat() (fs.FileInfo, error) {
	info, err := f.fs.Stat(f.file.Name())
	if err != nil {
		return nil, fmt.Errorf("vfs: stat %q: %w", f.file.Name(), err)
	}
	return info, nil
}

// Write implements File.Write.
func (f *file) Write(p []byte) (n int, err error) {
	n, err = f.file.Write(p)
	if err != nil {
		return n, fmt.Errorf("vfs: write %q: %w", f.file.Name(), err)
	}
	return n, nil
}
