package gitvault

import (
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

// toBilly extracts the go-billy filesystem behind a vfs.Filesystem so
// go-git can operate on it directly. The filesystem must be the billy
// adapter from the vfs package.
//
//nolint:ireturn // returns interface as required by billy.Filesystem.
func toBilly(fsys vfs.Filesystem) (billy.Filesystem, error) {
	wrapped, ok := fsys.(*vfs.FS)
	if !ok {
		return nil, fmt.Errorf("gitvault: filesystem must be a vfs.FS, got %T", fsys)
	}
	return wrapped.Raw(), nil
}

// newStorage creates git object storage with an LRU cache for frequently
// accessed objects.
func newStorage(billyFS billy.Filesystem, cacheSize int) *filesystem.Storage {
	if cacheSize <= 0 {
		cacheSize = 100
	}

	objCache := cache.NewObjectLRU(cache.FileSize(cacheSize))
	return filesystem.NewStorage(billyFS, objCache)
}
