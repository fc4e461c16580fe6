package vfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFSRoundtrip(t *testing.T) {
	fsys := NewMemory()

	require.NoError(t, fsys.WriteFile("notes/a.md", []byte("alpha"), 0o644))

	exists, err := fsys.Exists("notes/a.md")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := fsys.ReadFile("notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)

	info, err := fsys.Stat("notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
}

func TestFileHandleStat(t *testing.T) {
	fsys := NewMemory()

	out, err := fsys.Create("notes/a.md")
	require.NoError(t, err)
	n, err := out.Write([]byte("alpha"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, out.Close())

	in, err := fsys.Open("notes/a.md")
	require.NoError(t, err)
	defer in.Close()

	info, err := in.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	buf := make([]byte, 5)
	_, err = in.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(buf))
}

func TestExistsMissing(t *testing.T) {
	fsys := NewMemory()

	exists, err := fsys.Exists("nope.md")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReadDir(t *testing.T) {
	fsys := NewMemory()
	require.NoError(t, fsys.WriteFile("a.md", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("sub/b.md", []byte("b"), 0o644))

	entries, err := fsys.ReadDir(".")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"a.md", "sub"}, names)
}

func TestRemoveAndRename(t *testing.T) {
	fsys := NewMemory()
	require.NoError(t, fsys.WriteFile("old.md", []byte("x"), 0o644))

	require.NoError(t, fsys.Rename("old.md", "new.md"))

	exists, err := fsys.Exists("old.md")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, fsys.Remove("new.md"))
	exists, err = fsys.Exists("new.md")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWalk(t *testing.T) {
	fsys := NewMemory()
	require.NoError(t, fsys.WriteFile("a.md", []byte("a"), 0o644))
	require.NoError(t, fsys.WriteFile("sub/deep/b.md", []byte("b"), 0o644))

	var files []string
	err := fsys.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.md", "sub/deep/b.md"}, files)
}
