package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenParachutePBC/parachute-sub000/blob"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

func setupVaultFS(t *testing.T, files map[string]string) vfs.Filesystem {
	t.Helper()

	fsys := vfs.NewMemory()
	for rel, content := range files {
		require.NoError(t, fsys.WriteFile(rel, []byte(content), 0o644))
	}
	return fsys
}

func TestWalk(t *testing.T) {
	fsys := setupVaultFS(t, map[string]string{
		"inbox.md":             "# Inbox\n",
		"notes/meeting.md":     "# Meeting\n",
		"audio/2026/rec.m4a":   "fake-audio-bytes",
		".git/config":          "[core]\n",
		".git/objects/ab/cdef": "zlib",
		"notes/.DS_Store":      "junk",
	})

	snap, err := Walk(fsys, ".")
	require.NoError(t, err)

	assert.Equal(t, []string{"audio/2026/rec.m4a", "inbox.md", "notes/meeting.md"}, snap.Paths())
	assert.Equal(t, blob.Hash([]byte("# Inbox\n")), snap["inbox.md"])
	assert.NotContains(t, snap, ".git/config")
	assert.NotContains(t, snap, "notes/.DS_Store")
}

func TestWalkEmptyTree(t *testing.T) {
	snap, err := Walk(vfs.NewMemory(), ".")
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestWalkDigestsMatchAcrossTrees(t *testing.T) {
	// Identical content in differently shaped trees must hash the same;
	// this is what lets local and remote snapshots compare directly.
	a := setupVaultFS(t, map[string]string{"x/note.md": "same\n"})
	b := setupVaultFS(t, map[string]string{"y/other.md": "same\n"})

	snapA, err := Walk(a, ".")
	require.NoError(t, err)
	snapB, err := Walk(b, ".")
	require.NoError(t, err)

	assert.Equal(t, snapA["x/note.md"], snapB["y/other.md"])
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{rel: "notes/a.md", want: false},
		{rel: ".git", want: true},
		{rel: ".git/config", want: true},
		{rel: "notes/.git/config", want: true},
		{rel: ".DS_Store", want: true},
		{rel: "audio/.DS_Store", want: true},
		{rel: "gitlog.md", want: false},
		{rel: ".", want: false},
		{rel: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, Excluded(tt.rel))
		})
	}
}

func TestSnapshotEqual(t *testing.T) {
	a := Snapshot{"a.md": "h1", "b.md": "h2"}

	assert.True(t, a.Equal(Snapshot{"a.md": "h1", "b.md": "h2"}))
	assert.False(t, a.Equal(Snapshot{"a.md": "h1"}))
	assert.False(t, a.Equal(Snapshot{"a.md": "h1", "b.md": "other"}))
	assert.True(t, Snapshot{}.Equal(Snapshot{}))
}

func TestSnapshotClone(t *testing.T) {
	orig := Snapshot{"a.md": "h1"}
	cp := orig.Clone()
	cp["a.md"] = "changed"

	assert.Equal(t, "h1", orig["a.md"], "clone must not share storage")
}
