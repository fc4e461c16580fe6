package watch

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func startWatcher(t *testing.T, root string, notified *atomic.Int32) *Watcher {
	t.Helper()

	w, err := New(root, func() { notified.Add(1) }, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestNotifiesAfterWrite(t *testing.T) {
	root := t.TempDir()
	var notified atomic.Int32
	startWatcher(t, root, &notified)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("hello"), 0o644))

	assert.Eventually(t, func() bool { return notified.Load() >= 1 }, waitFor, tick)
}

func TestDebouncesBursts(t *testing.T) {
	root := t.TempDir()
	var notified atomic.Int32
	startWatcher(t, root, &notified)

	// A save burst: several writes in quick succession.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte{byte(i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return notified.Load() >= 1 }, waitFor, tick)

	// Give any stray timers a chance to fire, then check the burst
	// collapsed into a single notification.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), notified.Load())
}

func TestIgnoresRepositoryMetadata(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	var notified atomic.Int32
	startWatcher(t, root, &notified)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), notified.Load(), "repository internals must not trigger sync")
}

func TestWatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	var notified atomic.Int32
	startWatcher(t, root, &notified)

	sub := filepath.Join(root, "notes")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Eventually(t, func() bool { return notified.Load() >= 1 }, waitFor, tick)

	before := notified.Load()
	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.md"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool { return notified.Load() > before }, waitFor, tick)
}

func TestStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	var notified atomic.Int32
	w := startWatcher(t, root, &notified)

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestStartTwice(t *testing.T) {
	root := t.TempDir()
	var notified atomic.Int32
	w := startWatcher(t, root, &notified)

	assert.Error(t, w.Start())
}
