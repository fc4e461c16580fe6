// Package watch turns filesystem events in the vault into sync triggers.
// It watches the vault tree with fsnotify, ignores repository internals,
// and debounces bursts (an app saving a note often writes several events
// in quick succession) into a single notification.
package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
)

// DefaultDebounce is how long the watcher waits after the last event
// before notifying. Long enough to coalesce a save burst, short enough
// that sync still feels immediate.
const DefaultDebounce = 2 * time.Second

// Watcher observes a vault root and invokes a callback when its contents
// settle after a change.
type Watcher struct {
	root     string
	debounce time.Duration
	notify   func()

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the settle interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a watcher over the vault root. notify is invoked from the
// watcher goroutine after events settle; wiring it to the engine's
// OnLocalWriteCompleted keeps it non-blocking.
func New(root string, notify func(), opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: creating watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: DefaultDebounce,
		notify:   notify,
		watcher:  fsw,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start registers the vault tree with the watcher and begins processing
// events. fsnotify watches are not recursive, so every directory in the
// tree is registered; directories created later are added as their
// create events arrive.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watch: already running")
	}

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excluded(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch: registering vault tree: %w", err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()

	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()

	if err != nil {
		return fmt.Errorf("watch: closing watcher: %w", err)
	}
	return nil
}

// loop debounces events into notifications. The timer restarts on every
// relevant event; notify fires only after the vault has been quiet for
// the debounce interval.
func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				w.maybeWatchDir(event.Name)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			w.notify()

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are not actionable here; the periodic
			// trigger still covers missed events.
		}
	}
}

// relevant filters out repository internals and chmod-only events.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if w.excluded(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename)
}

// excluded reports whether path falls under a directory the sync engine
// ignores, relative to the vault root.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	return snapshot.Excluded(filepath.ToSlash(rel))
}

// maybeWatchDir registers newly created directories so events inside
// them are observed too.
func (w *Watcher) maybeWatchDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || w.excluded(path) {
		return
	}
	_ = w.watcher.Add(path)
}
