package resthub

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

// downloadWorkers bounds concurrent downloads in one pass. Uploads and
// deletions run one at a time: each write moves the sync branch head, and
// concurrent writes would conflict with each other.
const downloadWorkers = 4

// Backend synchronizes a local vault directory against a remote
// repository through the content API. It implements the same
// list/plan/execute pass the native backend performs via merge, so a
// vault can be served by either backend interchangeably.
type Backend struct {
	client *Client
	fs     vfs.Filesystem
	logger *slog.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithLogger sets the logger for per-pass diagnostics.
func WithLogger(logger *slog.Logger) BackendOption {
	return func(b *Backend) { b.logger = logger }
}

// NewBackend creates a REST backend over the given local vault filesystem.
func NewBackend(client *Client, fsys vfs.Filesystem, opts ...BackendOption) *Backend {
	b := &Backend{
		client: client,
		fs:     fsys,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Probe verifies the remote is reachable with the current credential. An
// empty or not-yet-created repository is reachable.
func (b *Backend) Probe(ctx context.Context) error {
	_, err := b.client.ListRemoteTree(ctx)
	return err
}

// ListLocalTree walks the local vault and returns its path-to-object-ID
// snapshot.
func (b *Backend) ListLocalTree(ctx context.Context) (snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshot.Walk(b.fs, ".")
}

// Sync runs one full synchronization pass: list both trees, plan, then
// execute the plan. prevRemote is the remote snapshot the previous pass
// observed; it distinguishes files deleted locally from files that never
// existed here. Sync returns the pass result and the remote snapshot as
// it stands after the pass, which the caller persists for next time.
//
// Individual file failures do not abort the pass; they accumulate into
// the returned error as a partial failure and the affected paths are
// retried on the next pass. An authentication failure aborts immediately,
// since every remaining call would fail the same way.
func (b *Backend) Sync(ctx context.Context, prevRemote snapshot.Snapshot) (*reconcile.Result, snapshot.Snapshot, error) {
	local, err := b.ListLocalTree(ctx)
	if err != nil {
		return nil, nil, err
	}

	remote, err := b.client.ListRemoteTree(ctx)
	if err != nil {
		return nil, nil, err
	}

	actions := reconcile.Plan(local, remote, prevRemote)

	var result reconcile.Result
	if len(actions) == 0 {
		return &result, remote, nil
	}

	planned := reconcile.Summarize(actions)
	b.logger.Debug("executing sync plan",
		"uploads", planned.Uploaded,
		"downloads", planned.Downloaded,
		"deletions", planned.Deleted)

	next := remote.Clone()
	partial := errs.NewPartialError()

	var mu sync.Mutex
	fail := func(rel string, err error) {
		mu.Lock()
		defer mu.Unlock()
		partial.Add(rel, err)
	}

	// Writes first and in order: uploads then deletions, one at a time.
	for _, action := range actions {
		switch action.Op {
		case reconcile.OpUpload:
			err = b.upload(ctx, action.Path, local[action.Path], remote[action.Path])
			if err == nil {
				next[action.Path] = local[action.Path]
				result.Uploaded++
			}
		case reconcile.OpDeleteRemote:
			err = b.client.DeleteFile(ctx, action.Path, remote[action.Path])
			if err == nil {
				delete(next, action.Path)
				result.Deleted++
			}
		default:
			continue
		}

		if err != nil {
			if errors.Is(err, errs.ErrAuth) || errors.Is(err, context.Canceled) {
				return nil, nil, err
			}
			fail(action.Path, err)
		}
	}

	// Downloads are independent of each other and of the branch head, so
	// they run concurrently.
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(downloadWorkers)

	for _, action := range actions {
		if action.Op != reconcile.OpDownload {
			continue
		}
		rel := action.Path
		group.Go(func() error {
			err := b.download(groupCtx, rel)
			if err == nil {
				mu.Lock()
				result.Downloaded++
				mu.Unlock()
				return nil
			}
			if errors.Is(err, errs.ErrAuth) {
				return err
			}
			fail(rel, err)
			// Drop the path from the persisted snapshot too. Leaving
			// it would make the next pass read it as "present
			// remotely, deleted locally" and delete the remote copy
			// instead of retrying the download.
			mu.Lock()
			delete(next, rel)
			mu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	if partial.Len() > 0 {
		result.Err = partial.Error()
	}

	return &result, next, partial.OrNil()
}

// upload pushes local bytes to the remote path. The write is conditional
// on the object ID observed during listing; if another device moved the
// file in the meantime the provider rejects it, and the upload re-reads
// the current ID and retries once. On the retry the local content still
// wins.
func (b *Backend) upload(ctx context.Context, rel, localSHA, baseSHA string) error {
	data, err := b.fs.ReadFile(rel)
	if err != nil {
		return err
	}

	err = b.client.WriteFile(ctx, rel, data, baseSHA)
	if err == nil || !errors.Is(err, errs.ErrConflict) {
		return err
	}

	current, statErr := b.client.StatFile(ctx, rel)
	if statErr != nil && !errors.Is(statErr, errs.ErrNotFound) {
		return statErr
	}
	if current == localSHA {
		// Another device uploaded identical content. Done.
		return nil
	}

	return b.client.WriteFile(ctx, rel, data, current)
}

// download fetches remote bytes into the local vault, creating parent
// directories as needed.
func (b *Backend) download(ctx context.Context, rel string) error {
	data, err := b.client.ReadFile(ctx, rel)
	if err != nil {
		return err
	}

	if dir := path.Dir(rel); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return b.fs.WriteFile(rel, data, 0o644)
}
