package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/OpenParachutePBC/parachute-sub000/credential"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/resthub"
	"github.com/OpenParachutePBC/parachute-sub000/vaultconfig"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

// RESTBackend adapts the content-API backend to the engine. It owns the
// persisted remote snapshot that lets deletion propagation survive
// restarts.
type RESTBackend struct {
	backend *resthub.Backend
	store   *resthub.SnapshotStore
}

// RESTBackendFactory returns a BackendFactory for devices where the
// native backend is unavailable.
func RESTBackendFactory(logger *slog.Logger) BackendFactory {
	return func(ctx context.Context, cfg *vaultconfig.SyncConfiguration, creds credential.Source) (Backend, error) {
		repo, err := RepoPath(cfg.RemoteURL)
		if err != nil {
			return nil, err
		}

		store, err := resthub.NewSnapshotStore(repo)
		if err != nil {
			return nil, err
		}

		client := resthub.NewClient(repo, cfg.BranchName, func() string {
			cred, err := creds.Current(context.Background())
			if err != nil {
				return ""
			}
			return cred.AccessToken
		})

		fsys := vfs.NewOS(cfg.LocalRootPath)
		backend := resthub.NewBackend(client, fsys, resthub.WithLogger(logger))

		return NewRESTBackend(backend, store), nil
	}
}

// NewRESTBackend wraps a content-API backend and its snapshot store.
func NewRESTBackend(backend *resthub.Backend, store *resthub.SnapshotStore) *RESTBackend {
	return &RESTBackend{backend: backend, store: store}
}

// Probe verifies the remote is reachable with the current credential.
func (b *RESTBackend) Probe(ctx context.Context) error {
	return b.backend.Probe(ctx)
}

// Sync runs one REST pass against the snapshot observed last time. The
// post-pass snapshot is persisted even on partial failure, reflecting
// exactly the remote changes that did land.
func (b *RESTBackend) Sync(ctx context.Context) (*reconcile.Result, error) {
	prev, err := b.store.Load()
	if err != nil {
		return nil, err
	}

	result, next, syncErr := b.backend.Sync(ctx, prev)
	if next != nil {
		if saveErr := b.store.Save(next); saveErr != nil && syncErr == nil {
			syncErr = saveErr
		}
	}

	return result, syncErr
}

// RepoPath extracts the "owner/name" repository path from a hosting
// provider URL such as https://github.com/owner/name.git.
func RepoPath(remoteURL string) (string, error) {
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return "", fmt.Errorf("engine: invalid remote URL: %w", err)
	}

	path := strings.Trim(strings.TrimSuffix(parsed.Path, ".git"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("engine: remote URL %q is not an owner/name repository", remoteURL)
	}

	return parts[0] + "/" + parts[1], nil
}
