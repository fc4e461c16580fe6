// Package gitvault is the native repository backend: it keeps the vault in
// a local git repository and synchronizes it with the configured remote
// using go-git. All repository state lives behind the vfs abstraction, so
// the same code path serves on-disk vaults and in-memory test vaults.
package gitvault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultRemoteName is the remote every vault synchronizes against.
	DefaultRemoteName = "origin"
)

// Options configures vault repository discovery and creation.
type Options struct {
	// FS is the REQUIRED filesystem rooted at the vault directory.
	FS vfs.Filesystem

	// StorerCacheSize sets the LRU object cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Auth resolves a per-URL authentication method. If nil, network
	// operations run unauthenticated.
	Auth AuthProvider
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return errors.New("gitvault: FS is required")
	}
	if o.StorerCacheSize < 0 {
		return errors.New("gitvault: StorerCacheSize cannot be negative")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// Signature identifies the author of a sync commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Vault is a git-backed vault repository handle.
type Vault struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       vfs.Filesystem
	options  Options
}

// IsRepository reports whether the filesystem root already contains a git
// repository. It never touches the network.
func IsRepository(fsys vfs.Filesystem) bool {
	ok, err := fsys.Exists(".git")
	return err == nil && ok
}

// Init creates a new git repository at the filesystem root. Calling it on
// a directory that already carries a repository returns
// errs.ErrAlreadyInitialized; a fresh directory (with or without content)
// always succeeds.
func Init(ctx context.Context, opts *Options) (*Vault, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			return nil, errs.Wrap(errs.ErrAlreadyInitialized, "init")
		}
		return nil, errs.Wrap(err, "failed to initialize repository")
	}

	return newVault(repo, opts)
}

// Open opens an existing vault repository at the filesystem root.
func Open(ctx context.Context, opts *Options) (*Vault, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, errs.Wrap(err, "failed to open repository")
	}

	return newVault(repo, opts)
}

// Clone bootstraps a vault by cloning the remote into the filesystem root.
// Used on a device's first sync against an existing remote.
func Clone(ctx context.Context, remoteURL string, opts *Options) (*Vault, error) {
	if remoteURL == "" {
		return nil, errors.New("gitvault: remote URL cannot be empty")
	}

	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{URL: remoteURL}
	if opts.Auth != nil {
		method, authErr := opts.Auth.Method(remoteURL)
		if authErr != nil {
			return nil, errs.Wrap(errs.ErrAuth, "failed to resolve authentication method")
		}
		cloneOpts.Auth = method
	}

	repo, err := git.CloneContext(ctx, storage, worktreeFS, cloneOpts)
	if err != nil {
		// Cloning an empty remote (repository created on the hosting
		// provider but never pushed to) initializes a fresh local
		// repository wired to it; the first push populates it.
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			vault, initErr := Init(ctx, opts)
			if initErr != nil {
				return nil, initErr
			}
			if remoteErr := vault.EnsureRemote(ctx, remoteURL); remoteErr != nil {
				return nil, remoteErr
			}
			return vault, nil
		}
		return nil, classifyTransportErr(err, "failed to clone repository")
	}

	return newVault(repo, opts)
}

// EnsureRemote creates or updates the default remote so it points at the
// given URL. Idempotent.
func (v *Vault) EnsureRemote(ctx context.Context, url string) error {
	existing, err := v.repo.Remote(DefaultRemoteName)
	if err == nil {
		if len(existing.Config().URLs) > 0 && existing.Config().URLs[0] == url {
			return nil
		}
		if err := v.repo.DeleteRemote(DefaultRemoteName); err != nil {
			return errs.Wrap(err, "failed to replace remote")
		}
	}

	_, err = v.repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: DefaultRemoteName,
		URLs: []string{url},
	})
	if err != nil {
		return errs.Wrap(err, "failed to create remote")
	}

	return nil
}

// FS returns the filesystem the vault operates on.
//
//nolint:ireturn // exposing the interface keeps callers backend-agnostic.
func (v *Vault) FS() vfs.Filesystem {
	return v.fs
}

func prepare(opts *Options) (*filesystem.Storage, billy.Filesystem, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	opts.applyDefaults()

	rootFS, err := toBilly(opts.FS)
	if err != nil {
		return nil, nil, err
	}

	// Repository storage goes in the .git subdirectory; the vault root
	// itself is the worktree.
	dotGitFS, err := rootFS.Chroot(".git")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access .git directory: %w", err)
	}

	return newStorage(dotGitFS, opts.StorerCacheSize), rootFS, nil
}

func newVault(repo *git.Repository, opts *Options) (*Vault, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, errs.Wrap(err, "failed to get worktree")
	}

	return &Vault{
		repo:     repo,
		worktree: worktree,
		fs:       opts.FS,
		options:  *opts,
	}, nil
}
