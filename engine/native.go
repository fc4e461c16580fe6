package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/OpenParachutePBC/parachute-sub000/credential"
	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/gitvault"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/vaultconfig"
	"github.com/OpenParachutePBC/parachute-sub000/vfs"
)

// syncCommitMessage is the conventional-commit header for commits the
// engine creates on the user's behalf.
const syncCommitMessage = "chore(sync): local changes"

// NativeBackend drives a sync pass through the embedded repository:
// commit local changes, fetch, merge last-writer-wins, push.
type NativeBackend struct {
	vault  *gitvault.Vault
	branch string
	who    gitvault.Signature
	logger *slog.Logger
}

// NativeBackendFactory returns a BackendFactory that opens (or bootstraps)
// the repository at cfg.LocalRootPath. On a fresh device the vault is
// cloned from the remote; an existing plain directory is initialized in
// place and adopts the remote on the first pass.
func NativeBackendFactory(who gitvault.Signature, logger *slog.Logger) BackendFactory {
	return func(ctx context.Context, cfg *vaultconfig.SyncConfiguration, creds credential.Source) (Backend, error) {
		fsys := vfs.NewOS(cfg.LocalRootPath)
		return NewNativeBackend(ctx, fsys, cfg, creds, who, logger)
	}
}

// NewNativeBackend opens or creates the vault repository on fsys and wires
// it to cfg.RemoteURL with credentials drawn from creds at call time.
func NewNativeBackend(
	ctx context.Context,
	fsys vfs.Filesystem,
	cfg *vaultconfig.SyncConfiguration,
	creds credential.Source,
	who gitvault.Signature,
	logger *slog.Logger,
) (*NativeBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	auth := gitvault.NewDynamicAuthProvider(func() (string, error) {
		cred, err := creds.Current(context.Background())
		if err != nil {
			return "", err
		}
		return cred.AccessToken, nil
	})

	opts := &gitvault.Options{FS: fsys, Auth: auth}

	var vault *gitvault.Vault
	var err error
	switch {
	case gitvault.IsRepository(fsys):
		vault, err = gitvault.Open(ctx, opts)
	case vaultEmpty(fsys):
		vault, err = gitvault.Clone(ctx, cfg.RemoteURL, opts)
	default:
		// Directory already has notes but no repository: initialize in
		// place so nothing is lost, then reconcile with the remote on
		// the first pass.
		vault, err = gitvault.Init(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := vault.EnsureRemote(ctx, cfg.RemoteURL); err != nil {
		return nil, err
	}

	if err := vault.CheckoutBranch(ctx, cfg.BranchName, true); err != nil {
		return nil, err
	}

	return &NativeBackend{
		vault:  vault,
		branch: cfg.BranchName,
		who:    who,
		logger: logger,
	}, nil
}

func vaultEmpty(fsys vfs.Filesystem) bool {
	entries, err := fsys.ReadDir(".")
	return err == nil && len(entries) == 0
}

// Probe checks that the remote accepts our credential.
func (b *NativeBackend) Probe(ctx context.Context) error {
	err := b.vault.Fetch(ctx)
	if errors.Is(err, errs.ErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// Sync runs one native pass. The sequence is fixed: stage and commit
// local changes, fetch, merge the remote branch, push. A push rejected
// as non-fast-forward (another device pushed mid-pass) is retried once
// after merging again.
func (b *NativeBackend) Sync(ctx context.Context) (*reconcile.Result, error) {
	var result reconcile.Result

	status, err := b.vault.Status(ctx)
	if err != nil {
		return nil, err
	}

	if !status.Clean() {
		if err := b.vault.AddAll(ctx); err != nil {
			return nil, err
		}
		_, err := b.vault.Commit(ctx, syncCommitMessage, b.who)
		if err != nil && !errors.Is(err, errs.ErrNothingToCommit) {
			return nil, err
		}
		result.Uploaded = len(status.Modified) + len(status.Added) + len(status.Untracked)
		result.Deleted = len(status.Deleted)
	}

	if err := b.fetchAndMerge(ctx, &result); err != nil {
		return nil, err
	}

	err = b.vault.Push(ctx)
	if errors.Is(err, errs.ErrNonFastForward) {
		// Raced another device. Merge its push and try once more.
		b.logger.Debug("push rejected as non-fast-forward, merging and retrying")
		if err := b.fetchAndMerge(ctx, &result); err != nil {
			return nil, err
		}
		err = b.vault.Push(ctx)
	}
	if err != nil && !errors.Is(err, errs.ErrAlreadyUpToDate) {
		return nil, err
	}

	return &result, nil
}

func (b *NativeBackend) fetchAndMerge(ctx context.Context, result *reconcile.Result) error {
	err := b.vault.Fetch(ctx)
	if err != nil && !errors.Is(err, errs.ErrAlreadyUpToDate) {
		return err
	}

	report, err := b.vault.MergeRemote(ctx, b.branch, b.who)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyUpToDate) {
			return nil
		}
		return err
	}

	result.Downloaded += report.Downloaded
	for _, rel := range report.Conflicts {
		b.logger.Warn("kept local copy of conflicting file", "path", rel)
	}

	return nil
}

// Vault exposes the underlying repository for callers that need history
// or status beyond sync passes.
func (b *NativeBackend) Vault() *gitvault.Vault {
	return b.vault
}
