// This file contains synchronization operations (fetch, merge, push).
package gitvault

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
)

// SetAuthProvider installs the authentication provider used by subsequent
// network operations. The orchestrator calls this after every credential
// refresh.
func (v *Vault) SetAuthProvider(p AuthProvider) {
	v.options.Auth = p
}

// Fetch fetches changes from the configured remote. It never partially
// mutates local state on failure: go-git updates remote-tracking refs only
// after the transfer succeeds. Returns errs.ErrAlreadyUpToDate when there
// is nothing new, errs.ErrAuth when the credential is rejected, and
// errs.ErrNetwork for transient transport failures.
func (v *Vault) Fetch(ctx context.Context) error {
	fetchOpts := &git.FetchOptions{RemoteName: DefaultRemoteName}

	method, err := v.authMethod()
	if err != nil {
		return err
	}
	fetchOpts.Auth = method

	if err := v.repo.FetchContext(ctx, fetchOpts); err != nil {
		return classifyTransportErr(err, "fetch")
	}

	return nil
}

// Push pushes the current branch to the configured remote. Returns
// errs.ErrNonFastForward when the remote has commits the local branch
// lacks; the caller is expected to fetch, merge, and retry once.
func (v *Vault) Push(ctx context.Context) error {
	pushOpts := &git.PushOptions{RemoteName: DefaultRemoteName}

	method, err := v.authMethod()
	if err != nil {
		return err
	}
	pushOpts.Auth = method

	if err := v.repo.PushContext(ctx, pushOpts); err != nil {
		return classifyTransportErr(err, "push")
	}

	return nil
}

// MergeReport describes what a MergeRemote call did.
type MergeReport struct {
	// FastForwarded is true when the local branch was simply advanced to
	// the remote head.
	FastForwarded bool

	// Merged is true when a merge commit tying the two histories was
	// created.
	Merged bool

	// Downloaded counts files taken from the remote tree.
	Downloaded int

	// Conflicts lists paths whose remote content could not be applied;
	// the local copy was kept and the event is reported, not fatal.
	Conflicts []string
}

// MergeRemote reconciles the fetched remote branch into the current
// branch. Instead of a textual merge it applies last-writer-wins per file:
// paths that differ keep the local copy, paths only the remote has are
// written into the worktree, and a merge commit with both parents records
// the reconciliation. Returns errs.ErrAlreadyUpToDate when the branches
// already agree.
func (v *Vault) MergeRemote(ctx context.Context, remoteBranch string, who Signature) (*MergeReport, error) {
	remoteRefName := plumbing.NewRemoteReferenceName(DefaultRemoteName, remoteBranch)
	remoteRef, err := v.repo.Reference(remoteRefName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Remote branch does not exist yet (empty remote): nothing
			// to merge, the next push creates it.
			return &MergeReport{}, nil
		}
		return nil, errs.Wrap(err, "failed to resolve remote branch")
	}

	remoteCommit, err := v.repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return nil, errs.Wrap(err, "failed to load remote commit")
	}

	headRef, err := v.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// No local commits yet: adopt the remote head wholesale.
			return v.adoptRemoteHead(remoteRef)
		}
		return nil, errs.Wrap(err, "failed to get HEAD reference")
	}

	if headRef.Hash() == remoteRef.Hash() {
		return nil, errs.ErrAlreadyUpToDate
	}

	localCommit, err := v.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, errs.Wrap(err, "failed to load local commit")
	}

	remoteIsAncestor, err := remoteCommit.IsAncestor(localCommit)
	if err != nil {
		return nil, errs.Wrap(err, "failed to compare histories")
	}
	if remoteIsAncestor {
		// Local is strictly ahead; push will carry the difference.
		return &MergeReport{}, nil
	}

	localIsAncestor, err := localCommit.IsAncestor(remoteCommit)
	if err != nil {
		return nil, errs.Wrap(err, "failed to compare histories")
	}
	if localIsAncestor {
		if err := v.fastForward(headRef, remoteRef); err != nil {
			return nil, err
		}
		return &MergeReport{FastForwarded: true}, nil
	}

	return v.mergeDiverged(ctx, headRef, remoteCommit, who)
}

// adoptRemoteHead points the current branch at the remote head and resets
// the worktree to it. Used when the local repository has no commits yet.
func (v *Vault) adoptRemoteHead(remoteRef *plumbing.Reference) (*MergeReport, error) {
	headRef, err := v.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return nil, errs.Wrap(err, "failed to resolve HEAD")
	}

	branchRef := plumbing.NewHashReference(headRef.Target(), remoteRef.Hash())
	if err := v.repo.Storer.SetReference(branchRef); err != nil {
		return nil, errs.Wrap(err, "failed to update branch reference")
	}

	if err := v.worktree.Reset(&git.ResetOptions{
		Commit: remoteRef.Hash(),
		Mode:   git.HardReset,
	}); err != nil {
		return nil, errs.Wrap(err, "failed to reset worktree to remote head")
	}

	return &MergeReport{FastForwarded: true}, nil
}

func (v *Vault) fastForward(headRef, remoteRef *plumbing.Reference) error {
	branchRef := plumbing.NewHashReference(headRef.Name(), remoteRef.Hash())
	if err := v.repo.Storer.SetReference(branchRef); err != nil {
		return errs.Wrap(err, "failed to fast-forward branch reference")
	}

	if err := v.worktree.Reset(&git.ResetOptions{
		Commit: remoteRef.Hash(),
		Mode:   git.HardReset,
	}); err != nil {
		return errs.Wrap(err, "failed to reset worktree after fast-forward")
	}

	return nil
}

// mergeDiverged handles true divergence: the remote-only files are written
// into the worktree (differing files keep the local copy) and the result
// is committed with both heads as parents so the subsequent push is a
// fast-forward for the remote.
func (v *Vault) mergeDiverged(
	ctx context.Context,
	headRef *plumbing.Reference,
	remoteCommit *object.Commit,
	who Signature,
) (*MergeReport, error) {
	localCommit, err := v.repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, errs.Wrap(err, "failed to load local commit")
	}

	localSnap, err := snapshot.Walk(v.fs, ".")
	if err != nil {
		return nil, errs.Wrap(err, "failed to snapshot worktree")
	}

	remoteSnap, err := commitSnapshot(remoteCommit)
	if err != nil {
		return nil, err
	}

	// The merge-base tree tells deletions apart from additions: a path
	// present at the base and on the remote but gone locally was deleted
	// here, and must not be resurrected by the merge.
	baseSnap, err := mergeBaseSnapshot(localCommit, remoteCommit)
	if err != nil {
		return nil, err
	}

	report := &MergeReport{Merged: true}

	for _, action := range reconcile.Plan(localSnap, remoteSnap, baseSnap) {
		if action.Op != reconcile.OpDownload {
			// Uploads are implicit (the local copy is already in the
			// worktree) and deletions stay deletions: the merge commit
			// simply omits those paths.
			continue
		}

		if err := v.writeRemoteFile(remoteCommit, action.Path); err != nil {
			// Keep the local state for this path and report the
			// conflict instead of failing the merge.
			report.Conflicts = append(report.Conflicts, action.Path)
			continue
		}
		report.Downloaded++
	}

	if err := v.AddAll(ctx); err != nil {
		return nil, err
	}

	sig := &object.Signature{Name: who.Name, Email: who.Email, When: who.When}
	_, err = v.worktree.Commit("chore(sync): merge remote changes", &git.CommitOptions{
		Author:            sig,
		Committer:         sig,
		Parents:           []plumbing.Hash{headRef.Hash(), remoteCommit.Hash},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return nil, errs.Wrap(err, "failed to create merge commit")
	}

	return report, nil
}

// commitSnapshot builds a file snapshot from a commit's tree. The blob
// hashes in the tree are the same digests the snapshot package computes,
// so the two sides compare directly.
func commitSnapshot(commit *object.Commit) (snapshot.Snapshot, error) {
	snap := make(snapshot.Snapshot)

	files, err := commit.Files()
	if err != nil {
		return nil, errs.Wrap(err, "failed to list remote tree")
	}

	err = files.ForEach(func(f *object.File) error {
		if snapshot.Excluded(f.Name) {
			return nil
		}
		snap[f.Name] = f.Hash.String()
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(err, "failed to iterate remote tree")
	}

	return snap, nil
}

// mergeBaseSnapshot snapshots the tree of the nearest common ancestor of
// the two heads. Unrelated histories have no base; the nil snapshot then
// degrades the plan to union semantics, which never deletes.
func mergeBaseSnapshot(local, remote *object.Commit) (snapshot.Snapshot, error) {
	bases, err := local.MergeBase(remote)
	if err != nil {
		return nil, errs.Wrap(err, "failed to find merge base")
	}
	if len(bases) == 0 {
		return nil, nil
	}
	return commitSnapshot(bases[0])
}

// writeRemoteFile streams one blob out of the remote commit into the
// worktree.
func (v *Vault) writeRemoteFile(commit *object.Commit, relPath string) error {
	f, err := commit.File(relPath)
	if err != nil {
		return errs.Wrapf(err, "remote blob %q", relPath)
	}

	reader, err := f.Reader()
	if err != nil {
		return errs.Wrapf(err, "opening remote blob %q", relPath)
	}
	defer reader.Close()

	if dir := path.Dir(relPath); dir != "." {
		if err := v.fs.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrapf(err, "creating directory for %q", relPath)
		}
	}

	out, err := v.fs.Create(relPath)
	if err != nil {
		return errs.Wrapf(err, "creating %q", relPath)
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return errs.Wrapf(err, "writing %q", relPath)
	}

	return nil
}

func (v *Vault) authMethod() (transportAuth, error) {
	if v.options.Auth == nil {
		return nil, nil
	}

	remote, err := v.repo.Remote(DefaultRemoteName)
	if err != nil {
		return nil, errs.Wrap(err, "failed to get remote configuration")
	}

	method, err := v.options.Auth.Method(remote.Config().URLs[0])
	if err != nil {
		return nil, errs.Wrap(errs.ErrAuth, "failed to resolve authentication method")
	}

	return method, nil
}
