// This file contains worktree operations (stage, commit, status).
package gitvault

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
)

// Add stages the given repository-relative paths for the next commit.
// Paths whose content is unchanged are a no-op; paths that do not exist on
// disk are staged as deletions when previously tracked, matching git
// behavior. Excluded metadata paths are silently skipped.
func (v *Vault) Add(ctx context.Context, paths ...string) error {
	for _, path := range paths {
		if path == "" || snapshot.Excluded(path) {
			continue
		}

		if _, err := v.worktree.Add(path); err != nil {
			return errs.Wrapf(err, "failed to stage %q", path)
		}
	}
	return nil
}

// AddAll stages every added, modified, and deleted path under the vault
// root.
func (v *Vault) AddAll(ctx context.Context) error {
	if err := v.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return errs.Wrap(err, "failed to stage all changes")
	}
	return nil
}

// Commit creates a commit from the staged set and returns its hash.
// Returns errs.ErrNothingToCommit when the staged set is empty relative to
// the last commit. Purely local, never touches the network.
func (v *Vault) Commit(ctx context.Context, msg string, who Signature) (string, error) {
	if msg == "" {
		return "", errors.New("gitvault: commit message cannot be empty")
	}
	if who.Name == "" || who.Email == "" {
		return "", errors.New("gitvault: committer name and email are required")
	}

	status, err := v.worktree.Status()
	if err != nil {
		return "", errs.Wrap(err, "failed to get worktree status")
	}

	staged := 0
	for _, fileStatus := range status {
		if fileStatus.Staging != git.Untracked && fileStatus.Staging != git.Unmodified {
			staged++
		}
	}
	if staged == 0 {
		return "", errs.ErrNothingToCommit
	}

	sig := &object.Signature{Name: who.Name, Email: who.Email, When: who.When}
	hash, err := v.worktree.Commit(msg, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", errs.ErrNothingToCommit
		}
		return "", errs.Wrap(err, "failed to create commit")
	}

	return hash.String(), nil
}

// Status describes the working tree relative to HEAD.
type Status struct {
	Modified  []string
	Added     []string
	Deleted   []string
	Untracked []string
}

// Clean reports whether the worktree has no pending changes.
func (s *Status) Clean() bool {
	return len(s.Modified) == 0 && len(s.Added) == 0 &&
		len(s.Deleted) == 0 && len(s.Untracked) == 0
}

// Status returns the categorized working-tree state. Read-only and
// side-effect free.
func (v *Vault) Status(ctx context.Context) (*Status, error) {
	wtStatus, err := v.worktree.Status()
	if err != nil {
		return nil, errs.Wrap(err, "failed to get worktree status")
	}

	out := &Status{}
	for path, fileStatus := range wtStatus {
		if snapshot.Excluded(path) {
			continue
		}

		switch {
		case fileStatus.Staging == git.Untracked && fileStatus.Worktree == git.Untracked:
			out.Untracked = append(out.Untracked, path)
		case fileStatus.Staging == git.Added || fileStatus.Worktree == git.Added:
			out.Added = append(out.Added, path)
		case fileStatus.Staging == git.Deleted || fileStatus.Worktree == git.Deleted:
			out.Deleted = append(out.Deleted, path)
		case fileStatus.Staging == git.Modified || fileStatus.Worktree == git.Modified:
			out.Modified = append(out.Modified, path)
		}
	}

	return out, nil
}

// Snapshot walks the worktree and returns its file snapshot, excluding
// version-control metadata.
func (v *Vault) Snapshot(ctx context.Context) (snapshot.Snapshot, error) {
	return snapshot.Walk(v.fs, ".")
}
