// This file contains branch operations.
package gitvault

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

// CurrentBranch returns the name of the currently checked out branch.
func (v *Vault) CurrentBranch(ctx context.Context) (string, error) {
	head, err := v.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", errs.Wrap(err, "failed to resolve HEAD")
	}

	if head.Type() == plumbing.SymbolicReference {
		target := head.Target()
		if target.IsBranch() {
			return target.Short(), nil
		}
	}

	// Fall back to the resolved reference for repositories with commits.
	resolved, err := v.repo.Head()
	if err != nil {
		return "", errs.Wrap(err, "failed to get HEAD reference")
	}
	if !resolved.Name().IsBranch() {
		return "", errors.New("gitvault: HEAD is detached")
	}

	return resolved.Name().Short(), nil
}

// CheckoutBranch switches to the named branch, creating it from the
// current HEAD when createIfMissing is true. Used to pin the vault to the
// branch named in the sync configuration.
func (v *Vault) CheckoutBranch(ctx context.Context, name string, createIfMissing bool) error {
	if name == "" {
		return errors.New("gitvault: branch name cannot be empty")
	}

	branchRefName := plumbing.NewBranchReferenceName(name)

	_, err := v.repo.Reference(branchRefName, true)
	if err != nil {
		if !createIfMissing {
			return errs.Wrapf(errs.ErrNotFound, "branch %q", name)
		}

		head, headErr := v.repo.Head()
		if headErr != nil {
			if errors.Is(headErr, plumbing.ErrReferenceNotFound) {
				// No commits yet: retargeting HEAD is enough, the first
				// commit creates the branch.
				return v.repo.Storer.SetReference(
					plumbing.NewSymbolicReference(plumbing.HEAD, branchRefName))
			}
			return errs.Wrap(headErr, "failed to get HEAD reference")
		}

		newRef := plumbing.NewHashReference(branchRefName, head.Hash())
		if setErr := v.repo.Storer.SetReference(newRef); setErr != nil {
			return errs.Wrap(setErr, "failed to create branch reference")
		}
	}

	if err := v.worktree.Checkout(&git.CheckoutOptions{Branch: branchRefName}); err != nil {
		return errs.Wrapf(err, "failed to checkout branch %q", name)
	}

	return nil
}
