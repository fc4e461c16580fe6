package gitvault

import (
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

// classifyTransportErr maps go-git network errors onto the engine's shared
// sentinels so the orchestrator reacts the same way regardless of backend.
func classifyTransportErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return errs.ErrAlreadyUpToDate
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		// Nothing on the remote yet. Same outcome as up-to-date: there
		// is nothing to transfer.
		return errs.ErrAlreadyUpToDate
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return errs.Wrap(errs.ErrAuth, msg)
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return errs.Wrap(errs.ErrNonFastForward, msg)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return errs.Wrap(errs.ErrNotFound, msg)
	case errors.Is(err, git.ErrRemoteNotFound):
		return errs.Wrap(err, msg)
	default:
		// Anything else that reached the transport is treated as a
		// transient network failure.
		return errs.Wrapf(errs.ErrNetwork, "%s: %v", msg, err)
	}
}
