// Package errs provides the sentinel errors shared by the sync engine's
// backends and orchestrator. All errors can be checked using errors.Is()
// for programmatic handling regardless of which backend produced them.
package errs

import (
	"errors"
	"fmt"
)

// ErrAuth is returned when a credential was rejected by the remote
// (401-equivalent). The orchestrator reacts by refreshing the credential
// and retrying once, or by entering the needs-reauth state.
var ErrAuth = errors.New("authentication rejected")

// ErrNeedsReauth is returned when the refresh token itself has expired and
// no further sync passes can succeed without user interaction.
var ErrNeedsReauth = errors.New("reconnect required")

// ErrNetwork is returned for transient transport failures. These are
// reported but not retried automatically within a pass.
var ErrNetwork = errors.New("network error")

// ErrConflict is returned when a remote object changed between read and
// write (optimistic-concurrency failure) or when a merge cannot
// auto-resolve a file. Callers retry once with a fresh read.
var ErrConflict = errors.New("remote conflict")

// ErrNonFastForward is returned when a push would overwrite remote
// history. The caller must fetch, merge, and retry (bounded to one retry).
var ErrNonFastForward = errors.New("rejected non-fast-forward")

// ErrNotFound is returned for absent paths. Listings and deletions treat
// it as "empty" or "already done" rather than as a failure.
var ErrNotFound = errors.New("not found")

// ErrRateLimited is returned after backoff against 429-equivalent
// responses has been exhausted. The error is retryable on a later pass.
var ErrRateLimited = errors.New("rate limited")

// ErrNothingToCommit is returned when a commit is requested but the
// staged set is empty relative to the last commit.
var ErrNothingToCommit = errors.New("nothing to commit")

// ErrAlreadyInitialized is returned when initializing a repository on a
// path that is already tracked differently.
var ErrAlreadyInitialized = errors.New("repository already initialized")

// ErrAlreadyUpToDate is returned when fetch, merge, or push finds no
// changes because local and remote are already synchronized.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrSyncDisabled is returned when a sync is requested while the engine
// is disabled.
var ErrSyncDisabled = errors.New("sync is disabled")

// Wrap wraps an error with additional context while preserving the
// ability to check against sentinel errors using errors.Is().
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Retryable reports whether a later sync pass may succeed without user
// intervention. Auth failures are not retryable: they need a refreshed
// credential or explicit reauthorization first.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrConflict), errors.Is(err, ErrNonFastForward):
		return true
	default:
		return false
	}
}
