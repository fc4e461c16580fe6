package engine

import (
	"time"

	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
)

// SyncState is the engine's observable status, published to subscribers
// after every transition so UI layers can render sync indicators without
// polling.
type SyncState struct {
	// Enabled reports whether sync is configured and active.
	Enabled bool `json:"enabled"`

	// Syncing is true while a pass is in flight.
	Syncing bool `json:"syncing"`

	// NeedsReauth is true when the credential can no longer be refreshed
	// and the user must sign in again. Passes are skipped until then.
	NeedsReauth bool `json:"needsReauth"`

	// FilesUploaded and FilesDownloaded count the transfers that
	// succeeded in the most recent pass.
	FilesUploaded   int `json:"filesUploaded"`
	FilesDownloaded int `json:"filesDownloaded"`

	// LastSyncAt is when the most recent pass finished, zero before the
	// first pass.
	LastSyncAt time.Time `json:"lastSyncAt,omitzero"`

	// LastResult summarizes the most recent completed pass.
	LastResult *reconcile.Result `json:"lastResult,omitempty"`

	// LastError holds the most recent pass failure, empty after a clean
	// pass.
	LastError string `json:"lastError,omitempty"`
}

// subscribe registers fn and returns its id. Callers hold e.mu.
func (e *Engine) subscribe(fn func(SyncState)) int {
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return id
}

// publish snapshots the state and notifies subscribers outside the lock.
func (e *Engine) publish() {
	e.mu.Lock()
	state := e.state
	fns := make([]func(SyncState), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}
