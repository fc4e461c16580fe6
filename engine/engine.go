// Package engine is the sync orchestrator. It owns the sync lifecycle
// for one vault: enabling and disabling, the periodic trigger, the
// write-triggered trigger, single-flight execution of passes, credential
// currency, and observable state for UI layers. The actual data movement
// is delegated to a Backend.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/OpenParachutePBC/parachute-sub000/credential"
	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/vaultconfig"
)

const (
	// DefaultInterval is how often the periodic trigger fires while sync
	// is enabled.
	DefaultInterval = 5 * time.Minute

	// DefaultRefreshWindow is how close to expiry the access credential
	// may be before a pass refreshes it up front.
	DefaultRefreshWindow = 2 * time.Minute
)

// Engine orchestrates synchronization for one vault.
type Engine struct {
	configs vaultconfig.Store
	creds   credential.Source
	factory BackendFactory

	logger        *slog.Logger
	interval      time.Duration
	refreshWindow time.Duration
	now           func() time.Time

	// syncing is the single-flight guard: at most one pass runs at a
	// time, across all three triggers.
	syncing atomic.Bool

	mu       sync.Mutex
	cfg      *vaultconfig.SyncConfiguration
	backend  Backend
	state    SyncState
	stopTick chan struct{}
	subs     map[int]func(SyncState)
	nextSub  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithInterval overrides the periodic trigger interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithRefreshWindow overrides the pre-expiry credential refresh window.
func WithRefreshWindow(d time.Duration) Option {
	return func(e *Engine) { e.refreshWindow = d }
}

// WithClock overrides the time source. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given configuration store, credential
// source, and backend factory. Call Restore to resume a previously
// enabled configuration, or Enable to set one up.
func New(configs vaultconfig.Store, creds credential.Source, factory BackendFactory, opts ...Option) *Engine {
	e := &Engine{
		configs:       configs,
		creds:         creds,
		factory:       factory,
		logger:        slog.Default(),
		interval:      DefaultInterval,
		refreshWindow: DefaultRefreshWindow,
		now:           time.Now,
		subs:          map[int]func(SyncState){},
	}

	for _, opt := range opts {
		opt(e)
	}

	if notifier, ok := creds.(credential.RevocationNotifier); ok {
		notifier.OnRevoked(func() {
			e.mu.Lock()
			e.state.NeedsReauth = true
			e.mu.Unlock()
			e.publish()
		})
	}

	return e
}

// Enable configures and starts synchronization. It validates the
// configuration, builds the backend, probes the remote so a bad URL or
// credential fails here rather than on a background pass, persists the
// configuration, and starts the periodic trigger. The first pass runs in
// the background.
func (e *Engine) Enable(ctx context.Context, cfg *vaultconfig.SyncConfiguration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := e.factory(ctx, cfg, e.creds)
	if err != nil {
		return err
	}

	if err := backend.Probe(ctx); err != nil {
		return errs.Wrap(err, "remote not reachable")
	}

	cfg.Enabled = true
	if err := e.configs.Save(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.backend = backend
	e.state.Enabled = true
	e.state.NeedsReauth = false
	e.startTicker()
	e.mu.Unlock()
	e.publish()

	e.logger.Info("sync enabled", "remote", cfg.RemoteURL, "branch", cfg.BranchName)

	go e.SyncNow(context.Background())

	return nil
}

// Disable stops synchronization and persists the choice. An in-flight
// pass finishes; no further passes start. Local content is untouched.
func (e *Engine) Disable(ctx context.Context) error {
	e.mu.Lock()
	e.stopTicker()
	e.backend = nil
	e.state.Enabled = false
	cfg := e.cfg
	e.mu.Unlock()
	e.publish()

	if cfg != nil {
		cfg.Enabled = false
		if err := e.configs.Save(cfg); err != nil {
			return err
		}
	}

	e.logger.Info("sync disabled")
	return nil
}

// DisableAndForget stops synchronization and destroys the persisted
// configuration, as on sign-out. The local vault content is untouched.
func (e *Engine) DisableAndForget(ctx context.Context) error {
	e.mu.Lock()
	e.stopTicker()
	e.backend = nil
	e.cfg = nil
	e.state.Enabled = false
	e.mu.Unlock()
	e.publish()

	if err := e.configs.Delete(); err != nil {
		return err
	}

	e.logger.Info("sync disabled and configuration forgotten")
	return nil
}

// Restore resumes a previously enabled configuration after process
// restart. Unlike Enable it does not probe the remote: restoring while
// offline must succeed, and the first periodic pass will surface any
// network problem.
func (e *Engine) Restore(ctx context.Context) error {
	cfg, err := e.configs.Load()
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}

	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	if !cfg.Enabled {
		return nil
	}

	if _, err := e.creds.Current(ctx); err != nil {
		// Enabled configuration but no usable credential: stay up but
		// wait for re-authentication instead of failing every pass.
		e.mu.Lock()
		e.state.NeedsReauth = true
		e.mu.Unlock()
		e.publish()
		return nil
	}

	backend, err := e.factory(ctx, cfg, e.creds)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.backend = backend
	e.state.Enabled = true
	e.startTicker()
	e.mu.Unlock()
	e.publish()

	e.logger.Info("sync restored", "remote", cfg.RemoteURL)

	go e.SyncNow(context.Background())

	return nil
}

// SyncNow runs one pass right away. Returns false without doing anything
// when a pass is already in flight, sync is disabled, or the engine is
// waiting for re-authentication; callers treat false as "nothing to do",
// not an error.
func (e *Engine) SyncNow(ctx context.Context) bool {
	if !e.syncing.CompareAndSwap(false, true) {
		return false
	}
	defer e.syncing.Store(false)

	e.mu.Lock()
	backend := e.backend
	runnable := e.state.Enabled && !e.state.NeedsReauth && backend != nil
	if runnable {
		e.state.Syncing = true
	}
	e.mu.Unlock()

	if !runnable {
		return false
	}
	e.publish()

	result, err := e.runPass(ctx, backend)

	e.mu.Lock()
	e.state.Syncing = false
	e.state.LastSyncAt = e.now()
	if result != nil {
		e.state.LastResult = result
		e.state.FilesUploaded = result.Uploaded
		e.state.FilesDownloaded = result.Downloaded
	}
	if err != nil {
		e.state.LastError = err.Error()
		if errors.Is(err, errs.ErrNeedsReauth) {
			e.state.NeedsReauth = true
		}
	} else {
		e.state.LastError = ""
	}
	e.mu.Unlock()
	e.publish()

	return true
}

// OnLocalWriteCompleted triggers a background pass after the app saved a
// note or finished writing a capture. Fire-and-forget: if a pass is
// already running the write is picked up on the next one. The paths are
// informational only; the pass always reconciles the whole tree.
func (e *Engine) OnLocalWriteCompleted(paths ...string) {
	if len(paths) > 0 {
		e.logger.Debug("local write completed", "paths", paths)
	}
	go e.SyncNow(context.Background())
}

// Reauthorized clears the needs-reauth state after the user signed in
// again and kicks off a pass with the new credential.
func (e *Engine) Reauthorized() {
	e.mu.Lock()
	e.state.NeedsReauth = false
	e.mu.Unlock()
	e.publish()

	e.OnLocalWriteCompleted()
}

// State returns the current observable state.
func (e *Engine) State() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers a callback invoked after every state transition.
// The returned function unsubscribes. Callbacks run outside engine locks
// but should still return promptly.
func (e *Engine) Subscribe(fn func(SyncState)) func() {
	e.mu.Lock()
	id := e.subscribe(fn)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// runPass ensures the credential is current, then delegates to the
// backend. The credential is checked exactly once per pass: if it expires
// within the refresh window it is refreshed up front, so it cannot lapse
// mid-pass.
func (e *Engine) runPass(ctx context.Context, backend Backend) (*reconcile.Result, error) {
	passID := uuid.NewString()
	log := e.logger.With("pass", passID)
	start := e.now()

	cred, err := e.creds.Current(ctx)
	if err != nil {
		return nil, err
	}

	if cred.ExpiresWithin(e.refreshWindow) {
		log.Info("access credential near expiry, refreshing")
		if _, err := e.creds.Refresh(ctx); err != nil {
			if errors.Is(err, errs.ErrNeedsReauth) {
				log.Warn("credential refresh requires re-authentication")
				return nil, err
			}
			return nil, errs.Wrap(err, "credential refresh")
		}
	}

	result, err := backend.Sync(ctx)
	if errors.Is(err, errs.ErrAuth) {
		// The remote rejected a token the clock said was still fine
		// (revoked or invalidated server side). Refresh and retry the
		// pass once; a second rejection means re-authentication.
		log.Warn("remote rejected credential, refreshing and retrying")
		if _, refreshErr := e.creds.Refresh(ctx); refreshErr != nil {
			return nil, errs.Wrap(errs.ErrNeedsReauth, refreshErr.Error())
		}
		result, err = backend.Sync(ctx)
		if errors.Is(err, errs.ErrAuth) {
			err = errs.Wrap(errs.ErrNeedsReauth, err.Error())
		}
	}
	took := e.now().Sub(start)
	switch {
	case err != nil && result != nil:
		log.Warn("sync pass finished with partial failures", "took", took, "err", err)
	case err != nil:
		log.Error("sync pass failed", "took", took, "err", err)
	default:
		log.Info("sync pass finished",
			"took", took,
			"uploaded", result.Uploaded,
			"downloaded", result.Downloaded,
			"deleted", result.Deleted)
	}

	return result, err
}

// startTicker starts the periodic trigger. Callers hold e.mu.
func (e *Engine) startTicker() {
	if e.stopTick != nil {
		return
	}

	stop := make(chan struct{})
	e.stopTick = stop

	go func() {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.SyncNow(context.Background())
			}
		}
	}()
}

// stopTicker stops the periodic trigger. Callers hold e.mu.
func (e *Engine) stopTicker() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}
