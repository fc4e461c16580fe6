package engine

import (
	"context"
	"sync"
	"time"

	"github.com/OpenParachutePBC/parachute-sub000/credential"
	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/reconcile"
	"github.com/OpenParachutePBC/parachute-sub000/vaultconfig"
)

// memConfigStore is an in-memory vaultconfig.Store.
type memConfigStore struct {
	mu  sync.Mutex
	cfg *vaultconfig.SyncConfiguration
}

func (s *memConfigStore) Load() (*vaultconfig.SyncConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, errs.ErrNotFound
	}
	cfg := *s.cfg
	return &cfg, nil
}

func (s *memConfigStore) Save(cfg *vaultconfig.SyncConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *cfg
	s.cfg = &saved
	return nil
}

func (s *memConfigStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = nil
	return nil
}

// fakeBackend counts passes and can be scripted to fail or stall.
type fakeBackend struct {
	mu       sync.Mutex
	syncs    int
	probes   int
	probeErr error
	syncErr  error
	failOnce error
	result   *reconcile.Result

	// block, when set, stalls Sync until the channel closes. started is
	// signalled once per stalled pass.
	block   chan struct{}
	started chan struct{}
}

func (b *fakeBackend) Probe(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probes++
	return b.probeErr
}

func (b *fakeBackend) Sync(ctx context.Context) (*reconcile.Result, error) {
	b.mu.Lock()
	b.syncs++
	block := b.block
	started := b.started
	result := b.result
	err := b.syncErr
	if b.failOnce != nil {
		err = b.failOnce
		b.failOnce = nil
	}
	b.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	if result == nil && err == nil {
		result = &reconcile.Result{}
	}
	return result, err
}

func (b *fakeBackend) syncCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncs
}

func testSyncConfig() *vaultconfig.SyncConfiguration {
	return &vaultconfig.SyncConfiguration{
		RemoteURL:     "https://github.com/owner/vault.git",
		CredentialRef: "vault-main",
		LocalRootPath: "/vault",
		BranchName:    "main",
	}
}

func freshCredential() credential.Credential {
	return credential.Credential{
		AccessToken:  "token",
		RefreshToken: "refresh",
		AccessExpiry: time.Now().Add(time.Hour),
	}
}

// newTestEngine wires an engine to the fake backend with the given extra
// options.
func newTestEngine(backend *fakeBackend, creds credential.Source, opts ...Option) (*Engine, *memConfigStore) {
	store := &memConfigStore{}
	factory := func(ctx context.Context, cfg *vaultconfig.SyncConfiguration, _ credential.Source) (Backend, error) {
		return backend, nil
	}
	return New(store, creds, factory, opts...), store
}
