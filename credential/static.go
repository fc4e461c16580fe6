package credential

import (
	"context"
	"sync"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

// StaticSource is a Source backed by an in-memory credential. Tests and
// single-token setups (personal access tokens that never refresh) use it
// directly; the refresh result can be scripted.
type StaticSource struct {
	mu        sync.Mutex
	current   Credential
	refreshed *Credential
	refreshes int
	onRevoked []func()
}

// NewStaticSource creates a source that always returns cred.
func NewStaticSource(cred Credential) *StaticSource {
	return &StaticSource{current: cred}
}

// Current implements Source.
func (s *StaticSource) Current(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

// Refresh implements Source. Without a scripted refresh result it fails
// when the credential is not refreshable, mirroring an issuer rejecting
// an expired refresh token.
func (s *StaticSource) Refresh(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshes++

	if s.refreshed != nil {
		s.current = *s.refreshed
		return s.current, nil
	}

	if !s.current.Refreshable() {
		return Credential{}, errs.Wrap(errs.ErrNeedsReauth, "refresh token expired")
	}

	return s.current, nil
}

// SetRefreshResult scripts the credential the next Refresh calls return.
func (s *StaticSource) SetRefreshResult(cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	refreshed := cred
	s.refreshed = &refreshed
}

// Refreshes returns how many times Refresh was called.
func (s *StaticSource) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// OnRevoked implements RevocationNotifier.
func (s *StaticSource) OnRevoked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRevoked = append(s.onRevoked, fn)
}

// Revoke simulates an out-of-band revocation, notifying all observers.
func (s *StaticSource) Revoke() {
	s.mu.Lock()
	observers := append([]func(){}, s.onRevoked...)
	s.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
