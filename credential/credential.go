// Package credential models the access credential the sync engine consumes.
// The engine never issues tokens itself: an external collaborator owns the
// OAuth flow, and this package only reads the current credential, requests
// refreshes, and reacts to rejection.
package credential

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// Credential is a short-lived access token with an optional refresh token
// and the two expiry timestamps that govern them.
type Credential struct {
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token,omitempty"`
	AccessExpiry  time.Time `json:"access_expiry,omitzero"`
	RefreshExpiry time.Time `json:"refresh_expiry,omitzero"`
}

// ExpiresWithin reports whether the access token expires inside the given
// window. A zero AccessExpiry means the token does not expire.
func (c Credential) ExpiresWithin(window time.Duration) bool {
	if c.AccessExpiry.IsZero() {
		return false
	}
	return time.Until(c.AccessExpiry) < window
}

// Refreshable reports whether a refresh can still be attempted.
func (c Credential) Refreshable() bool {
	if c.RefreshToken == "" {
		return false
	}
	if c.RefreshExpiry.IsZero() {
		return true
	}
	return time.Now().Before(c.RefreshExpiry)
}

// Token converts the credential to the oauth2 token shape used by token
// issuers and on-disk credential stores.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.AccessExpiry,
	}
}

// FromToken builds a Credential from an oauth2 token. The refresh-token
// expiry is not part of the oauth2 shape and must be set by the caller
// when the issuer reports one.
func FromToken(t *oauth2.Token) Credential {
	return Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		AccessExpiry: t.Expiry,
	}
}

// Source supplies credentials to the engine.
type Source interface {
	// Current returns the credential as last issued or refreshed.
	Current(ctx context.Context) (Credential, error)

	// Refresh exchanges the refresh token for a new credential.
	Refresh(ctx context.Context) (Credential, error)
}

// RevocationNotifier is implemented by sources that can tell the engine a
// credential was revoked out-of-band.
type RevocationNotifier interface {
	// OnRevoked registers a callback invoked when the credential is
	// revoked. The engine uses it to enter the needs-reauth state.
	OnRevoked(func())
}
