package gitvault

import (
	"fmt"
	"net/url"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// transportAuth aliases go-git's auth method for internal signatures.
type transportAuth = transport.AuthMethod

// AuthProvider resolves authentication methods for git network operations.
type AuthProvider interface {
	// Method returns the transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed for this URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// TokenAuthProvider authenticates HTTPS remotes with a bearer-style access
// token. Hosting providers accept the token as the basic-auth password.
type TokenAuthProvider struct {
	token string
}

// NewTokenAuthProvider creates a provider around an access token.
func NewTokenAuthProvider(token string) *TokenAuthProvider {
	return &TokenAuthProvider{token: token}
}

// Method returns the authentication method for the given remote URL.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod.
func (p *TokenAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	parsed, err := url.Parse(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote URL: %w", err)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf("token auth only supports http(s) remotes, got %s", parsed.Scheme)
	}

	if p.token == "" {
		return nil, nil
	}

	return &githttp.BasicAuth{
		Username: "token", // some providers require a non-empty username
		Password: p.token,
	}, nil
}

// DynamicAuthProvider resolves the token at call time, so a credential
// refreshed mid-session takes effect on the next network operation
// without reinstalling the provider.
type DynamicAuthProvider struct {
	token func() (string, error)
}

// NewDynamicAuthProvider creates a provider that asks token for the
// current access token on every network operation.
func NewDynamicAuthProvider(token func() (string, error)) *DynamicAuthProvider {
	return &DynamicAuthProvider{token: token}
}

// Method returns the authentication method for the given remote URL.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod.
func (p *DynamicAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	token, err := p.token()
	if err != nil {
		return nil, err
	}
	return NewTokenAuthProvider(token).Method(remoteURL)
}
