// Package resthub is the REST fallback backend: it synchronizes the vault
// through the hosting provider's HTTP content API instead of native
// version-control transport, for platforms where the native backend's
// runtime dependency is unavailable. Remote reads and writes go through
// the contents endpoints with bearer-token auth; every call carries its
// own bounded timeout and rate-limited responses are retried with
// exponential backoff.
package resthub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

const (
	// DefaultAPIBaseURL is the hosting provider's REST endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	// defaultCallTimeout bounds each individual HTTP call. There is no
	// pass-level timeout: a stuck call fails that call, not the pass.
	defaultCallTimeout = 30 * time.Second

	// maxRateLimitRetries bounds backoff attempts against 429-equivalent
	// responses before the call surfaces errs.ErrRateLimited.
	maxRateLimitRetries = 4
)

// TokenFunc supplies the current bearer token for a request. The
// orchestrator wires this to the credential source so refreshed tokens
// take effect mid-pass.
type TokenFunc func() string

// Client speaks the hosting provider's content API for one repository.
type Client struct {
	base    string
	repo    string // "owner/name"
	branch  string
	token   TokenFunc
	httpc   *http.Client
	backoff func() backoff.BackOff
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (tests point it at a local
// server).
func WithHTTPClient(httpc *http.Client) ClientOption {
	return func(c *Client) { c.httpc = httpc }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) { c.base = strings.TrimSuffix(base, "/") }
}

// WithBackOff overrides the retry policy used for rate-limited calls.
func WithBackOff(policy func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.backoff = policy }
}

// NewClient creates a content-API client for the given "owner/name"
// repository and branch.
func NewClient(repo, branch string, token TokenFunc, opts ...ClientOption) *Client {
	c := &Client{
		base:   DefaultAPIBaseURL,
		repo:   repo,
		branch: branch,
		token:  token,
		httpc:  &http.Client{Timeout: defaultCallTimeout},
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return backoff.WithMaxRetries(b, maxRateLimitRetries)
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// apiError is the provider's error envelope.
type apiError struct {
	Message string `json:"message"`
}

// doJSON performs one API call, retrying rate-limited responses with
// exponential backoff. Non-2xx statuses are mapped onto the engine's
// shared sentinels. When out is non-nil the response body is decoded
// into it.
func (c *Client) doJSON(ctx context.Context, method, apiPath string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("resthub: encoding request: %w", err)
		}
	}

	operation := func() error {
		return c.doOnce(ctx, method, apiPath, payload, out)
	}

	err := backoff.Retry(operation, backoff.WithContext(c.backoff(), ctx))
	if err != nil {
		// Retries exhausted on a rate-limited call: surface it as
		// retryable rather than fatal.
		if isRateLimitSignal(err) {
			return errs.Wrap(errs.ErrRateLimited, method+" "+apiPath)
		}
		return err
	}

	return nil
}

// errRateLimitRetry marks a response that should be retried with backoff.
type errRateLimitRetry struct{ status int }

func (e *errRateLimitRetry) Error() string {
	return fmt.Sprintf("rate limited (status %d)", e.status)
}

func isRateLimitSignal(err error) bool {
	var rl *errRateLimitRetry
	return errors.As(err, &rl)
}

func (c *Client) doOnce(ctx context.Context, method, apiPath string, payload []byte, out any) error {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+apiPath, reqBody)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("resthub: building request: %w", err))
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return backoff.Permanent(errs.Wrapf(errs.ErrNetwork, "%s %s: %v", method, apiPath, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		// Retryable: hand the signal back to the backoff loop.
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return &errRateLimitRetry{status: resp.StatusCode}
	}

	if resp.StatusCode >= 400 {
		return backoff.Permanent(c.statusError(resp, method, apiPath))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("resthub: decoding response: %w", err))
		}
	}

	return nil
}

func (c *Client) statusError(resp *http.Response, method, apiPath string) error {
	var envelope apiError
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	where := fmt.Sprintf("%s %s", method, apiPath)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return errs.Wrap(errs.ErrAuth, where)
	case http.StatusForbidden:
		return errs.Wrap(errs.ErrAuth, where)
	case http.StatusNotFound:
		return errs.Wrap(errs.ErrNotFound, where)
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// The provider rejects writes whose base object identifier went
		// stale between read and write.
		return errs.Wrapf(errs.ErrConflict, "%s: %s", where, envelope.Message)
	default:
		return errs.Wrapf(errs.ErrNetwork, "%s: status %d: %s", where, resp.StatusCode, envelope.Message)
	}
}

// contentPath builds the contents endpoint path for a repository-relative
// file path.
func (c *Client) contentPath(rel string) string {
	escaped := (&url.URL{Path: rel}).EscapedPath()
	return fmt.Sprintf("/repos/%s/contents/%s", c.repo, escaped)
}
