package resthub

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/OpenParachutePBC/parachute-sub000/blob"
)

const (
	testRepo   = "owner/vault"
	testBranch = "main"
	testToken  = "good-token"
)

// fakeHub is an in-memory stand-in for the hosting provider's content
// API: a flat file store served through the branches, trees, blobs, and
// contents endpoints with the same optimistic-concurrency rules.
type fakeHub struct {
	mu    sync.Mutex
	files map[string][]byte

	server *httptest.Server

	// rejectAuth makes every call answer 401.
	rejectAuth bool

	// rateLimitBudget answers 429 to that many calls before serving.
	rateLimitBudget int

	// failReads maps a path to an HTTP status its content GET returns.
	failReads map[string]int

	// requests counts calls that passed the rate limiter.
	requests int
}

func newFakeHub(t *testing.T) *fakeHub {
	t.Helper()

	h := &fakeHub{
		files:     map[string][]byte{},
		failReads: map[string]int{},
	}
	h.server = httptest.NewServer(h)
	t.Cleanup(h.server.Close)
	return h
}

// client builds a Client wired to the fake hub with near-instant retries.
func (h *fakeHub) client() *Client {
	return NewClient(testRepo, testBranch, func() string { return testToken },
		WithBaseURL(h.server.URL),
		WithHTTPClient(h.server.Client()),
		WithBackOff(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 4)
		}),
	)
}

func (h *fakeHub) put(rel string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files[rel] = data
}

func (h *fakeHub) tree() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := map[string]string{}
	for rel, data := range h.files {
		out[rel] = blob.Hash(data)
	}
	return out
}

func (h *fakeHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rateLimitBudget > 0 {
		h.rateLimitBudget--
		writeJSON(w, http.StatusTooManyRequests, apiError{Message: "rate limited"})
		return
	}
	h.requests++

	if h.rejectAuth || r.Header.Get("Authorization") != "Bearer "+testToken {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "bad credentials"})
		return
	}

	p := strings.TrimPrefix(r.URL.Path, "/repos/"+testRepo)
	switch {
	case p == "/branches/"+testBranch:
		h.handleBranch(w)
	case strings.HasPrefix(p, "/git/trees/"):
		h.handleTree(w)
	case strings.HasPrefix(p, "/git/blobs/"):
		h.handleBlob(w, strings.TrimPrefix(p, "/git/blobs/"))
	case strings.HasPrefix(p, "/contents/"):
		h.handleContents(w, r, strings.TrimPrefix(p, "/contents/"))
	default:
		writeJSON(w, http.StatusNotFound, apiError{Message: "unknown endpoint " + p})
	}
}

func (h *fakeHub) handleBranch(w http.ResponseWriter) {
	if len(h.files) == 0 {
		writeJSON(w, http.StatusNotFound, apiError{Message: "branch not found"})
		return
	}

	var resp branchResponse
	resp.Commit.SHA = "head"
	writeJSON(w, http.StatusOK, resp)
}

func (h *fakeHub) handleTree(w http.ResponseWriter) {
	var resp treeResponse
	for rel, data := range h.files {
		resp.Tree = append(resp.Tree, struct {
			Path string `json:"path"`
			Type string `json:"type"`
			SHA  string `json:"sha"`
		}{Path: rel, Type: "blob", SHA: blob.Hash(data)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *fakeHub) handleBlob(w http.ResponseWriter, sha string) {
	for _, data := range h.files {
		if blob.Hash(data) == sha {
			writeJSON(w, http.StatusOK, blobResponse{
				Content:  base64.StdEncoding.EncodeToString(data),
				Encoding: "base64",
			})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, apiError{Message: "blob not found"})
}

func (h *fakeHub) handleContents(w http.ResponseWriter, r *http.Request, rel string) {
	switch r.Method {
	case http.MethodGet:
		if status, ok := h.failReads[rel]; ok {
			writeJSON(w, status, apiError{Message: "scripted failure"})
			return
		}
		data, ok := h.files[rel]
		if !ok {
			writeJSON(w, http.StatusNotFound, apiError{Message: "not found"})
			return
		}
		writeJSON(w, http.StatusOK, contentResponse{
			SHA:      blob.Hash(data),
			Size:     int64(len(data)),
			Content:  base64.StdEncoding.EncodeToString(data),
			Encoding: "base64",
		})

	case http.MethodPut:
		var req writeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Message: err.Error()})
			return
		}

		current, exists := h.files[rel]
		if exists && req.SHA != blob.Hash(current) {
			writeJSON(w, http.StatusConflict, apiError{Message: "sha mismatch"})
			return
		}
		if !exists && req.SHA != "" {
			writeJSON(w, http.StatusUnprocessableEntity, apiError{Message: "sha provided for new file"})
			return
		}

		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Message: err.Error()})
			return
		}
		h.files[rel] = data
		writeJSON(w, http.StatusOK, contentResponse{SHA: blob.Hash(data)})

	case http.MethodDelete:
		var req deleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Message: err.Error()})
			return
		}

		current, exists := h.files[rel]
		if !exists {
			writeJSON(w, http.StatusNotFound, apiError{Message: "not found"})
			return
		}
		if req.SHA != blob.Hash(current) {
			writeJSON(w, http.StatusConflict, apiError{Message: "sha mismatch"})
			return
		}
		delete(h.files, rel)
		writeJSON(w, http.StatusOK, struct{}{})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Message: "method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
