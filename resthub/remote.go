package resthub

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
)

type branchResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

type treeResponse struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type contentResponse struct {
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type blobResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type deleteRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

// ListRemoteTree lists every blob on the sync branch as a path-to-object-ID
// snapshot. Object IDs are content hashes in the same scheme the native
// backend and the local walker use, so the two sides compare directly.
// A repository or branch that does not exist yet yields an empty snapshot.
func (c *Client) ListRemoteTree(ctx context.Context) (snapshot.Snapshot, error) {
	var branch branchResponse
	branchPath := fmt.Sprintf("/repos/%s/branches/%s", c.repo, c.branch)
	if err := c.doJSON(ctx, http.MethodGet, branchPath, nil, &branch); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return snapshot.Snapshot{}, nil
		}
		return nil, err
	}

	var tree treeResponse
	treePath := fmt.Sprintf("/repos/%s/git/trees/%s?recursive=1", c.repo, branch.Commit.SHA)
	if err := c.doJSON(ctx, http.MethodGet, treePath, nil, &tree); err != nil {
		return nil, err
	}

	remote := snapshot.Snapshot{}
	for _, entry := range tree.Tree {
		if entry.Type != "blob" || snapshot.Excluded(entry.Path) {
			continue
		}
		remote[entry.Path] = entry.SHA
	}

	if tree.Truncated {
		return nil, errs.Wrapf(errs.ErrNetwork, "remote tree listing truncated for %s", c.repo)
	}

	return remote, nil
}

// ReadFile downloads one file's bytes. Files too large for the contents
// endpoint come back without inline content; those are fetched through
// the blob endpoint by object ID instead.
func (c *Client) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	var content contentResponse
	apiPath := c.contentPath(rel) + "?ref=" + c.branch
	if err := c.doJSON(ctx, http.MethodGet, apiPath, nil, &content); err != nil {
		return nil, err
	}

	if content.Content == "" && content.Size > 0 {
		return c.readBlob(ctx, content.SHA)
	}

	return decodeContent(content.Content, content.Encoding)
}

func (c *Client) readBlob(ctx context.Context, sha string) ([]byte, error) {
	var blob blobResponse
	apiPath := fmt.Sprintf("/repos/%s/git/blobs/%s", c.repo, sha)
	if err := c.doJSON(ctx, http.MethodGet, apiPath, nil, &blob); err != nil {
		return nil, err
	}
	return decodeContent(blob.Content, blob.Encoding)
}

func decodeContent(content, encoding string) ([]byte, error) {
	switch encoding {
	case "base64", "":
		data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("resthub: decoding file content: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("resthub: unsupported content encoding %q", encoding)
	}
}

// StatFile returns the current object ID for a remote path, or
// errs.ErrNotFound when the path does not exist on the sync branch.
func (c *Client) StatFile(ctx context.Context, rel string) (string, error) {
	var content contentResponse
	apiPath := c.contentPath(rel) + "?ref=" + c.branch
	if err := c.doJSON(ctx, http.MethodGet, apiPath, nil, &content); err != nil {
		return "", err
	}
	return content.SHA, nil
}

// WriteFile uploads data to a remote path. The write carries the object ID
// the caller last observed (empty for a new file); a stale ID makes the
// provider reject the write with errs.ErrConflict, in which case the
// caller re-reads the current ID and retries once. Local content wins.
func (c *Client) WriteFile(ctx context.Context, rel string, data []byte, baseSHA string) error {
	req := writeRequest{
		Message: "chore(sync): update " + rel,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  c.branch,
		SHA:     baseSHA,
	}
	return c.doJSON(ctx, http.MethodPut, c.contentPath(rel), req, nil)
}

// DeleteFile removes a remote path. Deleting a path that is already gone
// succeeds: the desired end state holds either way.
func (c *Client) DeleteFile(ctx context.Context, rel string, sha string) error {
	if sha == "" {
		current, err := c.StatFile(ctx, rel)
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		sha = current
	}

	req := deleteRequest{
		Message: "chore(sync): delete " + rel,
		SHA:     sha,
		Branch:  c.branch,
	}

	err := c.doJSON(ctx, http.MethodDelete, c.contentPath(rel), req, nil)
	if errors.Is(err, errs.ErrNotFound) {
		return nil
	}
	return err
}
