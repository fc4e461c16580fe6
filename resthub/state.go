package resthub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/OpenParachutePBC/parachute-sub000/snapshot"
)

// SnapshotStore persists the remote snapshot observed at the end of a
// sync pass, so deletion propagation survives process restarts. Without
// it, a file deleted locally while the engine was down would be
// re-downloaded instead of deleted remotely.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store for the given "owner/name" repository
// under the XDG state directory.
func NewSnapshotStore(repo string) (*SnapshotStore, error) {
	name := strings.ReplaceAll(repo, "/", "--") + ".json"
	path, err := xdg.StateFile(filepath.Join("parachute", "remote", name))
	if err != nil {
		return nil, fmt.Errorf("resthub: resolving state path: %w", err)
	}
	return &SnapshotStore{path: path}, nil
}

// NewSnapshotStoreAt creates a store at an explicit path.
func NewSnapshotStoreAt(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Load returns the persisted snapshot, or nil when none has been saved
// yet. A nil previous snapshot makes the reconciler treat every
// remote-only file as new, which downloads rather than deletes. That is
// the safe direction to err in.
func (s *SnapshotStore) Load() (snapshot.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resthub: reading snapshot state: %w", err)
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("resthub: decoding snapshot state: %w", err)
	}

	return snap, nil
}

// Save persists the snapshot, replacing any previous one.
func (s *SnapshotStore) Save(snap snapshot.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("resthub: encoding snapshot state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("resthub: creating state directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("resthub: writing snapshot state: %w", err)
	}

	return nil
}

// Reset removes the persisted snapshot. Used when sync is disabled or
// the remote is repointed.
func (s *SnapshotStore) Reset() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("resthub: removing snapshot state: %w", err)
	}
	return nil
}
