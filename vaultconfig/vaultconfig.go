// Package vaultconfig persists the sync configuration. The configuration
// is created on first setup, mutated only by explicit user action, and
// destroyed on sign-out; the engine reads it at startup and on
// enable/disable, never during a sync pass.
package vaultconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

const (
	// configDirName is the subdirectory of the XDG config home the
	// engine writes to.
	configDirName = "parachute"

	// configFileName is the persisted sync configuration file.
	configFileName = "sync.json"
)

// SyncConfiguration is the persisted description of one vault's sync
// setup.
type SyncConfiguration struct {
	// RemoteURL is the hosting-provider repository URL.
	RemoteURL string `json:"remoteURL"`

	// CredentialRef is the opaque name of the keyring entry holding the
	// credential; the token itself is never written here.
	CredentialRef string `json:"credentialRef"`

	// LocalRootPath is the vault root directory on this device.
	LocalRootPath string `json:"localRootPath"`

	// Enabled records whether sync should resume automatically on start.
	Enabled bool `json:"enabled"`

	// BranchName is the branch the vault is pinned to.
	BranchName string `json:"branchName"`
}

// Validate checks the fields required to run a sync.
func (c *SyncConfiguration) Validate() error {
	if c.RemoteURL == "" {
		return errors.New("vaultconfig: remoteURL is required")
	}
	if c.LocalRootPath == "" {
		return errors.New("vaultconfig: localRootPath is required")
	}
	if c.BranchName == "" {
		c.BranchName = "main"
	}
	return nil
}

// Store persists and restores a SyncConfiguration. The engine treats it
// as a black box satisfying load/save/delete.
type Store interface {
	// Load returns the persisted configuration, or errs.ErrNotFound when
	// none has been saved yet.
	Load() (*SyncConfiguration, error)

	// Save persists the configuration.
	Save(cfg *SyncConfiguration) error

	// Delete removes the persisted configuration (sign-out).
	Delete() error
}

// FileStore is a Store writing JSON under the XDG config home.
type FileStore struct {
	path string
}

// NewFileStore creates a store at the default XDG location.
func NewFileStore() (*FileStore, error) {
	path, err := xdg.ConfigFile(filepath.Join(configDirName, configFileName))
	if err != nil {
		return nil, fmt.Errorf("vaultconfig: resolving config path: %w", err)
	}
	return &FileStore{path: path}, nil
}

// NewFileStoreAt creates a store at an explicit path. Tests use this to
// avoid touching the real config home.
func NewFileStoreAt(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements Store.
func (s *FileStore) Load() (*SyncConfiguration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Wrap(errs.ErrNotFound, "no persisted sync configuration")
		}
		return nil, fmt.Errorf("vaultconfig: reading %q: %w", s.path, err)
	}

	var cfg SyncConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("vaultconfig: decoding %q: %w", s.path, err)
	}

	return &cfg, nil
}

// Save implements Store. The file is written 0600: it carries no token,
// but the remote URL alone is private enough.
func (s *FileStore) Save(cfg *SyncConfiguration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("vaultconfig: encoding configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("vaultconfig: creating config directory: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("vaultconfig: writing %q: %w", s.path, err)
	}

	return nil
}

// Delete implements Store. Deleting an absent configuration is not an
// error.
func (s *FileStore) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vaultconfig: removing %q: %w", s.path, err)
	}
	return nil
}
