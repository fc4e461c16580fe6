package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/OpenParachutePBC/parachute-sub000/errs"
)

// KeyringStore persists credentials in the operating system keyring. The
// persisted sync configuration references entries here by name only, so
// tokens never land in plain files.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a store scoped to the given service name.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// Save stores the credential under the given reference name.
func (s *KeyringStore) Save(ref string, cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	if err := keyring.Set(s.service, ref, string(data)); err != nil {
		return fmt.Errorf("keyring set %q: %w", ref, err)
	}

	return nil
}

// Load retrieves the credential stored under the given reference name.
// Returns errs.ErrNotFound when no such entry exists.
func (s *KeyringStore) Load(ref string) (Credential, error) {
	data, err := keyring.Get(s.service, ref)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credential{}, errs.Wrapf(errs.ErrNotFound, "credential %q", ref)
		}
		return Credential{}, fmt.Errorf("keyring get %q: %w", ref, err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return Credential{}, fmt.Errorf("decoding credential %q: %w", ref, err)
	}

	return cred, nil
}

// Delete removes the credential stored under the given reference name.
// Deleting an absent entry is not an error.
func (s *KeyringStore) Delete(ref string) error {
	err := keyring.Delete(s.service, ref)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %q: %w", ref, err)
	}
	return nil
}
