package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService names the keyring entries
	KeyringService = "atmo"

	KeyClientSecret = "client_secret"
	KeyPassword     = "password"
)

// ErrSecretNotFound is returned when a secret has not been stored
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore keeps configuration secrets out of the config file
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringStore implements SecretStore using the OS keyring
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring-backed secret store
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: KeyringService}
}

// Get reads a secret from the keyring
func (s *KeyringStore) Get(key string) (string, error) {
	value, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// Set stores a secret in the keyring
func (s *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(s.service, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete removes a secret from the keyring
func (s *KeyringStore) Delete(key string) error {
	err := keyring.Delete(s.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// MockStore implements SecretStore in memory for testing
type MockStore struct {
	secrets map[string]string
	err     error
}

// NewMockStore creates a mock secret store. A non-nil err is returned by
// every call.
func NewMockStore(secrets map[string]string, err error) *MockStore {
	if secrets == nil {
		secrets = make(map[string]string)
	}
	return &MockStore{secrets: secrets, err: err}
}

// Get returns the mock secret
func (m *MockStore) Get(key string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	value, ok := m.secrets[key]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Set stores the mock secret
func (m *MockStore) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.secrets[key] = value
	return nil
}

// Delete removes the mock secret
func (m *MockStore) Delete(key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.secrets, key)
	return nil
}
