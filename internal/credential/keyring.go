// Package credential keeps secrets in the system keyring: the remembered
// sign-in and the SMTP password.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "shuttledesk"

// Well-known keys.
const (
	KeySession      = "session"
	KeySMTPPassword = "smtp_password"
)

// ErrNotFound is returned when no value is stored under a key.
var ErrNotFound = errors.New("credential not found")

// Ring reads and writes keyring items. *Keyring implements it; tests use
// an in-memory ring.
type Ring interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Keyring is a Ring backed by the platform keyring.
type Keyring struct {
	// FileDir holds the encrypted file backend, used when no platform
	// keyring is available.
	FileDir string
}

// NewKeyring returns a Keyring with the default file backend location.
func NewKeyring() *Keyring {
	return &Keyring{FileDir: "~/.config/shuttledesk/credentials"}
}

// open returns a configured keyring instance.
func (k *Keyring) open() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  k.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("shuttledesk-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key string, value string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "shuttledesk " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key. Deleting a missing key is not an
// error.
func (k *Keyring) Delete(key string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Memory is an in-memory Ring.
type Memory map[string]string

// Get returns the value stored under key.
func (m Memory) Get(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	return v, nil
}

// Set stores value under key.
func (m Memory) Set(key, value string) error {
	m[key] = value
	return nil
}

// Delete removes key.
func (m Memory) Delete(key string) error {
	delete(m, key)
	return nil
}
