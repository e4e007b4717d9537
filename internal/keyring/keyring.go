// Package keyring stores habitual secrets in the OS keyring, all under the
// habitual service name with one keyring user per secret.
package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/habitual/internal/constants"
)

var (
	ErrNotFound           = errors.New("credentials not found in keyring")
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Secret is one entry habitual keeps in the keyring.
type Secret struct {
	user  string
	Label string
}

var (
	ConnectionString = Secret{user: constants.DefaultKeyringUser, Label: "connection string"}
	JWTSecret        = Secret{user: constants.JWTSecretKeyringUser, Label: "API token secret"}
)

// Secrets lists every entry in display order.
func Secrets() []Secret { return []Secret{ConnectionString, JWTSecret} }

func (s Secret) Get() (string, error) {
	v, err := keyring.Get(constants.AppName, s.user)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return "", ErrNotFound
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func (s Secret) Set(value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", s.Label)
	}
	if err := keyring.Set(constants.AppName, s.user, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", s.Label, err)
	}
	return nil
}

func (s Secret) Delete() error {
	err := keyring.Delete(constants.AppName, s.user)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("failed to delete %s from keyring: %w", s.Label, err)
	}
	return nil
}

// Stored reports whether the secret is present without returning it.
func (s Secret) Stored() (bool, error) {
	_, err := s.Get()
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// GetConnectionString returns ErrNotFound when nothing is stored.
func GetConnectionString() (string, error)     { return ConnectionString.Get() }
func SetConnectionString(connStr string) error { return ConnectionString.Set(connStr) }
func DeleteConnectionString() error            { return ConnectionString.Delete() }

// GetJWTSecret returns the token signing secret used by the API server.
func GetJWTSecret() (string, error)    { return JWTSecret.Get() }
func SetJWTSecret(secret string) error { return JWTSecret.Set(secret) }
func DeleteJWTSecret() error           { return JWTSecret.Delete() }

// IsAvailable is a best-effort probe of the OS keyring.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
