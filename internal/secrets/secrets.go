// Package secrets keeps the SISU auth header and the SMTP password in the OS keychain.
package secrets

import (
	"strings"

	"github.com/zalando/go-keyring"

	"sisu-notifier/internal/config"
	"sisu-notifier/internal/errors"
)

// KeyringService groups the notifier's secrets in the OS keychain.
const KeyringService = "sisu-notifier"

// Kind names a secret on the command line.
type Kind string

const (
	KindSISU Kind = "sisu"
	KindSMTP Kind = "smtp"
)

// Account returns the keyring account for a secret kind.
func Account(kind Kind) (string, error) {
	switch kind {
	case KindSISU:
		return config.SecretSISUAuthHeader, nil
	case KindSMTP:
		return config.SecretSMTPPassword, nil
	}
	return "", errors.NewValidationError("kind", string(kind), "must be 'sisu' or 'smtp'")
}

// Keyring reads secrets from the OS keychain. It satisfies config.SecretSource.
type Keyring struct{}

// NewKeyring creates a new Keyring.
func NewKeyring() Keyring {
	return Keyring{}
}

// Get returns the stored secret or errors.ErrSecretNotFound.
func (Keyring) Get(account string) (string, error) {
	v, err := keyring.Get(KeyringService, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", errors.ErrSecretNotFound
		}
		return "", errors.Wrapf(err, "reading %s from keyring", account)
	}
	if strings.TrimSpace(v) == "" {
		return "", errors.ErrSecretNotFound
	}
	return v, nil
}

// Set stores a secret of the given kind.
func Set(kind Kind, value string) error {
	account, err := Account(kind)
	if err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(string(kind), "", "secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

// Delete removes a secret of the given kind.
func Delete(kind Kind) error {
	account, err := Account(kind)
	if err != nil {
		return err
	}
	if err := keyring.Delete(KeyringService, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.ErrSecretNotFound
		}
		return err
	}
	return nil
}
