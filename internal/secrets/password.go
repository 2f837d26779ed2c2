package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"jobmail-engine/internal/config"
)

// KeyringService groups the engine's secrets in the OS keychain.
const KeyringService = "jobmail"

// EnvIMAPPassword is consulted when the keychain has nothing, e.g. on headless hosts.
const EnvIMAPPassword = "JOBMAIL_IMAP_PASSWORD"

var (
	ErrNoPassword  = errors.New("IMAP password not found (set it in keychain or via " + EnvIMAPPassword + ")")
	ErrNoAccount   = errors.New("imap username and host are required")
	ErrEmptySecret = errors.New("password is empty")
)

// Account names one mailbox login in the keychain.
type Account struct {
	Username string
	Host     string
}

func IMAPAccount(cfg config.Config) Account {
	return Account{
		Username: strings.TrimSpace(cfg.Inbox.IMAP.Username),
		Host:     strings.TrimSpace(cfg.Inbox.IMAP.Host),
	}
}

func (a Account) valid() bool { return a.Username != "" && a.Host != "" }

// String is the keychain entry name, e.g. "jobmail:imap:me@example.com@imap.gmail.com".
func (a Account) String() string {
	return fmt.Sprintf("%s:imap:%s@%s", KeyringService, a.Username, a.Host)
}

// Password returns the keychain entry for a, falling back to the environment.
func Password(a Account) (string, error) {
	if a.valid() {
		pw, err := keyring.Get(KeyringService, a.String())
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("keyring get %s: %w", a, err)
		}
	}
	if pw := os.Getenv(EnvIMAPPassword); strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	return "", ErrNoPassword
}

// Stored reports whether the keychain holds a password for a. The
// environment fallback is not considered.
func Stored(a Account) bool {
	if !a.valid() {
		return false
	}
	pw, err := keyring.Get(KeyringService, a.String())
	return err == nil && strings.TrimSpace(pw) != ""
}

func SetPassword(a Account, password string) error {
	if !a.valid() {
		return ErrNoAccount
	}
	if strings.TrimSpace(password) == "" {
		return ErrEmptySecret
	}
	return keyring.Set(KeyringService, a.String(), password)
}

// DeletePassword removes the keychain entry. A missing entry is not an error.
func DeletePassword(a Account) error {
	if !a.valid() {
		return ErrNoAccount
	}
	if err := keyring.Delete(KeyringService, a.String()); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
