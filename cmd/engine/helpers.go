package main

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/httpapi"
	"jobmail-engine/internal/inbox"
	"jobmail-engine/internal/secrets"
)

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// shutdownHandler stops the whole engine on an authenticated local request.
func shutdownHandler(token string, stop context.CancelFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpapi.WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
			return
		}
		if !httpapi.IsLocal(r) {
			httpapi.WriteError(w, r, http.StatusForbidden, "forbidden", "local requests only")
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httpapi.WriteError(w, r, http.StatusUnauthorized, "unauthorized", "bad shutdown token")
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))
		stop()
	}
}

// openSource connects the configured inbox.
func openSource(ctx context.Context, cfg config.Config, dataDir string) (inbox.Source, error) {
	switch cfg.Inbox.Provider {
	case config.ProviderIMAP:
		pw, err := secrets.Password(secrets.IMAPAccount(cfg))
		if err != nil {
			return nil, err
		}
		c := cfg.Inbox.IMAP
		return inbox.NewIMAPSource(inbox.IMAPConfig{
			Host:     c.Host,
			Port:     c.Port,
			Username: c.Username,
			Password: pw,
			Mailbox:  c.Mailbox,
			MaxRows:  c.MaxRows,
			Flag:     c.Flag,
		})
	case config.ProviderGmail:
		c := cfg.Inbox.Gmail
		return inbox.NewGmailSource(ctx, inbox.GmailConfig{
			CredentialsPath: inDataDir(dataDir, c.CredentialsPath),
			TokenPath:       inDataDir(dataDir, c.TokenPath),
			MaxRows:         int64(c.MaxRows),
			Label:           c.Label,
			PollInterval:    time.Duration(c.PollSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown inbox provider %q", cfg.Inbox.Provider)
	}
}

func inDataDir(dataDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dataDir, p)
}
