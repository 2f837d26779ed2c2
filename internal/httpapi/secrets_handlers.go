package httpapi

import (
	"errors"
	"net/http"
	"sync/atomic"

	"jobmail-engine/internal/config"
	"jobmail-engine/internal/secrets"
)

// SecretsHandler manages the IMAP password of the currently configured
// account. The password itself is never returned.
type SecretsHandler struct {
	CfgVal *atomic.Value // config.Config
}

func (h SecretsHandler) account() secrets.Account {
	return secrets.IMAPAccount(h.CfgVal.Load().(config.Config))
}

func (h SecretsHandler) IMAPStatus(w http.ResponseWriter, r *http.Request) {
	a := h.account()
	writeJSON(w, http.StatusOK, map[string]any{
		"account": a.String(),
		"stored":  secrets.Stored(a),
	})
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := secrets.SetPassword(h.account(), req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteIMAPPassword(w http.ResponseWriter, r *http.Request) {
	if err := secrets.DeletePassword(h.account()); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, secrets.ErrNoAccount) || errors.Is(err, secrets.ErrEmptySecret) {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	WriteError(w, r, http.StatusInternalServerError, "keyring_error", err.Error())
}
