package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zalando/go-keyring"
)

func TestIsLocal(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:4000": true,
		"[::1]:4000":     true,
		"127.0.0.9:4000": true,
		"localhost":      true,
		"10.0.0.8:4000":  false,
		"garbage":        false,
	} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = addr
		assert.Equal(t, want, IsLocal(r), addr)
	}
}

func TestLocalOnly_RejectsRemote(t *testing.T) {
	h := localOnly(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	r := httptest.NewRequest(http.MethodPost, "/db/checkpoint", nil)
	r.RemoteAddr = "192.168.1.20:1234"
	rec := httptest.NewRecorder()
	h(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "forbidden")

	r.RemoteAddr = "127.0.0.1:1234"
	rec = httptest.NewRecorder()
	h(rec, r)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestSecrets_IMAPPasswordLifecycle(t *testing.T) {
	keyring.MockInit()
	e := newEnv(t, false)

	st := decode[map[string]any](t, e.do(t, http.MethodGet, "/api/secrets/imap", ""))
	assert.Equal(t, false, st["stored"])
	assert.Equal(t, "jobmail:imap:me@example.com@imap.gmail.com", st["account"])

	res := e.do(t, http.MethodPost, "/api/secrets/imap", `{"password":"  "}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/secrets/imap", `{"password":"hunter2"}`)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	st = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/secrets/imap", ""))
	assert.Equal(t, true, st["stored"])
	assert.NotContains(t, st, "password")

	res = e.do(t, http.MethodDelete, "/api/secrets/imap", "")
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	st = decode[map[string]any](t, e.do(t, http.MethodGet, "/api/secrets/imap", ""))
	assert.Equal(t, false, st["stored"])
}

func TestDB_Checkpoint(t *testing.T) {
	e := newEnv(t, false)

	res := e.do(t, http.MethodPost, "/db/checkpoint", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, decode[map[string]any](t, res)["ok"])

	res = e.do(t, http.MethodGet, "/db/checkpoint", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}
