package httpapi

import (
	"net/http"
	"path/filepath"
	"sync/atomic"

	"jobmail-engine/internal/config"
)

type ConfigHandler struct {
	CfgVal      *atomic.Value // config.Config
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}

func (h ConfigHandler) current() config.Config {
	return h.CfgVal.Load().(config.Config)
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.current())
}

// Put validates and saves a full config, replying with what was stored.
// Inbox, scan and AI settings apply on the next start.
func (h ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	var incoming config.Config
	if err := decodeJSON(r, &incoming); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	normalized, vr := config.NormalizeAndValidate(incoming)
	if !vr.OK() {
		writeJSON(w, http.StatusBadRequest, vr)
		return
	}
	if err := config.SaveAtomic(h.UserCfgPath, normalized); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}

	saved, err := h.LoadCfg()
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "reload_failed", "saved but reload failed: "+err.Error())
		return
	}
	h.CfgVal.Store(saved)
	w.Header().Set("X-Restart-Required", "true")
	writeJSON(w, http.StatusOK, saved)
}

func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	p := h.UserCfgPath
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": p})
}

func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.current())
	writeJSON(w, http.StatusOK, vr)
}
