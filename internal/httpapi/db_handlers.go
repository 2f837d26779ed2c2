package httpapi

import (
	"net/http"
	"time"

	"jobmail-engine/internal/store"
)

type DBHandler struct {
	DB *store.DB
}

// Checkpoint folds the WAL into the database file, e.g. before a backup.
func (h DBHandler) Checkpoint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.DB.Checkpoint(r.Context()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "db_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"dur_ms": time.Since(start).Milliseconds(),
	})
}
