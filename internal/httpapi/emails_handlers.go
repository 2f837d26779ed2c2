package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"jobmail-engine/internal/events"
	"jobmail-engine/internal/store"
)

type EmailsHandler struct {
	Emails *store.OAStore
	Hub    *events.Hub
}

// List returns detected OA emails newest first. ?unread=1 keeps unread ones only.
func (h EmailsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Emails.List(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if v := r.URL.Query().Get("unread"); v == "1" || strings.EqualFold(v, "true") {
		unread := list[:0]
		for _, e := range list {
			if !e.Read {
				unread = append(unread, e)
			}
		}
		list = unread
	}
	writeJSON(w, http.StatusOK, list)
}

func (h EmailsHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.Emails.Get(r.Context(), r.PathValue("id"))
	if h.storeErr(w, r, err) {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Export returns the whole collection as {"oaEmails": [...]}.
func (h EmailsHandler) Export(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Emails.Snapshot(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="oa-emails.json"`)
	writeJSON(w, http.StatusOK, snap)
}

func (h EmailsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.storeErr(w, r, h.Emails.MarkRead(r.Context(), id)) {
		return
	}
	h.changed(r, "read", id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (h EmailsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.storeErr(w, r, h.Emails.Delete(r.Context(), id)) {
		return
	}
	h.changed(r, "deleted", id)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id})
}

func (h EmailsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.Emails.Clear(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	h.changed(r, "cleared", "")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "deleted": n})
}

func (h EmailsHandler) storeErr(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "no OA email with that id")
	default:
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
	}
	return true
}

func (h EmailsHandler) changed(r *http.Request, action, id string) {
	data := map[string]any{"action": action}
	if id != "" {
		data["id"] = id
	}
	h.Hub.Emit(RequestIDFrom(r.Context()), events.TypeEmailsChanged, data)
}
