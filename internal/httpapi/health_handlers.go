package httpapi

import (
	"net/http"

	"jobmail-engine/internal/events"
	"jobmail-engine/internal/store"
)

// PendingCounter reports model calls still waiting for an answer.
type PendingCounter interface {
	Pending() int
}

type HealthHandler struct {
	Emails         *store.OAStore
	Hub            *events.Hub
	Processed      *store.ProcessedSet
	Bridge         PendingCounter
	InboxName      string
	ClassifierName string
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":         true,
		"inbox":      h.InboxName,
		"classifier": h.ClassifierName,
		"processed":  h.Processed.Len(),
	}
	if h.Hub != nil {
		resp["subscribers"] = h.Hub.Len()
		resp["dropped_events"] = h.Hub.Dropped()
	}
	if h.Bridge != nil {
		resp["pending_ai_calls"] = h.Bridge.Pending()
	}
	if h.Emails != nil {
		total, unread, err := h.Emails.Count(r.Context())
		if err != nil {
			resp["ok"] = false
			resp["error"] = err.Error()
		} else {
			resp["emails"] = total
			resp["unread"] = unread
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
