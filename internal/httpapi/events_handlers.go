package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"jobmail-engine/internal/events"
)

// keepAlive is how often an idle stream gets a comment line so proxies and
// the browser keep it open.
const keepAlive = 25 * time.Second

type EventsHandler struct {
	Hub *events.Hub
}

func writeSSE(w http.ResponseWriter, f http.Flusher, data string) error {
	if _, err := fmt.Fprintf(w, "event: message\ndata: %s\n\n", data); err != nil {
		return err
	}
	f.Flush()
	return nil
}

// ServeSSE streams hub events until the client goes away or the hub drops
// the subscription.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Hub.Subscribe()
	defer cancel()

	ping := events.MakeEvent(RequestIDFrom(r.Context()), events.TypePing, events.Version, nil)
	if err := writeSSE(w, flusher, ping); err != nil {
		return
	}

	tick := time.NewTicker(keepAlive)
	defer tick.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, open := <-ch:
			if !open {
				return
			}
			if err := writeSSE(w, flusher, msg); err != nil {
				return
			}
		}
	}
}
