package httpapi

import (
	"context"
	"log"
	"net/http"
	"sync"

	"jobmail-engine/internal/events"
	"jobmail-engine/internal/scan"
)

type ScanHandler struct {
	Scanner ScanRunner
	Hub     *events.Hub
	Ctx     context.Context
	WG      *sync.WaitGroup
}

type scanStatusResp struct {
	scan.Status
	Configured bool `json:"configured"`
}

func (h ScanHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.Scanner == nil {
		writeJSON(w, http.StatusOK, scanStatusResp{})
		return
	}
	writeJSON(w, http.StatusOK, scanStatusResp{Status: h.Scanner.Status(), Configured: true})
}

// Run starts a scan in the background and acknowledges right away. A scan
// already in progress is not an error; the processed set keeps overlapping
// passes from duplicating work.
func (h ScanHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Scanner == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "inbox_unavailable", "inbox is not configured; check /config/validate")
		return
	}

	ctx := h.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	reqID := RequestIDFrom(r.Context())
	if h.WG != nil {
		h.WG.Add(1)
	}
	go func() {
		if h.WG != nil {
			defer h.WG.Done()
		}
		h.Hub.Emit(reqID, events.TypeScanStarted, nil)
		rep, err := h.Scanner.Scan(ctx)
		if err != nil {
			log.Printf("[scan] request_id=%s error: %v", reqID, err)
			h.Hub.Emit(reqID, events.TypeScanDone, map[string]any{"error": err.Error()})
			return
		}
		h.Hub.Emit(reqID, events.TypeScanDone, rep)
	}()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
