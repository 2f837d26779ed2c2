package events

import (
	"encoding/json"
	"log"
	"time"
)

const (
	TypePing          = "ping"
	TypeOADetected    = "OA_DETECTED"
	TypeScanStarted   = "scan_started"
	TypeScanDone      = "scan_done"
	TypeEmailsChanged = "emails_changed"
)

// Version is the envelope version stamped on events built by Emit.
const Version = 1

// Event is the JSON envelope written to SSE clients.
type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent serializes an envelope. Data that cannot be marshalled is
// dropped from the envelope and logged.
func MakeEvent(reqID, typ string, v int, data any) string {
	e := Event{Type: typ, Version: v, At: time.Now().UTC(), RequestID: reqID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			log.Printf("[events] %s: encode data: %v", typ, err)
		} else {
			e.Data = raw
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// Emit publishes a current-version event and returns how many listeners got it.
func (h *Hub) Emit(reqID, typ string, data any) int {
	if h == nil {
		return 0
	}
	return h.Publish(MakeEvent(reqID, typ, Version, data))
}
