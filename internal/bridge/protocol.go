package bridge

import "time"

const (
	SourceScanner = "jobmail-content-script"
	SourceBridge  = "jobmail-ai-bridge"

	TypeClassify  = "CLASSIFY_EMAIL"
	TypeSummarize = "SUMMARIZE_EMAIL"
)

// Request is what the scanner side posts to the model side.
type Request struct {
	Source    string `json:"source"`
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	RequestID string `json:"requestId"`
	// Deadline is when the caller stops waiting; the worker gives up then too.
	Deadline time.Time `json:"-"`
}

// Response echoes the RequestID of the Request it answers.
type Response struct {
	Source    string `json:"source"`
	Type      string `json:"type"`
	Payload   string `json:"payload"`
	RequestID string `json:"requestId"`
	Err       string `json:"error,omitempty"`
}

func ResultType(requestType string) string { return requestType + "_RESULT" }
