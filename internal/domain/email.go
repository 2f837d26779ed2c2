package domain

import (
	"fmt"
	"strings"
)

type Classification string

const (
	OAInvite     Classification = "OA_INVITE"
	Rejection    Classification = "REJECTION"
	StatusUpdate Classification = "STATUS_UPDATE"
	Other        Classification = "OTHER"
)

// labelOrder is the order in which a free-form model answer is searched.
var labelOrder = []Classification{OAInvite, Rejection, StatusUpdate}

// ParseClassification picks the first known label contained in s, OTHER otherwise.
func ParseClassification(s string) Classification {
	up := strings.ToUpper(s)
	for _, c := range labelOrder {
		if strings.Contains(up, string(c)) {
			return c
		}
	}
	return Other
}

// EmailRecord is built per scan pass and dropped after classification.
type EmailRecord struct {
	ThreadID string
	Subject  string
	Sender   string
	Snippet  string
}

// Content is the text handed to classifiers and summarizers.
func (r EmailRecord) Content() string {
	return fmt.Sprintf("Subject: %s\nFrom: %s\nContent: %s", r.Subject, r.Sender, r.Snippet)
}

// OAEmailEntry is the persisted record of a detected OA email.
type OAEmailEntry struct {
	ID             string         `json:"id"`
	Subject        string         `json:"subject"`
	Sender         string         `json:"sender"`
	Summary        string         `json:"summary"`
	Snippet        string         `json:"snippet"`
	Classification Classification `json:"classification"`
	Timestamp      int64          `json:"timestamp"` // unix ms
	Read           bool           `json:"read"`
}
