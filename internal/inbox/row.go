package inbox

import (
	"context"
	"time"
)

// Attribute names a source may set on a Row.
const (
	AttrGmailThreadID = "gmail-thread-id"
	AttrMessageID     = "message-id"
	AttrInReplyTo     = "in-reply-to"
	AttrReferences    = "references"
	AttrUID           = "uid"
)

// Row is one message as the source presents it. It is read-only except for
// Marked, which the annotator flips after marking the message.
type Row struct {
	Ref     string // source handle: IMAP UID or Gmail message id
	Attrs   map[string]string
	Subject string
	From    string
	Snippet string
	Raw     []byte // full RFC822 message, when fetched
	Date    time.Time
	Marked  bool
}

func (r *Row) Attr(name string) string {
	if r == nil || r.Attrs == nil {
		return ""
	}
	return r.Attrs[name]
}

// Source is a mailbox the engine can enumerate, mark and watch.
type Source interface {
	Name() string
	// Rows returns the newest messages, newest first.
	Rows(ctx context.Context) ([]*Row, error)
	// Mark tags the message as an OA invite in the mailbox itself.
	Mark(ctx context.Context, row *Row) error
	// Watch calls notify whenever the mailbox changes, until ctx ends.
	Watch(ctx context.Context, notify func()) error
	Close() error
}
