package inbox

import (
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const (
	maxBody = 25 << 20
	maxPart = 6 << 20
)

// Parsed holds what the extractor needs from an RFC822 message.
type Parsed struct {
	MessageID  string
	InReplyTo  string
	References []string
	Subject    string
	From       string
	ReplyTo    string
	Sender     string
	Plain      string
	HTML       string
}

// ParseRFC822 reads headers and the largest plain and HTML text parts of raw.
// Transfer encodings and charsets are decoded. Unknown charsets or encodings
// are tolerated and the part is used as-is.
func ParseRFC822(raw []byte) (Parsed, error) {
	var p Parsed
	e, err := message.Read(io.LimitReader(bytes.NewReader(raw), maxBody))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return p, err
	}

	h := mail.Header{Header: e.Header}
	p.MessageID = strings.TrimSpace(h.Get("Message-Id"))
	p.InReplyTo = firstMsgID(h.Get("In-Reply-To"))
	p.References = strings.Fields(h.Get("References"))
	p.Subject = headerText(h, "Subject")
	p.From = headerText(h, "From")
	p.ReplyTo = headerText(h, "Reply-To")
	p.Sender = headerText(h, "Sender")

	walk(e, &p)
	return p, nil
}

// walk descends into multipart entities keeping the longest text parts.
func walk(e *message.Entity, p *Parsed) {
	if mr := e.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return
			}
			walk(part, p)
		}
	}

	mediaType, _, _ := e.Header.ContentType()
	if disp, _, _ := e.Header.ContentDisposition(); disp == "attachment" {
		return
	}
	switch {
	case mediaType == "" || mediaType == "text/plain":
		if s := readPart(e); len(s) > len(p.Plain) {
			p.Plain = s
		}
	case mediaType == "text/html":
		if s := readPart(e); len(s) > len(p.HTML) {
			p.HTML = s
		}
	}
}

func readPart(e *message.Entity) string {
	b, _ := io.ReadAll(io.LimitReader(e.Body, maxPart))
	return string(b)
}

func headerText(h mail.Header, key string) string {
	s, err := h.Text(key)
	if err != nil {
		return strings.TrimSpace(h.Get(key))
	}
	return strings.TrimSpace(s)
}

// DecodeHeader decodes RFC2047 encoded words in any charset go-message
// knows, returning s trimmed but otherwise unchanged on failure.
func DecodeHeader(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	dec := mime.WordDecoder{CharsetReader: message.CharsetReader}
	out, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return out
}

func firstMsgID(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
