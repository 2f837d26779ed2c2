package extract

import (
	"fmt"
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/inbox"
)

const MaxSnippet = 300

// preheaderSelectors are tried in order against the HTML part; newsletters and
// ATS mailers hide their preview text in one of these.
var preheaderSelectors = []string{
	".preheader",
	"[class*=preheader]",
	"[id*=preheader]",
}

// Extractor turns an inbox row into an EmailRecord. Each field has an ordered
// list of strategies and the first non-empty one wins.
type Extractor struct {
	newID func() string
}

func New() *Extractor {
	return &Extractor{newID: func() string { return "email-" + uuid.NewString() }}
}

// Extract never panics. A row whose structure cannot be read is reported as
// not ok and skipped by the caller.
func (e *Extractor) Extract(row *inbox.Row) (rec domain.EmailRecord, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[extract] row %v: %v", rowRef(row), r)
			rec, ok = domain.EmailRecord{}, false
		}
	}()
	if row == nil {
		return domain.EmailRecord{}, false
	}

	var parsed inbox.Parsed
	var doc *goquery.Document
	if len(row.Raw) > 0 {
		p, err := inbox.ParseRFC822(row.Raw)
		if err != nil {
			log.Printf("[extract] row %s: parse message: %v", row.Ref, err)
		} else {
			parsed = p
		}
		if parsed.HTML != "" {
			if d, err := goquery.NewDocumentFromReader(strings.NewReader(parsed.HTML)); err == nil {
				doc = d
			}
		}
	}

	rec.Subject = first(
		func() string { return row.Subject },
		func() string { return parsed.Subject },
		func() string { return docText(doc, "title") },
	)
	rec.Sender = first(
		func() string { return row.From },
		func() string { return parsed.From },
		func() string { return parsed.ReplyTo },
		func() string { return parsed.Sender },
	)
	rec.Snippet = first(
		func() string { return dropSubjectPrefix(row.Snippet) },
		func() string { return preheader(doc) },
		func() string { return docText(doc, "body") },
		func() string { return parsed.Plain },
	)
	rec.Snippet = Clip(rec.Snippet, MaxSnippet)
	rec.ThreadID = e.threadID(row, parsed)
	return rec, true
}

func (e *Extractor) threadID(row *inbox.Row, parsed inbox.Parsed) string {
	refs := row.Attr(inbox.AttrReferences)
	if refs == "" && len(parsed.References) > 0 {
		refs = parsed.References[0]
	}
	id := first(
		func() string { return row.Attr(inbox.AttrGmailThreadID) },
		func() string { return firstField(refs) },
		func() string { return row.Attr(inbox.AttrInReplyTo) },
		func() string { return parsed.InReplyTo },
		func() string { return row.Attr(inbox.AttrMessageID) },
		func() string { return parsed.MessageID },
		func() string { return row.Attr(inbox.AttrUID) },
	)
	if id == "" {
		id = e.newID()
	}
	return id
}

func first(strategies ...func() string) string {
	for _, s := range strategies {
		if v := CleanText(s()); v != "" {
			return v
		}
	}
	return ""
}

func preheader(doc *goquery.Document) string {
	if doc == nil {
		return ""
	}
	for _, sel := range preheaderSelectors {
		if t := CleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	if v, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		return CleanText(v)
	}
	return ""
}

func docText(doc *goquery.Document, sel string) string {
	if doc == nil {
		return ""
	}
	s := doc.Find(sel).First()
	// scripts and styles are not part of what a reader sees
	s.Find("script, style").Remove()
	return CleanText(s.Text())
}

// dropSubjectPrefix removes the "subject — " lead that list views put in
// front of a preview.
func dropSubjectPrefix(s string) string {
	if i := strings.Index(s, "—"); i >= 0 {
		return strings.TrimSpace(s[i+len("—"):])
	}
	return s
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Clip keeps at most n runes.
func Clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func firstField(s string) string {
	f := strings.Fields(s)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

func rowRef(row *inbox.Row) string {
	if row == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%q", row.Ref)
}
