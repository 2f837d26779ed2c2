package inbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMsg = "From: =?UTF-8?Q?Acme_Recruiting?= <jobs@acme.io>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: =?UTF-8?B?WW91ciBIYWNrZXJSYW5rIGludml0ZQ==?=\r\n" +
	"Message-ID: <abc@acme.io>\r\n" +
	"In-Reply-To: <root@acme.io>\r\n" +
	"References: <root@acme.io> <mid@acme.io>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"XX\"\r\n" +
	"\r\n" +
	"--XX\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Please complete the online assessment =\r\nwithin 7 days.\r\n" +
	"--XX\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"PGh0bWw+PGJvZHk+PHA+SGVsbG88L3A+PC9ib2R5PjwvaHRtbD4=\r\n" +
	"--XX--\r\n"

func TestParseRFC822_Multipart(t *testing.T) {
	p, err := ParseRFC822([]byte(multipartMsg))
	require.NoError(t, err)

	assert.Equal(t, "<abc@acme.io>", p.MessageID)
	assert.Equal(t, "<root@acme.io>", p.InReplyTo)
	assert.Equal(t, []string{"<root@acme.io>", "<mid@acme.io>"}, p.References)
	assert.Equal(t, "Your HackerRank invite", p.Subject)
	assert.Equal(t, "Acme Recruiting <jobs@acme.io>", p.From)
	assert.Contains(t, p.Plain, "Please complete the online assessment within 7 days.")
	assert.Equal(t, "<html><body><p>Hello</p></body></html>", p.HTML)
}

func TestParseRFC822_SinglePartHTML(t *testing.T) {
	raw := "From: a@b.c\r\nSubject: hi\r\nContent-Type: text/html\r\n\r\n<p>body</p>"
	p, err := ParseRFC822([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, p.Plain)
	assert.Equal(t, "<p>body</p>", p.HTML)
}

func TestParseRFC822_NoContentType(t *testing.T) {
	raw := "From: a@b.c\r\nSubject: hi\r\n\r\nplain body"
	p, err := ParseRFC822([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "plain body", strings.TrimSpace(p.Plain))
}

func TestParseRFC822_Garbage(t *testing.T) {
	_, err := ParseRFC822([]byte("not a message"))
	assert.Error(t, err)
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "Café", DecodeHeader("=?UTF-8?Q?Caf=C3=A9?="))
	assert.Equal(t, "plain", DecodeHeader("  plain "))
	assert.Equal(t, "", DecodeHeader(""))
}

func TestParseRFC822_LegacyCharset(t *testing.T) {
	raw := "From: a@b.c\r\n" +
		"Subject: =?ISO-8859-1?Q?R=E9sum=E9?=\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Caf=E9 assessment"
	p, err := ParseRFC822([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Résumé", p.Subject)
	assert.Equal(t, "Café assessment", p.Plain)
}

func TestParseRFC822_SkipsAttachments(t *testing.T) {
	raw := "From: a@b.c\r\n" +
		"Content-Type: multipart/mixed; boundary=\"B\"\r\n" +
		"\r\n" +
		"--B\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"short body\r\n" +
		"--B\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Disposition: attachment; filename=\"notes.txt\"\r\n" +
		"\r\n" +
		"a much longer attached text file that must not become the snippet\r\n" +
		"--B--\r\n"
	p, err := ParseRFC822([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "short body", strings.TrimSpace(p.Plain))
}
