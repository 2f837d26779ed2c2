package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobmail-engine/internal/scheduler"
)

const (
	gmailUser         = "me"
	DefaultGmailLabel = "JobMail/OA"
)

type GmailConfig struct {
	CredentialsPath string
	TokenPath       string
	MaxRows         int64
	Label           string
	PollInterval    time.Duration
}

// GmailSource reads the inbox through the Gmail API and marks OA mail with a label.
type GmailSource struct {
	svc *gmail.Service
	cfg GmailConfig

	mu      sync.Mutex
	labelID string
}

// NewGmailSource authorizes with a cached OAuth token. The token must already
// exist; the engine runs unattended and never opens a browser.
func NewGmailSource(ctx context.Context, cfg GmailConfig) (*GmailSource, error) {
	b, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	oc, err := google.ConfigFromJSON(b, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("read gmail token %s: %w", cfg.TokenPath, err)
	}
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailSourceWithService(svc, cfg), nil
}

func NewGmailSourceWithService(svc *gmail.Service, cfg GmailConfig) *GmailSource {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 50
	}
	if cfg.Label == "" {
		cfg.Label = DefaultGmailLabel
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &GmailSource{svc: svc, cfg: cfg}
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func (s *GmailSource) Name() string { return "gmail" }

func (s *GmailSource) Rows(ctx context.Context) ([]*Row, error) {
	labelID, err := s.ensureLabel(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.svc.Users.Messages.List(gmailUser).
		LabelIds("INBOX").
		MaxResults(s.cfg.MaxRows).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list messages: %w", err)
	}

	rows := make([]*Row, 0, len(res.Messages))
	for _, ref := range res.Messages {
		m, err := s.svc.Users.Messages.Get(gmailUser, ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Reply-To", "Message-ID", "In-Reply-To", "References").
			Context(ctx).
			Do()
		if err != nil {
			// one unreadable message does not hide the rest
			log.Printf("[gmail] get message %s: %v", ref.Id, err)
			continue
		}
		rows = append(rows, gmailRow(m, labelID))
	}
	return rows, nil
}

func gmailRow(m *gmail.Message, labelID string) *Row {
	r := &Row{
		Ref:     m.Id,
		Attrs:   map[string]string{AttrGmailThreadID: m.ThreadId},
		Snippet: html.UnescapeString(m.Snippet),
		Date:    time.UnixMilli(m.InternalDate),
	}
	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				r.Subject = DecodeHeader(h.Value)
			case "from":
				r.From = DecodeHeader(h.Value)
			case "message-id":
				r.Attrs[AttrMessageID] = strings.TrimSpace(h.Value)
			case "in-reply-to":
				r.Attrs[AttrInReplyTo] = firstMsgID(h.Value)
			case "references":
				r.Attrs[AttrReferences] = strings.TrimSpace(h.Value)
			}
		}
	}
	for _, id := range m.LabelIds {
		if id == labelID {
			r.Marked = true
		}
	}
	return r
}

func (s *GmailSource) ensureLabel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labelID != "" {
		return s.labelID, nil
	}

	res, err := s.svc.Users.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail list labels: %w", err)
	}
	for _, l := range res.Labels {
		if strings.EqualFold(l.Name, s.cfg.Label) {
			s.labelID = l.Id
			return s.labelID, nil
		}
	}

	l, err := s.svc.Users.Labels.Create(gmailUser, &gmail.Label{
		Name:                  s.cfg.Label,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail create label %q: %w", s.cfg.Label, err)
	}
	log.Printf("[gmail] created label %q", s.cfg.Label)
	s.labelID = l.Id
	return s.labelID, nil
}

func (s *GmailSource) Mark(ctx context.Context, row *Row) error {
	labelID, err := s.ensureLabel(ctx)
	if err != nil {
		return err
	}
	_, err = s.svc.Users.Messages.Modify(gmailUser, row.Ref, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail label message %s: %w", row.Ref, err)
	}
	return nil
}

// Watch polls the mailbox history id and notifies when it moves.
func (s *GmailSource) Watch(ctx context.Context, notify func()) error {
	var last uint64
	var mu sync.Mutex
	scheduler.Every(ctx, s.cfg.PollInterval, "gmail-watch", func(ctx context.Context) error {
		p, err := s.svc.Users.GetProfile(gmailUser).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("gmail profile: %w", err)
		}
		mu.Lock()
		changed := last != 0 && p.HistoryId != last
		last = p.HistoryId
		mu.Unlock()
		if changed {
			notify()
		}
		return nil
	})
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *GmailSource) Close() error { return nil }
