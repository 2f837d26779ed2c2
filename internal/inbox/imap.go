package inbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const (
	DefaultMailbox = "INBOX"
	DefaultMark    = "$JobMailOA"
	idleRestart    = 25 * time.Minute
)

type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
	MaxRows  int
	Flag     string
	TLS      *tls.Config
}

func (c IMAPConfig) addr() string {
	host := c.Host
	if strings.Contains(host, ":") {
		return host
	}
	port := c.Port
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// IMAPSource reads the newest messages of one mailbox over a long-lived
// session and watches it with IDLE on a second connection.
type IMAPSource struct {
	cfg IMAPConfig

	mu sync.Mutex
	c  *imapclient.Client
}

func NewIMAPSource(cfg IMAPConfig) (*IMAPSource, error) {
	if cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("imap username/password is required")
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 50
	}
	if cfg.Flag == "" {
		cfg.Flag = DefaultMark
	}
	if cfg.TLS == nil {
		host := cfg.Host
		if i := strings.LastIndex(host, ":"); i > 0 {
			host = host[:i]
		}
		cfg.TLS = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	return &IMAPSource{cfg: cfg}, nil
}

func (s *IMAPSource) Name() string { return "imap" }

func (s *IMAPSource) dial(opts *imapclient.Options) (*imapclient.Client, error) {
	if opts == nil {
		opts = &imapclient.Options{}
	}
	opts.TLSConfig = s.cfg.TLS

	c, err := imapclient.DialTLS(s.cfg.addr(), opts)
	if err != nil {
		return nil, fmt.Errorf("imap dial tls: %w", err)
	}
	if err := c.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// session returns the shared client, dialing on first use. Callers hold s.mu.
func (s *IMAPSource) session() (*imapclient.Client, error) {
	if s.c != nil {
		return s.c, nil
	}
	c, err := s.dial(nil)
	if err != nil {
		return nil, err
	}
	s.c = c
	return c, nil
}

// drop forgets a broken session so the next call reconnects. Callers hold s.mu.
func (s *IMAPSource) drop() {
	if s.c != nil {
		_ = s.c.Close()
		s.c = nil
	}
}

func (s *IMAPSource) Rows(ctx context.Context) ([]*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.session()
	if err != nil {
		return nil, err
	}

	sel, err := c.Select(s.cfg.Mailbox, &imap.SelectOptions{ReadOnly: false}).Wait()
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("imap select %q: %w", s.cfg.Mailbox, err)
	}
	if sel.NumMessages == 0 {
		return []*Row{}, nil
	}

	from := uint32(1)
	if sel.NumMessages > uint32(s.cfg.MaxRows) {
		from = sel.NumMessages - uint32(s.cfg.MaxRows) + 1
	}
	var seqs imap.SeqSet
	seqs.AddRange(from, sel.NumMessages)

	bodyAll := &imap.FetchItemBodySection{Specifier: imap.PartSpecifierNone, Peek: true}
	fetchCmd := c.Fetch(seqs, &imap.FetchOptions{
		UID:          true,
		Flags:        true,
		Envelope:     true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodyAll},
	})
	defer func() { _ = fetchCmd.Close() }()

	rows := make([]*Row, 0, sel.NumMessages-from+1)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			s.drop()
			return nil, fmt.Errorf("imap fetch collect: %w", err)
		}
		rows = append(rows, s.toRow(buf, buf.FindBodySection(bodyAll)))
	}
	if err := fetchCmd.Close(); err != nil {
		s.drop()
		return nil, fmt.Errorf("imap fetch close: %w", err)
	}

	// sequence order is oldest first
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *IMAPSource) toRow(buf *imapclient.FetchMessageBuffer, raw []byte) *Row {
	uid := strconv.FormatUint(uint64(buf.UID), 10)
	r := &Row{
		Ref:   uid,
		Attrs: map[string]string{AttrUID: s.cfg.Mailbox + ":" + uid},
		Date:  buf.InternalDate,
	}
	if len(raw) > 0 {
		r.Raw = append([]byte(nil), raw...)
	}
	if env := buf.Envelope; env != nil {
		r.Subject = env.Subject
		r.From = joinAddrs(env.From)
		if env.MessageID != "" {
			r.Attrs[AttrMessageID] = "<" + strings.Trim(env.MessageID, "<>") + ">"
		}
		if !env.Date.IsZero() {
			r.Date = env.Date
		}
	}
	for _, f := range buf.Flags {
		if strings.EqualFold(string(f), s.cfg.Flag) {
			r.Marked = true
		}
	}
	return r
}

// Mark adds the keyword flag to the message.
func (s *IMAPSource) Mark(ctx context.Context, row *Row) error {
	n, err := strconv.ParseUint(row.Ref, 10, 32)
	if err != nil {
		return fmt.Errorf("imap mark: bad uid %q", row.Ref)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.session()
	if err != nil {
		return err
	}
	cmd := c.Store(imap.UIDSetNum(imap.UID(n)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.Flag(s.cfg.Flag)},
	}, nil)
	if err := cmd.Close(); err != nil {
		s.drop()
		return fmt.Errorf("imap store %s: %w", s.cfg.Flag, err)
	}
	return nil
}

// idleHandler notifies on new and expunged messages only. Unilateral FETCH
// data (flag changes, the engine's own mark included) is ignored.
func idleHandler(notify func()) *imapclient.UnilateralDataHandler {
	return &imapclient.UnilateralDataHandler{
		Expunge: func(uint32) { notify() },
		Mailbox: func(data *imapclient.UnilateralDataMailbox) {
			if data.NumMessages != nil {
				notify()
			}
		},
	}
}

// Watch keeps an IDLE connection open and reports new and expunged
// messages. IDLE is restarted periodically to stay under server timeouts.
func (s *IMAPSource) Watch(ctx context.Context, notify func()) error {
	c, err := s.dial(&imapclient.Options{UnilateralDataHandler: idleHandler(notify)})
	if err != nil {
		return err
	}
	defer LogoutAndClose(c)

	if _, err := c.Select(s.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return fmt.Errorf("imap select %q: %w", s.cfg.Mailbox, err)
	}
	log.Printf("[imap] watching %s", s.cfg.Mailbox)

	for {
		idle, err := c.Idle()
		if err != nil {
			return fmt.Errorf("imap idle: %w", err)
		}
		done := make(chan error, 1)
		go func() { done <- idle.Wait() }()

		restart := time.NewTimer(idleRestart)
		select {
		case <-ctx.Done():
			restart.Stop()
			_ = idle.Close()
			<-done
			return nil
		case err := <-done:
			restart.Stop()
			if err == nil {
				err = errors.New("idle ended unexpectedly")
			}
			return fmt.Errorf("imap idle: %w", err)
		case <-restart.C:
			if err := idle.Close(); err != nil {
				return fmt.Errorf("imap idle done: %w", err)
			}
			if err := <-done; err != nil {
				return fmt.Errorf("imap idle: %w", err)
			}
		}
	}
}

func (s *IMAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		LogoutAndClose(s.c)
		s.c = nil
	}
	return nil
}

// LogoutAndClose logs out then closes the connection.
func LogoutAndClose(c *imapclient.Client) {
	if c == nil {
		return
	}
	if err := c.Logout().Wait(); err != nil {
		log.Printf("[imap] logout: %v", err)
	}
	_ = c.Close()
}

func joinAddrs(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for i := range addrs {
		a := &addrs[i]
		addr := strings.TrimSpace(a.Addr())
		name := strings.TrimSpace(a.Name)
		switch {
		case name != "" && addr != "":
			parts = append(parts, fmt.Sprintf("%s <%s>", name, addr))
		case addr != "":
			parts = append(parts, addr)
		case name != "":
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}
