package scan

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"jobmail-engine/internal/classify"
	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/inbox"
	"jobmail-engine/internal/store"
)

const (
	DefaultStagger = 100 * time.Millisecond
	// snippets at or under this many runes are too thin to summarize
	minSummarizable = 20
)

// Lister is the part of an inbox source the scanner reads from.
type Lister interface {
	Rows(ctx context.Context) ([]*inbox.Row, error)
}

type Extractor interface {
	Extract(row *inbox.Row) (domain.EmailRecord, bool)
}

type Annotator interface {
	Annotate(ctx context.Context, row *inbox.Row) error
}

type Outcome string

const (
	OutcomeInvalid   Outcome = "invalid"   // nothing usable could be extracted
	OutcomeProcessed Outcome = "processed" // already handled this session
	OutcomeIgnored   Outcome = "ignored"   // classified, not an OA invite
	OutcomeDetected  Outcome = "detected"
)

// Report summarizes one scan pass.
type Report struct {
	Rows       int `json:"rows"`
	Classified int `json:"classified"`
	Detected   int `json:"detected"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// OADetected is the payload of the OA_DETECTED event.
type OADetected struct {
	Email domain.OAEmailEntry `json:"email"`
}

type Deps struct {
	Source     Lister
	Extractor  Extractor
	Classifier classify.Classifier
	Store      *store.OAStore
	Processed  *store.ProcessedSet
	Annotator  Annotator
	Hub        *events.Hub // optional
	Stagger    time.Duration
	Now        func() time.Time
}

// Scanner walks the inbox and records OA invites. Scans may overlap; the
// processed set is the only guard against handling a thread twice.
type Scanner struct {
	d Deps

	status atomic.Value // Status
	active atomic.Int32
	mu     sync.Mutex // serializes status read-modify-write
}

func New(d Deps) *Scanner {
	if d.Stagger < 0 {
		d.Stagger = 0
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Processed == nil {
		d.Processed = store.NewProcessedSet()
	}
	s := &Scanner{d: d}
	s.status.Store(Status{})
	return s
}

// Scan processes every visible row. Rows are dispatched newest first, one
// per stagger interval, and complete in any order. Only a failure to list the
// inbox is returned; per-row problems are logged and counted.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	s.begin()
	rep, err := s.scan(ctx)
	s.end(rep, err)
	return rep, err
}

func (s *Scanner) scan(ctx context.Context) (Report, error) {
	rows, err := s.d.Source.Rows(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list inbox rows: %w", err)
	}
	rep := Report{Rows: len(rows)}
	if len(rows) == 0 {
		log.Printf("[scan] no inbox rows found")
		return rep, nil
	}

	limit := rate.Inf
	if s.d.Stagger > 0 {
		limit = rate.Every(s.d.Stagger)
	}
	lim := rate.NewLimiter(limit, 1)

	var (
		mu       sync.Mutex
		firstErr error
	)
	count := func(o Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case OutcomeDetected:
			rep.Classified++
			rep.Detected++
		case OutcomeIgnored:
			rep.Classified++
		default:
			rep.Skipped++
		}
		if err != nil {
			rep.Failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	var g errgroup.Group
	for _, row := range rows {
		if err := lim.Wait(ctx); err != nil {
			log.Printf("[scan] dispatch stopped: %v", err)
			break
		}
		row := row
		g.Go(func() error {
			o, err := s.safeProcess(ctx, row)
			if err != nil {
				log.Printf("[scan] row %s: %v", row.Ref, err)
			}
			count(o, err)
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[scan] rows=%d classified=%d detected=%d skipped=%d failed=%d",
		rep.Rows, rep.Classified, rep.Detected, rep.Skipped, rep.Failed)
	if firstErr != nil {
		s.setRowError(firstErr)
	}
	return rep, nil
}

func (s *Scanner) safeProcess(ctx context.Context, row *inbox.Row) (o Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			o, err = OutcomeInvalid, fmt.Errorf("panic: %v", r)
		}
	}()
	return s.ProcessEmail(ctx, row)
}

// ProcessEmail runs one row through extract, classify and, for OA invites,
// annotate, summarize, persist and notify. A thread already processed this
// session costs no classification and no write.
func (s *Scanner) ProcessEmail(ctx context.Context, row *inbox.Row) (Outcome, error) {
	rec, ok := s.d.Extractor.Extract(row)
	if !ok || rec.ThreadID == "" {
		return OutcomeInvalid, nil
	}
	if s.d.Processed.Has(rec.ThreadID) {
		return OutcomeProcessed, nil
	}

	content := rec.Content()
	if c := s.d.Classifier.Classify(ctx, content); c != domain.OAInvite {
		return OutcomeIgnored, nil
	}
	// another scan may have claimed the thread while we were classifying
	if !s.d.Processed.Mark(rec.ThreadID) {
		return OutcomeProcessed, nil
	}

	if s.d.Annotator != nil {
		if err := s.d.Annotator.Annotate(ctx, row); err != nil {
			log.Printf("[scan] %v", err)
		}
	}

	entry := domain.OAEmailEntry{
		ID:             rec.ThreadID,
		Subject:        rec.Subject,
		Sender:         rec.Sender,
		Summary:        s.summary(ctx, rec, content),
		Snippet:        rec.Snippet,
		Classification: domain.OAInvite,
		Timestamp:      s.d.Now().UnixMilli(),
	}

	added, err := s.d.Store.Save(ctx, entry)
	if err != nil {
		return OutcomeDetected, err
	}
	log.Printf("[scan] OA detected subject=%q sender=%q new=%v", entry.Subject, entry.Sender, added)
	if added {
		s.notify(entry)
	}
	return OutcomeDetected, nil
}

func (s *Scanner) summary(ctx context.Context, rec domain.EmailRecord, content string) string {
	if len([]rune(rec.Snippet)) > minSummarizable {
		return s.d.Classifier.Summarize(ctx, content)
	}
	return rec.Subject + " - Click to view full details"
}

func (s *Scanner) notify(e domain.OAEmailEntry) {
	if s.d.Hub == nil {
		return
	}
	if n := s.d.Hub.Emit("", events.TypeOADetected, OADetected{Email: e}); n == 0 {
		log.Printf("[scan] no listener for %s id=%s", events.TypeOADetected, e.ID)
	}
}
