package scan

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"jobmail-engine/internal/classify"
	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/events"
	"jobmail-engine/internal/extract"
	"jobmail-engine/internal/inbox"
	"jobmail-engine/internal/store"
)

// sqlite pools close in t.Cleanup, after any per-test defer would run.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	rows []*inbox.Row
	err  error
}

func (f *fakeSource) Rows(ctx context.Context) ([]*inbox.Row, error) { return f.rows, f.err }

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Name() string { return "mock" }

func (m *mockClassifier) Classify(ctx context.Context, content string) domain.Classification {
	return m.Called(content).Get(0).(domain.Classification)
}

func (m *mockClassifier) Summarize(ctx context.Context, content string) string {
	return m.Called(content).String(0)
}

type recordingAnnotator struct {
	mu   sync.Mutex
	refs []string
}

func (a *recordingAnnotator) Annotate(ctx context.Context, row *inbox.Row) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refs = append(a.refs, row.Ref)
	return nil
}

type panicExtractor struct{}

func (panicExtractor) Extract(row *inbox.Row) (domain.EmailRecord, bool) {
	if row.Ref == "bad" {
		panic("unexpected row layout")
	}
	return extract.New().Extract(row)
}

func row(id, subject, snippet string) *inbox.Row {
	return &inbox.Row{
		Ref:     id,
		Attrs:   map[string]string{inbox.AttrGmailThreadID: id},
		Subject: subject,
		From:    "Acme <jobs@acme.io>",
		Snippet: snippet,
	}
}

type fixture struct {
	src   *fakeSource
	store *store.OAStore
	seen  *store.ProcessedSet
	ann   *recordingAnnotator
	hub   *events.Hub
}

func newFixture(t *testing.T, cls classify.Classifier, ext Extractor, rows ...*inbox.Row) (*Scanner, *fixture) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	if ext == nil {
		ext = extract.New()
	}
	f := &fixture{
		src:   &fakeSource{rows: rows},
		store: store.NewOAStore(db.Pool),
		seen:  store.NewProcessedSet(),
		ann:   &recordingAnnotator{},
		hub:   events.NewHub(),
	}
	s := New(Deps{
		Source:     f.src,
		Extractor:  ext,
		Classifier: cls,
		Store:      f.store,
		Processed:  f.seen,
		Annotator:  f.ann,
		Hub:        f.hub,
		Stagger:    time.Millisecond,
		Now:        func() time.Time { return time.UnixMilli(1700000000000) },
	})
	return s, f
}

func TestScan_DetectsAndPersistsOAInvites(t *testing.T) {
	rows := []*inbox.Row{
		row("t3", "Your HackerRank assessment", "Please complete the online assessment in 7 days"),
		row("t2", "Update on your application", "We are not moving forward with your candidacy"),
		row("t1", "Coding challenge", "short"),
	}
	s, f := newFixture(t, classify.NewHeuristic(classify.DefaultKeywords()), nil, rows...)
	sub, unsubscribe := f.hub.Subscribe()
	defer unsubscribe()

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Rows: 3, Classified: 3, Detected: 2}, rep)

	list, err := f.store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	byID := map[string]domain.OAEmailEntry{}
	for _, e := range list {
		byID[e.ID] = e
	}
	long := byID["t3"]
	assert.Equal(t, domain.OAInvite, long.Classification)
	assert.False(t, long.Read)
	assert.Equal(t, int64(1700000000000), long.Timestamp)
	assert.Equal(t, "Please complete the online assessment in 7 days", long.Snippet)
	assert.True(t, strings.HasPrefix(long.Summary, "Subject: Your HackerRank assessment"))

	assert.Equal(t, "Coding challenge - Click to view full details", byID["t1"].Summary)

	assert.ElementsMatch(t, []string{"t3", "t1"}, f.ann.refs)
	assert.Equal(t, 2, f.seen.Len())

	for i := 0; i < 2; i++ {
		var e events.Event
		require.NoError(t, json.Unmarshal([]byte(<-sub), &e))
		assert.Equal(t, events.TypeOADetected, e.Type)
		var payload OADetected
		require.NoError(t, json.Unmarshal(e.Data, &payload))
		assert.Contains(t, []string{"t3", "t1"}, payload.Email.ID)
	}

	st := s.Status()
	assert.False(t, st.Running)
	assert.Equal(t, 2, st.LastDetected)
	assert.Empty(t, st.LastError)
	assert.NotEmpty(t, st.LastOkAt)
}

func TestScan_ProcessedThreadsAreNotReclassified(t *testing.T) {
	r := row("t1", "Assessment", "Complete your coding challenge")
	cls := &mockClassifier{}
	cls.On("Classify", mock.Anything).Return(domain.OAInvite).Once()
	cls.On("Summarize", mock.Anything).Return("Take the test").Once()

	s, f := newFixture(t, cls, nil, r)
	_, err := s.Scan(context.Background())
	require.NoError(t, err)

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 0, rep.Classified)

	cls.AssertExpectations(t)
	cls.AssertNumberOfCalls(t, "Classify", 1)
	list, _ := f.store.List(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "Take the test", list[0].Summary)
}

func TestScan_NonOARowsAreRecheckedEachPass(t *testing.T) {
	cls := &mockClassifier{}
	cls.On("Classify", mock.Anything).Return(domain.StatusUpdate)
	s, f := newFixture(t, cls, nil, row("t1", "Application status", "Received"))

	for i := 0; i < 2; i++ {
		_, err := s.Scan(context.Background())
		require.NoError(t, err)
	}
	cls.AssertNumberOfCalls(t, "Classify", 2)
	assert.Equal(t, 0, f.seen.Len())
}

func TestScan_RowPanicDoesNotStopOthers(t *testing.T) {
	bad := &inbox.Row{Ref: "bad"}
	good := row("t1", "Online assessment", "Please take the online assessment soon")
	s, f := newFixture(t, classify.NewHeuristic(classify.DefaultKeywords()), panicExtractor{}, bad, good)

	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Detected)
	assert.Equal(t, 1, rep.Failed)
	assert.Contains(t, s.Status().LastError, "unexpected row layout")

	list, _ := f.store.List(context.Background())
	assert.Len(t, list, 1)
}

func TestScan_ListErrorIsReturned(t *testing.T) {
	s, f := newFixture(t, classify.NewHeuristic(classify.DefaultKeywords()), nil)
	f.src.err = errors.New("connection reset")

	_, err := s.Scan(context.Background())
	assert.ErrorContains(t, err, "connection reset")
	assert.Contains(t, s.Status().LastError, "connection reset")
	assert.False(t, s.Running())
}

func TestScan_EmptyInbox(t *testing.T) {
	s, _ := newFixture(t, classify.NewHeuristic(classify.DefaultKeywords()), nil)
	rep, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)
}

func TestScan_DispatchIsStaggered(t *testing.T) {
	rows := []*inbox.Row{row("a", "x", "y"), row("b", "x", "y"), row("c", "x", "y")}
	cls := &mockClassifier{}
	cls.On("Classify", mock.Anything).Return(domain.Other)
	s, _ := newFixture(t, cls, nil, rows...)
	s.d.Stagger = 30 * time.Millisecond

	start := time.Now()
	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestProcessEmail_InvalidRow(t *testing.T) {
	cls := &mockClassifier{}
	s, _ := newFixture(t, cls, extractorFunc(func(*inbox.Row) (domain.EmailRecord, bool) {
		return domain.EmailRecord{}, false
	}))

	o, err := s.ProcessEmail(context.Background(), &inbox.Row{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, o)
	cls.AssertNotCalled(t, "Classify", mock.Anything)
}

func TestProcessEmail_DuplicatePersistedEntryIsNotRepublished(t *testing.T) {
	cls := &mockClassifier{}
	cls.On("Classify", mock.Anything).Return(domain.OAInvite)
	s, f := newFixture(t, cls, nil)
	sub, unsubscribe := f.hub.Subscribe()
	defer unsubscribe()

	_, err := f.store.Save(context.Background(), domain.OAEmailEntry{ID: "t1", Subject: "kept", Classification: domain.OAInvite})
	require.NoError(t, err)

	o, err := s.ProcessEmail(context.Background(), row("t1", "Assessment", "tiny"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDetected, o)
	assert.Equal(t, 0, len(sub))

	got, err := f.store.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Subject)
}

type extractorFunc func(*inbox.Row) (domain.EmailRecord, bool)

func (f extractorFunc) Extract(r *inbox.Row) (domain.EmailRecord, bool) { return f(r) }
