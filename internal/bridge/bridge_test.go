package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"jobmail-engine/internal/classify"
	"jobmail-engine/internal/domain"
	"jobmail-engine/internal/llm"
)

// MockProvider implements llm.Provider and llm.Prober for testing
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(prompt)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Availability(ctx context.Context) llm.Availability {
	args := m.Called()
	return args.Get(0).(llm.Availability)
}

// blockingProvider never answers until its context is done.
type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }
func (blockingProvider) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func readyBridge(t *testing.T, p llm.Provider, opts Options) *Bridge {
	t.Helper()
	b := New(p, opts)
	require.NoError(t, b.Init(context.Background()))
	return b
}

func TestBridge_InitAvailability(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name  string
		avail llm.Availability
		ready bool
	}{
		{"readily", llm.Readily, true},
		{"after_download", llm.AfterDownload, false},
		{"unavailable", llm.Unavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &MockProvider{}
			p.On("Availability").Return(tt.avail).Once()

			b := New(p, Options{})
			defer b.Close()

			err := b.Init(context.Background())
			assert.Equal(t, tt.ready, err == nil)
			assert.Equal(t, tt.ready, b.Ready())

			// one-time: the probe is not repeated
			assert.Equal(t, err, b.Init(context.Background()))
			p.AssertExpectations(t)
		})
	}
}

func TestBridge_InitWithoutProvider(t *testing.T) {
	defer goleak.VerifyNone(t)
	b := New(nil, Options{})
	defer b.Close()

	assert.Error(t, b.Init(context.Background()))
	assert.False(t, b.Ready())
	assert.Equal(t, "none", b.ProviderName())
}

func TestBridge_CallCorrelatesResponse(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &MockProvider{}
	p.On("Availability").Return(llm.Readily)
	p.On("Generate", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "Classify this email") })).Return("OA_INVITE", nil)
	p.On("Generate", mock.MatchedBy(func(s string) bool { return strings.Contains(s, "Summarize") })).Return("Take the test by Friday.", nil)

	b := readyBridge(t, p, Options{Timeout: time.Second})
	defer b.Close()

	out, err := b.Call(context.Background(), TypeClassify, "hello")
	require.NoError(t, err)
	assert.Equal(t, "OA_INVITE", out)

	out, err = b.Call(context.Background(), TypeSummarize, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Take the test by Friday.", out)

	assert.Zero(t, b.Pending())
}

func TestBridge_CallUnknownType(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := &MockProvider{}
	p.On("Availability").Return(llm.Readily)

	b := readyBridge(t, p, Options{Timeout: time.Second})
	defer b.Close()

	_, err := b.Call(context.Background(), "TRANSLATE_EMAIL", "x")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown request type")
	p.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestBridge_CallTimesOutAndCleansUp(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := readyBridge(t, blockingProvider{}, Options{Timeout: 50 * time.Millisecond})
	defer b.Close()

	start := time.Now()
	_, err := b.Call(context.Background(), TypeClassify, "x")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Zero(t, b.Pending())
}

func TestBridge_CallContextCanceled(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := readyBridge(t, blockingProvider{}, Options{Timeout: 5 * time.Second})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := b.Call(ctx, TypeClassify, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, b.Pending())
}

// timedProvider blocks until its context ends and reports how long it ran.
type timedProvider struct{ ran chan time.Duration }

func (timedProvider) Name() string { return "timed" }
func (p timedProvider) Generate(ctx context.Context, _ string) (string, error) {
	start := time.Now()
	<-ctx.Done()
	p.ran <- time.Since(start)
	return "", ctx.Err()
}

func TestBridge_WorkerStopsWithCallerDeadline(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := timedProvider{ran: make(chan time.Duration, 1)}
	b := readyBridge(t, p, Options{Timeout: 10 * time.Second})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := b.Call(ctx, TypeClassify, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case d := <-p.ran:
		assert.Less(t, d, 2*time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("worker kept generating after the caller gave up")
	}
}

func TestBridge_SkipsAbandonedRequests(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &MockProvider{}
	p.On("Availability").Return(llm.Readily)
	b := readyBridge(t, p, Options{Timeout: time.Second})
	defer b.Close()

	resp := b.handle(Request{Type: TypeClassify, RequestID: "gone", Deadline: time.Now().Add(time.Minute)})
	assert.Equal(t, ErrAbandoned.Error(), resp.Err)
	assert.Equal(t, "gone", resp.RequestID)

	b.mu.Lock()
	b.pending["late"] = make(chan Response, 1)
	b.mu.Unlock()
	resp = b.handle(Request{Type: TypeClassify, RequestID: "late", Deadline: time.Now().Add(-time.Second)})
	assert.Equal(t, ErrAbandoned.Error(), resp.Err)
	b.forget("late")

	p.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestBridge_CloseFailsPendingCalls(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := readyBridge(t, blockingProvider{}, Options{Timeout: 5 * time.Second})

	errc := make(chan error, 1)
	go func() {
		_, err := b.Call(context.Background(), TypeClassify, "x")
		errc <- err
	}()

	require.Eventually(t, func() bool { return b.Pending() == 1 }, time.Second, 5*time.Millisecond)
	b.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return after Close")
	}

	_, err := b.Call(context.Background(), TypeClassify, "x")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestClassifyPrompt_UsesExcerpt(t *testing.T) {
	content := strings.Repeat("a", 1500) + "TAIL"
	prompt := ClassifyPrompt(content, 1000)
	assert.Contains(t, prompt, strings.Repeat("a", 1000))
	assert.NotContains(t, prompt, strings.Repeat("a", 1001))
	assert.NotContains(t, prompt, "TAIL")
}

func TestModelClassifier_NotReadyDelegates(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &MockProvider{}
	p.On("Availability").Return(llm.Unavailable)
	b := New(p, Options{})
	defer b.Close()

	heuristic := classify.NewHeuristic(classify.DefaultKeywords())
	c := Select(context.Background(), b, heuristic)
	assert.Equal(t, "keywords", c.Name())

	mc := NewModelClassifier(b, heuristic)
	ctx := context.Background()
	assert.Equal(t, domain.OAInvite, mc.Classify(ctx, "You are invited to complete a HackerRank online assessment"))
	assert.Equal(t, domain.Rejection, mc.Classify(ctx, "Unfortunately, we will not be moving forward with your application"))

	long := strings.Repeat("z", 260)
	assert.Equal(t, strings.Repeat("z", 200)+"...", mc.Summarize(ctx, long))
	assert.Equal(t, "tiny", mc.Summarize(ctx, "tiny"))

	p.AssertNotCalled(t, "Generate", mock.Anything)
}

func TestModelClassifier_ParsesModelAnswer(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &MockProvider{}
	p.On("Availability").Return(llm.Readily)
	p.On("Generate", mock.Anything).Return("Sure! The label is REJECTION.", nil).Once()
	p.On("Generate", mock.Anything).Return("no idea", nil).Once()

	b := New(p, Options{Timeout: time.Second})
	defer b.Close()

	c := Select(context.Background(), b, classify.NewHeuristic(classify.DefaultKeywords()))
	assert.Equal(t, "model:mock", c.Name())

	ctx := context.Background()
	assert.Equal(t, domain.Rejection, c.Classify(ctx, "coding test"))
	// unparseable answers are OTHER, not the heuristic result
	assert.Equal(t, domain.Other, c.Classify(ctx, "coding test"))
	p.AssertExpectations(t)
}

func TestModelClassifier_CallFailureFallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &MockProvider{}
	p.On("Availability").Return(llm.Readily)
	p.On("Generate", mock.Anything).Return("", errors.New("model crashed"))

	b := New(p, Options{Timeout: time.Second})
	defer b.Close()

	c := Select(context.Background(), b, classify.NewHeuristic(classify.DefaultKeywords()))
	ctx := context.Background()

	assert.Equal(t, domain.OAInvite, c.Classify(ctx, "Your Codility coding test is ready"))
	assert.Equal(t, "short body", c.Summarize(ctx, "short body"))
}

func TestModelClassifier_EmptySummaryFallsBack(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := &MockProvider{}
	p.On("Availability").Return(llm.Readily)
	p.On("Generate", mock.Anything).Return("   ", nil)

	b := New(p, Options{Timeout: time.Second})
	defer b.Close()

	c := Select(context.Background(), b, classify.NewHeuristic(classify.DefaultKeywords()))
	assert.Equal(t, "body", c.Summarize(context.Background(), "body"))
}
