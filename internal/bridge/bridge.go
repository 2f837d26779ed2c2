package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"jobmail-engine/internal/llm"
)

var (
	ErrTimeout   = errors.New("bridge: request timed out")
	ErrClosed    = errors.New("bridge: closed")
	ErrNotReady  = errors.New("bridge: model session not ready")
	ErrAbandoned = errors.New("bridge: caller stopped waiting")
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultExcerptChars = 1000
)

type Options struct {
	// Timeout bounds every Call, including time spent queued behind other requests.
	Timeout time.Duration
	// ExcerptChars is how much of an email is sent for classification.
	ExcerptChars int
}

// Bridge correlates requests and responses between the scanner and a single
// model worker. Every Call is answered, times out, or fails on Close; pending
// entries are always removed.
type Bridge struct {
	provider llm.Provider
	opts     Options

	requests  chan Request
	responses chan Response

	mu      sync.Mutex
	pending map[string]chan Response

	initOnce sync.Once
	initErr  error
	ready    atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(provider llm.Provider, opts Options) *Bridge {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ExcerptChars <= 0 {
		opts.ExcerptChars = DefaultExcerptChars
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		provider:  provider,
		opts:      opts,
		requests:  make(chan Request),
		responses: make(chan Response, 16),
		pending:   make(map[string]chan Response),
		ctx:       ctx,
		cancel:    cancel,
	}
	b.wg.Add(2)
	go b.serve()
	go b.dispatch()
	return b
}

// Init prepares the model session once. Later calls return the first result.
func (b *Bridge) Init(ctx context.Context) error {
	b.initOnce.Do(func() {
		if b.provider == nil {
			b.initErr = errors.New("no ai provider configured")
			return
		}
		switch avail := llm.Probe(ctx, b.provider); avail {
		case llm.Readily:
			b.ready.Store(true)
			log.Printf("[bridge] %s session ready", b.provider.Name())
		case llm.AfterDownload:
			b.initErr = fmt.Errorf("%s model is not downloaded yet", b.provider.Name())
		default:
			b.initErr = fmt.Errorf("%s is not available", b.provider.Name())
		}
	})
	return b.initErr
}

func (b *Bridge) Ready() bool { return b.ready.Load() }

func (b *Bridge) ProviderName() string {
	if b.provider == nil {
		return "none"
	}
	return b.provider.Name()
}

// Call sends one request and waits for its correlated response.
func (b *Bridge) Call(ctx context.Context, typ, payload string) (string, error) {
	deadline := time.Now().Add(b.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	req := Request{
		Source:    SourceScanner,
		Type:      typ,
		Payload:   payload,
		RequestID: uuid.NewString(),
		Deadline:  deadline,
	}

	ch := make(chan Response, 1)
	b.mu.Lock()
	b.pending[req.RequestID] = ch
	b.mu.Unlock()
	defer b.forget(req.RequestID)

	timer := time.NewTimer(b.opts.Timeout)
	defer timer.Stop()

	select {
	case b.requests <- req:
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.ctx.Done():
		return "", ErrClosed
	}

	select {
	case resp := <-ch:
		if resp.Err != "" {
			if b.ctx.Err() != nil {
				return "", ErrClosed
			}
			return "", errors.New(resp.Err)
		}
		return resp.Payload, nil
	case <-timer.C:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.ctx.Done():
		return "", ErrClosed
	}
}

// Pending is the number of calls still waiting for a response. A nil
// bridge has none.
func (b *Bridge) Pending() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
	})
}

func (b *Bridge) waiting(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[id]
	return ok
}

func (b *Bridge) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// serve is the model side: one request at a time against the session.
func (b *Bridge) serve() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case req := <-b.requests:
			resp := b.handle(req)
			select {
			case b.responses <- resp:
			case <-b.ctx.Done():
				return
			}
		}
	}
}

func (b *Bridge) handle(req Request) Response {
	resp := Response{
		Source:    SourceBridge,
		Type:      ResultType(req.Type),
		RequestID: req.RequestID,
	}
	if !b.Ready() {
		resp.Err = ErrNotReady.Error()
		return resp
	}
	// the caller timed out or went away while this request was queued
	if !b.waiting(req.RequestID) || !time.Now().Before(req.Deadline) {
		resp.Err = ErrAbandoned.Error()
		return resp
	}

	var prompt string
	switch req.Type {
	case TypeClassify:
		prompt = ClassifyPrompt(req.Payload, b.opts.ExcerptChars)
	case TypeSummarize:
		prompt = SummarizePrompt(req.Payload)
	default:
		resp.Err = fmt.Sprintf("unknown request type %q", req.Type)
		return resp
	}

	ctx, cancel := context.WithDeadline(b.ctx, req.Deadline)
	defer cancel()
	out, err := b.provider.Generate(ctx, prompt)
	if err != nil {
		resp.Err = err.Error()
		return resp
	}
	resp.Payload = out
	return resp
}

// dispatch routes responses to their waiting callers.
func (b *Bridge) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case resp := <-b.responses:
			b.mu.Lock()
			ch, ok := b.pending[resp.RequestID]
			delete(b.pending, resp.RequestID)
			b.mu.Unlock()
			if !ok {
				log.Printf("[bridge] dropping %s for unknown request %s", resp.Type, resp.RequestID)
				continue
			}
			ch <- resp
		}
	}
}
