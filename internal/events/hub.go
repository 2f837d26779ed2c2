package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is how many events a subscriber may lag behind before
// it starts missing them.
const DefaultBuffer = 16

// Hub fans serialized events out to SSE subscribers.
type Hub struct {
	buf int

	mu   sync.Mutex
	subs map[chan string]struct{}

	dropped atomic.Int64
}

func NewHub() *Hub { return NewHubSize(DefaultBuffer) }

func NewHubSize(buf int) *Hub {
	if buf <= 0 {
		buf = DefaultBuffer
	}
	return &Hub{buf: buf, subs: make(map[chan string]struct{})}
}

// Subscribe registers a listener. The returned cancel func removes it and
// closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, h.buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers evt to every subscriber with room for it and reports how
// many got it. A full subscriber misses the event; Publish never blocks.
func (h *Hub) Publish(evt string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for ch := range h.subs {
		select {
		case ch <- evt:
			n++
		default:
			h.dropped.Add(1)
		}
	}
	return n
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped because a subscriber was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
