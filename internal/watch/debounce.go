package watch

import (
	"sync"
	"time"
)

const DefaultDebounce = 1000 * time.Millisecond

// Debouncer calls fn once, delay after the last Trigger. Every Trigger
// restarts the wait.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu      sync.Mutex
	t       *time.Timer
	stopped bool
	running sync.WaitGroup
}

func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fn: fn}
}

func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.t != nil {
		d.t.Stop()
	}
	d.t = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn()
}

// Stop drops any pending call and waits for one already running. Later
// Triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.t != nil {
		d.t.Stop()
	}
	d.mu.Unlock()
	d.running.Wait()
}
