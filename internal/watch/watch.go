package watch

import (
	"context"
	"log"
	"time"

	"jobmail-engine/internal/scan"
	"jobmail-engine/internal/scheduler"
)

const DefaultPollInterval = 2 * time.Minute

// Notifier is the part of an inbox source that reports mailbox changes.
type Notifier interface {
	Name() string
	Watch(ctx context.Context, notify func()) error
}

type Scanner interface {
	Scan(ctx context.Context) (scan.Report, error)
}

type Options struct {
	Debounce     time.Duration
	PollInterval time.Duration
}

// Watcher rescans the inbox whenever the source reports a change, after the
// changes have been quiet for the debounce delay.
type Watcher struct {
	src  Notifier
	scan Scanner
	opts Options
}

func New(src Notifier, s Scanner, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Watcher{src: src, scan: s, opts: opts}
}

// Run scans once, then follows the source until ctx ends. If the source can
// no longer be watched it falls back to polling.
func (w *Watcher) Run(ctx context.Context) {
	run := func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.scan.Scan(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[watch] scan: %v", err)
		}
	}

	run()

	d := NewDebouncer(w.opts.Debounce, run)
	defer d.Stop()

	err := w.src.Watch(ctx, d.Trigger)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("[watch] %s watch failed, polling every %s: %v", w.src.Name(), w.opts.PollInterval, err)
	}
	scheduler.Every(ctx, w.opts.PollInterval, "watch-poll", func(ctx context.Context) error {
		_, err := w.scan.Scan(ctx)
		return err
	})
}
