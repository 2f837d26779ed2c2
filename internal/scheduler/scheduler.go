package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task once right away and then on each tick until ctx is done.
// A failing or panicking run is logged under name and the loop carries on;
// ticks that arrive while a run is in progress are dropped.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	if interval <= 0 {
		interval = time.Minute
	}

	failures := 0
	run := func() {
		err := safeRun(ctx, task)
		switch {
		case err == nil:
			if failures > 0 {
				log.Printf("[%s] recovered after %d failed runs", name, failures)
			}
			failures = 0
		case ctx.Err() != nil:
		default:
			failures++
			log.Printf("[%s] error (%d in a row): %v", name, failures, err)
		}
	}

	run()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return task(ctx)
}
