// Package jobs runs the periodic background work: the admin dashboard
// collector and the poll closer.
package jobs

import (
	"context"
	"sync"
	"time"
)

// loop runs fn immediately and then every interval until stopped
type loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newLoop(name string, interval time.Duration, fn func(ctx context.Context)) *loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &loop{name: name, interval: interval, fn: fn, ctx: ctx, cancel: cancel}
}

func (l *loop) start() {
	l.once.Do(func() {
		l.wg.Add(1)
		go l.run()
	})
}

// stop cancels the loop and waits for the running tick to return
func (l *loop) stop() {
	l.cancel()
	l.wg.Wait()
}

func (l *loop) run() {
	defer l.wg.Done()

	l.fn(l.ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.fn(l.ctx)
		case <-l.ctx.Done():
			return
		}
	}
}
