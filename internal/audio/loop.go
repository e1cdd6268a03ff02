package audio

import (
	"context"
	"music-tutor/internal/metrics"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultLoopInterval = 50 * time.Millisecond

// Loop runs fn on a fixed interval. A tick that fires while the previous run
// is still busy is skipped, never queued.
type Loop struct {
	interval time.Duration
	fn       func(context.Context)

	busy    atomic.Bool
	ticks   atomic.Int64
	skipped atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLoop(interval time.Duration, fn func(context.Context)) *Loop {
	if interval <= 0 {
		interval = DefaultLoopInterval
	}
	return &Loop{interval: interval, fn: fn}
}

// Start is a no-op when the loop is already running.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.ticks.Add(1)
			if !l.busy.CompareAndSwap(false, true) {
				l.skipped.Add(1)
				metrics.AnalysisTicks.WithLabelValues("skipped").Inc()
				continue
			}
			metrics.AnalysisTicks.WithLabelValues("run").Inc()
			l.wg.Add(1)
			go func() {
				defer l.wg.Done()
				defer l.busy.Store(false)
				l.fn(ctx)
			}()
		}
	}
}

// Stop cancels the loop and waits for in-flight work.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

func (l *Loop) Ticks() int64   { return l.ticks.Load() }
func (l *Loop) Skipped() int64 { return l.skipped.Load() }
