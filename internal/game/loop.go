package game

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"renderstar/internal/profiling"
)

// Loop is the update thread. It runs the tick function at a fixed interval
// on one OS thread and executes work posted from other goroutines at the
// start of each tick, so everything it drives stays single-threaded.
type Loop struct {
	limiter   *FrameLimiter
	slowFrame time.Duration

	mu     sync.Mutex
	posted []func()

	frames atomic.Uint64
	log    *slog.Logger
}

// NewLoop creates a loop ticking every interval. Frames slower than
// slowFrame are logged with their most expensive tracked sections; zero
// disables that.
func NewLoop(interval, slowFrame time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		limiter:   NewFrameLimiter(interval),
		slowFrame: slowFrame,
		log:       logger.With("component", "game.Loop"),
	}
}

// Post queues fn to run on the update thread before the next tick. Work
// posted after Run returned never runs.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
}

// Frames returns the number of completed ticks
func (l *Loop) Frames() uint64 { return l.frames.Load() }

func (l *Loop) drain() {
	l.mu.Lock()
	work := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, fn := range work {
		fn()
	}
}

// Run locks the calling goroutine to its OS thread and ticks until ctx is
// cancelled, returning nil, or tick fails, returning its error.
func (l *Loop) Run(ctx context.Context, tick func(dt float64) error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	last := time.Now()
	for ctx.Err() == nil {
		profiling.ResetFrame()
		start := time.Now()
		dt := start.Sub(last).Seconds()
		last = start

		l.drain()
		if err := tick(dt); err != nil {
			return err
		}
		l.frames.Add(1)

		if elapsed := time.Since(start); l.slowFrame > 0 && elapsed > l.slowFrame {
			l.log.Warn("slow frame", "duration", elapsed, "top", profiling.TopN(5))
		}
		if !l.limiter.Wait(ctx) {
			break
		}
	}
	return nil
}
