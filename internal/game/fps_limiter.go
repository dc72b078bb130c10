package game

import (
	"context"
	"time"
)

// spinWindow is how long before the deadline Wait stops sleeping and spins
const spinWindow = 200 * time.Microsecond

// FrameLimiter paces a loop to a fixed interval
type FrameLimiter struct {
	interval time.Duration
	next     time.Time
}

// NewFrameLimiter creates a limiter; a non-positive interval disables pacing
func NewFrameLimiter(interval time.Duration) *FrameLimiter {
	return &FrameLimiter{interval: interval}
}

func (f *FrameLimiter) Interval() time.Duration { return f.interval }

// Wait blocks until the next frame is due. It sleeps for most of the gap and
// busy-waits the last few microseconds, which is far more precise than a
// plain sleep at short intervals. It returns false if ctx ends first.
func (f *FrameLimiter) Wait(ctx context.Context) bool {
	if f.interval <= 0 {
		f.next = time.Time{}
		return ctx.Err() == nil
	}

	if f.next.IsZero() {
		f.next = time.Now().Add(f.interval)
	} else {
		f.next = f.next.Add(f.interval)
	}

	for {
		remaining := time.Until(f.next)
		if remaining <= 0 {
			break
		}
		if remaining > spinWindow {
			timer := time.NewTimer(remaining - spinWindow)
			select {
			case <-ctx.Done():
				timer.Stop()
				return false
			case <-timer.C:
			}
		}
		if time.Until(f.next) <= 0 {
			break
		}
	}

	// resync after a hitch instead of racing to catch up
	if late := -time.Until(f.next); late > f.interval {
		f.next = time.Now().Add(f.interval)
	}
	return ctx.Err() == nil
}
