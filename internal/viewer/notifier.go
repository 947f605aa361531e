package viewer

import (
	"context"
	"sync"
	"time"
)

// Notifier is the run/pause gate between the panel and the producers.
// Producers call Wait before applying an update; it returns at once while
// running and blocks while paused.
type Notifier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running bool
}

// NewNotifier returns a notifier in the running state.
func NewNotifier() *Notifier {
	n := &Notifier{running: true}
	n.cond = sync.NewCond(&n.mu)
	return n
}

// Running reports whether producers may proceed.
func (n *Notifier) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// SetRunning opens or closes the gate.
func (n *Notifier) SetRunning(running bool) {
	n.mu.Lock()
	n.running = running
	n.mu.Unlock()
	n.cond.Broadcast()
}

// Toggle flips the state and returns the new one.
func (n *Notifier) Toggle() bool {
	n.mu.Lock()
	n.running = !n.running
	r := n.running
	n.mu.Unlock()
	n.cond.Broadcast()
	return r
}

// Wait blocks until the gate is open or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	// sync.Cond cannot select on a context; wake the waiters when it ends.
	stop := context.AfterFunc(ctx, func() {
		n.mu.Lock()
		n.mu.Unlock()
		n.cond.Broadcast()
	})
	defer stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	for !n.running {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.cond.Wait()
	}
	return ctx.Err()
}

// FrameLimiter sleeps at the end of a frame to hold a target rate.
type FrameLimiter struct {
	target time.Duration
	last   time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewFrameLimiter returns a limiter for fps frames per second. fps <= 0
// disables limiting.
func NewFrameLimiter(fps int) *FrameLimiter {
	l := &FrameLimiter{now: time.Now, sleep: time.Sleep}
	l.SetTarget(fps)
	return l
}

// SetTarget changes the target rate.
func (l *FrameLimiter) SetTarget(fps int) {
	if fps <= 0 {
		l.target = 0
		return
	}
	l.target = time.Second / time.Duration(fps)
}

// Wait sleeps for whatever is left of the current frame and returns the
// time since the previous call.
func (l *FrameLimiter) Wait() time.Duration {
	now := l.now()
	if l.last.IsZero() {
		l.last = now
		return 0
	}
	if l.target > 0 {
		if left := l.target - now.Sub(l.last); left > 0 {
			l.sleep(left)
			now = now.Add(left)
		}
	}
	dt := now.Sub(l.last)
	l.last = now
	return dt
}
