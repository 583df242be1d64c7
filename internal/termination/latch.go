package termination

import (
	"context"
	"sync"
)

// Latch is a one-shot counted rendezvous. It releases exactly once, when
// CountDown has been called count times; later countdowns are no-ops.
type Latch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewLatch creates a latch that releases after count countdowns.
func NewLatch(count int) *Latch {
	if count <= 0 {
		panic("termination: latch count must be positive")
	}
	return &Latch{count: count, done: make(chan struct{})}
}

// CountDown records one arrival. The countdown that reaches zero releases
// every waiter.
func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.count == 0 {
		return
	}
	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Done returns a channel closed when the latch has released.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// Wait blocks until the latch releases or ctx is cancelled.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of countdowns still required.
func (l *Latch) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
