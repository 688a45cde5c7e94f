package api

import (
	"context"
	"fmt"
	"sync"

	"storefront-go/internal/metrics"
)

// Coordinator makes sure at most one token refresh is outstanding. The first
// caller to AcquireOrAwait becomes the leader and performs the refresh; later
// callers are queued until the leader calls Settle.
type Coordinator struct {
	mu       sync.Mutex
	inFlight bool
	queue    []*Waiter
}

// Waiter is a request queued behind an in-flight refresh.
type Waiter struct {
	result chan refreshResult
	done   chan struct{}
	once   sync.Once
}

type refreshResult struct {
	token string
	err   error
}

// AcquireOrAwait either claims the refresh (leader is true, w is nil) or
// enqueues the caller behind the current one.
func (c *Coordinator) AcquireOrAwait() (leader bool, w *Waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.inFlight {
		c.inFlight = true
		metrics.RefreshInFlight.Set(1)
		return true, nil
	}

	w = &Waiter{
		result: make(chan refreshResult, 1),
		done:   make(chan struct{}),
	}
	c.queue = append(c.queue, w)
	metrics.RefreshWaiters.Set(float64(len(c.queue)))
	return false, w
}

// Settle ends the refresh. The queue and the in-flight flag are reset under
// the lock, then waiters are released in FIFO order; each must call Release
// before the next one is released.
func (c *Coordinator) Settle(token string, err error) {
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.inFlight = false
	c.mu.Unlock()

	metrics.RefreshInFlight.Set(0)
	metrics.RefreshWaiters.Set(0)

	for _, w := range queue {
		w.result <- refreshResult{token: token, err: err}
		<-w.done
	}
}

// InFlight reports whether a refresh is outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns the number of queued waiters.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Wait blocks until the refresh settles and returns the new access token or
// the refresh error. If ctx ends first the waiter releases itself.
func (w *Waiter) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-w.result:
		return r.token, r.err
	case <-ctx.Done():
		w.Release()
		return "", fmt.Errorf("waiting for token refresh: %w", ctx.Err())
	}
}

// Release lets the coordinator move on to the next waiter. Safe to call more
// than once.
func (w *Waiter) Release() {
	w.once.Do(func() { close(w.done) })
}
