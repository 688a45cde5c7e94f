// Package cart mirrors the server cart's item count for display.
package cart

import (
	"sync"

	"storefront-go/internal/metrics"
	"storefront-go/internal/notify"
)

// Counter is a non-negative item count shared by everything that shows or
// changes the cart.
type Counter struct {
	mu      sync.Mutex
	value   int
	updates notify.Broadcaster[int]
}

// NewCounter returns a counter at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Set replaces the count. Negative values become zero.
func (c *Counter) Set(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(n)
}

// Increment adds n.
func (c *Counter) Increment(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(c.value + n)
}

// Decrement subtracts n, stopping at zero.
func (c *Counter) Decrement(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(c.value - n)
}

// Reset sets the count to zero.
func (c *Counter) Reset() {
	c.Set(0)
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Subscribe returns a channel receiving the count after each change.
func (c *Counter) Subscribe() (<-chan int, func()) {
	return c.updates.Subscribe()
}

func (c *Counter) setLocked(n int) {
	if n < 0 {
		n = 0
	}
	c.value = n
	metrics.CartItems.Set(float64(n))
	c.updates.Publish(n)
}
