// Package notify fans out state snapshots to subscribers.
package notify

import "sync"

// Broadcaster delivers values to every subscriber without blocking the
// publisher. Each subscriber channel holds one value; a slow subscriber only
// ever sees the most recent one. The zero value is ready to use.
type Broadcaster[T any] struct {
	mu   sync.Mutex
	subs map[int]chan T
	next int
}

// Subscribe registers a new subscriber. The returned cancel func removes it
// and closes the channel; calling it more than once is safe.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]chan T)
	}
	id := b.next
	b.next++
	ch := make(chan T, 1)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Publish sends v to all subscribers, replacing any value they have not read yet.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// Drop the stale value
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
