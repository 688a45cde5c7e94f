package session

import (
	"context"
	"sync"
)

// Persister is the durable backing for the store. Save and Delete must apply
// all keys atomically.
type Persister interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryPersister is an in-memory implementation of Persister.
type MemoryPersister struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryPersister creates a new MemoryPersister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{
		values: make(map[string][]byte),
	}
}

// Load returns a copy of all stored values.
func (p *MemoryPersister) Load(ctx context.Context) (map[string][]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string][]byte, len(p.values))
	for key, value := range p.values {
		out[key] = append([]byte(nil), value...)
	}
	return out, nil
}

// Save stores copies of the given values.
func (p *MemoryPersister) Save(ctx context.Context, values map[string][]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, value := range values {
		p.values[key] = append([]byte(nil), value...)
	}
	return nil
}

// Delete removes keys.
func (p *MemoryPersister) Delete(ctx context.Context, keys ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, key := range keys {
		delete(p.values, key)
	}
	return nil
}
