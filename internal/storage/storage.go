package storage

import (
	"context"
)

// KeyValueStore is the durable client-side state used by the session store.
// Save and Delete apply all given keys atomically.
type KeyValueStore interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Save(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}
